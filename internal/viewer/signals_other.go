//go:build !unix

package viewer

import (
	"os"
	"os/signal"
)

func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt)
}

func isResizeSignal(s os.Signal) bool {
	return false
}
