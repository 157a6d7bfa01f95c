//go:build unix

package viewer

import (
	"os"
	"os/signal"
	"syscall"
)

func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM, syscall.SIGWINCH /*all listed signals should be handled by Run.*/)
}

func isResizeSignal(s os.Signal) bool {
	return s == syscall.SIGWINCH
}
