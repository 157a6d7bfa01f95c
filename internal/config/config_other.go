//go:build !unix

package config

import "os"

func targetSpecificInit() {
	_, NO_COLOR = os.LookupEnv("NO_COLOR")
	SHOULD_COLORIZE = false
}
