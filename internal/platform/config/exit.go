package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

// Exit codes shared by the soimap command-line tools.
const (
	ExitFailure = 1
	ExitUsage   = 2
)

var (
	stderr io.Writer = os.Stderr
	exit             = os.Exit
)

// Exitf writes a formatted error message to stderr and exits with
// ExitFailure.
func Exitf(format string, args ...any) {
	fmt.Fprintf(stderr, format+"\n", args...)
	exit(ExitFailure)
}

// ExitUsagef reports a flag or environment problem and exits with ExitUsage.
// flag.ErrHelp exits cleanly since the flag package already printed usage.
func ExitUsagef(err error) {
	if errors.Is(err, flag.ErrHelp) {
		exit(0)
		return
	}
	fmt.Fprintf(stderr, "usage: %v\n", err)
	exit(ExitUsage)
}
