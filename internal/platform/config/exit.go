package config

import (
	"fmt"
	"io"
	"os"
)

// Exit codes used by the inbox command.
const (
	ExitFailure = 1
	// ExitUsage reports bad flags or environment before any action ran.
	ExitUsage = 2
)

// exit and stderr are swapped in tests.
var (
	exit             = os.Exit
	stderr io.Writer = os.Stderr
)

// Exitf writes a formatted error message to stderr and exits with ExitFailure.
func Exitf(format string, args ...any) {
	ExitCodef(ExitFailure, format, args...)
}

// ExitCodef writes a formatted error message to stderr and exits with code.
func ExitCodef(code int, format string, args ...any) {
	fmt.Fprintf(stderr, format+"\n", args...)
	exit(code)
}
