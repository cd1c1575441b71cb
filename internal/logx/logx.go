// Package logx provides the tagged console output used across the tool.
package logx

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// Tag prefixes every line so tool output is easy to grep out of a larger
// pipeline log.
const Tag = "[dyn_obf]"

var (
	// Silent suppresses informational output. Warnings and errors are
	// always printed.
	Silent bool

	// Debug enables verbose per-file tracing.
	Debug bool

	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed)
)

// Infof prints an informational line unless Silent is set.
func Infof(format string, args ...interface{}) {
	if Silent {
		return
	}
	fmt.Printf(Tag+" "+format+"\n", args...)
}

// Debugf prints only when Debug is enabled.
func Debugf(format string, args ...interface{}) {
	if !Debug || Silent {
		return
	}
	fmt.Printf(Tag+" "+format+"\n", args...)
}

// Warnf prints a warning to stderr.
func Warnf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s %s\n", warnColor.Sprint(Tag+" WARNING:"), fmt.Sprintf(format, args...))
}

// Errorf prints an error to stderr.
func Errorf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s %s\n", errColor.Sprint(Tag+" ERROR:"), fmt.Sprintf(format, args...))
}
