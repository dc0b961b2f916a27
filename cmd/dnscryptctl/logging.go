package main

//
// Logging
//

import (
	"io"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/fatih/color"
)

var bold = color.New(color.Bold)

// newLogger returns the logger for one invocation. Only warnings and
// errors reach the terminal unless verbose is set.
func newLogger(w io.Writer, verbose bool) *log.Logger {
	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}
	return &log.Logger{Level: level, Handler: cli.New(w)}
}
