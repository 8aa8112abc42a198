// Package logging points the standard logger (and gin) at stderr and an
// optional rotating log file.
package logging

import (
	"io"
	"log"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxSizeMB  = 1 // rotate at 1 MiB
	maxBackups = 1
)

var (
	mux     sync.Mutex
	current *lumberjack.Logger
	output  io.Writer = os.Stderr
)

// Setup sends log output to stderr and, when path is not empty, to a
// rotating file at path. Calling it again with the same path is a no-op.
func Setup(path string) io.Writer {
	mux.Lock()
	defer mux.Unlock()

	if path == "" {
		output = os.Stderr
		log.SetOutput(output)
		return output
	}
	if current != nil && current.Filename == path {
		return output
	}
	if current != nil {
		current.Close()
	}
	current = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}
	output = io.MultiWriter(os.Stderr, current)
	log.SetOutput(output)
	log.Printf("[LOG]: writing log to %s", path)
	return output
}

// Writer returns the current log sink
func Writer() io.Writer {
	mux.Lock()
	defer mux.Unlock()
	return output
}

// Close flushes and closes the log file, if any
func Close() error {
	mux.Lock()
	defer mux.Unlock()
	if current == nil {
		return nil
	}
	err := current.Close()
	current = nil
	output = os.Stderr
	log.SetOutput(output)
	return err
}
