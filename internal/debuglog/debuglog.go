// Package debuglog writes diagnostic messages to an optional log file.
// Nothing is written until Init succeeds; when the configured destination
// cannot be opened, messages fall back to stderr.
package debuglog

import (
	"io"
	"log"
	"os"
	"sync"
)

var (
	mu     sync.Mutex
	logger = log.New(io.Discard, "", log.LstdFlags)
)

// Init points the debug log at path. An empty path disables it. When the
// file cannot be opened, logging falls back to stderr instead of failing
// the caller.
func Init(path string) {
	mu.Lock()
	defer mu.Unlock()
	if path == "" {
		logger = log.New(io.Discard, "", log.LstdFlags)
		return
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		logger = log.New(os.Stderr, "timekeeper: ", log.LstdFlags)
		logger.Printf("debug log %s unavailable: %v", path, err)
		return
	}
	logger = log.New(f, "", log.LstdFlags)
}

// Printf logs one formatted message to the configured destination.
func Printf(format string, v ...any) {
	mu.Lock()
	l := logger
	mu.Unlock()
	l.Printf(format, v...)
}
