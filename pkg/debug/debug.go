// Package debug provides conditional debug logging for jw.
//
// Logging is enabled by setting JW_DEBUG:
//
//	JW_DEBUG=1 jw
//
// Messages go to stderr with timestamps. When disabled (the default) every
// function returns immediately.
package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

var (
	mu      sync.Mutex
	enabled bool
	logger  *log.Logger
)

func init() {
	if os.Getenv("JW_DEBUG") != "" {
		enabled = true
		logger = newLogger(os.Stderr)
	}
}

func newLogger(w io.Writer) *log.Logger {
	return log.New(w, "[JW_DEBUG] ", log.Ltime|log.Lmicroseconds)
}

// Enabled returns whether debug logging is enabled.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// SetEnabled turns debug logging on or off, creating the stderr logger on
// first use.
func SetEnabled(e bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = e
	if e && logger == nil {
		logger = newLogger(os.Stderr)
	}
}

// SetOutput redirects debug output. The TUI uses this to keep stderr clean
// while the alternate screen is active.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(w)
}

func current() *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		return nil
	}
	return logger
}

// Log writes a printf-style debug message.
func Log(format string, args ...any) {
	if l := current(); l != nil {
		l.Printf(format, args...)
	}
}

// LogTiming writes "<name> took <d>".
func LogTiming(name string, d time.Duration) {
	if l := current(); l != nil {
		l.Printf("%s took %v", name, d)
	}
}

// LogEnterExit logs entry now and exit with elapsed time when the returned
// function runs:
//
//	defer debug.LogEnterExit("reload")()
func LogEnterExit(name string) func() {
	l := current()
	if l == nil {
		return func() {}
	}
	l.Printf("-> %s", name)
	start := time.Now()
	return func() {
		l.Printf("<- %s (%v)", name, time.Since(start))
	}
}

// Dump logs a value with its type.
func Dump(name string, v any) {
	if l := current(); l != nil {
		l.Printf("%s: %T = %+v", name, v, v)
	}
}

// Assert panics with msg when cond is false. Only active when enabled.
func Assert(cond bool, msg string) {
	l := current()
	if l == nil || cond {
		return
	}
	l.Printf("ASSERTION FAILED: %s", msg)
	panic(fmt.Sprintf("debug assertion failed: %s", msg))
}
