// Package log provides component-scoped debug logging, gated by the
// SLICEGRAPH_DEBUG environment variable so normal operation stays silent.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var (
	mu      sync.Mutex
	out     io.Writer
	enabled = os.Getenv("SLICEGRAPH_DEBUG") != ""
)

// SetOutput redirects debug output; pass nil to silence it entirely. Tests
// use this to capture log lines instead of writing to stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// SetEnabled overrides the SLICEGRAPH_DEBUG gate programmatically.
func SetEnabled(v bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = v
}

// Logger is a component-scoped logger, e.g. log.For("indexing").
type Logger struct {
	component string
}

// For returns a logger scoped to the named component (indexing, storage,
// slice, cache, adapter, ...).
func For(component string) Logger {
	return Logger{component: component}
}

func (l Logger) Debugf(format string, args ...interface{}) {
	mu.Lock()
	w := out
	isEnabled := enabled
	mu.Unlock()

	if !isEnabled {
		return
	}
	if w == nil {
		w = os.Stderr
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(w, "%s [%s] %s\n", time.Now().Format(time.RFC3339), l.component, msg)
}
