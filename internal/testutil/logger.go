// Package testutil provides loggers for tests: one that writes through
// t.Log and one that also keeps the records for assertions.
package testutil

import (
	"context"
	"log/slog"
	"sync"
	"testing"
)

// NewTestLogger returns a debug-level logger that writes through t.Log, so
// output shows only for failing tests or under -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(newTextHandler(t))
}

func newTextHandler(t testing.TB) slog.Handler {
	return slog.NewTextHandler(tbWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug})
}

type tbWriter struct {
	t testing.TB
}

func (w tbWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

// Logs holds the records written to a capturing logger.
type Logs struct {
	mu      sync.Mutex
	records []slog.Record
}

// NewCaptureLogger returns a logger that writes through t.Log like
// NewTestLogger and also keeps every record in the returned Logs.
func NewCaptureLogger(t testing.TB) (*slog.Logger, *Logs) {
	t.Helper()
	logs := &Logs{}
	return slog.New(&captureHandler{Handler: newTextHandler(t), logs: logs}), logs
}

// Values returns the string value of key in each record logged with msg, in
// logging order.
func (l *Logs) Values(msg, key string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, r := range l.records {
		if r.Message != msg {
			continue
		}
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == key {
				out = append(out, a.Value.String())
				return false
			}
			return true
		})
	}
	return out
}

// captureHandler records each handled record before passing it on. Records
// carry only their own attributes; WithAttrs and WithGroup context is not
// kept.
type captureHandler struct {
	slog.Handler
	logs *Logs
}

func (h *captureHandler) Handle(ctx context.Context, r slog.Record) error {
	h.logs.mu.Lock()
	h.logs.records = append(h.logs.records, r.Clone())
	h.logs.mu.Unlock()
	return h.Handler.Handle(ctx, r)
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &captureHandler{Handler: h.Handler.WithAttrs(attrs), logs: h.logs}
}

func (h *captureHandler) WithGroup(name string) slog.Handler {
	return &captureHandler{Handler: h.Handler.WithGroup(name), logs: h.logs}
}
