// Package lazy is a deferred columnar query layer over Apache Arrow.
//
// A Frame is an immutable plan: sources (Arrow records and tables, Parquet
// files) followed by projections, filters, renames, joins and limits. Plans
// are only executed by Frame.Collect, which evaluates expressions with Arrow
// compute kernels and returns a DataFrame. Schema inference is static and
// never touches data, so a plan's columns can be inspected for free.
//
// Every plan belongs to a Session that owns the allocator and the logger and
// counts collections.
package lazy

import (
	"log/slog"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Session owns shared resources of lazy plans. It is safe for concurrent use.
type Session struct {
	mem      memory.Allocator
	logger   *slog.Logger
	collects atomic.Int64
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithAllocator sets the Arrow allocator. Defaults to a Go allocator.
func WithAllocator(mem memory.Allocator) SessionOption {
	return func(s *Session) {
		if mem != nil {
			s.mem = mem
		}
	}
}

// WithLogger sets the session logger. Defaults to a discard logger.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSession creates a session.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		mem:    memory.NewGoAllocator(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allocator returns the session allocator.
func (s *Session) Allocator() memory.Allocator { return s.mem }

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger { return s.logger }

// Collects returns how many plans have been executed in this session.
func (s *Session) Collects() int64 { return s.collects.Load() }
