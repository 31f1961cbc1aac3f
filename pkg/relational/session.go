// Package relational is a deferred query builder over DuckDB.
//
// A Relation is an immutable query tree. Building one issues no SQL.
// Describe and Columns plan the query with DESCRIBE, which reads no rows;
// Fetch, FetchArrow, Count and CreateTable execute it and are counted as
// materializations on the Session.
package relational

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/leapstack-labs/das/pkg/adapter"
)

// ArrowQuerier is implemented by adapters that can stream results as Arrow
// records, such as the DuckDB adapter.
type ArrowQuerier interface {
	QueryArrow(ctx context.Context, query string, fn func(array.RecordReader) error) error
}

// Session binds relations to a database connection.
type Session struct {
	q                adapter.Querier
	logger           *slog.Logger
	materializations atomic.Int64
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSession returns a session over q.
func NewSession(q adapter.Querier, opts ...SessionOption) *Session {
	s := &Session{q: q, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Querier returns the underlying connection.
func (s *Session) Querier() adapter.Querier { return s.q }

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger { return s.logger }

// Materializations returns how many times a relation was executed.
func (s *Session) Materializations() int64 { return s.materializations.Load() }
