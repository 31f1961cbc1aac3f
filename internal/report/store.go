// Package report records validation runs in a SQLite database so past
// results can be listed and inspected.
package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/das/pkg/core"
	"github.com/leapstack-labs/das/pkg/rules"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Status is the outcome of a validation run.
type Status string

// Run statuses.
const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
	StatusError  Status = "error"
)

// Run is one recorded validation of a source against a model.
type Run struct {
	ID          string        `json:"id"`
	Model       string        `json:"model"`
	Engine      string        `json:"engine"`
	Source      string        `json:"source"`
	Status      Status        `json:"status"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Error       string        `json:"error,omitempty"`
	Mismatches  []Mismatch    `json:"mismatches,omitempty"`
	Rules       *rules.Report `json:"rules,omitempty"`
}

// Mismatch is a stored schema mismatch.
type Mismatch struct {
	Kind     string `json:"kind"`
	Column   string `json:"column"`
	Expected string `json:"expected"`
	Observed string `json:"observed"`
}

// MismatchesFrom converts schema mismatches for storage.
func MismatchesFrom(ms []core.Mismatch) []Mismatch {
	out := make([]Mismatch, len(ms))
	for i, m := range ms {
		out[i] = Mismatch{Kind: string(m.Kind), Column: m.Column, Expected: m.Expected, Observed: m.Observed}
	}
	return out
}

// Store is a SQLite-backed run history.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewStore creates a store. A nil logger discards output.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{logger: logger}
}

// Open opens the database at path, creating its directory, and runs
// migrations. Use ":memory:" for a throwaway store.
func (s *Store) Open(path string) error {
	dsn := ":memory:?_pragma=foreign_keys(1)"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create report directory: %w", err)
			}
		}
		dsn = path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// a single connection keeps ":memory:" databases alive and shared
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	s.db = db
	s.path = path

	if err := s.Migrate(); err != nil {
		_ = db.Close()
		s.db = nil
		return err
	}
	s.logger.Debug("report store opened", slog.String("path", path))
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores run and its mismatches and rule counts in one
// transaction. An empty ID is filled with a new UUID.
func (s *Store) Record(ctx context.Context, run *Run) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var total, valid sql.NullInt64
	if run.Rules != nil {
		total = sql.NullInt64{Int64: run.Rules.TotalRecords, Valid: true}
		valid = sql.NullInt64{Int64: run.Rules.ValidRecords, Valid: true}
	}
	var errMsg sql.NullString
	if run.Error != "" {
		errMsg = sql.NullString{String: run.Error, Valid: true}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO validation_runs (id, model, engine, source, status, total_records, valid_records, started_at, completed_at, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Model, run.Engine, run.Source, string(run.Status), total, valid,
		run.StartedAt.UTC(), run.CompletedAt.UTC(), errMsg,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for i, m := range run.Mismatches {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_mismatches (run_id, position, kind, column_name, expected, observed) VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, i, m.Kind, m.Column, m.Expected, m.Observed,
		); err != nil {
			return fmt.Errorf("failed to insert mismatch: %w", err)
		}
	}
	if run.Rules != nil {
		for _, rc := range run.Rules.ErrorsByRule {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO run_rule_counts (run_id, rule, count) VALUES (?, ?, ?)`,
				run.ID, rc.Rule, rc.Count,
			); err != nil {
				return fmt.Errorf("failed to insert rule count: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	s.logger.Debug("recorded run",
		slog.String("id", run.ID), slog.String("model", run.Model), slog.String("status", string(run.Status)))
	return nil
}

// ListRuns returns the most recent runs, newest first. A non-empty model
// filters by model name. Mismatches and rule counts are not loaded.
func (s *Store) ListRuns(ctx context.Context, model string, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, model, engine, source, status, total_records, valid_records, started_at, completed_at, error
		 FROM validation_runs
		 WHERE (? = '' OR model = ?)
		 ORDER BY started_at DESC, id
		 LIMIT ?`,
		model, model, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns a run with its mismatches and rule counts.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, model, engine, source, status, total_records, valid_records, started_at, completed_at, error
		 FROM validation_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadMismatches(ctx, run); err != nil {
		return nil, err
	}
	if err := s.loadRuleCounts(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *Store) loadMismatches(ctx context.Context, run *Run) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, column_name, expected, observed FROM run_mismatches WHERE run_id = ? ORDER BY position`, run.ID)
	if err != nil {
		return fmt.Errorf("failed to load mismatches: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var m Mismatch
		if err := rows.Scan(&m.Kind, &m.Column, &m.Expected, &m.Observed); err != nil {
			return fmt.Errorf("failed to scan mismatch: %w", err)
		}
		run.Mismatches = append(run.Mismatches, m)
	}
	return rows.Err()
}

func (s *Store) loadRuleCounts(ctx context.Context, run *Run) error {
	if run.Rules == nil {
		return nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT rule, count FROM run_rule_counts WHERE run_id = ? ORDER BY count DESC, rule`, run.ID)
	if err != nil {
		return fmt.Errorf("failed to load rule counts: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var rc rules.RuleCount
		if err := rows.Scan(&rc.Rule, &rc.Count); err != nil {
			return fmt.Errorf("failed to scan rule count: %w", err)
		}
		run.Rules.ErrorsByRule = append(run.Rules.ErrorsByRule, rc)
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	run := &Run{}
	var status string
	var total, valid sql.NullInt64
	var errMsg sql.NullString
	if err := sc.Scan(&run.ID, &run.Model, &run.Engine, &run.Source, &status,
		&total, &valid, &run.StartedAt, &run.CompletedAt, &errMsg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.Status = Status(status)
	run.Error = errMsg.String
	if total.Valid {
		run.Rules = &rules.Report{
			TotalRecords:   total.Int64,
			ValidRecords:   valid.Int64,
			InvalidRecords: total.Int64 - valid.Int64,
			ErrorsByRule:   []rules.RuleCount{},
		}
		if total.Int64 > 0 {
			run.Rules.ValidityRate = float64(valid.Int64) / float64(total.Int64)
		}
	}
	return run, nil
}
