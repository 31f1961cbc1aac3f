package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/leapstack-labs/das/internal/report"
	"github.com/leapstack-labs/das/internal/schemafile"
	"github.com/leapstack-labs/das/pkg/bridge"
	"github.com/leapstack-labs/das/pkg/core"
	"github.com/leapstack-labs/das/pkg/lazy"
	lazyfn "github.com/leapstack-labs/das/pkg/lazy/functions"
	"github.com/leapstack-labs/das/pkg/relational"
	relfn "github.com/leapstack-labs/das/pkg/relational/functions"
	"github.com/leapstack-labs/das/pkg/rules"
	"github.com/leapstack-labs/das/pkg/typed"
	"golang.org/x/sync/errgroup"
)

// source is one validation input: a data file, a database table or decoded
// records.
type source struct {
	name    string
	path    string
	table   string
	records []core.Record
}

// validator checks sources against one model on one engine.
type validator struct {
	entry   *schemafile.Entry
	engine  typed.Engine
	adapter typed.Adapter
	logger  *slog.Logger
	lazy    *lazy.Session
	rel     *relational.Session // nil on the lazy engine
	// clean normalizes column names and string values before files are
	// checked.
	clean bool
}

// lazyView yields the admitted data as a lazy frame for rule evaluation.
type lazyView func(ctx context.Context) (*lazy.Frame, error)

// runAll validates sources with at most limit in flight. Results keep the
// order of sources.
func (v *validator) runAll(ctx context.Context, sources []source, limit int) ([]*report.Run, error) {
	runs := make([]*report.Run, len(sources))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, src := range sources {
		g.Go(func() error {
			runs[i] = v.run(ctx, src)
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return runs, nil
}

// run validates one source. Schema mismatches and rule violations fail the
// run; I/O and query errors mark it as errored.
func (v *validator) run(ctx context.Context, src source) *report.Run {
	run := &report.Run{
		Model:     v.entry.Model.Name(),
		Engine:    string(v.engine),
		Source:    src.name,
		StartedAt: time.Now().UTC(),
	}
	v.finish(ctx, run, src)
	run.CompletedAt = time.Now().UTC()
	v.logger.Info("validated source",
		slog.String("model", run.Model),
		slog.String("source", run.Source),
		slog.String("status", string(run.Status)))
	return run
}

func (v *validator) finish(ctx context.Context, run *report.Run, src source) {
	view, err := v.admit(ctx, src)
	if se, ok := core.AsSchemaError(err); ok {
		run.Status = report.StatusFailed
		run.Mismatches = report.MismatchesFrom(se.Mismatches)
		return
	}
	if err != nil {
		run.Status = report.StatusError
		run.Error = err.Error()
		return
	}

	if len(v.entry.Rules) > 0 {
		frame, err := view(ctx)
		if err != nil {
			run.Status = report.StatusError
			run.Error = err.Error()
			return
		}
		rep, err := rules.BuildReport(ctx, rules.Apply(frame, v.entry.Rules...))
		if err != nil {
			run.Status = report.StatusError
			run.Error = err.Error()
			return
		}
		run.Rules = rep
		if rep.InvalidRecords > 0 {
			run.Status = report.StatusFailed
			return
		}
	}
	run.Status = report.StatusPassed
}

func (v *validator) admit(ctx context.Context, src source) (lazyView, error) {
	switch {
	case src.records != nil:
		frame, err := v.adapter.FromRecords(ctx, src.records)
		if err != nil {
			return nil, err
		}
		return v.viewOf(frame), nil
	case src.table != "":
		if v.rel == nil {
			return nil, fmt.Errorf("reading table %s needs the relational engine\nHint: use --engine relational", src.table)
		}
		return v.admitRelation(ctx, v.rel.Table(src.table))
	case v.engine == typed.EngineRelational:
		rel, err := v.readFile(src.path)
		if err != nil {
			return nil, err
		}
		return v.admitRelation(ctx, rel)
	default:
		return v.admitScan(ctx, src.path)
	}
}

func (v *validator) admitScan(ctx context.Context, path string) (lazyView, error) {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".parquet" {
		return nil, fmt.Errorf("lazy engine reads parquet files, got %q\nHint: use --engine relational for csv and json", ext)
	}
	frame := v.lazy.ScanParquet(path)
	if v.clean {
		cleaned, err := lazyfn.Clean(frame)
		if err != nil {
			return nil, err
		}
		frame = cleaned
	}
	typedFrame, err := v.adapter.FromNative(ctx, frame, true)
	if err != nil {
		return nil, err
	}
	return v.viewOf(typedFrame), nil
}

func (v *validator) readFile(path string) (*relational.Relation, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return v.rel.ReadParquet(path), nil
	case ".csv", ".tsv":
		return v.rel.ReadCSV(path), nil
	case ".json", ".jsonl", ".ndjson":
		return v.rel.ReadJSON(path), nil
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}

func (v *validator) admitRelation(ctx context.Context, rel *relational.Relation) (lazyView, error) {
	if v.clean {
		var err error
		if rel, err = relfn.Clean(ctx, rel); err != nil {
			return nil, err
		}
	}
	frame, err := v.adapter.FromNative(ctx, rel, true)
	if err != nil {
		return nil, err
	}
	return v.viewOf(frame), nil
}

// viewOf unwraps an admitted frame. Relations move into the lazy engine only
// when rules need them.
func (v *validator) viewOf(frame typed.Frame) lazyView {
	switch f := frame.(type) {
	case interface{ Native() *relational.Relation }:
		return v.fromRelation(f.Native())
	case interface{ Native() *lazy.Frame }:
		native := f.Native()
		return func(context.Context) (*lazy.Frame, error) { return native, nil }
	default:
		return func(context.Context) (*lazy.Frame, error) {
			return nil, fmt.Errorf("no lazy view of %s frame", frame.Engine())
		}
	}
}

// fromRelation defers moving the relation into the lazy engine until rules
// need it.
func (v *validator) fromRelation(rel *relational.Relation) lazyView {
	return func(ctx context.Context) (*lazy.Frame, error) {
		return bridge.RelationToLazy(ctx, rel, v.lazy)
	}
}

// readRecords decodes a JSON array of objects. Numbers keep their literal
// form until converted to the declared column type.
func readRecords(path string) ([]core.Record, error) {
	f, err := os.Open(path) //nolint:gosec // path is a user argument
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.UseNumber()
	var records []core.Record
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding records from %s: %w", path, err)
	}
	if records == nil {
		records = []core.Record{}
	}
	return records, nil
}
