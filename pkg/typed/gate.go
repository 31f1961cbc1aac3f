package typed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/das/pkg/core"
	"github.com/leapstack-labs/das/pkg/schema"
)

// State is a step of a single construction call.
type State int

// Construction states.
//
//	Unvalidated -> Wrapped                      (validate=false)
//	Unvalidated -> Validating -> Valid -> Wrapped
//	Unvalidated -> Validating -> Invalid
const (
	StateUnvalidated State = iota
	StateValidating
	StateValid
	StateInvalid
	StateWrapped
)

func (s State) String() string {
	switch s {
	case StateUnvalidated:
		return "unvalidated"
	case StateValidating:
		return "validating"
	case StateValid:
		return "valid"
	case StateInvalid:
		return "invalid"
	case StateWrapped:
		return "wrapped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transition is reported to a Gate observer on every state change.
type Transition struct {
	Model  string
	Engine Engine
	From   State
	To     State
}

// Inspector returns the observed columns of a candidate container. It must
// not materialize data.
type Inspector func(ctx context.Context) ([]core.Field, error)

// Gate runs construction-time shape validation for one model on one engine.
// A Gate holds no per-call state and may be shared.
type Gate struct {
	model    *schema.Model
	engine   Engine
	logger   *slog.Logger
	observer func(Transition)
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithLogger sets the logger used for transition debug output.
func WithLogger(logger *slog.Logger) GateOption {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithObserver registers a function called on every state transition.
func WithObserver(fn func(Transition)) GateOption {
	return func(g *Gate) { g.observer = fn }
}

// NewGate creates a gate for model on engine.
func NewGate(model *schema.Model, engine Engine, opts ...GateOption) *Gate {
	g := &Gate{
		model:  model,
		engine: engine,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Model returns the gate's schema.
func (g *Gate) Model() *schema.Model { return g.model }

// Engine returns the gate's engine.
func (g *Gate) Engine() Engine { return g.engine }

// Admit decides whether a candidate may be wrapped. With validate unset the
// inspector is never called. Otherwise the observed columns are checked and
// a *core.SchemaError carrying every mismatch is returned on failure; the
// caller must not wrap in that case.
func (g *Gate) Admit(ctx context.Context, validate bool, inspect Inspector) error {
	if !validate {
		g.transition(StateUnvalidated, StateWrapped)
		return nil
	}

	g.transition(StateUnvalidated, StateValidating)
	observed, err := inspect(ctx)
	if err != nil {
		g.transition(StateValidating, StateInvalid)
		return fmt.Errorf("inspecting %s schema for %s: %w", g.engine, g.model.Name(), err)
	}

	if mismatches := g.model.Check(observed); len(mismatches) > 0 {
		g.transition(StateValidating, StateInvalid)
		return &core.SchemaError{
			Model:      g.model.Name(),
			Declared:   g.model.Fields(),
			Observed:   observed,
			Mismatches: mismatches,
		}
	}

	g.transition(StateValidating, StateValid)
	g.transition(StateValid, StateWrapped)
	return nil
}

// Prepare validates records against the gate's model. See PrepareRecords.
func (g *Gate) Prepare(records []core.Record, opts ...RecordOption) (*Prepared, error) {
	g.transition(StateUnvalidated, StateValidating)
	p, err := PrepareRecords(g.model, records, opts...)
	if err != nil {
		g.transition(StateValidating, StateInvalid)
		return nil, err
	}
	g.transition(StateValidating, StateValid)
	return p, nil
}

// Wrapped records the final transition of a record construction after the
// engine object was built.
func (g *Gate) Wrapped() {
	g.transition(StateValid, StateWrapped)
}

func (g *Gate) transition(from, to State) {
	g.logger.Debug("construction state",
		slog.String("model", g.model.Name()),
		slog.String("engine", string(g.engine)),
		slog.String("from", from.String()),
		slog.String("to", to.String()))
	if g.observer != nil {
		g.observer(Transition{Model: g.model.Name(), Engine: g.engine, From: from, To: to})
	}
}
