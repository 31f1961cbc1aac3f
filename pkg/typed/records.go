package typed

import (
	"errors"
	"sort"
	"strings"

	"github.com/leapstack-labs/das/pkg/core"
	"github.com/leapstack-labs/das/pkg/schema"
)

// Prepared holds records converted to the canonical values of their resolved
// column types, ready to be loaded by an engine.
type Prepared struct {
	// Fields are the resolved columns in declaration order.
	Fields []core.Field
	// Rows holds one slice per record, aligned with Fields.
	Rows [][]any
}

// Len returns the number of prepared records.
func (p *Prepared) Len() int { return len(p.Rows) }

// Column returns the values of column j across all records.
func (p *Prepared) Column(j int) []any {
	out := make([]any, len(p.Rows))
	for i, row := range p.Rows {
		out[i] = row[j]
	}
	return out
}

// PrepareRecords checks key-value records against model and converts them.
//
// Column types come from the model, or from an explicit mapping given with
// WithSchema or WithPositionalSchema; they are never inferred from values.
// Every record must carry every declared key and no other key. Each value
// must convert to its column type, and nil is only accepted for nullable
// columns.
//
// All violations are collected into one *core.SchemaError. An explicit
// mapping that does not fit the model fails with *core.RecordError before
// any record is read.
func PrepareRecords(model *schema.Model, records []core.Record, opts ...RecordOption) (*Prepared, error) {
	fields, err := model.Resolve(MappingOf(opts...))
	if err != nil {
		return nil, err
	}

	declared := make(map[string]bool, len(fields))
	for _, f := range fields {
		declared[f.Name] = true
	}

	var (
		missing    = make([][]int, len(fields))
		badRows    = make([][]int, len(fields))
		badKinds   = make([]map[string]bool, len(fields))
		unexpected = map[string][]int{}
		observed   = newObservedSet()
	)

	rows := make([][]any, len(records))
	for i, rec := range records {
		for _, key := range recordKeys(rec) {
			observed.add(key, rec[key])
			if !declared[key] {
				unexpected[key] = append(unexpected[key], i)
			}
		}

		row := make([]any, len(fields))
		for j, f := range fields {
			raw, ok := rec[f.Name]
			if !ok {
				missing[j] = append(missing[j], i)
				continue
			}
			v, convErr := core.Convert(raw, f.Type)
			if convErr == nil && v == nil && !f.Type.Nullable {
				convErr = errNull
			}
			if convErr != nil {
				badRows[j] = append(badRows[j], i)
				if badKinds[j] == nil {
					badKinds[j] = map[string]bool{}
				}
				badKinds[j][core.DescribeValue(raw)] = true
				continue
			}
			row[j] = v
		}
		rows[i] = row
	}

	var mismatches []core.Mismatch
	for j, f := range fields {
		if len(missing[j]) > 0 {
			mismatches = append(mismatches, core.Mismatch{
				Kind:     core.MismatchMissing,
				Column:   f.Name,
				Expected: f.Type.String(),
				Observed: "absent",
				Rows:     missing[j],
			})
		}
		if len(badRows[j]) > 0 {
			mismatches = append(mismatches, core.Mismatch{
				Kind:     core.MismatchType,
				Column:   f.Name,
				Expected: f.Type.String(),
				Observed: strings.Join(sortedKeys(badKinds[j]), "|"),
				Rows:     badRows[j],
			})
		}
	}
	extra := make([]string, 0, len(unexpected))
	for key := range unexpected {
		extra = append(extra, key)
	}
	sort.Strings(extra)
	for _, key := range extra {
		mismatches = append(mismatches, core.Mismatch{
			Kind:     core.MismatchUnexpected,
			Column:   key,
			Observed: observed.typeOf(key).String(),
			Rows:     unexpected[key],
		})
	}

	if len(mismatches) > 0 {
		return nil, &core.SchemaError{
			Model:      model.Name(),
			Declared:   fields,
			Observed:   observed.fields(),
			Mismatches: mismatches,
		}
	}
	return &Prepared{Fields: fields, Rows: rows}, nil
}

var errNull = errors.New("null value in non-nullable column")

// observedSet tracks record keys in order of first appearance with the type
// of their first non-null value.
type observedSet struct {
	order []string
	types map[string]core.DataType
}

func newObservedSet() *observedSet {
	return &observedSet{types: map[string]core.DataType{}}
}

func (s *observedSet) add(key string, v any) {
	t, seen := s.types[key]
	if !seen {
		s.order = append(s.order, key)
	}
	if seen && t.Kind != core.KindUnknown {
		return
	}
	if v == nil {
		if !seen {
			s.types[key] = core.UnknownType("null")
		}
		return
	}
	desc := core.DescribeValue(v)
	if parsed, err := core.ParseType(desc); err == nil {
		s.types[key] = parsed
		return
	}
	s.types[key] = core.UnknownType(desc)
}

func (s *observedSet) typeOf(key string) core.DataType {
	return s.types[key]
}

func (s *observedSet) fields() []core.Field {
	out := make([]core.Field, len(s.order))
	for i, key := range s.order {
		out[i] = core.Field{Name: key, Type: s.types[key]}
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func recordKeys(rec core.Record) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
