// Package schemafile loads schema models and row rules declared in YAML.
//
//	models:
//	  - name: Observation
//	    columns:
//	      - {name: id, type: string}
//	      - {name: value, type: 'float64?'}
//	    rules:
//	      - not_null: id
//	      - {column: status, one_of: [final, amended]}
package schemafile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/leapstack-labs/das/pkg/core"
	"github.com/leapstack-labs/das/pkg/rules"
	"github.com/leapstack-labs/das/pkg/schema"
	"gopkg.in/yaml.v3"
)

// File is the YAML document.
type File struct {
	Models []ModelSpec `yaml:"models"`
}

// ModelSpec declares one model.
type ModelSpec struct {
	Name     string       `yaml:"name"`
	Widening bool         `yaml:"widening"`
	Columns  []ColumnSpec `yaml:"columns"`
	Rules    []RuleSpec   `yaml:"rules"`
}

// ColumnSpec declares one column. Type uses core.ParseType syntax:
// "string", "float64?", "list<date>".
type ColumnSpec struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// RuleSpec declares one row rule. Exactly one of NotNull, Matches and OneOf
// is set.
type RuleSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Column      string `yaml:"column"`
	NotNull     string `yaml:"not_null"`
	Matches     string `yaml:"matches"`
	OneOf       []any  `yaml:"one_of"`
}

// Entry is a loaded model with its rules.
type Entry struct {
	Model *schema.Model
	Rules []rules.Rule
}

// Catalog holds the loaded models by name.
type Catalog struct {
	entries map[string]*Entry
	order   []string
}

// Get returns the named entry.
func (c *Catalog) Get(name string) (*Entry, error) {
	e, ok := c.entries[name]
	if !ok {
		names := append([]string(nil), c.order...)
		sort.Strings(names)
		return nil, fmt.Errorf("model %q not found; available: %v", name, names)
	}
	return e, nil
}

// Names returns model names in file order.
func (c *Catalog) Names() []string { return append([]string(nil), c.order...) }

// Load reads and parses a schema file. opts apply to every model, on top of
// each model's own settings.
func Load(path string, opts ...schema.Option) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	c, err := Parse(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse parses a schema document. Unknown keys are errors.
func Parse(data []byte, opts ...schema.Option) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid schema file: %w", err)
	}

	c := &Catalog{entries: make(map[string]*Entry, len(f.Models))}
	for i, ms := range f.Models {
		e, err := ms.build(opts)
		if err != nil {
			return nil, fmt.Errorf("model %d (%s): %w", i, ms.Name, err)
		}
		if _, dup := c.entries[ms.Name]; dup {
			return nil, fmt.Errorf("model %q declared twice", ms.Name)
		}
		c.entries[ms.Name] = e
		c.order = append(c.order, ms.Name)
	}
	return c, nil
}

func (ms ModelSpec) build(base []schema.Option) (*Entry, error) {
	opts := append([]schema.Option(nil), base...)
	if ms.Widening {
		opts = append(opts, schema.WithWidening())
	}
	b := schema.NewBuilder(ms.Name, opts...)
	for _, cs := range ms.Columns {
		t, err := core.ParseType(cs.Type)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", cs.Name, err)
		}
		b.Column(cs.Name, t)
	}
	model, err := b.Build()
	if err != nil {
		return nil, err
	}

	e := &Entry{Model: model}
	for i, rs := range ms.Rules {
		r, err := rs.build(model)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		e.Rules = append(e.Rules, r)
	}
	return e, nil
}

func (rs RuleSpec) build(model *schema.Model) (rules.Rule, error) {
	column := rs.Column
	if rs.NotNull != "" {
		column = rs.NotNull
	}
	if _, ok := model.Column(column); !ok {
		return rules.Rule{}, fmt.Errorf("column %q is not declared", column)
	}

	var r rules.Rule
	set := 0
	if rs.NotNull != "" {
		r = rules.NotNull(column)
		set++
	}
	if rs.Matches != "" {
		var err error
		if r, err = rules.Matches(column, rs.Matches); err != nil {
			return rules.Rule{}, err
		}
		set++
	}
	if len(rs.OneOf) > 0 {
		r = rules.OneOf(column, rs.OneOf...)
		set++
	}
	if set != 1 {
		return rules.Rule{}, fmt.Errorf("rule on %q needs exactly one of not_null, matches, one_of", column)
	}

	if rs.Name != "" {
		r.Name = rs.Name
	}
	if rs.Description != "" {
		r.Description = rs.Description
	}
	return r, nil
}
