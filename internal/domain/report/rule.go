// Package report renders reconciled order rows into each platform's delivery
// report layout using declarative per-column rules.
package report

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyPlatform   = errors.New("report: platform is required")
	ErrNoColumns       = errors.New("report: schema has no columns")
	ErrEmptyColumnName = errors.New("report: column name is required")
	ErrDuplicateColumn = errors.New("report: duplicate output column")
	ErrUnknownSource   = errors.New("report: unknown field source")
	ErrDuplicateSchema = errors.New("report: duplicate platform schema")
)

// FieldRule says where an output column's value comes from. The set of rules
// is closed: FromOrder, FromDelivery and Hardcoded.
type FieldRule interface {
	fieldRule()
}

// FromOrder copies a column of the order row
type FromOrder struct{ Column string }

// FromDelivery copies a column of the matched delivery row, "" when unmatched
type FromDelivery struct{ Column string }

// Hardcoded emits a literal value
type Hardcoded struct{ Value string }

func (FromOrder) fieldRule()    {}
func (FromDelivery) fieldRule() {}
func (Hardcoded) fieldRule()    {}

// Source names used in stored configuration
const (
	SourceOrder     = "order"
	SourceDelivery  = "delivery"
	SourceHardcoded = "hardcoded"
)

// Column is one output column. A nil Rule reads the order column of the same name.
type Column struct {
	Name string
	Rule FieldRule
}

// EffectiveRule returns the column's rule with the default applied
func (c Column) EffectiveRule() FieldRule {
	if c.Rule == nil {
		return FromOrder{Column: c.Name}
	}
	return c.Rule
}

// Schema is a platform's report layout
type Schema struct {
	Platform  string
	SheetName string
	Columns   []Column
}

// Headers returns the output column names in declared order
func (s Schema) Headers() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// Validate checks the schema has a platform and unique, named columns
func (s Schema) Validate() error {
	if strings.TrimSpace(s.Platform) == "" {
		return ErrEmptyPlatform
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("%w: %s", ErrNoColumns, s.Platform)
	}
	seen := make(map[string]struct{}, len(s.Columns))
	for _, c := range s.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%w: %s", ErrEmptyColumnName, s.Platform)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("%w: %s.%s", ErrDuplicateColumn, s.Platform, c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	return nil
}

// ColumnConfig is the stored form of a Column. Value is the source column
// for order and delivery rules (defaulting to Name) and the literal for
// hardcoded ones. An empty Source means order.
type ColumnConfig struct {
	Name   string `json:"name"`
	Source string `json:"source,omitempty"`
	Value  string `json:"value,omitempty"`
}

// SchemaConfig is the stored form of a Schema
type SchemaConfig struct {
	Platform  string         `json:"platform"`
	SheetName string         `json:"sheet_name,omitempty"`
	Columns   []ColumnConfig `json:"columns"`
}

// Build converts a stored config into a validated Schema
func (c SchemaConfig) Build() (Schema, error) {
	s := Schema{Platform: c.Platform, SheetName: c.SheetName, Columns: make([]Column, 0, len(c.Columns))}
	for _, cc := range c.Columns {
		rule, err := cc.rule()
		if err != nil {
			return Schema{}, fmt.Errorf("%s.%s: %w", c.Platform, cc.Name, err)
		}
		s.Columns = append(s.Columns, Column{Name: cc.Name, Rule: rule})
	}
	if err := s.Validate(); err != nil {
		return Schema{}, err
	}
	return s, nil
}

func (cc ColumnConfig) rule() (FieldRule, error) {
	col := cc.Value
	if col == "" {
		col = cc.Name
	}
	switch cc.Source {
	case "", SourceOrder:
		return FromOrder{Column: col}, nil
	case SourceDelivery:
		return FromDelivery{Column: col}, nil
	case SourceHardcoded:
		return Hardcoded{Value: cc.Value}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, cc.Source)
	}
}

// Config converts a Schema back to its stored form
func (s Schema) Config() SchemaConfig {
	cfg := SchemaConfig{Platform: s.Platform, SheetName: s.SheetName, Columns: make([]ColumnConfig, len(s.Columns))}
	for i, c := range s.Columns {
		cc := ColumnConfig{Name: c.Name}
		switch r := c.EffectiveRule().(type) {
		case FromOrder:
			cc.Source, cc.Value = SourceOrder, r.Column
		case FromDelivery:
			cc.Source, cc.Value = SourceDelivery, r.Column
		case Hardcoded:
			cc.Source, cc.Value = SourceHardcoded, r.Value
		}
		cfg.Columns[i] = cc
	}
	return cfg
}
