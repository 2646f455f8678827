// Package platform describes how each sales channel lays out its order export
// and maps those raw columns onto the unified variable vocabulary.
package platform

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicatePlatform  = errors.New("platform: duplicate platform name")
	ErrInvalidHeaderRow   = errors.New("platform: header row must be zero or greater")
	ErrEmptyPlatformName  = errors.New("platform: platform name is required")
	ErrPlatformNotFound   = errors.New("platform: platform not found")
	ErrNoMatchingPlatform = errors.New("platform: no platform schema matches the file")
)

// ColumnMapping binds a unified variable to a platform's raw column.
// An empty Column means the platform does not provide the variable.
type ColumnMapping struct {
	Variable string `json:"variable"`
	Column   string `json:"column"`
}

// Schema is a platform's header row and variable mapping
type Schema struct {
	Platform  string          `json:"platform"`
	HeaderRow int             `json:"header_row"`
	Mapping   []ColumnMapping `json:"mapping"`
}

// Column returns the raw column mapped to a unified variable, "" when unmapped.
// The name is trimmed like parsed headers are.
func (s Schema) Column(variable string) string {
	for _, m := range s.Mapping {
		if m.Variable == variable {
			return strings.TrimSpace(m.Column)
		}
	}
	return ""
}

// MappedColumns returns the mappings with a non-empty raw column, in declared
// order, with column names trimmed
func (s Schema) MappedColumns() []ColumnMapping {
	out := make([]ColumnMapping, 0, len(s.Mapping))
	for _, m := range s.Mapping {
		m.Column = strings.TrimSpace(m.Column)
		if m.Column != "" {
			out = append(out, m)
		}
	}
	return out
}

// Validate checks the schema's own invariants
func (s Schema) Validate() error {
	if strings.TrimSpace(s.Platform) == "" {
		return ErrEmptyPlatformName
	}
	if s.HeaderRow < 0 {
		return fmt.Errorf("%w: %s has %d", ErrInvalidHeaderRow, s.Platform, s.HeaderRow)
	}
	return nil
}

// Registry is the ordered set of platform schemas of a session. Order matters:
// detection walks the schemas in registry order and the first match wins.
type Registry struct {
	schemas []Schema
	byName  map[string]int
}

// NewRegistry validates the schemas and builds a registry keeping their order
func NewRegistry(schemas []Schema) (*Registry, error) {
	r := &Registry{
		schemas: make([]Schema, 0, len(schemas)),
		byName:  make(map[string]int, len(schemas)),
	}
	for _, s := range schemas {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byName[s.Platform]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePlatform, s.Platform)
		}
		r.byName[s.Platform] = len(r.schemas)
		r.schemas = append(r.schemas, s)
	}
	return r, nil
}

// Schemas returns the schemas in configuration order
func (r *Registry) Schemas() []Schema {
	return append([]Schema(nil), r.schemas...)
}

// Lookup returns a platform's schema by name
func (r *Registry) Lookup(name string) (Schema, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Schema{}, false
	}
	return r.schemas[i], true
}

// Len returns the number of platforms
func (r *Registry) Len() int {
	return len(r.schemas)
}

// UnifiedVariables returns every variable mapped to a non-empty column by at
// least one platform, in first-seen order.
func (r *Registry) UnifiedVariables() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range r.schemas {
		for _, m := range s.MappedColumns() {
			if _, ok := seen[m.Variable]; ok {
				continue
			}
			seen[m.Variable] = struct{}{}
			out = append(out, m.Variable)
		}
	}
	return out
}
