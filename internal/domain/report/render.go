package report

import (
	"fmt"
	"time"

	"github.com/krbiz/backend/internal/domain/reconcile"
	"github.com/krbiz/backend/internal/domain/sheet"
)

// Lookup resolves a column name to a value, "" when absent.
// platform.OrderRow and *delivery.Row both satisfy it.
type Lookup interface {
	Value(column string) string
}

// Render projects one order row and its delivery row, which may be nil, onto
// the schema. It always returns one cell per output column in declared order.
func Render(order, deliveryRow Lookup, schema Schema) []string {
	out := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		switch r := c.EffectiveRule().(type) {
		case FromOrder:
			out[i] = value(order, r.Column)
		case FromDelivery:
			out[i] = value(deliveryRow, r.Column)
		case Hardcoded:
			out[i] = r.Value
		default:
			panic(fmt.Sprintf("report: unhandled field rule %T", r))
		}
	}
	return out
}

func value(l Lookup, column string) string {
	if l == nil {
		return ""
	}
	return l.Value(column)
}

// RenderTable renders every pair of a platform, one output row per order row
func RenderTable(schema Schema, pairs []reconcile.Pair) *sheet.Table {
	t := sheet.NewTable(schema.Headers(), nil)
	for _, p := range pairs {
		var d Lookup
		if p.Delivery != nil {
			d = p.Delivery
		}
		t.AppendRow(Render(p.Order, d, schema))
	}
	return t
}

// ExportName is the download file name of a rendered report
func (s Schema) ExportName(date time.Time) string {
	base := s.SheetName
	if base == "" {
		base = s.Platform
	}
	return fmt.Sprintf("%s-%s.csv", base, date.Format(time.DateOnly))
}

// Registry holds the report schemas by platform
type Registry struct {
	schemas map[string]Schema
	order   []string
}

// NewRegistry validates the schemas and indexes them by platform
func NewRegistry(schemas []Schema) (*Registry, error) {
	r := &Registry{schemas: make(map[string]Schema, len(schemas))}
	for _, s := range schemas {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.schemas[s.Platform]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSchema, s.Platform)
		}
		r.schemas[s.Platform] = s
		r.order = append(r.order, s.Platform)
	}
	return r, nil
}

// Lookup returns the schema of a platform
func (r *Registry) Lookup(platform string) (Schema, bool) {
	s, ok := r.schemas[platform]
	return s, ok
}

// Has reports whether a platform has a report schema
func (r *Registry) Has(platform string) bool {
	_, ok := r.schemas[platform]
	return ok
}

// Schemas returns the schemas in registration order
func (r *Registry) Schemas() []Schema {
	out := make([]Schema, len(r.order))
	for i, p := range r.order {
		out[i] = r.schemas[p]
	}
	return out
}
