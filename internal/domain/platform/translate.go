package platform

import (
	"fmt"

	"github.com/krbiz/backend/internal/domain/sheet"
)

// Translate projects a raw platform table onto the unified vocabulary. Only
// the variables the schema maps are emitted; one raw column may feed several
// variables. Row order and count are kept.
func Translate(raw *sheet.Table, schema Schema) (*sheet.Table, error) {
	mapped := schema.MappedColumns()
	columns := make([]string, 0, len(mapped))
	sources := make([]int, 0, len(mapped))
	emitted := make(map[string]struct{}, len(mapped))
	for _, m := range mapped {
		if _, dup := emitted[m.Variable]; dup {
			continue
		}
		i, ok := raw.ColumnIndex(m.Column)
		if !ok {
			return nil, fmt.Errorf("platform: %s: column %q for %q not found", schema.Platform, m.Column, m.Variable)
		}
		emitted[m.Variable] = struct{}{}
		columns = append(columns, m.Variable)
		sources = append(sources, i)
	}

	rows := make([][]string, raw.Len())
	for r, src := range raw.Rows {
		row := make([]string, len(sources))
		for j, i := range sources {
			row[j] = src[i]
		}
		rows[r] = row
	}
	return sheet.NewTable(columns, rows), nil
}

// Batch is one translated order file
type Batch struct {
	SourceFile string
	Schema     Schema
	Raw        *sheet.Table
	Unified    *sheet.Table
}

// NewBatch translates a detected raw table into a batch
func NewBatch(sourceFile string, m Match) (*Batch, error) {
	unified, err := Translate(m.Table, m.Schema)
	if err != nil {
		return nil, err
	}
	return &Batch{
		SourceFile: sourceFile,
		Schema:     m.Schema,
		Raw:        m.Table,
		Unified:    unified,
	}, nil
}

// Platform returns the platform name of the batch
func (b *Batch) Platform() string {
	return b.Schema.Platform
}

// Rows returns the batch's order rows in file order
func (b *Batch) Rows() []OrderRow {
	rows := make([]OrderRow, b.Raw.Len())
	for i := range rows {
		rows[i] = OrderRow{
			Platform:   b.Schema.Platform,
			SourceFile: b.SourceFile,
			Index:      i,
			Raw:        b.Raw.Record(i),
			Unified:    b.Unified.Record(i),
		}
	}
	return rows
}

// OrderRow is one order, tagged with its platform and source file. Raw holds
// the platform columns, Unified the translated variables.
type OrderRow struct {
	Platform   string
	SourceFile string
	Index      int
	Raw        sheet.Record
	Unified    sheet.Record
}

// Value resolves a column against the raw record first, then the unified one
func (o OrderRow) Value(column string) string {
	if v, ok := o.Raw[column]; ok {
		return v
	}
	return o.Unified[column]
}

// Values returns every raw value of the row in column order of the raw table
func (o OrderRow) Values(columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = o.Raw[c]
	}
	return out
}
