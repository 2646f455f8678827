package delivery

import (
	"time"

	"github.com/krbiz/backend/internal/domain/sheet"
)

// Confirmation is the active delivery confirmation of a session. A new upload
// replaces it entirely.
type Confirmation struct {
	SourceFile string
	Table      *sheet.Table
	UploadedAt time.Time
}

// NewConfirmation wraps a delivery table
func NewConfirmation(sourceFile string, table *sheet.Table) *Confirmation {
	return &Confirmation{SourceFile: sourceFile, Table: table, UploadedAt: time.Now()}
}

// Columns returns the delivery table's columns
func (c *Confirmation) Columns() []string {
	return c.Table.Columns
}

// Rows returns the delivery rows in file order
func (c *Confirmation) Rows() []Row {
	rows := make([]Row, c.Table.Len())
	for i := range rows {
		rows[i] = Row{Index: i, Record: c.Table.Record(i)}
	}
	return rows
}

// Row is one delivery confirmation line
type Row struct {
	Index  int
	Record sheet.Record
}

// Value returns a column value; a nil row yields ""
func (r *Row) Value(column string) string {
	if r == nil {
		return ""
	}
	return r.Record[column]
}
