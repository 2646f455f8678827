package platform

import (
	"github.com/krbiz/backend/internal/domain/sheet"
)

// TableReader re-reads a raw file with a given header row.
// *sheet.Grid satisfies it.
type TableReader interface {
	Table(headerRow int) (*sheet.Table, error)
}

// Match is the result of a successful detection: the schema and the raw
// table read with that schema's header row.
type Match struct {
	Schema Schema
	Table  *sheet.Table
}

// Detect returns the first schema, in the given order, whose mapped raw
// columns are all present when the source is read with that schema's header
// row. A schema whose header row cannot be read, or that maps no column, is
// skipped.
func Detect(src TableReader, schemas []Schema) (Match, bool) {
	for _, schema := range schemas {
		mapped := schema.MappedColumns()
		if len(mapped) == 0 {
			continue
		}
		table, err := src.Table(schema.HeaderRow)
		if err != nil {
			continue
		}
		if hasAll(table, mapped) {
			return Match{Schema: schema, Table: table}, true
		}
	}
	return Match{}, false
}

func hasAll(table *sheet.Table, mapped []ColumnMapping) bool {
	for _, m := range mapped {
		if !table.HasColumn(m.Column) {
			return false
		}
	}
	return true
}
