// Package sheet holds the tabular model every order, delivery and report file
// is read into. All cell values are text; a blank or missing cell is "".
package sheet

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrHeaderRowOutOfRange is returned when a header row index points past the last row
	ErrHeaderRowOutOfRange = errors.New("sheet: header row out of range")
	// ErrNoColumns is returned when a table is built without any column
	ErrNoColumns = errors.New("sheet: table has no columns")
)

// Grid is the raw content of a file before a header row is chosen.
// Different platforms put their header on different rows, so a Grid can be
// viewed as a Table more than once with different header indexes.
type Grid struct {
	Name string
	Rows [][]string
}

// NewGrid creates a Grid from raw rows
func NewGrid(name string, rows [][]string) *Grid {
	return &Grid{Name: name, Rows: rows}
}

// Table returns the grid viewed with row headerRow (0-based) as the header.
// Rows above the header are discarded, fully blank rows are dropped and
// short rows are padded with "".
func (g *Grid) Table(headerRow int) (*Table, error) {
	if headerRow < 0 || headerRow >= len(g.Rows) {
		return nil, fmt.Errorf("%w: %d (rows: %d)", ErrHeaderRowOutOfRange, headerRow, len(g.Rows))
	}
	columns := headerNames(g.Rows[headerRow])
	if len(columns) == 0 {
		return nil, ErrNoColumns
	}

	t := &Table{Columns: columns, Rows: make([][]string, 0, len(g.Rows)-headerRow-1)}
	for _, raw := range g.Rows[headerRow+1:] {
		if isBlank(raw) {
			continue
		}
		t.Rows = append(t.Rows, fit(raw, len(columns)))
	}
	t.reindex()
	return t, nil
}

// headerNames trims header cells, names unnamed ones and suffixes duplicates
// (".1", ".2", ...) so every column name is unique.
func headerNames(raw []string) []string {
	end := len(raw)
	for end > 0 && strings.TrimSpace(raw[end-1]) == "" {
		end--
	}
	names := make([]string, 0, end)
	seen := make(map[string]int, end)
	for i := 0; i < end; i++ {
		name := strings.TrimSpace(raw[i])
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		names = append(names, name)
	}
	return names
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func fit(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}

// Table is a header-indexed, row-ordered set of text records
type Table struct {
	Columns []string
	Rows    [][]string
	index   map[string]int
}

// NewTable creates a table from columns and rows. Rows are padded or
// truncated to the column count.
func NewTable(columns []string, rows [][]string) *Table {
	t := &Table{
		Columns: append([]string(nil), columns...),
		Rows:    make([][]string, 0, len(rows)),
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, fit(r, len(columns)))
	}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		if _, exists := t.index[c]; !exists {
			t.index[c] = i
		}
	}
}

// Len returns the number of data rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// HasColumn reports whether the table has a column with the given name
func (t *Table) HasColumn(name string) bool {
	_, ok := t.ColumnIndex(name)
	return ok
}

// ColumnIndex returns the position of a column
func (t *Table) ColumnIndex(name string) (int, bool) {
	if t.index == nil {
		t.reindex()
	}
	i, ok := t.index[name]
	return i, ok
}

// Value returns the cell at row/column, "" when the column does not exist
func (t *Table) Value(row int, column string) string {
	i, ok := t.ColumnIndex(column)
	if !ok || row < 0 || row >= len(t.Rows) {
		return ""
	}
	return t.Rows[row][i]
}

// Column returns a copy of every value of a column
func (t *Table) Column(name string) ([]string, bool) {
	i, ok := t.ColumnIndex(name)
	if !ok {
		return nil, false
	}
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out, true
}

// Record returns row r as a column-name keyed map
func (t *Table) Record(r int) Record {
	rec := make(Record, len(t.Columns))
	for i, c := range t.Columns {
		rec[c] = t.Rows[r][i]
	}
	return rec
}

// AppendRow appends a row, padding or truncating it to the column count
func (t *Table) AppendRow(values []string) {
	t.Rows = append(t.Rows, fit(values, len(t.Columns)))
}

// AppendRecord appends a row built from a record; missing columns are ""
func (t *Table) AppendRecord(rec Record) {
	row := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		row[i] = rec[c]
	}
	t.Rows = append(t.Rows, row)
}

// Clone returns a deep copy of the table
func (t *Table) Clone() *Table {
	return NewTable(t.Columns, t.Rows)
}

// DropBlankColumns returns a copy of the table without the columns whose
// values are all empty strings. A table with no rows keeps no columns.
func (t *Table) DropBlankColumns() *Table {
	keep := make([]int, 0, len(t.Columns))
	for i := range t.Columns {
		for _, row := range t.Rows {
			if row[i] != "" {
				keep = append(keep, i)
				break
			}
		}
	}
	columns := make([]string, len(keep))
	for j, i := range keep {
		columns[j] = t.Columns[i]
	}
	rows := make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		out := make([]string, len(keep))
		for j, i := range keep {
			out[j] = row[i]
		}
		rows[r] = out
	}
	return NewTable(columns, rows)
}

// Record is one row keyed by column name
type Record map[string]string

// Get returns the value of a column, "" when absent
func (r Record) Get(column string) string {
	return r[column]
}
