package delivery

import (
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/krbiz/backend/internal/domain/sheet"
)

var (
	ErrEmptyAgency           = errors.New("delivery: delivery agency is required")
	ErrInvalidAgency         = errors.New("delivery: delivery agency must not contain path separators")
	ErrNoFormatColumns       = errors.New("delivery: delivery format has no columns")
	ErrEmptyFormatColumn     = errors.New("delivery: delivery format column name is required")
	ErrDuplicateFormatColumn = errors.New("delivery: duplicate delivery format column")
	ErrInvalidTemplate       = errors.New("delivery: invalid column template")
)

// FormatColumn is the stored form of one courier upload column. Template is
// a text/template over the merged order row, e.g. "{{.recipient_name}}".
type FormatColumn struct {
	Name     string `json:"name"`
	Template string `json:"template"`
}

// FormatConfig is the stored form of a Format
type FormatConfig struct {
	Agency  string         `json:"agency"`
	Columns []FormatColumn `json:"columns"`
}

// Format is a courier's bulk shipment upload layout: an ordered list of
// output columns, each rendered from the unified variables of a merged order
// row. Variables a row lacks render empty.
type Format struct {
	Agency  string
	columns []formatColumn
}

type formatColumn struct {
	FormatColumn
	tmpl *template.Template
}

// Build parses every template and validates the layout
func (c FormatConfig) Build() (*Format, error) {
	agency := strings.TrimSpace(c.Agency)
	if agency == "" {
		return nil, ErrEmptyAgency
	}
	if strings.ContainsAny(agency, `/\`) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAgency, agency)
	}
	if len(c.Columns) == 0 {
		return nil, ErrNoFormatColumns
	}

	f := &Format{Agency: agency, columns: make([]formatColumn, 0, len(c.Columns))}
	seen := make(map[string]struct{}, len(c.Columns))
	for _, col := range c.Columns {
		name := strings.TrimSpace(col.Name)
		if name == "" {
			return nil, ErrEmptyFormatColumn
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateFormatColumn, name)
		}
		seen[name] = struct{}{}

		tmpl, err := template.New(name).Option("missingkey=zero").Parse(col.Template)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTemplate, name, err)
		}
		f.columns = append(f.columns, formatColumn{
			FormatColumn: FormatColumn{Name: name, Template: col.Template},
			tmpl:         tmpl,
		})
	}
	return f, nil
}

// Config converts the format back to its stored form
func (f *Format) Config() FormatConfig {
	cfg := FormatConfig{Agency: f.Agency, Columns: make([]FormatColumn, len(f.columns))}
	for i, c := range f.columns {
		cfg.Columns[i] = c.FormatColumn
	}
	return cfg
}

// Headers returns the output column names in declared order
func (f *Format) Headers() []string {
	out := make([]string, len(f.columns))
	for i, c := range f.columns {
		out[i] = c.Name
	}
	return out
}

// RenderRecord renders one row's output cells in column order
func (f *Format) RenderRecord(rec sheet.Record) ([]string, error) {
	vars := map[string]string(rec)
	out := make([]string, len(f.columns))
	var b strings.Builder
	for i, c := range f.columns {
		b.Reset()
		if err := c.tmpl.Execute(&b, vars); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTemplate, c.Name, err)
		}
		out[i] = b.String()
	}
	return out, nil
}

// Render converts every row of a merged order table into the courier layout.
// Row order and count are kept.
func (f *Format) Render(merged *sheet.Table) (*sheet.Table, error) {
	out := sheet.NewTable(f.Headers(), nil)
	for r := 0; r < merged.Len(); r++ {
		row, err := f.RenderRecord(merged.Record(r))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", r+1, err)
		}
		out.AppendRow(row)
	}
	return out, nil
}
