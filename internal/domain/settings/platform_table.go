package settings

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/krbiz/backend/internal/domain/platform"
	"github.com/krbiz/backend/internal/domain/sheet"
)

// Mandatory columns of an uploaded platform settings table
const (
	PlatformNameColumn = "PlatformName"
	HeaderRowColumn    = "HeaderRow"
)

var variableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,78}$`)

// ValidationErrors collects every problem found in an uploaded settings file
type ValidationErrors []string

func (v ValidationErrors) Error() string {
	return "settings: invalid settings file:\n" + strings.Join(v, "\n")
}

// ParsePlatformTable converts an uploaded settings table into platform
// schemas. One row per platform; HeaderRow is 1-based in the file; every
// other column is a unified variable. All problems are reported at once.
func ParsePlatformTable(t *sheet.Table) ([]platform.Schema, error) {
	var errs ValidationErrors

	if !t.HasColumn(PlatformNameColumn) || !t.HasColumn(HeaderRowColumn) {
		errs = append(errs, fmt.Sprintf("mandatory columns %q and %q are required", PlatformNameColumn, HeaderRowColumn))
	}

	var badRows []string
	headerRows := make([]int, t.Len())
	if t.HasColumn(HeaderRowColumn) {
		for r := 0; r < t.Len(); r++ {
			raw := strings.TrimSpace(t.Value(r, HeaderRowColumn))
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				badRows = append(badRows, fmt.Sprintf("row %d: %q", r+1, raw))
				continue
			}
			headerRows[r] = n - 1
		}
	}
	if len(badRows) > 0 {
		errs = append(errs, fmt.Sprintf("%s must be a whole number of 1 or more (the line of the platform file holding its column names): %s",
			HeaderRowColumn, strings.Join(badRows, ", ")))
	}

	var variables, invalid []string
	for _, c := range t.Columns {
		if c == PlatformNameColumn || c == HeaderRowColumn {
			continue
		}
		if !variableNamePattern.MatchString(c) {
			invalid = append(invalid, c)
			continue
		}
		variables = append(variables, c)
	}
	if len(invalid) > 0 {
		errs = append(errs, fmt.Sprintf("unified variable names must start with a letter or '_' and contain only letters, digits and '_': %s",
			strings.Join(invalid, ", ")))
	}

	seen := make(map[string]int)
	if t.HasColumn(PlatformNameColumn) {
		for r := 0; r < t.Len(); r++ {
			name := strings.TrimSpace(t.Value(r, PlatformNameColumn))
			if name == "" {
				errs = append(errs, fmt.Sprintf("row %d: %s is empty", r+1, PlatformNameColumn))
				continue
			}
			if first, dup := seen[name]; dup {
				errs = append(errs, fmt.Sprintf("row %d: platform %q already defined on row %d", r+1, name, first))
				continue
			}
			seen[name] = r + 1
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}

	schemas := make([]platform.Schema, t.Len())
	for r := range schemas {
		s := platform.Schema{
			Platform:  strings.TrimSpace(t.Value(r, PlatformNameColumn)),
			HeaderRow: headerRows[r],
			Mapping:   make([]platform.ColumnMapping, len(variables)),
		}
		for i, v := range variables {
			s.Mapping[i] = platform.ColumnMapping{Variable: v, Column: strings.TrimSpace(t.Value(r, v))}
		}
		schemas[r] = s
	}
	return schemas, nil
}

// PlatformTable renders schemas back into the uploadable table layout
func PlatformTable(schemas []platform.Schema) *sheet.Table {
	var variables []string
	seen := make(map[string]struct{})
	for _, s := range schemas {
		for _, m := range s.Mapping {
			if _, ok := seen[m.Variable]; !ok {
				seen[m.Variable] = struct{}{}
				variables = append(variables, m.Variable)
			}
		}
	}

	columns := append([]string{PlatformNameColumn, HeaderRowColumn}, variables...)
	t := sheet.NewTable(columns, nil)
	for _, s := range schemas {
		rec := sheet.Record{
			PlatformNameColumn: s.Platform,
			HeaderRowColumn:    strconv.Itoa(s.HeaderRow + 1),
		}
		for _, m := range s.Mapping {
			rec[m.Variable] = m.Column
		}
		t.AppendRecord(rec)
	}
	return t
}
