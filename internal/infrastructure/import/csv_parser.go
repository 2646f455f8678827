package csvimport

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/krbiz/backend/internal/domain/sheet"
)

// CSVParser reads a whole order, delivery or settings file into a sheet.Grid.
// The header row is not chosen here because platforms put it on different lines.
type CSVParser struct {
	delimiter  rune
	lazyQuotes bool
	trimSpace  bool
	maxBytes   int64
	maxRows    int
}

// ParserOption is a functional option for CSVParser configuration
type ParserOption func(*CSVParser)

// WithDelimiter sets the field delimiter (default is comma)
func WithDelimiter(d rune) ParserOption {
	return func(p *CSVParser) {
		p.delimiter = d
	}
}

// WithLazyQuotes enables lazy quote handling
func WithLazyQuotes(lazy bool) ParserOption {
	return func(p *CSVParser) {
		p.lazyQuotes = lazy
	}
}

// WithTrimSpace enables trimming of leading/trailing spaces from fields
func WithTrimSpace(trim bool) ParserOption {
	return func(p *CSVParser) {
		p.trimSpace = trim
	}
}

// WithMaxBytes limits the accepted file size (0 = unlimited)
func WithMaxBytes(n int64) ParserOption {
	return func(p *CSVParser) {
		p.maxBytes = n
	}
}

// WithMaxRows limits the number of lines (0 = unlimited)
func WithMaxRows(n int) ParserOption {
	return func(p *CSVParser) {
		p.maxRows = n
	}
}

// NewCSVParser creates a parser
func NewCSVParser(opts ...ParserOption) *CSVParser {
	p := &CSVParser{
		delimiter:  ',',
		lazyQuotes: true,
		trimSpace:  true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ReadGrid reads every line of r. Cells are decoded to UTF-8, normalized to
// NFC so Hangul typed on different systems compares equal, and optionally
// trimmed.
func (p *CSVParser) ReadGrid(name string, r io.Reader) (*sheet.Grid, error) {
	if p.maxBytes > 0 {
		r = io.LimitReader(r, p.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if p.maxBytes > 0 && int64(len(data)) > p.maxBytes {
		return nil, ErrFileTooLarge
	}
	return p.ParseBytes(name, data)
}

// ParseBytes parses an in-memory file
func (p *CSVParser) ParseBytes(name string, data []byte) (*sheet.Grid, error) {
	grid, _, err := p.ParseWithEncoding(name, data)
	return grid, err
}

// ParseWithEncoding parses an in-memory file and also reports the source
// encoding that was detected
func (p *CSVParser) ParseWithEncoding(name string, data []byte) (*sheet.Grid, string, error) {
	decoded, enc, err := DetectAndDecode(data)
	if err != nil {
		return nil, "", err
	}
	if len(bytes.TrimSpace(decoded)) == 0 {
		return nil, enc, ErrEmptyFile
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.Comma = p.delimiter
	reader.LazyQuotes = p.lazyQuotes
	reader.TrimLeadingSpace = p.trimSpace
	reader.FieldsPerRecord = -1 // Allow variable number of fields

	// encoding/csv skips empty lines. They are kept as empty rows so a
	// configured header row still counts spacer lines above it.
	var rows [][]string
	nextLine := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, enc, RowError{Row: nextLine, Code: ErrCodeImportCSVParsing, Message: err.Error()}
		}
		line, _ := reader.FieldPos(0)
		for ; nextLine < line; nextLine++ {
			rows = append(rows, []string{})
		}
		nextLine = bytes.Count(decoded[:reader.InputOffset()], []byte{'\n'}) + 1
		if p.maxRows > 0 && len(rows) >= p.maxRows {
			return nil, enc, ErrTooManyRows
		}
		for i, v := range record {
			v = norm.NFC.String(v)
			if p.trimSpace {
				v = trimSpaces(v)
			}
			record[i] = v
		}
		rows = append(rows, record)
	}
	return sheet.NewGrid(name, rows), enc, nil
}

// trimSpaces trims whitespace from a string
func trimSpaces(s string) string {
	start := 0
	end := len(s)

	for start < end {
		r, size := utf8.DecodeRuneInString(s[start:])
		if !isWhitespace(r) {
			break
		}
		start += size
	}

	for end > start {
		r, size := utf8.DecodeLastRuneInString(s[:end])
		if !isWhitespace(r) {
			break
		}
		end -= size
	}

	return s[start:end]
}

// isWhitespace checks if a rune is whitespace, including the no-break space
// spreadsheet tools emit
func isWhitespace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f', '\u00a0', '\u3000':
		return true
	}
	return false
}
