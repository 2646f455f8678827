package csvimport

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/krbiz/backend/internal/domain/sheet"
)

// WriteOption configures table export
type WriteOption func(*writer)

type writer struct {
	bom   bool
	cp949 bool
}

// WithBOM prefixes UTF-8 output with a BOM so spreadsheet tools detect the
// encoding (default true)
func WithBOM(bom bool) WriteOption {
	return func(w *writer) {
		w.bom = bom
	}
}

// WithCP949 writes CP949 instead of UTF-8
func WithCP949() WriteOption {
	return func(w *writer) {
		w.cp949 = true
	}
}

// WriteTable writes a table as CSV, header first
func WriteTable(out io.Writer, t *sheet.Table, opts ...WriteOption) error {
	data, err := EncodeTable(t, opts...)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

// EncodeTable renders a table as CSV bytes
func EncodeTable(t *sheet.Table, opts ...WriteOption) ([]byte, error) {
	w := &writer{bom: true}
	for _, opt := range opts {
		opt(w)
	}

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(t.Columns); err != nil {
		return nil, fmt.Errorf("csvimport: write header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return nil, fmt.Errorf("csvimport: write rows: %w", err)
	}

	if w.cp949 {
		return EncodeCP949(buf.Bytes())
	}
	if w.bom {
		return append(append([]byte(nil), bomUTF8...), buf.Bytes()...), nil
	}
	return buf.Bytes(), nil
}
