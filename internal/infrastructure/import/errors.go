package csvimport

import (
	"errors"
	"fmt"
)

// Import error codes
const (
	ErrCodeImportInvalidFile     = "ERR_IMPORT_INVALID_FILE"
	ErrCodeImportEmptyFile       = "ERR_IMPORT_EMPTY_FILE"
	ErrCodeImportFileTooLarge    = "ERR_IMPORT_FILE_TOO_LARGE"
	ErrCodeImportInvalidEncoding = "ERR_IMPORT_INVALID_ENCODING"
	ErrCodeImportCSVParsing      = "ERR_IMPORT_CSV_PARSING"
)

// Common import errors
var (
	// ErrEmptyFile is returned when the file has no content
	ErrEmptyFile = errors.New("CSV file is empty")

	// ErrInvalidEncoding is returned when the file encoding cannot be detected
	ErrInvalidEncoding = errors.New("invalid file encoding")

	// ErrFileTooLarge is returned when the file exceeds maximum size
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")

	// ErrTooManyRows is returned when the file exceeds the row limit
	ErrTooManyRows = errors.New("file exceeds maximum allowed rows")
)

// RowError is a malformed line in a file
type RowError struct {
	Row     int    `json:"row"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// ErrorCode maps an import error to its code
func ErrorCode(err error) string {
	var rowErr RowError
	switch {
	case errors.Is(err, ErrEmptyFile):
		return ErrCodeImportEmptyFile
	case errors.Is(err, ErrInvalidEncoding):
		return ErrCodeImportInvalidEncoding
	case errors.Is(err, ErrFileTooLarge), errors.Is(err, ErrTooManyRows):
		return ErrCodeImportFileTooLarge
	case errors.As(err, &rowErr):
		return rowErr.Code
	default:
		return ErrCodeImportInvalidFile
	}
}
