package handler

import (
	"fmt"
	"io"
	"mime/multipart"

	csvimport "github.com/krbiz/backend/internal/infrastructure/import"
)

// DefaultMaxFileSize caps a single uploaded file
const DefaultMaxFileSize = 10 << 20

// readUpload reads a multipart file, refusing files over maxBytes
func readUpload(fh *multipart.FileHeader, maxBytes int64) ([]byte, error) {
	if fh.Size > maxBytes {
		return nil, fmt.Errorf("%w (%d bytes, limit %d)", csvimport.ErrFileTooLarge, fh.Size, maxBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w (limit %d)", csvimport.ErrFileTooLarge, maxBytes)
	}
	return data, nil
}
