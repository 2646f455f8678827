package csvimport

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding names reported by DetectAndDecode
const (
	EncodingUTF8    = "utf-8"
	EncodingUTF8BOM = "utf-8-bom"
	EncodingUTF16LE = "utf-16le"
	EncodingUTF16BE = "utf-16be"
	EncodingCP949   = "cp949"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DetectAndDecode strips any BOM and returns the content as UTF-8 with the
// detected encoding name. Content that is not valid UTF-8 and has no BOM is
// decoded as CP949 (EUC-KR), the default of Korean spreadsheet exports.
func DetectAndDecode(data []byte) ([]byte, string, error) {
	switch {
	case len(data) == 0:
		return data, EncodingUTF8, nil
	case bytes.HasPrefix(data, bomUTF8):
		return data[len(bomUTF8):], EncodingUTF8BOM, nil
	case bytes.HasPrefix(data, bomUTF16LE):
		out, err := decode(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), data)
		return out, EncodingUTF16LE, err
	case bytes.HasPrefix(data, bomUTF16BE):
		out, err := decode(unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), data)
		return out, EncodingUTF16BE, err
	case utf8.Valid(data):
		return data, EncodingUTF8, nil
	}

	out, err := decode(korean.EUCKR, data)
	if err != nil {
		return nil, "", err
	}
	if !utf8.Valid(out) || bytes.ContainsRune(out, utf8.RuneError) {
		return nil, "", ErrInvalidEncoding
	}
	return out, EncodingCP949, nil
}

func decode(enc encoding.Encoding, data []byte) ([]byte, error) {
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return out, nil
}

// EncodeCP949 converts UTF-8 text to CP949 for spreadsheet tools that do not
// read UTF-8 CSV
func EncodeCP949(data []byte) ([]byte, error) {
	out, _, err := transform.Bytes(korean.EUCKR.NewEncoder(), data)
	if err != nil {
		return nil, fmt.Errorf("csvimport: encode cp949: %w", err)
	}
	return out, nil
}
