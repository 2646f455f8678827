// Package crypto implements password-protected order files. A sealed file is
// the original bytes encrypted with XChaCha20-Poly1305 under a key derived
// from the password with scrypt.
package crypto

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"github.com/krbiz/backend/internal/domain/shared"
)

// Layout: magic | version | salt | nonce | ciphertext
var magic = []byte("KRBZSEAL")

const (
	version1 = 1
	saltSize = 16
	keySize  = chacha20poly1305.KeySize

	headerSize = 8 + 1 + saltSize + chacha20poly1305.NonceSizeX
)

var (
	ErrNotSealed          = errors.New("crypto: file is not sealed")
	ErrUnsupportedVersion = errors.New("crypto: unsupported sealed file version")
)

// ScryptParams are the key derivation costs
type ScryptParams struct {
	N int
	R int
	P int
}

// DefaultScryptParams is the recommended interactive setting
var DefaultScryptParams = ScryptParams{N: 1 << 15, R: 8, P: 1}

// SealedFileDecryptor opens sealed order files
type SealedFileDecryptor struct {
	params ScryptParams
}

// Option configures a SealedFileDecryptor
type Option func(*SealedFileDecryptor)

// WithScryptParams overrides the key derivation costs
func WithScryptParams(p ScryptParams) Option {
	return func(d *SealedFileDecryptor) {
		d.params = p
	}
}

// NewSealedFileDecryptor creates a decryptor
func NewSealedFileDecryptor(opts ...Option) *SealedFileDecryptor {
	d := &SealedFileDecryptor{params: DefaultScryptParams}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// IsEncrypted reports whether data carries the sealed file header
func (d *SealedFileDecryptor) IsEncrypted(data []byte) bool {
	return bytes.HasPrefix(data, magic)
}

// Decrypt opens a sealed file. A wrong password yields shared.ErrInvalidCredential.
func (d *SealedFileDecryptor) Decrypt(data []byte, password string) ([]byte, error) {
	if !d.IsEncrypted(data) {
		return nil, ErrNotSealed
	}
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: truncated header", ErrNotSealed)
	}
	if data[len(magic)] != version1 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, data[len(magic)])
	}

	off := len(magic) + 1
	salt := data[off : off+saltSize]
	nonce := data[off+saltSize : headerSize]

	aead, err := d.aead(password, salt)
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, nonce, data[headerSize:], data[:off])
	if err != nil {
		return nil, shared.ErrInvalidCredential
	}
	return plain, nil
}

// Seal encrypts data with password
func (d *SealedFileDecryptor) Seal(data []byte, password string) ([]byte, error) {
	salt := make([]byte, saltSize)
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: read salt: %w", err)
	}
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: read nonce: %w", err)
	}

	aead, err := d.aead(password, salt)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, headerSize+len(data)+aead.Overhead())
	out = append(out, magic...)
	out = append(out, version1)
	out = append(out, salt...)
	out = append(out, nonce...)
	ad := append([]byte(nil), out[:len(magic)+1]...)
	return aead.Seal(out, nonce, data, ad), nil
}

func (d *SealedFileDecryptor) aead(password string, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(password), salt, d.params.N, d.params.R, d.params.P, keySize)
	if err != nil {
		return nil, fmt.Errorf("crypto: derive key: %w", err)
	}
	return chacha20poly1305.NewX(key)
}
