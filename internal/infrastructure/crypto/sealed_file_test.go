package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krbiz/backend/internal/domain/shared"
)

// cheap parameters keep the tests fast
func testDecryptor() *SealedFileDecryptor {
	return NewSealedFileDecryptor(WithScryptParams(ScryptParams{N: 1 << 4, R: 8, P: 1}))
}

func TestSealedFileDecryptor(t *testing.T) {
	d := testDecryptor()
	plain := []byte("수취인명,상품명\n홍길동,사과\n")

	sealed, err := d.Seal(plain, "s3cret")
	require.NoError(t, err)
	assert.True(t, d.IsEncrypted(sealed))
	assert.False(t, d.IsEncrypted(plain))

	t.Run("Correct password", func(t *testing.T) {
		out, err := d.Decrypt(sealed, "s3cret")
		require.NoError(t, err)
		assert.Equal(t, plain, out)
	})

	t.Run("Wrong password", func(t *testing.T) {
		_, err := d.Decrypt(sealed, "nope")
		assert.ErrorIs(t, err, shared.ErrInvalidCredential)
	})

	t.Run("Tampered header", func(t *testing.T) {
		tampered := append([]byte(nil), sealed...)
		tampered[len(magic)+2] ^= 0xFF
		_, err := d.Decrypt(tampered, "s3cret")
		assert.ErrorIs(t, err, shared.ErrInvalidCredential)
	})

	t.Run("Plain file", func(t *testing.T) {
		_, err := d.Decrypt(plain, "s3cret")
		assert.ErrorIs(t, err, ErrNotSealed)
	})

	t.Run("Truncated", func(t *testing.T) {
		_, err := d.Decrypt(sealed[:12], "s3cret")
		assert.ErrorIs(t, err, ErrNotSealed)
	})

	t.Run("Unknown version", func(t *testing.T) {
		other := append([]byte(nil), sealed...)
		other[len(magic)] = 9
		_, err := d.Decrypt(other, "s3cret")
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("Each seal uses a fresh salt", func(t *testing.T) {
		again, err := d.Seal(plain, "s3cret")
		require.NoError(t, err)
		assert.NotEqual(t, sealed, again)
	})
}
