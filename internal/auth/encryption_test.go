package auth

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptor(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	t.Run("seal and open", func(t *testing.T) {
		sealed, err := enc.Seal("portal-access-token-9f2c", "2251061234")
		require.NoError(t, err)
		assert.NotContains(t, sealed, "portal-access-token")

		token, err := enc.Open(sealed, "2251061234")
		require.NoError(t, err)
		assert.Equal(t, "portal-access-token-9f2c", token)
	})

	t.Run("random nonce", func(t *testing.T) {
		a, _ := enc.Seal("same", "1")
		b, _ := enc.Seal("same", "1")
		assert.NotEqual(t, a, b)
	})

	t.Run("bound to the student", func(t *testing.T) {
		sealed, _ := enc.Seal("tok", "2251061234")
		_, err := enc.Open(sealed, "2251069999")
		assert.ErrorIs(t, err, ErrTokenSeal)
	})

	t.Run("tampered or malformed", func(t *testing.T) {
		sealed, _ := enc.Seal("tok", "1")
		raw, err := base64.RawURLEncoding.DecodeString(sealed)
		require.NoError(t, err)
		raw[len(raw)-1] ^= 0xff
		_, err = enc.Open(base64.RawURLEncoding.EncodeToString(raw), "1")
		assert.ErrorIs(t, err, ErrTokenSeal)

		_, err = enc.Open("not base64!", "1")
		assert.ErrorIs(t, err, ErrTokenSeal)

		_, err = enc.Open("AAAA", "1")
		assert.ErrorIs(t, err, ErrTokenSeal)
	})

	t.Run("invalid key", func(t *testing.T) {
		_, err := NewEncryptor("short")
		assert.Error(t, err)
		_, err = NewEncryptor("abcd")
		assert.Error(t, err)
	})
}
