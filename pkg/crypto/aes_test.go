package crypto

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func testKey(t *testing.T) []byte {
	t.Helper()
	key, err := DeriveKey(testKeyHex)
	require.NoError(t, err)
	return key
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := testKey(t)
	plaintext := "func main() {\n\tfmt.Println(\"héllo\")\n}"

	ciphertext, iv, err := Encrypt(plaintext, key)
	require.NoError(t, err)
	assert.NotContains(t, ciphertext, "main")

	nonce, err := hex.DecodeString(iv)
	require.NoError(t, err)
	assert.Len(t, nonce, 12)

	got, err := Decrypt(ciphertext, iv, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestEncrypt_FreshIVEachTime(t *testing.T) {
	key := testKey(t)

	c1, iv1, err := Encrypt("same", key)
	require.NoError(t, err)
	c2, iv2, err := Encrypt("same", key)
	require.NoError(t, err)

	assert.NotEqual(t, iv1, iv2)
	assert.NotEqual(t, c1, c2)
}

func TestDecrypt_WrongKey(t *testing.T) {
	ciphertext, iv, err := Encrypt("secret", testKey(t))
	require.NoError(t, err)

	other, err := DeriveKey(strings.Repeat("ab", 32))
	require.NoError(t, err)

	_, err = Decrypt(ciphertext, iv, other)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecrypt_Malformed(t *testing.T) {
	key := testKey(t)
	ciphertext, iv, err := Encrypt("secret", key)
	require.NoError(t, err)

	tests := []struct {
		name       string
		ciphertext string
		iv         string
	}{
		{"non-hex ciphertext", "zz" + ciphertext, iv},
		{"non-hex iv", ciphertext, "not-hex"},
		{"short iv", ciphertext, iv[:10]},
		{"truncated ciphertext", ciphertext[:8], iv},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decrypt(tt.ciphertext, tt.iv, key)
			assert.ErrorIs(t, err, ErrMalformedInput)
		})
	}
}

func TestDecrypt_Tampered(t *testing.T) {
	key := testKey(t)
	ciphertext, iv, err := Encrypt("secret", key)
	require.NoError(t, err)

	raw, _ := hex.DecodeString(ciphertext)
	raw[0] ^= 0xff

	_, err = Decrypt(hex.EncodeToString(raw), iv, key)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDeriveKey(t *testing.T) {
	_, err := DeriveKey("abcd")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = DeriveKey("not hex at all")
	assert.Error(t, err)

	_, _, err = Encrypt("x", []byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}
