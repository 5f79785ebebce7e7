package crypt

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvastrmnl/errors"
)

// Produced by the previous service for "canvas.example.edu" with an all-0x01
// salt and an all-0x02 iv.
const storedServer = "BAAAAAAAAABhZXMxCwAAAAAAAABhZXMtMjU2LWdjbRAAAAAAAAAAAQEBAQEBAQEBAQEBAQEBAQwAAAAAAAAAAgICAgICAgICAgICEAAAAAAAAAAHgL0SCZ8fv3TAxB7DO+XkEgAAAAAAAACI4Bj3r7vcIedy4r+kNEc6LjU="

func TestDecryptStoredValue(t *testing.T) {
	plain, err := New("test-secret").DecryptString(storedServer)
	require.NoError(t, err)
	assert.Equal(t, "canvas.example.edu", plain)
}

func TestEncryptIsDeterministicGivenRandomness(t *testing.T) {
	c := New("test-secret")
	c.rand = bytes.NewReader(append(bytes.Repeat([]byte{1}, saltSize), bytes.Repeat([]byte{2}, ivSize)...))

	got, err := c.EncryptString("canvas.example.edu")
	require.NoError(t, err)
	assert.Equal(t, storedServer, got)
}

func TestEncryptDecrypt(t *testing.T) {
	c := New("another secret")
	sealed, err := c.EncryptString("7~abcdefghijklmnop")
	require.NoError(t, err)

	again, err := c.EncryptString("7~abcdefghijklmnop")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "salt and iv must be fresh per message")

	plain, err := c.DecryptString(sealed)
	require.NoError(t, err)
	assert.Equal(t, "7~abcdefghijklmnop", plain)
}

func TestDecryptWrongSecret(t *testing.T) {
	_, err := New("wrong").DecryptString(storedServer)
	assert.ErrorIs(t, err, errors.ErrDecryptionFailed)
}

func TestDecryptTampered(t *testing.T) {
	raw, err := base64.StdEncoding.DecodeString(storedServer)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff

	_, err = New("test-secret").Decrypt(raw)
	assert.ErrorIs(t, err, errors.ErrDecryptionFailed)
}

func section(b []byte) []byte {
	var buf bytes.Buffer
	appendSection(&buf, b)
	return buf.Bytes()
}

func TestDecryptMalformed(t *testing.T) {
	raw, err := base64.StdEncoding.DecodeString(storedServer)
	require.NoError(t, err)

	oversized := append(section([]byte(version)), section([]byte(algorithm))...)
	oversized = append(oversized, 1, 0, 0xa0, 0, 0, 0, 0, 0)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, errors.ErrNotEnoughData},
		{"truncated", raw[:len(raw)-4], errors.ErrNotEnoughData},
		{"unknown version", section([]byte("aes2")), errors.ErrUnknownVersion},
		{"unsupported algorithm", append(section([]byte(version)), section([]byte("aes-128-cbc"))...), errors.ErrUnsupportedAlgorithm},
		{"oversized section", oversized, errors.ErrNotEnoughData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("test-secret").Decrypt(tt.data)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
