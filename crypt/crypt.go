// Package crypt encrypts credentials at rest.
//
// Ciphertexts are stored as base64 of a sequence of sections, each a
// little-endian uint64 length followed by that many bytes:
//
//	version ("aes1") | algorithm ("aes-256-gcm") | salt | iv | auth tag | ciphertext
//
// The AES key is derived from the configured secret and the per-message salt
// with scrypt.
package crypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/scrypt"

	"canvastrmnl/errors"
)

const (
	version   = "aes1"
	algorithm = "aes-256-gcm"

	saltSize = 16
	ivSize   = 12
	tagSize  = 16
	keySize  = 32

	maxSectionLen = 10 * 1024 * 1024
)

// scrypt cost parameters.
const (
	scryptN = 16384
	scryptR = 8
	scryptP = 1
)

// Cipher encrypts and decrypts with a single secret.
type Cipher struct {
	secret []byte
	rand   io.Reader
}

func New(secret string) *Cipher {
	return &Cipher{secret: []byte(secret), rand: rand.Reader}
}

func (c *Cipher) key(salt []byte) ([]byte, error) {
	return scrypt.Key(c.secret, salt, scryptN, scryptR, scryptP, keySize)
}

func appendSection(buf *bytes.Buffer, b []byte) {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(b)))
	buf.Write(n[:])
	buf.Write(b)
}

// Encrypt seals data into the sectioned envelope.
func (c *Cipher) Encrypt(data []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(c.rand, salt); err != nil {
		return nil, errors.NewError("crypt.Encrypt", "could not generate salt", err)
	}
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return nil, errors.NewError("crypt.Encrypt", "could not generate iv", err)
	}

	key, err := c.key(salt)
	if err != nil {
		return nil, errors.NewError("crypt.Encrypt", "key derivation failed", err)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, errors.NewError("crypt.Encrypt", "cipher setup failed", err)
	}

	sealed := gcm.Seal(nil, iv, data, nil)
	ciphertext, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	var buf bytes.Buffer
	appendSection(&buf, []byte(version))
	appendSection(&buf, []byte(algorithm))
	appendSection(&buf, salt)
	appendSection(&buf, iv)
	appendSection(&buf, tag)
	appendSection(&buf, ciphertext)
	return buf.Bytes(), nil
}

type reader struct {
	data []byte
	off  int
}

func (r *reader) section() ([]byte, bool) {
	if r.off+8 > len(r.data) {
		return nil, false
	}
	n := binary.LittleEndian.Uint64(r.data[r.off:])
	r.off += 8
	if n > maxSectionLen || uint64(len(r.data)-r.off) < n {
		return nil, false
	}
	b := r.data[r.off : r.off+int(n)]
	r.off += int(n)
	return b, true
}

// Decrypt opens an envelope produced by Encrypt. Errors wrap one of
// ErrNotEnoughData, ErrUnknownVersion, ErrUnsupportedAlgorithm or
// ErrDecryptionFailed.
func (c *Cipher) Decrypt(data []byte) ([]byte, error) {
	r := &reader{data: data}

	ver, ok := r.section()
	if !ok {
		return nil, errors.NewError("crypt.Decrypt", "version", errors.ErrNotEnoughData)
	}
	if string(ver) != version {
		return nil, errors.NewError("crypt.Decrypt", string(ver), errors.ErrUnknownVersion)
	}

	alg, ok := r.section()
	if !ok {
		return nil, errors.NewError("crypt.Decrypt", "algorithm", errors.ErrNotEnoughData)
	}
	if string(alg) != algorithm {
		return nil, errors.NewError("crypt.Decrypt", string(alg), errors.ErrUnsupportedAlgorithm)
	}

	var parts [4][]byte
	for i, name := range []string{"salt", "iv", "auth tag", "ciphertext"} {
		parts[i], ok = r.section()
		if !ok {
			return nil, errors.NewError("crypt.Decrypt", name, errors.ErrNotEnoughData)
		}
	}
	salt, iv, tag, ciphertext := parts[0], parts[1], parts[2], parts[3]

	key, err := c.key(salt)
	if err != nil {
		return nil, errors.NewError("crypt.Decrypt", err.Error(), errors.ErrDecryptionFailed)
	}
	gcm, err := newGCMSizes(key, len(iv), len(tag))
	if err != nil {
		return nil, errors.NewError("crypt.Decrypt", err.Error(), errors.ErrDecryptionFailed)
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plain, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, errors.NewError("crypt.Decrypt", "authentication failed", errors.ErrDecryptionFailed)
	}
	return plain, nil
}

func (c *Cipher) EncryptString(s string) (string, error) {
	b, err := c.Encrypt([]byte(s))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func (c *Cipher) DecryptString(s string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", errors.NewError("crypt.DecryptString", "invalid base64", errors.ErrNotEnoughData)
	}
	plain, err := c.Decrypt(b)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	return newGCMSizes(key, ivSize, tagSize)
}

func newGCMSizes(key []byte, nonceSize, tagSize int) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if nonceSize != ivSize {
		return cipher.NewGCMWithNonceSize(block, nonceSize)
	}
	return cipher.NewGCMWithTagSize(block, tagSize)
}
