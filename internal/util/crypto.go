package util

import (
	"crypto/rand"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Argon2SaltSize is the salt length recommended for Argon2, in bytes.
const Argon2SaltSize = 16

// Argon2id cost parameters: one pass over 64 MiB with four lanes.
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

// XChaCha20Poly1305Encrypt seals data under a 32 byte key, binding additionalData. The random 24 byte nonce is
// prepended to the ciphertext.
func XChaCha20Poly1305Encrypt(key, data, additionalData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "creating cipher")
	}
	nonce, err := RandomBytes(aead.NonceSize())
	if err != nil {
		return nil, errors.Wrap(err, "generating nonce")
	}
	out := make([]byte, 0, len(nonce)+len(data)+aead.Overhead())
	out = append(out, nonce...)
	return aead.Seal(out, nonce, data, additionalData), nil
}

// XChaCha20Poly1305Decrypt opens the output of XChaCha20Poly1305Encrypt. additionalData must match what was sealed.
func XChaCha20Poly1305Decrypt(key, data, additionalData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "creating cipher")
	}
	if len(data) < aead.NonceSize()+aead.Overhead() {
		return nil, errors.Errorf("ciphertext of %d bytes is too short", len(data))
	}
	plaintext, err := aead.Open(nil, data[:aead.NonceSize()], data[aead.NonceSize():], additionalData)
	if err != nil {
		return nil, errors.Wrap(err, "opening ciphertext")
	}
	return plaintext, nil
}

// Argon2KeyGen derives a keyLen byte key from password with Argon2id.
func Argon2KeyGen(password string, salt []byte, keyLen int) ([]byte, error) {
	switch {
	case password == "":
		return nil, errors.New("password cannot be empty")
	case len(salt) == 0:
		return nil, errors.New("salt cannot be empty")
	case keyLen <= 0:
		return nil, errors.Errorf("invalid key length: %d", keyLen)
	}
	return argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, uint32(keyLen)), nil
}

// GenerateSalt returns a random salt of the given size.
func GenerateSalt(size int) ([]byte, error) {
	salt, err := RandomBytes(size)
	if err != nil {
		return nil, errors.Wrap(err, "generating salt")
	}
	return salt, nil
}

// RandomBytes returns size bytes from the system CSPRNG.
func RandomBytes(size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.Errorf("invalid size: %d", size)
	}
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return nil, errors.Wrap(err, "reading random bytes")
	}
	return b, nil
}
