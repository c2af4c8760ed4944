// Package encryption provides the symmetric encryption used to protect key material held in storage.
package encryption

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/tbd54566975/tbdex-go/internal/util"
)

// Encrypter the interface for any encrypter implementation.
type Encrypter interface {
	Encrypt(ctx context.Context, plaintext, contextData []byte) ([]byte, error)
}

// Decrypter is the interface for any decrypter. The second parameter is treated as associated data for AEAD (as
// abstracted in https://datatracker.ietf.org/doc/html/rfc5116).
type Decrypter interface {
	Decrypt(ctx context.Context, ciphertext, contextInfo []byte) ([]byte, error)
}

// KeyResolver returns the symmetric key to use for an operation.
type KeyResolver func(ctx context.Context) ([]byte, error)

type XChaCha20Poly1305Encrypter struct {
	keyResolver KeyResolver
}

var _ Decrypter = (*XChaCha20Poly1305Encrypter)(nil)
var _ Encrypter = (*XChaCha20Poly1305Encrypter)(nil)

func NewXChaCha20Poly1305EncrypterWithKey(key []byte) *XChaCha20Poly1305Encrypter {
	return &XChaCha20Poly1305Encrypter{func(ctx context.Context) ([]byte, error) {
		return key, nil
	}}
}

func NewXChaCha20Poly1305EncrypterWithKeyResolver(resolver KeyResolver) *XChaCha20Poly1305Encrypter {
	return &XChaCha20Poly1305Encrypter{resolver}
}

// NewXChaCha20Poly1305EncrypterWithPassword derives the key from a password with Argon2id. The returned salt must be
// kept to derive the same key again.
func NewXChaCha20Poly1305EncrypterWithPassword(password string, salt []byte) (*XChaCha20Poly1305Encrypter, []byte, error) {
	if len(salt) == 0 {
		generated, err := util.GenerateSalt(util.Argon2SaltSize)
		if err != nil {
			return nil, nil, errors.Wrap(err, "generating salt")
		}
		salt = generated
	}
	key, err := util.Argon2KeyGen(password, salt, chacha20poly1305.KeySize)
	if err != nil {
		return nil, nil, errors.Wrap(err, "deriving key from password")
	}
	return NewXChaCha20Poly1305EncrypterWithKey(key), salt, nil
}

func (k XChaCha20Poly1305Encrypter) Encrypt(ctx context.Context, plaintext, contextData []byte) ([]byte, error) {
	key, err := k.keyResolver(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "resolving key")
	}
	encrypted, err := util.XChaCha20Poly1305Encrypt(key, plaintext, contextData)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "could not encrypt data")
	}
	return encrypted, nil
}

func (k XChaCha20Poly1305Encrypter) Decrypt(ctx context.Context, ciphertext, contextInfo []byte) ([]byte, error) {
	if ciphertext == nil {
		return nil, nil
	}
	key, err := k.keyResolver(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "resolving key")
	}
	decrypted, err := util.XChaCha20Poly1305Decrypt(key, ciphertext, contextInfo)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "could not decrypt data")
	}
	return decrypted, nil
}
