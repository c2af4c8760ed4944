package storage

import (
	"context"

	"github.com/pkg/errors"

	"github.com/tbd54566975/tbdex-go/pkg/encryption"
)

// EncryptedWrapper seals values before they reach the wrapped storage. Namespaces and keys stay in the clear and are
// bound to each ciphertext as associated data, so a value copied under another key fails to decrypt.
type EncryptedWrapper struct {
	s         ServiceStorage
	encrypter encryption.Encrypter
	decrypter encryption.Decrypter
}

var _ ServiceStorage = (*EncryptedWrapper)(nil)

func NewEncryptedWrapper(s ServiceStorage, encrypter encryption.Encrypter, decrypter encryption.Decrypter) *EncryptedWrapper {
	return &EncryptedWrapper{s: s, encrypter: encrypter, decrypter: decrypter}
}

func associatedData(namespace, key string) []byte {
	return []byte(namespace + "/" + key)
}

func (e *EncryptedWrapper) seal(ctx context.Context, namespace, key string, value []byte) ([]byte, error) {
	sealed, err := e.encrypter.Encrypt(ctx, value, associatedData(namespace, key))
	if err != nil {
		return nil, errors.Wrapf(err, "encrypting %s/%s", namespace, key)
	}
	return sealed, nil
}

func (e *EncryptedWrapper) open(ctx context.Context, namespace, key string, sealed []byte) ([]byte, error) {
	value, err := e.decrypter.Decrypt(ctx, sealed, associatedData(namespace, key))
	if err != nil {
		return nil, errors.Wrapf(err, "decrypting %s/%s", namespace, key)
	}
	return value, nil
}

func (e *EncryptedWrapper) Type() Type {
	return e.s.Type()
}

func (e *EncryptedWrapper) Close() error {
	return e.s.Close()
}

func (e *EncryptedWrapper) Write(ctx context.Context, namespace, key string, value []byte) error {
	sealed, err := e.seal(ctx, namespace, key, value)
	if err != nil {
		return err
	}
	return e.s.Write(ctx, namespace, key, sealed)
}

func (e *EncryptedWrapper) WriteIfAbsent(ctx context.Context, namespace, key string, value []byte) (bool, error) {
	sealed, err := e.seal(ctx, namespace, key, value)
	if err != nil {
		return false, err
	}
	return e.s.WriteIfAbsent(ctx, namespace, key, sealed)
}

func (e *EncryptedWrapper) Read(ctx context.Context, namespace, key string) ([]byte, error) {
	sealed, err := e.s.Read(ctx, namespace, key)
	if err != nil || sealed == nil {
		return nil, err
	}
	return e.open(ctx, namespace, key, sealed)
}

func (e *EncryptedWrapper) Exists(ctx context.Context, namespace, key string) (bool, error) {
	return e.s.Exists(ctx, namespace, key)
}

func (e *EncryptedWrapper) ReadAll(ctx context.Context, namespace string) (map[string][]byte, error) {
	sealed, err := e.s.ReadAll(ctx, namespace)
	if err != nil {
		return nil, err
	}
	values := make(map[string][]byte, len(sealed))
	for key, s := range sealed {
		if values[key], err = e.open(ctx, namespace, key, s); err != nil {
			return nil, err
		}
	}
	return values, nil
}

func (e *EncryptedWrapper) ReadAllKeys(ctx context.Context, namespace string) ([]string, error) {
	return e.s.ReadAllKeys(ctx, namespace)
}

func (e *EncryptedWrapper) Delete(ctx context.Context, namespace, key string) error {
	return e.s.Delete(ctx, namespace, key)
}

func (e *EncryptedWrapper) DeleteNamespace(ctx context.Context, namespace string) error {
	return e.s.DeleteNamespace(ctx, namespace)
}
