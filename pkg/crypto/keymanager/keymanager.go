// Package keymanager stores private keys under deterministic aliases and signs with them on request.
package keymanager

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/tbd54566975/tbdex-go/internal/util"
	"github.com/tbd54566975/tbdex-go/pkg/crypto/dsa"
	"github.com/tbd54566975/tbdex-go/pkg/crypto/jwk"
	"github.com/tbd54566975/tbdex-go/pkg/encryption"
	"github.com/tbd54566975/tbdex-go/pkg/storage"
)

const namespace = "keys"

var (
	// ErrKeyAliasNotFound is returned for operations on an alias the manager does not hold.
	ErrKeyAliasNotFound = errors.New("key alias not found")
	// ErrKeyAliasConflict is returned when storing a key under an alias that already names different key material.
	ErrKeyAliasConflict = errors.New("key alias already in use")
)

// KeyManager generates and holds private keys, never handing out private material through this interface.
type KeyManager interface {
	// GeneratePrivateKey creates and stores a key, returning its alias.
	GeneratePrivateKey(alg dsa.Algorithm) (string, error)
	GetPublicKey(alias string) (jwk.JWK, error)
	Sign(alias string, payload []byte) ([]byte, error)
	// GetDeterministicAlias returns the alias a key is (or would be) stored under: its kid, or else its thumbprint.
	GetDeterministicAlias(key jwk.JWK) (string, error)
}

// KeyExporter is implemented by key managers that can release private keys.
type KeyExporter interface {
	ExportPrivateKey(alias string) (jwk.JWK, error)
}

// KeyImporter is implemented by key managers that accept existing private keys.
type KeyImporter interface {
	ImportPrivateKey(privateKey jwk.JWK) (string, error)
}

// LocalKeyManager keeps keys in an in-process ServiceStorage.
type LocalKeyManager struct {
	storage storage.ServiceStorage
	// salt the encryption key was derived with, nil unless WithEncryption is used
	salt []byte
}

var (
	_ KeyManager  = (*LocalKeyManager)(nil)
	_ KeyExporter = (*LocalKeyManager)(nil)
	_ KeyImporter = (*LocalKeyManager)(nil)
)

// Option configures a LocalKeyManager.
type Option func(*options) error

type options struct {
	storage   storage.ServiceStorage
	password  string
	salt      []byte
	encrypter *encryption.XChaCha20Poly1305Encrypter
}

// WithStorage backs the manager with s instead of a fresh MemoryDB.
func WithStorage(s storage.ServiceStorage) Option {
	return func(o *options) error {
		if s == nil {
			return errors.New("storage cannot be nil")
		}
		o.storage = s
		return nil
	}
}

// WithEncryption encrypts stored keys with a key derived from password. An empty salt generates a new one, which
// Salt returns; keys written to a persistent store can only be read again with the same password and salt.
func WithEncryption(password string, salt []byte) Option {
	return func(o *options) error {
		if password == "" {
			return errors.New("password cannot be empty")
		}
		if o.encrypter != nil {
			return errors.New("encryption is already configured")
		}
		o.password = password
		o.salt = salt
		return nil
	}
}

// WithEncryptionKey encrypts stored keys with a 32 byte XChaCha20-Poly1305 key.
func WithEncryptionKey(key []byte) Option {
	return func(o *options) error {
		if len(key) != chacha20poly1305.KeySize {
			return errors.Errorf("encryption key must be %d bytes", chacha20poly1305.KeySize)
		}
		return o.setEncrypter(encryption.NewXChaCha20Poly1305EncrypterWithKey(key))
	}
}

// WithEncryptionKeyResolver encrypts stored keys with a key fetched on every operation, e.g. from a KMS.
func WithEncryptionKeyResolver(resolver encryption.KeyResolver) Option {
	return func(o *options) error {
		if resolver == nil {
			return errors.New("key resolver cannot be nil")
		}
		return o.setEncrypter(encryption.NewXChaCha20Poly1305EncrypterWithKeyResolver(resolver))
	}
}

func (o *options) setEncrypter(e *encryption.XChaCha20Poly1305Encrypter) error {
	if o.encrypter != nil || o.password != "" {
		return errors.New("encryption is already configured")
	}
	o.encrypter = e
	return nil
}

// NewLocalKeyManager creates a key manager over an in-memory store.
func NewLocalKeyManager(opts ...Option) (*LocalKeyManager, error) {
	o := options{}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, errors.Wrap(err, "applying key manager option")
		}
	}

	s := o.storage
	if s == nil {
		s = storage.NewMemoryDB()
	}
	encrypter := o.encrypter
	var salt []byte
	if o.password != "" {
		var err error
		if encrypter, salt, err = encryption.NewXChaCha20Poly1305EncrypterWithPassword(o.password, o.salt); err != nil {
			return nil, errors.Wrap(err, "creating key encryption")
		}
	}
	if encrypter != nil {
		s = storage.NewEncryptedWrapper(s, encrypter, encrypter)
	}
	return &LocalKeyManager{storage: s, salt: salt}, nil
}

// Salt returns the salt the password encryption key was derived with, or nil when WithEncryption is not used.
func (k *LocalKeyManager) Salt() []byte {
	return append([]byte(nil), k.salt...)
}

func (k *LocalKeyManager) GeneratePrivateKey(alg dsa.Algorithm) (string, error) {
	privateKey, err := dsa.GeneratePrivateKey(alg)
	if err != nil {
		return "", errors.Wrapf(err, "generating %s key", alg)
	}
	alias, err := k.store(privateKey)
	if err != nil {
		return "", err
	}
	logrus.Debugf("generated %s key with alias: %s", alg, alias)
	return alias, nil
}

func (k *LocalKeyManager) GetPublicKey(alias string) (jwk.JWK, error) {
	privateKey, err := k.load(alias)
	if err != nil {
		return jwk.JWK{}, err
	}
	return dsa.ComputePublicKey(privateKey)
}

func (k *LocalKeyManager) Sign(alias string, payload []byte) ([]byte, error) {
	privateKey, err := k.load(alias)
	if err != nil {
		return nil, err
	}
	signature, err := dsa.Sign(payload, privateKey)
	if err != nil {
		return nil, errors.Wrapf(err, "signing with key<%s>", alias)
	}
	return signature, nil
}

func (k *LocalKeyManager) GetDeterministicAlias(key jwk.JWK) (string, error) {
	if key.KID != "" {
		return key.KID, nil
	}
	thumbprint, err := key.Thumbprint()
	if err != nil {
		return "", errors.Wrap(err, "computing key alias")
	}
	return thumbprint, nil
}

func (k *LocalKeyManager) ExportPrivateKey(alias string) (jwk.JWK, error) {
	return k.load(alias)
}

func (k *LocalKeyManager) ImportPrivateKey(privateKey jwk.JWK) (string, error) {
	if !privateKey.IsPrivate() {
		return "", errors.Wrap(dsa.ErrInvalidKey, "only private keys can be imported")
	}
	if _, err := dsa.ComputePublicKey(privateKey); err != nil {
		return "", errors.Wrap(err, "validating imported key")
	}
	return k.store(privateKey)
}

// Aliases lists every alias held by the manager.
func (k *LocalKeyManager) Aliases() ([]string, error) {
	return k.storage.ReadAllKeys(context.Background(), namespace)
}

func (k *LocalKeyManager) store(privateKey jwk.JWK) (string, error) {
	alias, err := k.GetDeterministicAlias(privateKey)
	if err != nil {
		return "", err
	}
	keyBytes, err := json.Marshal(privateKey)
	if err != nil {
		return "", errors.Wrap(err, "serializing key")
	}
	written, err := k.storage.WriteIfAbsent(context.Background(), namespace, alias, keyBytes)
	if err != nil {
		return "", util.LoggingErrorMsgf(err, "storing key<%s>", alias)
	}
	if written {
		return alias, nil
	}

	// storing the same key twice is fine, reusing its alias for another key is not
	existing, err := k.load(alias)
	if err != nil {
		return "", err
	}
	if !existing.Equal(privateKey) {
		return "", errors.Wrapf(ErrKeyAliasConflict, "alias: %s", alias)
	}
	return alias, nil
}

func (k *LocalKeyManager) load(alias string) (jwk.JWK, error) {
	if alias == "" {
		return jwk.JWK{}, errors.Wrap(ErrKeyAliasNotFound, "alias cannot be empty")
	}
	keyBytes, err := k.storage.Read(context.Background(), namespace, alias)
	if err != nil {
		return jwk.JWK{}, errors.Wrapf(err, "reading key<%s>", alias)
	}
	if keyBytes == nil {
		return jwk.JWK{}, errors.Wrapf(ErrKeyAliasNotFound, "alias: %s", alias)
	}
	var privateKey jwk.JWK
	if err = json.Unmarshal(keyBytes, &privateKey); err != nil {
		return jwk.JWK{}, errors.Wrapf(err, "deserializing key<%s>", alias)
	}
	return privateKey, nil
}
