// Package storage provides the key/value stores that hold key material and recorded exchanges.
package storage

import (
	"context"

	"github.com/pkg/errors"

	"github.com/tbd54566975/tbdex-go/internal/util"
)

// Type names a storage implementation.
type Type string

const (
	Memory Type = "memory"
	Bolt   Type = "bolt"
	Redis  Type = "redis"
)

const (
	BoltDBFilePathOption = "boltdb-filepath-option"
	RedisAddressOption   = "redis-address-option"
	PasswordOption       = "storage-password-option"
)

// Option is a storage specific setting, identified by one of the *Option constants.
type Option struct {
	ID     string
	Option any
}

// ServiceStorage describes the api for storage independent of the backing implementation. Values are grouped into
// namespaces; a read of a missing key returns nil and no error.
type ServiceStorage interface {
	Type() Type
	Close() error
	Write(ctx context.Context, namespace, key string, value []byte) error
	// WriteIfAbsent writes value only when key is not present in namespace, reporting whether the write happened.
	WriteIfAbsent(ctx context.Context, namespace, key string, value []byte) (bool, error)
	Read(ctx context.Context, namespace, key string) ([]byte, error)
	Exists(ctx context.Context, namespace, key string) (bool, error)
	ReadAll(ctx context.Context, namespace string) (map[string][]byte, error)
	ReadAllKeys(ctx context.Context, namespace string) ([]string, error)
	Delete(ctx context.Context, namespace, key string) error
	DeleteNamespace(ctx context.Context, namespace string) error
}

// NewStorage creates a ServiceStorage of the given type.
func NewStorage(storageType Type, opts ...Option) (ServiceStorage, error) {
	switch storageType {
	case Memory, "":
		return NewMemoryDB(), nil
	case Bolt:
		path, err := stringOption(opts, BoltDBFilePathOption)
		if err != nil {
			return nil, err
		}
		if path == "" {
			path = DBFile
		}
		return NewBoltDBWithFile(path)
	case Redis:
		address, err := stringOption(opts, RedisAddressOption)
		if err != nil {
			return nil, err
		}
		if address == "" {
			return nil, errors.New("redis storage requires an address")
		}
		password, err := stringOption(opts, PasswordOption)
		if err != nil {
			return nil, err
		}
		return NewRedisDB(address, password)
	default:
		return nil, util.LoggingNewErrorf("unsupported storage type: %s", storageType)
	}
}

func stringOption(opts []Option, id string) (string, error) {
	for _, opt := range opts {
		if opt.ID != id {
			continue
		}
		s, ok := opt.Option.(string)
		if !ok {
			return "", errors.Errorf("option<%s> must be a string", id)
		}
		return s, nil
	}
	return "", nil
}

func checkNamespaceAndKey(namespace, key string) error {
	if namespace == "" {
		return errors.New("namespace required")
	}
	if key == "" {
		return errors.New("key required")
	}
	return nil
}
