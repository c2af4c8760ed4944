package storage

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// MemoryDB is an in memory implementation of ServiceStorage that is safe for concurrent use. Inserts and reads of a
// single key are atomic; there are no cross-key transactions.
type MemoryDB struct {
	maps sync.Map
}

var _ ServiceStorage = (*MemoryDB)(nil)

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{}
}

func (m *MemoryDB) Type() Type {
	return Memory
}

func (m *MemoryDB) Close() error {
	return nil
}

func (m *MemoryDB) namespace(namespace string) *sync.Map {
	b, _ := m.maps.LoadOrStore(namespace, &sync.Map{})
	return b.(*sync.Map)
}

func (m *MemoryDB) Write(_ context.Context, namespace, key string, value []byte) error {
	if namespace == "" {
		return errors.New("namespace required")
	}
	if key == "" {
		return errors.New("key required")
	}
	m.namespace(namespace).Store(key, copyBytes(value))
	return nil
}

func (m *MemoryDB) WriteIfAbsent(_ context.Context, namespace, key string, value []byte) (bool, error) {
	if namespace == "" {
		return false, errors.New("namespace required")
	}
	if key == "" {
		return false, errors.New("key required")
	}
	_, loaded := m.namespace(namespace).LoadOrStore(key, copyBytes(value))
	return !loaded, nil
}

func (m *MemoryDB) Read(_ context.Context, namespace, key string) ([]byte, error) {
	if key == "" {
		return nil, errors.New("key required")
	}
	b, ok := m.maps.Load(namespace)
	if !ok {
		return nil, nil
	}
	v, ok := b.(*sync.Map).Load(key)
	if !ok {
		return nil, nil
	}
	return copyBytes(v.([]byte)), nil
}

func (m *MemoryDB) Exists(ctx context.Context, namespace, key string) (bool, error) {
	v, err := m.Read(ctx, namespace, key)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

func (m *MemoryDB) ReadAll(_ context.Context, namespace string) (map[string][]byte, error) {
	if namespace == "" {
		return nil, nil
	}
	r := make(map[string][]byte)
	m.namespace(namespace).Range(func(key, value any) bool {
		r[key.(string)] = copyBytes(value.([]byte))
		return true
	})
	return r, nil
}

func (m *MemoryDB) ReadAllKeys(_ context.Context, namespace string) ([]string, error) {
	if namespace == "" {
		return nil, nil
	}
	r := make([]string, 0, 10)
	m.namespace(namespace).Range(func(key, _ any) bool {
		r = append(r, key.(string))
		return true
	})
	return r, nil
}

func (m *MemoryDB) Delete(_ context.Context, namespace, key string) error {
	if namespace == "" {
		return errors.New("namespace required")
	}
	if key == "" {
		return errors.New("key required")
	}
	b, ok := m.maps.Load(namespace)
	if !ok {
		return errors.Errorf("namespace<%s> does not exist", namespace)
	}
	b.(*sync.Map).Delete(key)
	return nil
}

func (m *MemoryDB) DeleteNamespace(_ context.Context, namespace string) error {
	if namespace == "" {
		return errors.New("namespace required")
	}
	if _, loaded := m.maps.LoadAndDelete(namespace); !loaded {
		return errors.Errorf("could not delete namespace<%s>", namespace)
	}
	return nil
}

// copyBytes keeps callers from mutating stored values through shared slices.
func copyBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return append([]byte(nil), b...)
}
