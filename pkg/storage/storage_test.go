package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbd54566975/tbdex-go/pkg/encryption"
)

func getDBImplementations(t *testing.T) []ServiceStorage {
	memory, err := NewStorage(Memory)
	require.NoError(t, err)

	bolt, err := NewStorage(Bolt, Option{ID: BoltDBFilePathOption, Option: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)

	server := miniredis.RunT(t)
	redis, err := NewStorage(Redis, Option{ID: RedisAddressOption, Option: server.Addr()})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = bolt.Close()
		_ = redis.Close()
	})

	key := make([]byte, 32)
	encrypted := NewEncryptedWrapper(
		NewMemoryDB(),
		encryption.NewXChaCha20Poly1305EncrypterWithKey(key),
		encryption.NewXChaCha20Poly1305EncrypterWithKey(key),
	)
	return []ServiceStorage{memory, bolt, redis, encrypted}
}

func TestDB(t *testing.T) {
	for _, db := range getDBImplementations(t) {
		t.Run(fmt.Sprintf("%T", db), func(tt *testing.T) {
			ctx := context.Background()
			namespace := "keys"

			err := db.Write(ctx, "", "k", []byte("v"))
			assert.ErrorContains(tt, err, "namespace required")

			got, err := db.Read(ctx, namespace, "missing")
			assert.NoError(tt, err)
			assert.Nil(tt, got)

			require.NoError(tt, db.Write(ctx, namespace, "alias-1", []byte("key one")))
			got, err = db.Read(ctx, namespace, "alias-1")
			assert.NoError(tt, err)
			assert.Equal(tt, []byte("key one"), got)

			exists, err := db.Exists(ctx, namespace, "alias-1")
			assert.NoError(tt, err)
			assert.True(tt, exists)

			written, err := db.WriteIfAbsent(ctx, namespace, "alias-1", []byte("other"))
			assert.NoError(tt, err)
			assert.False(tt, written)
			written, err = db.WriteIfAbsent(ctx, namespace, "alias-2", []byte("key two"))
			assert.NoError(tt, err)
			assert.True(tt, written)

			all, err := db.ReadAll(ctx, namespace)
			assert.NoError(tt, err)
			assert.Equal(tt, map[string][]byte{"alias-1": []byte("key one"), "alias-2": []byte("key two")}, all)

			keys, err := db.ReadAllKeys(ctx, namespace)
			assert.NoError(tt, err)
			assert.ElementsMatch(tt, []string{"alias-1", "alias-2"}, keys)

			require.NoError(tt, db.Delete(ctx, namespace, "alias-1"))
			got, err = db.Read(ctx, namespace, "alias-1")
			assert.NoError(tt, err)
			assert.Nil(tt, got)

			require.NoError(tt, db.DeleteNamespace(ctx, namespace))
			assert.Error(tt, db.DeleteNamespace(ctx, namespace))
		})
	}
}

func TestMemoryDBConcurrentWriteIfAbsent(t *testing.T) {
	db := NewMemoryDB()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			written, err := db.WriteIfAbsent(ctx, "ns", "same", []byte{byte(i)})
			assert.NoError(t, err)
			if written {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestStoredValuesAreCopied(t *testing.T) {
	db := NewMemoryDB()
	ctx := context.Background()
	value := []byte("abc")
	require.NoError(t, db.Write(ctx, "ns", "k", value))
	value[0] = 'z'

	got, err := db.Read(ctx, "ns", "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestNewStorage(t *testing.T) {
	t.Run("unsupported type", func(tt *testing.T) {
		_, err := NewStorage("sqlite")
		assert.ErrorContains(tt, err, "unsupported storage type")
	})

	t.Run("redis requires an address", func(tt *testing.T) {
		_, err := NewStorage(Redis)
		assert.Error(tt, err)
	})

	t.Run("options must be strings", func(tt *testing.T) {
		_, err := NewStorage(Bolt, Option{ID: BoltDBFilePathOption, Option: 42})
		assert.Error(tt, err)
	})

	t.Run("unreachable redis", func(tt *testing.T) {
		server := miniredis.RunT(tt)
		address := server.Addr()
		server.Close()
		_, err := NewStorage(Redis, Option{ID: RedisAddressOption, Option: address})
		assert.Error(tt, err)
	})
}

func TestBoltDBPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "keys.db")

	db, err := NewBoltDBWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, Bolt, db.Type())
	require.NoError(t, db.Write(ctx, "keys", "alias", []byte("secret")))
	require.NoError(t, db.Close())

	reopened, err := NewBoltDBWithFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	got, err := reopened.Read(ctx, "keys", "alias")
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), got)
}
