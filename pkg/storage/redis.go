package storage

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/extra/redisotel/v9"
	goredislib "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	RedisScanBatchSize = 1000
	redisKeySeparator  = "-"
)

// RedisDB is a ServiceStorage shared through a redis server. Keys are stored as "<namespace>-<key>".
type RedisDB struct {
	db *goredislib.Client
}

var _ ServiceStorage = (*RedisDB)(nil)

// NewRedisDB connects to the redis server at address and checks that it answers.
func NewRedisDB(address, password string) (*RedisDB, error) {
	client := goredislib.NewClient(&goredislib.Options{
		Addr:     address,
		Password: password,
	})
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, errors.Wrap(err, "instrumenting redis client")
	}
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "connecting to redis<%s>", address)
	}
	return &RedisDB{db: client}, nil
}

func (b *RedisDB) Type() Type {
	return Redis
}

func (b *RedisDB) Close() error {
	return b.db.Close()
}

func (b *RedisDB) Write(ctx context.Context, namespace, key string, value []byte) error {
	if err := checkNamespaceAndKey(namespace, key); err != nil {
		return err
	}
	// Zero expiration means the key has no expiration time.
	return b.db.Set(ctx, getRedisKey(namespace, key), value, 0).Err()
}

func (b *RedisDB) WriteIfAbsent(ctx context.Context, namespace, key string, value []byte) (bool, error) {
	if err := checkNamespaceAndKey(namespace, key); err != nil {
		return false, err
	}
	return b.db.SetNX(ctx, getRedisKey(namespace, key), value, 0).Result()
}

func (b *RedisDB) Read(ctx context.Context, namespace, key string) ([]byte, error) {
	if key == "" {
		return nil, errors.New("key required")
	}
	value, err := b.db.Get(ctx, getRedisKey(namespace, key)).Bytes()
	if errors.Is(err, goredislib.Nil) {
		return nil, nil
	}
	return value, err
}

func (b *RedisDB) Exists(ctx context.Context, namespace, key string) (bool, error) {
	n, err := b.db.Exists(ctx, getRedisKey(namespace, key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (b *RedisDB) ReadAll(ctx context.Context, namespace string) (map[string][]byte, error) {
	redisKeys, err := b.scan(ctx, namespace)
	if err != nil {
		return nil, errors.Wrap(err, "read all keys error")
	}
	result := make(map[string][]byte, len(redisKeys))
	if len(redisKeys) == 0 {
		return result, nil
	}

	values, err := b.db.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "getting multiple keys")
	}
	if len(redisKeys) != len(values) {
		return nil, errors.New("key length does not match value length")
	}
	for i, val := range values {
		// deleted between the scan and the read
		if val == nil {
			continue
		}
		s, ok := val.(string)
		if !ok {
			return nil, errors.Errorf("unexpected value type %T", val)
		}
		result[strings.TrimPrefix(redisKeys[i], namespace+redisKeySeparator)] = []byte(s)
	}
	return result, nil
}

func (b *RedisDB) ReadAllKeys(ctx context.Context, namespace string) ([]string, error) {
	redisKeys, err := b.scan(ctx, namespace)
	if err != nil {
		return nil, errors.Wrap(err, "read all keys error")
	}
	keys := make([]string, 0, len(redisKeys))
	for _, k := range redisKeys {
		keys = append(keys, strings.TrimPrefix(k, namespace+redisKeySeparator))
	}
	return keys, nil
}

func (b *RedisDB) Delete(ctx context.Context, namespace, key string) error {
	if err := checkNamespaceAndKey(namespace, key); err != nil {
		return err
	}
	return b.db.Del(ctx, getRedisKey(namespace, key)).Err()
}

func (b *RedisDB) DeleteNamespace(ctx context.Context, namespace string) error {
	if namespace == "" {
		return errors.New("namespace required")
	}
	keys, err := b.scan(ctx, namespace)
	if err != nil {
		return errors.Wrap(err, "read all keys")
	}
	if len(keys) == 0 {
		return errors.Errorf("could not delete namespace<%s>", namespace)
	}
	logrus.Debugf("deleting %d keys in namespace<%s>", len(keys), namespace)
	return b.db.Del(ctx, keys...).Err()
}

// scan returns the redis keys of every entry in namespace
func (b *RedisDB) scan(ctx context.Context, namespace string) ([]string, error) {
	if namespace == "" {
		return nil, nil
	}
	var cursor uint64
	allKeys := make([]string, 0)
	for {
		keys, nextCursor, err := b.db.Scan(ctx, cursor, getRedisKey(namespace, "*"), RedisScanBatchSize).Result()
		if err != nil {
			return nil, errors.Wrap(err, "scan error")
		}
		allKeys = append(allKeys, keys...)
		if nextCursor == 0 {
			break
		}
		cursor = nextCursor
	}
	return allKeys, nil
}

func getRedisKey(namespace, key string) string {
	return namespace + redisKeySeparator + key
}
