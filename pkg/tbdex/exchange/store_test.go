package exchange

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbd54566975/tbdex-go/pkg/storage"
	"github.com/tbd54566975/tbdex-go/pkg/tbdex"
)

func getStores(t *testing.T) []*Store {
	memory, err := storage.NewStorage(storage.Memory)
	require.NoError(t, err)

	bolt, err := storage.NewStorage(storage.Bolt,
		storage.Option{ID: storage.BoltDBFilePathOption, Option: filepath.Join(t.TempDir(), "exchanges.db")})
	require.NoError(t, err)

	server := miniredis.RunT(t)
	redis, err := storage.NewStorage(storage.Redis, storage.Option{ID: storage.RedisAddressOption, Option: server.Addr()})
	require.NoError(t, err)

	var stores []*Store
	for _, db := range []storage.ServiceStorage{memory, bolt, redis} {
		s, err := NewStore(db)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		stores = append(stores, s)
	}
	return stores
}

func TestNewStore(t *testing.T) {
	_, err := NewStore(nil)
	assert.Error(t, err)
}

func TestStore(t *testing.T) {
	p := newParties(t)
	ctx := context.Background()

	for _, s := range getStores(t) {
		s := s
		t.Run(fmt.Sprintf("%T", s.db), func(tt *testing.T) {
			opening := rfq(tt, p)
			ex, err := s.Add(ctx, opening)
			require.NoError(tt, err)
			assert.Equal(tt, opening.Metadata.ID, ex.ID)

			q := quote(tt, p, ex.ID)
			ex, err = s.Add(ctx, q)
			require.NoError(tt, err)
			assert.Len(tt, ex.Messages, 2)

			stored, err := s.Get(ctx, opening.Metadata.ID)
			require.NoError(tt, err)
			require.Len(tt, stored.Messages, 2)
			assert.Empty(tt, cmp.Diff(opening, stored.RFQ()))
			assert.Empty(tt, cmp.Diff(q, stored.Latest()))
			assert.ElementsMatch(tt, []tbdex.MessageKind{tbdex.KindOrder, tbdex.KindClose}, stored.NextKinds())

			_, err = s.Add(ctx, q)
			assert.ErrorIs(tt, err, ErrDuplicate)

			_, err = s.Add(ctx, signed(tt, p.pfi, p.customer, ex.ID, tbdex.OrderStatus{OrderStatus: "EARLY"}))
			assert.ErrorIs(tt, err, ErrInvalidNext)

			stored, err = s.Get(ctx, opening.Metadata.ID)
			require.NoError(tt, err)
			assert.Len(tt, stored.Messages, 2)

			ids, err := s.List(ctx)
			require.NoError(tt, err)
			assert.Equal(tt, []string{opening.Metadata.ID}, ids)
		})
	}
}

func TestStoreRejects(t *testing.T) {
	p := newParties(t)
	ctx := context.Background()
	s, err := NewStore(storage.NewMemoryDB())
	require.NoError(t, err)

	t.Run("unsigned", func(tt *testing.T) {
		m := rfq(tt, p)
		m.Signature = ""
		_, err := s.Add(ctx, m)
		assert.ErrorIs(tt, err, ErrUnsigned)
	})

	t.Run("unknown exchange", func(tt *testing.T) {
		_, err := s.Add(ctx, quote(tt, p, "rfq_unknown"))
		assert.ErrorIs(tt, err, ErrNotFound)

		_, err = s.Get(ctx, "rfq_unknown")
		assert.ErrorIs(tt, err, ErrNotFound)

		_, err = s.Get(ctx, "")
		assert.ErrorIs(tt, err, ErrNotFound)
	})

	t.Run("nil", func(tt *testing.T) {
		_, err := s.Add(ctx, nil)
		assert.Error(tt, err)
	})

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
