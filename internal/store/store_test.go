package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type counter struct {
	Value int `json:"value"`
}

func newGormStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "store.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Document{}))
	store, err := NewGormStore(GormStoreConfig{
		Database: db,
		Clock:    func() time.Time { return time.Unix(1700000000, 0) },
		Logger:   zap.NewNop(),
	})
	require.NoError(t, err)
	return store
}

func storesUnderTest(t *testing.T) map[string]Store {
	return map[string]Store{
		"gorm":   newGormStore(t),
		"memory": NewMemoryStore(),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Load(ctx, "boards", "c1")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Save(ctx, "boards", "c1", []byte(`{"a":1}`)))
			require.NoError(t, s.Save(ctx, "boards", "c1", []byte(`{"a":2}`)))
			require.NoError(t, s.Save(ctx, "boards", "c0", []byte(`{}`)))
			require.NoError(t, s.Save(ctx, "other", "c9", []byte(`{}`)))

			payload, err := s.Load(ctx, "boards", "c1")
			require.NoError(t, err)
			require.JSONEq(t, `{"a":2}`, string(payload))

			keys, err := s.Keys(ctx, "boards")
			require.NoError(t, err)
			require.Equal(t, []string{"c0", "c1"}, keys)

			require.NoError(t, s.Delete(ctx, "boards", "c1"))
			_, err = s.Load(ctx, "boards", "c1")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreRejectsEmptyKey(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Save(context.Background(), "boards", " ", []byte(`{}`))
			require.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

func TestNewGormStoreRequiresDatabase(t *testing.T) {
	_, err := NewGormStore(GormStoreConfig{})
	require.Error(t, err)
}

func TestCollectionUpdate(t *testing.T) {
	ctx := context.Background()
	collection := NewCollection[counter](NewMemoryStore(), "counters")

	value, err := collection.Update(ctx, "k", func(c *counter, exists bool) error {
		require.False(t, exists)
		c.Value = 1
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, value.Value)

	_, err = collection.Update(ctx, "k", func(c *counter, exists bool) error {
		require.True(t, exists)
		c.Value = 99
		return ErrNoChange
	})
	require.NoError(t, err)

	failure := errors.New("boom")
	_, err = collection.Update(ctx, "k", func(c *counter, _ bool) error {
		c.Value = 50
		return failure
	})
	require.ErrorIs(t, err, failure)

	stored, err := collection.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, 1, stored.Value)
}

func TestCollectionUpdateSerializesWriters(t *testing.T) {
	ctx := context.Background()
	collection := NewCollection[counter](NewMemoryStore(), "counters")

	const writers = 32
	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := collection.Update(ctx, "shared", func(c *counter, _ bool) error {
				c.Value++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := collection.Get(ctx, "shared")
	require.NoError(t, err)
	require.Equal(t, writers, stored.Value)
	require.Empty(t, collection.locks.locks)
}
