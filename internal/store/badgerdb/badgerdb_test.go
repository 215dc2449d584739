package badgerdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/bac-dam-1991/shopping-list/internal/store"
	"github.com/bac-dam-1991/shopping-list/internal/store/storetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAdapterConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Adapter {
		return newTestStore(t)
	})
}

func TestEnsureUniqueIndex_RejectsExistingDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for range 2 {
		_, err := s.InsertOne(ctx, "shopping-lists", store.Document{"name": "Groceries", "sub": "u", "items": bson.A{}})
		require.NoError(t, err)
	}

	err := s.EnsureUniqueIndex(ctx, "shopping-lists", store.UniqueIndex{Name: "sub_name_unique", Fields: []string{"sub", "name"}})
	require.ErrorIs(t, err, store.ErrDuplicateKey)

	// The failed index is not enforced afterwards.
	_, err = s.InsertOne(ctx, "shopping-lists", store.Document{"name": "Groceries", "sub": "u", "items": bson.A{}})
	assert.NoError(t, err)
}

func TestFind_InsertionOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	names := []string{"first", "second", "third", "fourth"}
	for _, n := range names {
		_, err := s.InsertOne(ctx, "shopping-lists", store.Document{"name": n})
		require.NoError(t, err)
	}

	docs, err := s.Find(ctx, "shopping-lists", store.Filter{})
	require.NoError(t, err)
	require.Len(t, docs, len(names))
	for i, n := range names {
		assert.Equal(t, n, docs[i]["name"])
	}
}

func TestPing_AfterClose(t *testing.T) {
	s, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Ping(context.Background()), store.ErrClosed)
}
