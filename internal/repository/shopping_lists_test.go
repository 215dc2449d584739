package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/bac-dam-1991/shopping-list/internal/domain"
	"github.com/bac-dam-1991/shopping-list/internal/store"
	"github.com/bac-dam-1991/shopping-list/internal/store/badgerdb"
)

func newTestRepository(t *testing.T) *ShoppingLists {
	t.Helper()

	db, err := badgerdb.Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewShoppingLists(db, nil)
	require.NoError(t, repo.EnsureIndexes(context.Background()))
	return repo
}

func insert(t *testing.T, repo *ShoppingLists, name, sub string) *domain.ShoppingList {
	t.Helper()
	list, err := repo.InsertList(context.Background(), domain.NewShoppingList(name, sub))
	require.NoError(t, err)
	return list
}

func TestInsertList(t *testing.T) {
	repo := newTestRepository(t)

	list := insert(t, repo, "Groceries", "user-1")

	assert.Len(t, list.ID, 24)
	assert.Equal(t, "Groceries", list.Name)
	assert.Equal(t, "user-1", list.Sub)
	assert.NotNil(t, list.Items)
	assert.Empty(t, list.Items)
}

func TestInsertList_DuplicateNamePerOwner(t *testing.T) {
	repo := newTestRepository(t)
	insert(t, repo, "Groceries", "user-1")

	_, err := repo.InsertList(context.Background(), domain.NewShoppingList("Groceries", "user-1"))
	require.ErrorIs(t, err, store.ErrDuplicateKey)

	_, err = repo.InsertList(context.Background(), domain.NewShoppingList("Groceries", "user-2"))
	require.NoError(t, err, "another owner may reuse the name")
}

func TestFindAllLists_ScopedByOwner(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	insert(t, repo, "Groceries", "user-1")
	insert(t, repo, "Hardware", "user-1")
	insert(t, repo, "Pharmacy", "user-2")

	mine, err := repo.FindAllLists(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "Groceries", mine[0].Name)
	assert.Equal(t, "Hardware", mine[1].Name)

	all, err := repo.FindAllLists(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestFindListsByName_NormalizesUnicode(t *testing.T) {
	repo := newTestRepository(t)
	insert(t, repo, "Caf\u00e9", "user-1")

	// "e" followed by a combining acute accent is the decomposed form.
	found, err := repo.FindListsByName(context.Background(), "Cafe\u0301", "user-1")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = repo.FindListsByName(context.Background(), "caf\u00e9", "user-1")
	require.NoError(t, err)
	assert.Empty(t, found, "names compare case-sensitively")
}

func TestFindListByID(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	list := insert(t, repo, "Groceries", "user-1")

	found, err := repo.FindListByID(ctx, list.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, list.ID, found.ID)

	missing, err := repo.FindListByID(ctx, "63552a5d00ca2e59a40c1f53")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdateAndDeleteListByID(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	list := insert(t, repo, "Groceries", "user-1")

	updated, err := repo.UpdateListByID(ctx, list.ID, "Weekly shop")
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Weekly shop", updated.Name)

	deleted, err := repo.DeleteListByID(ctx, list.ID)
	require.NoError(t, err)
	require.NotNil(t, deleted)
	assert.Equal(t, "Weekly shop", deleted.Name)

	again, err := repo.DeleteListByID(ctx, list.ID)
	require.NoError(t, err)
	assert.Nil(t, again)

	none, err := repo.UpdateListByID(ctx, list.ID, "Other")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestItemLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	list := insert(t, repo, "Groceries", "user-1")

	qty := 2.0
	name := "Banana"
	item := domain.NewItem("63552a5d00ca2e59a40c1f53", domain.ItemPatch{Name: &name, Quantity: &qty})

	ok, err := repo.PushItem(ctx, list.ID, item)
	require.NoError(t, err)
	require.True(t, ok)

	stored, err := repo.GetItemInList(ctx, list.ID, item.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Banana", stored.Name)
	assert.Equal(t, 2.0, stored.Quantity)
	assert.Equal(t, domain.UnitPiece, stored.Unit)
	assert.Equal(t, int64(1), stored.Version)

	changed := *stored
	changed.Quantity = 0
	ok, err = repo.SetItem(ctx, list.ID, changed)
	require.NoError(t, err)
	require.True(t, ok)

	// The first write moved the version on, so the same token is now stale.
	ok, err = repo.SetItem(ctx, list.ID, changed)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err = repo.GetItemInList(ctx, list.ID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, stored.Quantity)
	assert.Equal(t, int64(2), stored.Version)

	ok, err = repo.PullItem(ctx, list.ID, changed)
	require.NoError(t, err)
	assert.False(t, ok, "stale version")

	ok, err = repo.PullItem(ctx, list.ID, *stored)
	require.NoError(t, err)
	assert.True(t, ok)

	gone, err := repo.GetItemInList(ctx, list.ID, item.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestPushItem_MissingList(t *testing.T) {
	repo := newTestRepository(t)

	ok, err := repo.PushItem(context.Background(), "63552a5d00ca2e59a40c1f53", domain.NewItem("aaaaaaaaaaaaaaaaaaaaaaaa", domain.ItemPatch{}))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetItem_UnversionedItem(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	list := insert(t, repo, "Groceries", "user-1")

	legacy := bson.M{"id": "63552a5d00ca2e59a40c1f54", "name": "Eggs", "quantity": 6.0, "unit": "box(es)", "status": "New"}
	ok, err := repo.db.UpdateOne(ctx, Collection, byID(list.ID), store.Update{"$push": bson.M{"items": legacy}})
	require.NoError(t, err)
	require.True(t, ok)

	stored, err := repo.GetItemInList(ctx, list.ID, "63552a5d00ca2e59a40c1f54")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Zero(t, stored.Version)

	stored.Status = domain.StatusPurchased
	ok, err = repo.SetItem(ctx, list.ID, *stored)
	require.NoError(t, err)
	require.True(t, ok)

	stored, err = repo.GetItemInList(ctx, list.ID, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPurchased, stored.Status)
	assert.Equal(t, int64(1), stored.Version)
}
