// Package storetest holds the behavioral suite every store.Adapter backend
// must pass.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/bac-dam-1991/shopping-list/internal/store"
)

const collection = "shopping-lists"

var nameIndex = store.UniqueIndex{Name: "sub_name_unique", Fields: []string{"sub", "name"}}

// Factory returns a fresh, empty adapter. Cleanup is the factory's job.
type Factory func(t *testing.T) store.Adapter

// Run executes the suite against adapters built by newAdapter.
func Run(t *testing.T, newAdapter Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, a store.Adapter)
	}{
		{"InsertAssignsID", testInsertAssignsID},
		{"FindOneAbsentIsNil", testFindOneAbsent},
		{"FindByFields", testFindByFields},
		{"FindOneAndUpdateReturnsAfter", testFindOneAndUpdate},
		{"FindOneAndDeleteReturnsPrior", testFindOneAndDelete},
		{"UpdateOnePushAndPull", testUpdateOnePushPull},
		{"PositionalSetWithElemMatch", testPositionalSet},
		{"FindNested", testFindNested},
		{"UniqueIndex", testUniqueIndex},
		{"MalformedIDNeverMatches", testMalformedID},
		{"CanceledContext", testCanceledContext},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newAdapter(t))
		})
	}
}

func insertList(t *testing.T, a store.Adapter, name, sub string, items ...bson.M) store.Document {
	t.Helper()
	arr := bson.A{}
	for _, it := range items {
		arr = append(arr, it)
	}
	doc, err := a.InsertOne(context.Background(), collection, store.Document{"name": name, "sub": sub, "items": arr})
	require.NoError(t, err)
	return doc
}

func idOf(t *testing.T, doc store.Document) string {
	t.Helper()
	id, ok := doc[store.IDField].(string)
	require.True(t, ok, "document id must be a string, got %T", doc[store.IDField])
	require.Len(t, id, 24)
	return id
}

func testInsertAssignsID(t *testing.T, a store.Adapter) {
	ctx := context.Background()
	input := store.Document{"name": "Groceries", "sub": "user-1", "items": bson.A{}}

	doc, err := a.InsertOne(ctx, collection, input)
	require.NoError(t, err)

	id := idOf(t, doc)
	assert.Equal(t, "Groceries", doc["name"])
	assert.NotContains(t, input, store.IDField, "input is not mutated")

	found, err := a.FindOne(ctx, collection, store.Filter{"id": id})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, id, found["id"])
	assert.Equal(t, "Groceries", found["name"])
	assert.NotContains(t, found, "_id")

	other := insertList(t, a, "Hardware", "user-1")
	assert.NotEqual(t, id, idOf(t, other))
}

func testFindOneAbsent(t *testing.T, a store.Adapter) {
	doc, err := a.FindOne(context.Background(), collection, store.Filter{"name": "nothing"})
	require.NoError(t, err)
	assert.Nil(t, doc)

	docs, err := a.Find(context.Background(), collection, store.Filter{"name": "nothing"})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func testFindByFields(t *testing.T, a store.Adapter) {
	ctx := context.Background()
	insertList(t, a, "Groceries", "user-1")
	insertList(t, a, "Hardware", "user-1")
	insertList(t, a, "Groceries", "user-2")

	all, err := a.Find(ctx, collection, store.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := a.Find(ctx, collection, store.Filter{"sub": "user-1"})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	named, err := a.Find(ctx, collection, store.Filter{"sub": "user-2", "name": "Groceries"})
	require.NoError(t, err)
	require.Len(t, named, 1)
	assert.Equal(t, "user-2", named[0]["sub"])
}

func testFindOneAndUpdate(t *testing.T, a store.Adapter) {
	ctx := context.Background()
	id := idOf(t, insertList(t, a, "Groceries", "user-1"))

	after, err := a.FindOneAndUpdate(ctx, collection, store.Filter{"id": id}, store.Update{"$set": bson.M{"name": "Weekly shop"}})
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.Equal(t, "Weekly shop", after["name"])
	assert.Equal(t, id, after["id"])

	missing, err := a.FindOneAndUpdate(ctx, collection, store.Filter{"id": "aaaaaaaaaaaaaaaaaaaaaaaa"}, store.Update{"$set": bson.M{"name": "x"}})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testFindOneAndDelete(t *testing.T, a store.Adapter) {
	ctx := context.Background()
	id := idOf(t, insertList(t, a, "Groceries", "user-1"))

	prior, err := a.FindOneAndDelete(ctx, collection, store.Filter{"id": id})
	require.NoError(t, err)
	require.NotNil(t, prior)
	assert.Equal(t, "Groceries", prior["name"])

	gone, err := a.FindOne(ctx, collection, store.Filter{"id": id})
	require.NoError(t, err)
	assert.Nil(t, gone)

	again, err := a.FindOneAndDelete(ctx, collection, store.Filter{"id": id})
	require.NoError(t, err)
	assert.Nil(t, again)
}

func testUpdateOnePushPull(t *testing.T, a store.Adapter) {
	ctx := context.Background()
	id := idOf(t, insertList(t, a, "Groceries", "user-1"))
	item := bson.M{"id": "63552a5d00ca2e59a40c1f53", "name": "Banana", "quantity": 2.0, "version": int64(1)}

	ok, err := a.UpdateOne(ctx, collection, store.Filter{"id": id}, store.Update{"$push": bson.M{"items": item}})
	require.NoError(t, err)
	assert.True(t, ok)

	doc, err := a.FindOne(ctx, collection, store.Filter{"id": id})
	require.NoError(t, err)
	assert.Len(t, doc["items"], 1)

	ok, err = a.UpdateOne(ctx, collection, store.Filter{"id": id}, store.Update{"$pull": bson.M{"items": bson.M{"id": "63552a5d00ca2e59a40c1f53", "version": int64(9)}}})
	require.NoError(t, err)
	assert.False(t, ok, "stale version pulls nothing")

	ok, err = a.UpdateOne(ctx, collection, store.Filter{"id": id}, store.Update{"$pull": bson.M{"items": bson.M{"id": "63552a5d00ca2e59a40c1f53", "version": int64(1)}}})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.UpdateOne(ctx, collection, store.Filter{"id": "bbbbbbbbbbbbbbbbbbbbbbbb"}, store.Update{"$push": bson.M{"items": item}})
	require.NoError(t, err)
	assert.False(t, ok)
}

func testPositionalSet(t *testing.T, a store.Adapter) {
	ctx := context.Background()
	id := idOf(t, insertList(t, a, "Groceries", "user-1",
		bson.M{"id": "i1", "name": "Banana", "quantity": 2.0, "version": int64(1)},
		bson.M{"id": "i2", "name": "Milk", "quantity": 1.0, "version": int64(1)},
	))

	filter := store.Filter{"id": id, "items": bson.M{"$elemMatch": bson.M{"id": "i2", "version": int64(1)}}}
	update := store.Update{"$set": bson.M{"items.$": bson.M{"id": "i2", "name": "Milk", "quantity": 0.0, "version": int64(2)}}}

	ok, err := a.UpdateOne(ctx, collection, filter, update)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.UpdateOne(ctx, collection, filter, update)
	require.NoError(t, err)
	assert.False(t, ok, "the version token moved on")

	item, err := a.FindNested(ctx, collection, store.Filter{"id": id}, "items", store.Filter{"id": "i2"})
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.True(t, store.Equal(0.0, item["quantity"]))
	assert.True(t, store.Equal(int64(2), item["version"]))

	first, err := a.FindNested(ctx, collection, store.Filter{"id": id}, "items", store.Filter{"id": "i1"})
	require.NoError(t, err)
	assert.Equal(t, "Banana", first["name"])
}

func testFindNested(t *testing.T, a store.Adapter) {
	ctx := context.Background()
	id := idOf(t, insertList(t, a, "Groceries", "user-1",
		bson.M{"id": "i1", "name": "Banana", "quantity": 2.0},
	))

	item, err := a.FindNested(ctx, collection, store.Filter{"id": id}, "items", store.Filter{"id": "i1"})
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "Banana", item["name"])

	none, err := a.FindNested(ctx, collection, store.Filter{"id": id}, "items", store.Filter{"id": "i9"})
	require.NoError(t, err)
	assert.Nil(t, none)

	noList, err := a.FindNested(ctx, collection, store.Filter{"id": "cccccccccccccccccccccccc"}, "items", store.Filter{"id": "i1"})
	require.NoError(t, err)
	assert.Nil(t, noList)
}

func testUniqueIndex(t *testing.T, a store.Adapter) {
	ctx := context.Background()
	require.NoError(t, a.EnsureUniqueIndex(ctx, collection, nameIndex))
	require.NoError(t, a.EnsureUniqueIndex(ctx, collection, nameIndex), "idempotent")

	first := insertList(t, a, "Groceries", "user-1")
	insertList(t, a, "Groceries", "user-2")
	hardware := insertList(t, a, "Hardware", "user-1")

	_, err := a.InsertOne(ctx, collection, store.Document{"name": "Groceries", "sub": "user-1", "items": bson.A{}})
	require.ErrorIs(t, err, store.ErrDuplicateKey)

	_, err = a.FindOneAndUpdate(ctx, collection, store.Filter{"id": idOf(t, hardware)}, store.Update{"$set": bson.M{"name": "Groceries"}})
	require.ErrorIs(t, err, store.ErrDuplicateKey)

	// Rewriting a document's own key is not a conflict.
	same, err := a.FindOneAndUpdate(ctx, collection, store.Filter{"id": idOf(t, first)}, store.Update{"$set": bson.M{"name": "Groceries"}})
	require.NoError(t, err)
	require.NotNil(t, same)

	_, err = a.FindOneAndDelete(ctx, collection, store.Filter{"id": idOf(t, first)})
	require.NoError(t, err)
	insertList(t, a, "Groceries", "user-1")
}

func testMalformedID(t *testing.T, a store.Adapter) {
	ctx := context.Background()
	insertList(t, a, "Groceries", "user-1")

	doc, err := a.FindOne(ctx, collection, store.Filter{"id": "not-an-id"})
	require.NoError(t, err)
	assert.Nil(t, doc)

	ok, err := a.UpdateOne(ctx, collection, store.Filter{"id": "not-an-id"}, store.Update{"$set": bson.M{"name": "x"}})
	require.NoError(t, err)
	assert.False(t, ok)
}

func testCanceledContext(t *testing.T, a store.Adapter) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Find(ctx, collection, store.Filter{})
	assert.ErrorIs(t, err, context.Canceled)
}
