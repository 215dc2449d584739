package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bac-dam-1991/shopping-list/internal/domain"
	"github.com/bac-dam-1991/shopping-list/internal/service"
)

const missingID = "63552a5d00ca2e59a40c1f53"

// createList creates a list through the API and returns it.
func (ts *testServer) createList(t *testing.T, name string) domain.ShoppingList {
	t.Helper()
	resp := ts.api.Post(BasePath, aliceToken, map[string]any{"name": name})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return decode[domain.ShoppingList](t, resp.Body.Bytes())
}

// addItem adds an item through the API and returns it.
func (ts *testServer) addItem(t *testing.T, listID string, body map[string]any) domain.ShoppingItem {
	t.Helper()
	resp := ts.api.Post(BasePath+"/"+listID+"/items/add", aliceToken, body)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return decode[domain.ShoppingItem](t, resp.Body.Bytes())
}

func banana(quantity float64) map[string]any {
	return map[string]any{"name": "Banana", "status": "New", "quantity": quantity, "unit": "piece(s)"}
}

func TestShoppingLists_CreateGetRoundTrip(t *testing.T) {
	ts := setupTestServer(t)

	created := ts.createList(t, "Groceries")
	assert.Len(t, created.ID, 24)
	assert.Equal(t, "Groceries", created.Name)
	assert.Equal(t, "auth0|alice", created.Sub)
	assert.NotNil(t, created.Items)
	assert.Empty(t, created.Items)

	resp := ts.api.Get(BasePath+"/"+created.ID, aliceToken)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, created, decode[domain.ShoppingList](t, resp.Body.Bytes()))
	assert.Contains(t, resp.Body.String(), `"items":[]`)
}

func TestShoppingLists_ListIsScopedToCaller(t *testing.T) {
	ts := setupTestServer(t)
	ts.createList(t, "Groceries")
	ts.createList(t, "Hardware")

	resp := ts.api.Get(BasePath, aliceToken)
	require.Equal(t, http.StatusOK, resp.Code)
	lists := decode[[]domain.ShoppingList](t, resp.Body.Bytes())
	require.Len(t, lists, 2)
	assert.Equal(t, "Groceries", lists[0].Name)
	assert.Equal(t, "Hardware", lists[1].Name)

	resp = ts.api.Get(BasePath, bobToken)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `[]`, resp.Body.String())
}

func TestShoppingLists_CreateDuplicate(t *testing.T) {
	ts := setupTestServer(t)
	ts.createList(t, "Groceries")

	resp := ts.api.Post(BasePath, aliceToken, map[string]any{"name": "Groceries"})
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "Shopping list with the same name already exists.", errorMessage(t, resp.Body.Bytes()))

	// Another owner may use the same name.
	resp = ts.api.Post(BasePath, bobToken, map[string]any{"name": "Groceries"})
	assert.Equal(t, http.StatusCreated, resp.Code)
}

func TestShoppingLists_CreateValidation(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name string
		body any
		want string
	}{
		{"missing name", map[string]any{}, "Shopping list name is required."},
		{"empty name", map[string]any{"name": ""}, "Shopping list name is required."},
		{"short name", map[string]any{"name": "A"}, "Shopping list name needs to be at least 2 characters long."},
		{"long name", map[string]any{"name": strings.Repeat("x", 51)}, "Shopping list name cannot be more than 50 characters long."},
		{"malformed", strings.NewReader(`{"name":`), "Request body must be valid JSON."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post(BasePath, aliceToken, tt.body)
			assert.Equal(t, http.StatusConflict, resp.Code)
			assert.Equal(t, tt.want, errorMessage(t, resp.Body.Bytes()))
		})
	}
}

func TestShoppingLists_GetInvalidAndMissing(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get(BasePath+"/abc", aliceToken)
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "Shopping list Id needs to be 24 characters long.", errorMessage(t, resp.Body.Bytes()))

	resp = ts.api.Get(BasePath+"/"+missingID, aliceToken)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "Shopping list does not exist.", errorMessage(t, resp.Body.Bytes()))
}

func TestShoppingLists_Rename(t *testing.T) {
	ts := setupTestServer(t)
	groceries := ts.createList(t, "Groceries")
	ts.createList(t, "Hardware")

	resp := ts.api.Put(BasePath+"/"+groceries.ID, aliceToken, map[string]any{"name": "Hardware"})
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "Shopping list name already exists", errorMessage(t, resp.Body.Bytes()))

	resp = ts.api.Put(BasePath+"/"+groceries.ID, aliceToken, map[string]any{"name": "Weekly shop"})
	require.Equal(t, http.StatusOK, resp.Code)
	renamed := decode[domain.ShoppingList](t, resp.Body.Bytes())
	assert.Equal(t, groceries.ID, renamed.ID)
	assert.Equal(t, "Weekly shop", renamed.Name)

	// Renaming to the current name is allowed.
	resp = ts.api.Put(BasePath+"/"+groceries.ID, aliceToken, map[string]any{"name": "Weekly shop"})
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Put(BasePath+"/"+missingID, aliceToken, map[string]any{"name": "Anything"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "Unable to update shopping list", errorMessage(t, resp.Body.Bytes()))
}

func TestShoppingLists_RenameChecksIDBeforeBody(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Put(BasePath+"/short", aliceToken, map[string]any{"name": "A"})
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "Shopping list Id needs to be 24 characters long.", errorMessage(t, resp.Body.Bytes()))
}

func TestShoppingLists_Delete(t *testing.T) {
	ts := setupTestServer(t)
	list := ts.createList(t, "Groceries")
	ts.addItem(t, list.ID, banana(2))

	resp := ts.api.Delete(BasePath+"/"+list.ID, aliceToken)
	require.Equal(t, http.StatusOK, resp.Code)
	deleted := decode[domain.ShoppingList](t, resp.Body.Bytes())
	assert.Equal(t, list.ID, deleted.ID)
	require.Len(t, deleted.Items, 1)

	resp = ts.api.Delete(BasePath+"/"+list.ID, aliceToken)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "Unable to delete shopping list", errorMessage(t, resp.Body.Bytes()))
}

func TestShoppingItems_AddAndMerge(t *testing.T) {
	ts := setupTestServer(t)
	list := ts.createList(t, "Groceries")

	first := ts.addItem(t, list.ID, banana(2))
	assert.Len(t, first.ID, 24)
	assert.Equal(t, "Banana", first.Name)
	assert.Equal(t, 2.0, first.Quantity)
	assert.Equal(t, domain.UnitPiece, first.Unit)
	assert.Equal(t, domain.StatusNew, first.Status)

	second := ts.addItem(t, list.ID, map[string]any{"name": "Banana", "status": "Updated", "quantity": 3, "unit": "piece(s)"})
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 5.0, second.Quantity)
	assert.Equal(t, domain.StatusUpdated, second.Status)

	resp := ts.api.Get(BasePath+"/"+list.ID, aliceToken)
	require.Equal(t, http.StatusOK, resp.Code)
	stored := decode[domain.ShoppingList](t, resp.Body.Bytes())
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 5.0, stored.Items[0].Quantity)
	assert.NotContains(t, resp.Body.String(), "version")
}

func TestShoppingItems_AddToMissingList(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post(BasePath+"/"+missingID+"/items/add", aliceToken, banana(1))
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "Shopping list does not exist", errorMessage(t, resp.Body.Bytes()))
}

func TestShoppingItems_AddValidation(t *testing.T) {
	ts := setupTestServer(t)
	list := ts.createList(t, "Groceries")
	path := BasePath + "/" + list.ID + "/items/add"

	tests := []struct {
		name string
		body any
		want string
	}{
		{"empty body", map[string]any{}, "Item name is required."},
		{"name reported first", map[string]any{"name": "ab", "status": "Bad", "quantity": -1}, "Item name needs to be at least 3 characters long."},
		{"missing status", map[string]any{"name": "Banana"}, "Item status is required."},
		{"bad status", map[string]any{"name": "Banana", "status": "Done"}, "Invalid status. Valid statuses are [New, Updated, Purchased]."},
		{"missing quantity", map[string]any{"name": "Banana", "status": "New"}, "Item quantity is required."},
		{"negative quantity", map[string]any{"name": "Banana", "status": "New", "quantity": -1}, "Quantity cannot be less than 0."},
		{"string quantity", map[string]any{"name": "Banana", "status": "New", "quantity": "two"}, "Quantity must be a number."},
		{"missing name before string quantity", map[string]any{"quantity": "lots", "status": "New", "unit": "piece(s)"}, "Item name is required."},
		{"null body", strings.NewReader(`null`), "Item name is required."},
		{"malformed", strings.NewReader(`{"name":"Banana",`), "Request body must be valid JSON."},
		{"missing unit", map[string]any{"name": "Banana", "status": "New", "quantity": 1}, "Item unit is required."},
		{"bad unit", map[string]any{"name": "Banana", "status": "New", "quantity": 1, "unit": "crate"},
			"Invalid unit. Valid units are [piece(s), kilogram(s), litre(s), box(es), millilitre(s), milligram(s), carton(s), bottle(s)]."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post(path, aliceToken, tt.body)
			assert.Equal(t, http.StatusConflict, resp.Code)
			assert.Equal(t, tt.want, errorMessage(t, resp.Body.Bytes()))
		})
	}
}

func TestShoppingItems_Update(t *testing.T) {
	ts := setupTestServer(t)
	list := ts.createList(t, "Groceries")
	item := ts.addItem(t, list.ID, banana(4))
	path := BasePath + "/" + list.ID + "/items/" + item.ID + "/update"

	// Zero is a supplied value, not an absent one.
	resp := ts.api.Put(path, aliceToken, map[string]any{"quantity": 0})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	updated := decode[domain.ShoppingItem](t, resp.Body.Bytes())
	assert.Equal(t, 0.0, updated.Quantity)
	assert.Equal(t, "Banana", updated.Name)
	assert.Equal(t, domain.StatusNew, updated.Status)

	resp = ts.api.Put(path, aliceToken, map[string]any{"status": "Purchased", "unit": "box(es)"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	updated = decode[domain.ShoppingItem](t, resp.Body.Bytes())
	assert.Equal(t, domain.StatusPurchased, updated.Status)
	assert.Equal(t, domain.UnitBox, updated.Unit)

	resp = ts.api.Put(path, aliceToken, map[string]any{"name": "ab"})
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "Item name needs to be at least 3 characters long.", errorMessage(t, resp.Body.Bytes()))
}

func TestShoppingItems_UpdateIDsAndMissing(t *testing.T) {
	ts := setupTestServer(t)
	list := ts.createList(t, "Groceries")

	resp := ts.api.Put(BasePath+"/bad/items/"+missingID+"/update", aliceToken, map[string]any{})
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "Shopping list Id needs to be 24 characters long.", errorMessage(t, resp.Body.Bytes()))

	resp = ts.api.Put(BasePath+"/"+list.ID+"/items/bad/update", aliceToken, map[string]any{})
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "Item Id needs to be 24 characters long.", errorMessage(t, resp.Body.Bytes()))

	resp = ts.api.Put(BasePath+"/"+list.ID+"/items/"+missingID+"/update", aliceToken, map[string]any{"quantity": 1})
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "Item does not exist in shopping list", errorMessage(t, resp.Body.Bytes()))
}

func TestShoppingItems_Remove(t *testing.T) {
	ts := setupTestServer(t)
	list := ts.createList(t, "Groceries")
	item := ts.addItem(t, list.ID, banana(1))
	path := BasePath + "/" + list.ID + "/items/" + item.ID + "/delete"

	resp := ts.api.Put(path, aliceToken)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, item.ID, decode[domain.ShoppingItem](t, resp.Body.Bytes()).ID)

	resp = ts.api.Get(BasePath+"/"+list.ID, aliceToken)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, decode[domain.ShoppingList](t, resp.Body.Bytes()).Items)

	resp = ts.api.Put(path, aliceToken)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "Item does not exist in shopping list", errorMessage(t, resp.Body.Bytes()))
}

func TestShoppingLists_RequireAuthentication(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name   string
		header []any
	}{
		{"no header", nil},
		{"unknown token", []any{"Authorization: Bearer stolen"}},
		{"wrong scheme", []any{"Authorization: Basic alice-token"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Get(BasePath, tt.header...)
			assert.Equal(t, http.StatusUnauthorized, resp.Code)
			assert.Equal(t, "Authentication required", errorMessage(t, resp.Body.Bytes()))
		})
	}
}

// brokenRepo fails every lookup with an infrastructure error.
type brokenRepo struct {
	service.ListRepository
}

func (brokenRepo) FindAllLists(context.Context, string) ([]domain.ShoppingList, error) {
	return nil, errors.New("socket closed by peer")
}

func TestShoppingLists_UnknownErrorIsHidden(t *testing.T) {
	ts := setupTestServer(t, withRepository(func(repo service.ListRepository) service.ListRepository {
		return brokenRepo{ListRepository: repo}
	}))

	resp := ts.api.Get(BasePath, aliceToken)
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Equal(t, "An unknown error has occurred.", errorMessage(t, resp.Body.Bytes()))
	assert.NotContains(t, resp.Body.String(), "socket")
}
