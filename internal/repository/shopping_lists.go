// Package repository maps shopping lists and their items onto the document
// store.
package repository

import (
	"context"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/bac-dam-1991/shopping-list/internal/domain"
	"github.com/bac-dam-1991/shopping-list/internal/store"
)

// Collection holds one document per shopping list, items embedded.
const Collection = "shopping-lists"

// NameIndex keeps list names unique per owner.
var NameIndex = store.UniqueIndex{Name: "sub_name_unique", Fields: []string{"sub", "name"}}

// ShoppingLists is the list repository.
type ShoppingLists struct {
	db     store.Adapter
	logger *slog.Logger
}

// NewShoppingLists creates a repository over db.
func NewShoppingLists(db store.Adapter, logger *slog.Logger) *ShoppingLists {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ShoppingLists{db: db, logger: logger.With("component", "repository")}
}

// EnsureIndexes creates the indexes the repository relies on.
func (r *ShoppingLists) EnsureIndexes(ctx context.Context) error {
	if err := r.db.EnsureUniqueIndex(ctx, Collection, NameIndex); err != nil {
		r.logger.ErrorContext(ctx, "Unable to ensure shopping list indexes", "error", err.Error())
		return err
	}
	return nil
}

func ownerFilter(owner string) store.Filter {
	if owner == "" {
		return store.Filter{}
	}
	return store.Filter{"sub": owner}
}

func byID(id string) store.Filter {
	return store.Filter{store.IDField: id}
}

func decodeList(doc store.Document) (*domain.ShoppingList, error) {
	if doc == nil {
		return nil, nil
	}
	var list domain.ShoppingList
	if err := store.Decode(doc, &list); err != nil {
		return nil, err
	}
	list.EnsureItems()
	return &list, nil
}

func decodeLists(docs []store.Document) ([]domain.ShoppingList, error) {
	lists := make([]domain.ShoppingList, 0, len(docs))
	for _, doc := range docs {
		list, err := decodeList(doc)
		if err != nil {
			return nil, err
		}
		lists = append(lists, *list)
	}
	return lists, nil
}

// FindAllLists returns every list owned by owner, or every list when owner is empty.
func (r *ShoppingLists) FindAllLists(ctx context.Context, owner string) ([]domain.ShoppingList, error) {
	docs, err := r.db.Find(ctx, Collection, ownerFilter(owner))
	if err != nil {
		r.logger.ErrorContext(ctx, "Unable to find all shopping lists", "error", err.Error(), "owner", owner)
		return nil, err
	}
	return decodeLists(docs)
}

// FindListByID returns the list or nil when it does not exist.
func (r *ShoppingLists) FindListByID(ctx context.Context, id string) (*domain.ShoppingList, error) {
	doc, err := r.db.FindOne(ctx, Collection, byID(id))
	if err != nil {
		r.logger.ErrorContext(ctx, "Unable to find shopping list by Id", "error", err.Error(), "shopping_list_id", id)
		return nil, err
	}
	return decodeList(doc)
}

// FindListsByName returns the owner's lists with exactly this name.
func (r *ShoppingLists) FindListsByName(ctx context.Context, name, owner string) ([]domain.ShoppingList, error) {
	filter := ownerFilter(owner)
	filter["name"] = domain.NormalizeName(name)

	docs, err := r.db.Find(ctx, Collection, filter)
	if err != nil {
		r.logger.ErrorContext(ctx, "Unable to find shopping list by name", "error", err.Error(), "name", name, "owner", owner)
		return nil, err
	}
	return decodeLists(docs)
}

// InsertList stores a new list and returns it with its assigned id.
func (r *ShoppingLists) InsertList(ctx context.Context, list *domain.ShoppingList) (*domain.ShoppingList, error) {
	list.EnsureItems()
	doc, err := store.Encode(list)
	if err != nil {
		return nil, err
	}
	delete(doc, store.IDField)

	out, err := r.db.InsertOne(ctx, Collection, doc)
	if err != nil {
		r.logger.ErrorContext(ctx, "Unable to add new shopping list", "error", err.Error(), "name", list.Name, "owner", list.Sub)
		return nil, err
	}
	return decodeList(out)
}

// UpdateListByID renames a list and returns it after the update, or nil.
func (r *ShoppingLists) UpdateListByID(ctx context.Context, id, name string) (*domain.ShoppingList, error) {
	update := store.Update{"$set": bson.M{"name": domain.NormalizeName(name)}}

	doc, err := r.db.FindOneAndUpdate(ctx, Collection, byID(id), update)
	if err != nil {
		r.logger.ErrorContext(ctx, "Unable to update shopping list by Id", "error", err.Error(), "shopping_list_id", id, "name", name)
		return nil, err
	}
	return decodeList(doc)
}

// DeleteListByID removes a list and returns its prior contents, or nil.
func (r *ShoppingLists) DeleteListByID(ctx context.Context, id string) (*domain.ShoppingList, error) {
	doc, err := r.db.FindOneAndDelete(ctx, Collection, byID(id))
	if err != nil {
		r.logger.ErrorContext(ctx, "Unable to delete shopping list by Id", "error", err.Error(), "shopping_list_id", id)
		return nil, err
	}
	return decodeList(doc)
}

// PushItem appends item to the list. It reports false when the list is gone.
func (r *ShoppingLists) PushItem(ctx context.Context, listID string, item domain.ShoppingItem) (bool, error) {
	doc, err := store.Encode(item)
	if err != nil {
		return false, err
	}

	ok, err := r.db.UpdateOne(ctx, Collection, byID(listID), store.Update{"$push": bson.M{"items": doc}})
	if err != nil {
		r.logger.ErrorContext(ctx, "Unable to add item to shopping list", "error", err.Error(), "shopping_list_id", listID, "item_id", item.ID)
		return false, err
	}
	return ok, nil
}

// SetItem replaces the stored item with the same id, provided its version
// still equals item.Version. The stored copy gets the next version. It
// reports false when the item is gone or was changed in the meantime.
func (r *ShoppingLists) SetItem(ctx context.Context, listID string, item domain.ShoppingItem) (bool, error) {
	next := item
	next.Version = item.Version + 1
	doc, err := store.Encode(next)
	if err != nil {
		return false, err
	}

	filter := byID(listID)
	filter["items"] = bson.M{"$elemMatch": bson.M{"id": item.ID, "version": versionMatch(item.Version)}}

	ok, err := r.db.UpdateOne(ctx, Collection, filter, store.Update{"$set": bson.M{"items.$": doc}})
	if err != nil {
		r.logger.ErrorContext(ctx, "Unable to update item in shopping list", "error", err.Error(), "shopping_list_id", listID, "item_id", item.ID)
		return false, err
	}
	return ok, nil
}

// versionMatch matches a stored version. Items written before versions were
// tracked have no version field and decode as version 0.
func versionMatch(v int64) any {
	if v == 0 {
		return bson.M{"$in": bson.A{0, nil}}
	}
	return v
}

// PullItem removes the item with the same id and version. It reports false
// when the item is gone or was changed in the meantime.
func (r *ShoppingLists) PullItem(ctx context.Context, listID string, item domain.ShoppingItem) (bool, error) {
	update := store.Update{"$pull": bson.M{"items": bson.M{"id": item.ID, "version": versionMatch(item.Version)}}}

	ok, err := r.db.UpdateOne(ctx, Collection, byID(listID), update)
	if err != nil {
		r.logger.ErrorContext(ctx, "Unable to remove item from shopping list", "error", err.Error(), "shopping_list_id", listID, "item_id", item.ID)
		return false, err
	}
	return ok, nil
}

// GetItemInList returns one item of a list, or nil when the list or item is absent.
func (r *ShoppingLists) GetItemInList(ctx context.Context, listID, itemID string) (*domain.ShoppingItem, error) {
	doc, err := r.db.FindNested(ctx, Collection, byID(listID), "items", store.Filter{"id": itemID})
	if err != nil {
		r.logger.ErrorContext(ctx, "Unable to get item in shopping list", "error", err.Error(), "shopping_list_id", listID, "item_id", itemID)
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}

	var item domain.ShoppingItem
	if err := store.Decode(doc, &item); err != nil {
		return nil, err
	}
	return &item, nil
}
