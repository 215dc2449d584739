package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bac-dam-1991/shopping-list/internal/domain"
	domainerrors "github.com/bac-dam-1991/shopping-list/internal/errors"
	"github.com/bac-dam-1991/shopping-list/internal/id"
	"github.com/bac-dam-1991/shopping-list/internal/sse"
	"github.com/bac-dam-1991/shopping-list/internal/store"
)

// maxWriteAttempts bounds the read-modify-write loop of item operations.
// A conditional write that loses to a concurrent change is retried from a
// fresh read.
const maxWriteAttempts = 3

// Messages returned to callers.
const (
	msgListNotFound     = "Shopping list does not exist."
	msgListDuplicate    = "Shopping list with the same name already exists."
	msgRenameDuplicate  = "Shopping list name already exists"
	msgRenameFailed     = "Unable to update shopping list"
	msgDeleteFailed     = "Unable to delete shopping list"
	msgItemListNotFound = "Shopping list does not exist"
	msgAddItemFailed    = "Unable to add item to shopping list"
	msgItemNotFound     = "Item does not exist in shopping list"
	msgUpdateItemFailed = "Unable to update item"
)

// ListRepository is the persistence the service needs.
type ListRepository interface {
	FindAllLists(ctx context.Context, owner string) ([]domain.ShoppingList, error)
	FindListByID(ctx context.Context, id string) (*domain.ShoppingList, error)
	FindListsByName(ctx context.Context, name, owner string) ([]domain.ShoppingList, error)
	InsertList(ctx context.Context, list *domain.ShoppingList) (*domain.ShoppingList, error)
	UpdateListByID(ctx context.Context, id, name string) (*domain.ShoppingList, error)
	DeleteListByID(ctx context.Context, id string) (*domain.ShoppingList, error)
	PushItem(ctx context.Context, listID string, item domain.ShoppingItem) (bool, error)
	SetItem(ctx context.Context, listID string, item domain.ShoppingItem) (bool, error)
	PullItem(ctx context.Context, listID string, item domain.ShoppingItem) (bool, error)
	GetItemInList(ctx context.Context, listID, itemID string) (*domain.ShoppingItem, error)
}

// EventEmitter receives change events after successful mutations.
type EventEmitter interface {
	Emit(event any)
}

type discardEmitter struct{}

func (discardEmitter) Emit(any) {}

// ShoppingListService implements the list and item operations.
type ShoppingListService struct {
	repo   ListRepository
	events EventEmitter
	logger *slog.Logger
	newID  func() (string, error)
}

// NewShoppingListService creates the service. events may be nil.
func NewShoppingListService(repo ListRepository, events EventEmitter, logger *slog.Logger) *ShoppingListService {
	if events == nil {
		events = discardEmitter{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ShoppingListService{
		repo:   repo,
		events: events,
		logger: logger.With("component", "shopping_list_service"),
		newID:  id.Generate,
	}
}

// ListShoppingLists returns the owner's lists in creation order.
func (s *ShoppingListService) ListShoppingLists(ctx context.Context, owner string) ([]domain.ShoppingList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lists, err := s.repo.FindAllLists(ctx, owner)
	if err != nil {
		s.logger.ErrorContext(ctx, "Unable to get all shopping lists", "error", err.Error(), "owner", owner)
		return nil, err
	}
	return lists, nil
}

// GetListByID returns a list by id.
func (s *ShoppingListService) GetListByID(ctx context.Context, id string) (*domain.ShoppingList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	list, err := s.repo.FindListByID(ctx, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Unable to get shopping list by Id", "error", err.Error(), "shopping_list_id", id)
		return nil, err
	}
	if list == nil {
		return nil, domainerrors.NotFound(msgListNotFound)
	}
	return list, nil
}

// AddList creates an empty list for owner. Names are unique per owner.
func (s *ShoppingListService) AddList(ctx context.Context, name, owner string) (*domain.ShoppingList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindListsByName(ctx, name, owner)
	if err != nil {
		s.logger.ErrorContext(ctx, "Unable to add new shopping list", "error", err.Error(), "name", name)
		return nil, err
	}
	if len(existing) > 0 {
		return nil, domainerrors.Duplication(msgListDuplicate)
	}

	list, err := s.repo.InsertList(ctx, domain.NewShoppingList(name, owner))
	if err != nil {
		// A concurrent insert of the same name loses at the unique index.
		if domainerrors.Is(err, store.ErrDuplicateKey) {
			return nil, domainerrors.Duplication(msgListDuplicate).WithCause(err)
		}
		s.logger.ErrorContext(ctx, "Unable to add new shopping list", "error", err.Error(), "name", name)
		return nil, err
	}

	s.logger.InfoContext(ctx, "shopping list created", "shopping_list_id", list.ID, "owner", owner)
	s.events.Emit(sse.NewListCreatedEvent(list))
	return list, nil
}

// RenameList changes a list's name. Renaming a list to its current name
// succeeds.
func (s *ShoppingListService) RenameList(ctx context.Context, id, name, owner string) (*domain.ShoppingList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindListsByName(ctx, name, owner)
	if err != nil {
		s.logger.ErrorContext(ctx, "Unable to update shopping list", "error", err.Error(), "shopping_list_id", id, "name", name)
		return nil, err
	}
	for _, other := range existing {
		if other.ID != id {
			return nil, domainerrors.Duplication(msgRenameDuplicate)
		}
	}

	list, err := s.repo.UpdateListByID(ctx, id, name)
	if err != nil {
		if domainerrors.Is(err, store.ErrDuplicateKey) {
			return nil, domainerrors.Duplication(msgRenameDuplicate).WithCause(err)
		}
		s.logger.ErrorContext(ctx, "Unable to update shopping list", "error", err.Error(), "shopping_list_id", id, "name", name)
		return nil, err
	}
	if list == nil {
		return nil, domainerrors.UpdateFailure(msgRenameFailed)
	}

	s.logger.InfoContext(ctx, "shopping list renamed", "shopping_list_id", id, "name", list.Name)
	s.events.Emit(sse.NewListRenamedEvent(list))
	return list, nil
}

// DeleteList removes a list and returns its prior contents.
func (s *ShoppingListService) DeleteList(ctx context.Context, id string) (*domain.ShoppingList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	list, err := s.repo.DeleteListByID(ctx, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Unable to delete shopping list", "error", err.Error(), "shopping_list_id", id)
		return nil, err
	}
	if list == nil {
		return nil, domainerrors.NotFound(msgDeleteFailed)
	}

	s.logger.InfoContext(ctx, "shopping list deleted", "shopping_list_id", id)
	s.events.Emit(sse.NewListDeletedEvent(list))
	return list, nil
}

// AddItemToList adds an item, or merges it into an existing item with the
// same name by summing the quantities.
func (s *ShoppingListService) AddItemToList(ctx context.Context, listID string, patch domain.ItemPatch) (*domain.ShoppingItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var name string
	if patch.Name != nil {
		name = *patch.Name
	}

	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		list, err := s.repo.FindListByID(ctx, listID)
		if err != nil {
			s.logger.ErrorContext(ctx, "Unable to add item to shopping list", "error", err.Error(), "shopping_list_id", listID)
			return nil, err
		}
		if list == nil {
			return nil, domainerrors.NotFound(msgItemListNotFound)
		}

		var (
			item domain.ShoppingItem
			ok   bool
		)
		existing, found := list.FindItemByName(name)
		if found {
			item = existing.Merge(patch)
			ok, err = s.repo.SetItem(ctx, listID, item)
		} else {
			itemID, idErr := s.newID()
			if idErr != nil {
				return nil, fmt.Errorf("generate item ID: %w", idErr)
			}
			item = domain.NewItem(itemID, patch)
			ok, err = s.repo.PushItem(ctx, listID, item)
		}
		if err != nil {
			s.logger.ErrorContext(ctx, "Unable to add item to shopping list", "error", err.Error(), "shopping_list_id", listID, "name", name)
			return nil, err
		}
		if ok {
			if found {
				item.Version++
			}
			s.logger.InfoContext(ctx, "item added to shopping list", "shopping_list_id", listID, "item_id", item.ID)
			s.events.Emit(sse.NewItemAddedEvent(listID, list.Sub, &item))
			return &item, nil
		}

		s.logger.DebugContext(ctx, "item write lost to a concurrent change, retrying",
			"shopping_list_id", listID, "attempt", attempt)
	}

	return nil, domainerrors.UpdateFailure(msgAddItemFailed)
}

// UpdateShoppingItem replaces every field present in patch.
func (s *ShoppingListService) UpdateShoppingItem(ctx context.Context, listID, itemID string, patch domain.ItemPatch) (*domain.ShoppingItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		current, err := s.repo.GetItemInList(ctx, listID, itemID)
		if err != nil {
			s.logger.ErrorContext(ctx, "Unable to update item", "error", err.Error(), "shopping_list_id", listID, "item_id", itemID)
			return nil, err
		}
		if current == nil {
			return nil, domainerrors.NotFound(msgItemNotFound)
		}

		item := current.Apply(patch)
		ok, err := s.repo.SetItem(ctx, listID, item)
		if err != nil {
			s.logger.ErrorContext(ctx, "Unable to update item", "error", err.Error(), "shopping_list_id", listID, "item_id", itemID)
			return nil, err
		}
		if ok {
			item.Version++
			s.logger.InfoContext(ctx, "item updated", "shopping_list_id", listID, "item_id", itemID)
			s.emitItemEvent(ctx, listID, sse.NewItemUpdatedEvent, &item)
			return &item, nil
		}

		s.logger.DebugContext(ctx, "item write lost to a concurrent change, retrying",
			"shopping_list_id", listID, "item_id", itemID, "attempt", attempt)
	}

	return nil, domainerrors.UpdateFailure(msgUpdateItemFailed)
}

// RemoveItemFromList deletes an item and returns it.
func (s *ShoppingListService) RemoveItemFromList(ctx context.Context, listID, itemID string) (*domain.ShoppingItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		current, err := s.repo.GetItemInList(ctx, listID, itemID)
		if err != nil {
			s.logger.ErrorContext(ctx, "Unable to remove item", "error", err.Error(), "shopping_list_id", listID, "item_id", itemID)
			return nil, err
		}
		if current == nil {
			return nil, domainerrors.NotFound(msgItemNotFound)
		}

		ok, err := s.repo.PullItem(ctx, listID, *current)
		if err != nil {
			s.logger.ErrorContext(ctx, "Unable to remove item", "error", err.Error(), "shopping_list_id", listID, "item_id", itemID)
			return nil, err
		}
		if ok {
			s.logger.InfoContext(ctx, "item removed", "shopping_list_id", listID, "item_id", itemID)
			s.emitItemEvent(ctx, listID, sse.NewItemRemovedEvent, current)
			return current, nil
		}

		s.logger.DebugContext(ctx, "item removal lost to a concurrent change, retrying",
			"shopping_list_id", listID, "item_id", itemID, "attempt", attempt)
	}

	return nil, domainerrors.UpdateFailure(msgUpdateItemFailed)
}

// emitItemEvent routes an item event to the list owner. The item lookup
// does not carry the owner, so it is read back here; a failed read only
// costs the event.
func (s *ShoppingListService) emitItemEvent(ctx context.Context, listID string, build func(listID, owner string, item *domain.ShoppingItem) sse.Event, item *domain.ShoppingItem) {
	list, err := s.repo.FindListByID(ctx, listID)
	if err != nil || list == nil {
		s.logger.WarnContext(ctx, "skipping item event, list owner unavailable", "shopping_list_id", listID)
		return
	}
	s.events.Emit(build(listID, list.Sub, item))
}
