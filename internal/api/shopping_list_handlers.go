package api

import (
	"context"
	"net/http"
	"reflect"
	"slices"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bac-dam-1991/shopping-list/internal/domain"
)

func (s *Server) registerShoppingListRoutes() {
	security := []map[string][]string{{"bearer": {}}}

	huma.Register(s.api, huma.Operation{
		OperationID: "listShoppingLists",
		Method:      http.MethodGet,
		Path:        BasePath,
		Summary:     "List shopping lists",
		Description: "Returns every shopping list owned by the caller",
		Tags:        []string{"Shopping Lists"},
		Security:    security,
	}, s.handleListShoppingLists)

	huma.Register(s.api, huma.Operation{
		OperationID: "getShoppingList",
		Method:      http.MethodGet,
		Path:        BasePath + "/{id}",
		Summary:     "Get shopping list",
		Description: "Returns a shopping list with its items",
		Tags:        []string{"Shopping Lists"},
		Security:    security,
	}, s.handleGetShoppingList)

	huma.Register(s.api, huma.Operation{
		OperationID:      "createShoppingList",
		Method:           http.MethodPost,
		Path:             BasePath,
		Summary:          "Create shopping list",
		Description:      "Creates an empty shopping list. Names are unique per owner.",
		Tags:             []string{"Shopping Lists"},
		Security:         security,
		DefaultStatus:    http.StatusCreated,
		SkipValidateBody: true,
	}, s.handleCreateShoppingList)

	huma.Register(s.api, huma.Operation{
		OperationID:      "renameShoppingList",
		Method:           http.MethodPut,
		Path:             BasePath + "/{id}",
		Summary:          "Rename shopping list",
		Description:      "Changes the name of a shopping list",
		Tags:             []string{"Shopping Lists"},
		Security:         security,
		SkipValidateBody: true,
	}, s.handleRenameShoppingList)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteShoppingList",
		Method:      http.MethodDelete,
		Path:        BasePath + "/{id}",
		Summary:     "Delete shopping list",
		Description: "Deletes a shopping list and returns its last contents",
		Tags:        []string{"Shopping Lists"},
		Security:    security,
	}, s.handleDeleteShoppingList)

	huma.Register(s.api, huma.Operation{
		OperationID:      "addShoppingItem",
		Method:           http.MethodPost,
		Path:             BasePath + "/{id}/items/add",
		Summary:          "Add item",
		Description:      "Adds an item to a list. An item with the same name is merged and its quantity summed.",
		Tags:             []string{"Shopping Items"},
		Security:         security,
		DefaultStatus:    http.StatusCreated,
		SkipValidateBody: true,
	}, s.handleAddItem)

	huma.Register(s.api, huma.Operation{
		OperationID:      "updateShoppingItem",
		Method:           http.MethodPut,
		Path:             BasePath + "/{id}/items/{itemId}/update",
		Summary:          "Update item",
		Description:      "Replaces the supplied fields of an item",
		Tags:             []string{"Shopping Items"},
		Security:         security,
		SkipValidateBody: true,
	}, s.handleUpdateItem)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeShoppingItem",
		Method:      http.MethodPut,
		Path:        BasePath + "/{id}/items/{itemId}/delete",
		Summary:     "Remove item",
		Description: "Removes an item from a list and returns it",
		Tags:        []string{"Shopping Items"},
		Security:    security,
	}, s.handleRemoveItem)
}

// requestBody holds a JSON request body until the handler decodes it. Huma
// documents it with the schema of T, while decoding and validation happen in
// one pass so that messages follow field order.
type requestBody[T any] struct {
	raw []byte
}

// UnmarshalJSON keeps the body as received.
func (b *requestBody[T]) UnmarshalJSON(data []byte) error {
	b.raw = slices.Clone(data)
	return nil
}

// Schema implements huma.SchemaProvider.
func (requestBody[T]) Schema(r huma.Registry) *huma.Schema {
	return r.Schema(reflect.TypeFor[T](), true, "")
}

func (b *requestBody[T]) bytes() []byte {
	if b == nil {
		return nil
	}
	return b.raw
}

// === DTOs ===

// ShoppingListNameRequest is the body for creating or renaming a list.
type ShoppingListNameRequest struct {
	Name *string `json:"name" label:"Shopping list name" validate:"required,min=2,max=50" doc:"List name, unique per owner"`
}

// AddItemRequest is the body for adding an item. Fields are validated in
// declaration order and only the first failure is reported.
type AddItemRequest struct {
	Name     *string        `json:"name" label:"Item name" validate:"required,min=3,max=50" doc:"Item name"`
	Status   *domain.Status `json:"status" label:"Item status" validate:"required,status" doc:"New, Updated or Purchased"`
	Quantity *float64       `json:"quantity" label:"Item quantity" validate:"required,gte=0" messages:"gte=Quantity cannot be less than {param}.;type=Quantity must be a number." doc:"Amount, zero or more"`
	Unit     *domain.Unit   `json:"unit" label:"Item unit" validate:"required,unit" doc:"Unit of measure"`
}

// UpdateItemRequest is the body for updating an item. Absent fields keep
// their stored value; supplied fields are validated like AddItemRequest.
type UpdateItemRequest struct {
	Name     *string        `json:"name,omitempty" label:"Item name" validate:"omitnil,min=3,max=50" doc:"Item name"`
	Status   *domain.Status `json:"status,omitempty" label:"Item status" validate:"omitnil,status" doc:"New, Updated or Purchased"`
	Quantity *float64       `json:"quantity,omitempty" label:"Item quantity" validate:"omitnil,gte=0" messages:"gte=Quantity cannot be less than {param}.;type=Quantity must be a number." doc:"Amount, zero or more"`
	Unit     *domain.Unit   `json:"unit,omitempty" label:"Item unit" validate:"omitnil,unit" doc:"Unit of measure"`
}

func (r AddItemRequest) patch() domain.ItemPatch {
	return domain.ItemPatch{Name: r.Name, Quantity: r.Quantity, Unit: r.Unit, Status: r.Status}
}

func (r UpdateItemRequest) patch() domain.ItemPatch {
	return domain.ItemPatch{Name: r.Name, Quantity: r.Quantity, Unit: r.Unit, Status: r.Status}
}

type listIDParam struct {
	ID string `label:"Shopping list Id" validate:"len=24"`
}

type itemIDParam struct {
	ID string `label:"Item Id" validate:"len=24"`
}

// ListIDInput addresses one shopping list.
type ListIDInput struct {
	ID string `path:"id" doc:"Shopping list ID"`
}

// CreateListInput carries the body of a new list.
type CreateListInput struct {
	Body *requestBody[ShoppingListNameRequest]
}

// RenameListInput addresses one shopping list and carries its new name.
type RenameListInput struct {
	ID   string `path:"id" doc:"Shopping list ID"`
	Body *requestBody[ShoppingListNameRequest]
}

// AddItemInput addresses one shopping list and carries the item to add.
type AddItemInput struct {
	ID   string `path:"id" doc:"Shopping list ID"`
	Body *requestBody[AddItemRequest]
}

// ItemInput addresses one item of a list.
type ItemInput struct {
	ID     string `path:"id" doc:"Shopping list ID"`
	ItemID string `path:"itemId" doc:"Item ID"`
}

// UpdateItemInput addresses one item of a list and carries the changes.
type UpdateItemInput struct {
	ID     string `path:"id" doc:"Shopping list ID"`
	ItemID string `path:"itemId" doc:"Item ID"`
	Body   *requestBody[UpdateItemRequest]
}

// ShoppingListsOutput wraps a list of shopping lists for Huma.
type ShoppingListsOutput struct {
	Body []domain.ShoppingList
}

// ShoppingListOutput wraps one shopping list for Huma.
type ShoppingListOutput struct {
	Body *domain.ShoppingList
}

// ShoppingItemOutput wraps one item for Huma.
type ShoppingItemOutput struct {
	Body *domain.ShoppingItem
}

// === Handlers ===

func (s *Server) handleListShoppingLists(ctx context.Context, _ *struct{}) (*ShoppingListsOutput, error) {
	sub, err := requireSubject(ctx)
	if err != nil {
		return nil, err
	}

	lists, err := s.services.Lists.ListShoppingLists(ctx, sub)
	if err != nil {
		return nil, err
	}
	if lists == nil {
		lists = []domain.ShoppingList{}
	}
	return &ShoppingListsOutput{Body: lists}, nil
}

func (s *Server) handleGetShoppingList(ctx context.Context, input *ListIDInput) (*ShoppingListOutput, error) {
	if _, err := requireSubject(ctx); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(&listIDParam{ID: input.ID}); err != nil {
		return nil, err
	}

	list, err := s.services.Lists.GetListByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &ShoppingListOutput{Body: list}, nil
}

func (s *Server) handleCreateShoppingList(ctx context.Context, input *CreateListInput) (*ShoppingListOutput, error) {
	sub, err := requireSubject(ctx)
	if err != nil {
		return nil, err
	}

	var req ShoppingListNameRequest
	if err := s.validator.DecodeAndValidate(input.Body.bytes(), &req); err != nil {
		return nil, err
	}

	list, err := s.services.Lists.AddList(ctx, *req.Name, sub)
	if err != nil {
		return nil, err
	}
	return &ShoppingListOutput{Body: list}, nil
}

func (s *Server) handleRenameShoppingList(ctx context.Context, input *RenameListInput) (*ShoppingListOutput, error) {
	sub, err := requireSubject(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(&listIDParam{ID: input.ID}); err != nil {
		return nil, err
	}

	var req ShoppingListNameRequest
	if err := s.validator.DecodeAndValidate(input.Body.bytes(), &req); err != nil {
		return nil, err
	}

	list, err := s.services.Lists.RenameList(ctx, input.ID, *req.Name, sub)
	if err != nil {
		return nil, err
	}
	return &ShoppingListOutput{Body: list}, nil
}

func (s *Server) handleDeleteShoppingList(ctx context.Context, input *ListIDInput) (*ShoppingListOutput, error) {
	if _, err := requireSubject(ctx); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(&listIDParam{ID: input.ID}); err != nil {
		return nil, err
	}

	list, err := s.services.Lists.DeleteList(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &ShoppingListOutput{Body: list}, nil
}

func (s *Server) handleAddItem(ctx context.Context, input *AddItemInput) (*ShoppingItemOutput, error) {
	if _, err := requireSubject(ctx); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(&listIDParam{ID: input.ID}); err != nil {
		return nil, err
	}

	var req AddItemRequest
	if err := s.validator.DecodeAndValidate(input.Body.bytes(), &req); err != nil {
		return nil, err
	}

	item, err := s.services.Lists.AddItemToList(ctx, input.ID, req.patch())
	if err != nil {
		return nil, err
	}
	return &ShoppingItemOutput{Body: item}, nil
}

func (s *Server) handleUpdateItem(ctx context.Context, input *UpdateItemInput) (*ShoppingItemOutput, error) {
	if _, err := requireSubject(ctx); err != nil {
		return nil, err
	}
	if err := s.validateItemIDs(input.ID, input.ItemID); err != nil {
		return nil, err
	}

	var req UpdateItemRequest
	if err := s.validator.DecodeAndValidate(input.Body.bytes(), &req); err != nil {
		return nil, err
	}

	item, err := s.services.Lists.UpdateShoppingItem(ctx, input.ID, input.ItemID, req.patch())
	if err != nil {
		return nil, err
	}
	return &ShoppingItemOutput{Body: item}, nil
}

func (s *Server) handleRemoveItem(ctx context.Context, input *ItemInput) (*ShoppingItemOutput, error) {
	if _, err := requireSubject(ctx); err != nil {
		return nil, err
	}
	if err := s.validateItemIDs(input.ID, input.ItemID); err != nil {
		return nil, err
	}

	item, err := s.services.Lists.RemoveItemFromList(ctx, input.ID, input.ItemID)
	if err != nil {
		return nil, err
	}
	return &ShoppingItemOutput{Body: item}, nil
}

func (s *Server) validateItemIDs(listID, itemID string) error {
	if err := s.validator.Validate(&listIDParam{ID: listID}); err != nil {
		return err
	}
	return s.validator.Validate(&itemIDParam{ID: itemID})
}
