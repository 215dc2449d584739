package providers

import (
	"github.com/samber/do/v2"

	"github.com/bac-dam-1991/shopping-list/internal/logger"
	"github.com/bac-dam-1991/shopping-list/internal/repository"
	"github.com/bac-dam-1991/shopping-list/internal/service"
)

// ProvideShoppingListService provides the shopping list service. Change
// events go to the SSE manager when one is registered.
func ProvideShoppingListService(i do.Injector) (*service.ShoppingListService, error) {
	repo := do.MustInvoke[*repository.ShoppingLists](i)
	log := do.MustInvoke[*logger.Logger](i)

	var events service.EventEmitter
	if sseHandle, err := do.Invoke[*SSEManagerHandle](i); err == nil {
		events = sseHandle.Manager
	}

	return service.NewShoppingListService(repo, events, log.Logger), nil
}
