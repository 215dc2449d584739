package providers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/bac-dam-1991/shopping-list/internal/config"
	"github.com/bac-dam-1991/shopping-list/internal/logger"
	"github.com/bac-dam-1991/shopping-list/internal/repository"
	"github.com/bac-dam-1991/shopping-list/internal/sse"
	"github.com/bac-dam-1991/shopping-list/internal/store"
	"github.com/bac-dam-1991/shopping-list/internal/store/badgerdb"
	"github.com/bac-dam-1991/shopping-list/internal/store/mongodb"
	"github.com/bac-dam-1991/shopping-list/internal/store/sqlite"
)

// StoreHandle wraps the document store with shutdown capability.
type StoreHandle struct {
	store.Adapter
	Backend string
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the configured backend. Every adapter failure is logged
// by the logging decorator.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	db, err := openStore(cfg.Store, log)
	if err != nil {
		log.WithField("backend", cfg.Store.Backend).WithError(err).Error("Failed to open store")
		return nil, err
	}

	return &StoreHandle{
		Adapter: store.WithLogging(db, log.Logger),
		Backend: cfg.Store.Backend,
	}, nil
}

func openStore(cfg config.StoreConfig, log *logger.Logger) (store.Adapter, error) {
	switch cfg.Backend {
	case config.BackendMongo:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
		defer cancel()
		db, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, log.Logger)
		if err != nil {
			return nil, err
		}
		return db, nil

	case config.BackendBadger:
		path := filepath.Join(cfg.DataPath, "badger")
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		db, err := badgerdb.Open(path, log.Logger)
		if err != nil {
			return nil, err
		}
		return db, nil

	case config.BackendSQLite:
		if err := os.MkdirAll(cfg.DataPath, 0o750); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		path := filepath.Join(cfg.DataPath, "shopping-lists.db")
		log.Info("Opening SQLite database", "path", path)
		db, err := sqlite.Open(path, log.Logger)
		if err != nil {
			return nil, err
		}
		return db, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// ProvideRepository provides the shopping list repository and makes sure its
// indexes exist.
func ProvideRepository(i do.Injector) (*repository.ShoppingLists, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	repo := repository.NewShoppingLists(storeHandle.Adapter, log.Logger)

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	if err := repo.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	log.Info("Repository ready", "collection", repository.Collection, "backend", storeHandle.Backend)
	return repo, nil
}

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable. Queued events are delivered before
// the broadcast loop stops.
func (h *SSEManagerHandle) Shutdown() error {
	defer h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}
