// Package badgerdb is an embedded store.Adapter backed by BadgerDB.
//
// Key layout:
//
//	doc:<collection>:<id>                 BSON document
//	idx:<collection>:<index>:<value key>  id of the owning document
package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bac-dam-1991/shopping-list/internal/store"
)

// maxTxnAttempts bounds retries of transactions that hit badger.ErrConflict.
const maxTxnAttempts = 5

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	mu      sync.RWMutex
	indexes map[string][]store.UniqueIndex
}

var _ store.Adapter = (*Store)(nil)

// Open opens (or creates) a Badger database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Badger's own logging is too chatty
	opts.SyncWrites = true       // Survive crashes without losing acknowledged writes
	opts.CompactL0OnClose = true // Faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Info("Badger database opened", "path", path)

	return &Store{db: db, logger: logger, indexes: make(map[string][]store.UniqueIndex)}, nil
}

// Close gracefully closes the database.
func (s *Store) Close() error {
	s.logger.Info("Closing badger database")
	return s.db.Close()
}

// Ping reports whether the database is open.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return store.ErrClosed
	}
	return nil
}

func docPrefix(collection string) []byte {
	return []byte("doc:" + collection + ":")
}

func docKey(collection, id string) []byte {
	return []byte("doc:" + collection + ":" + id)
}

func indexKey(collection string, idx store.UniqueIndex, key string) []byte {
	return []byte("idx:" + collection + ":" + idx.Name + ":" + key)
}

// candidate is a matched document and the array position its filter captured.
type candidate struct {
	doc store.Document
	pos int
}

// Find returns all matching documents in insertion order.
func (s *Store) Find(ctx context.Context, collection string, filter store.Filter) ([]store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []store.Document
	err := s.db.View(func(txn *badger.Txn) error {
		matches, err := s.scan(txn, collection, filter, 0)
		if err != nil {
			return err
		}
		out = make([]store.Document, 0, len(matches))
		for _, m := range matches {
			out = append(out, m.doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindOne returns the first matching document or nil.
func (s *Store) FindOne(ctx context.Context, collection string, filter store.Filter) (store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var doc store.Document
	err := s.db.View(func(txn *badger.Txn) error {
		m, err := s.first(txn, collection, filter)
		if m != nil {
			doc = m.doc
		}
		return err
	})
	return doc, err
}

// InsertOne stores a copy of doc under a new ObjectID-shaped id.
func (s *Store) InsertOne(ctx context.Context, collection string, doc store.Document) (store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := store.Clone(doc)
	if out == nil {
		out = store.Document{}
	}
	// ObjectID hex sorts by creation time, so key order is insertion order.
	out[store.IDField] = primitive.NewObjectID().Hex()

	err := s.update(func(txn *badger.Txn) error {
		return s.put(txn, collection, nil, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindOneAndUpdate returns the document after the update, or nil.
func (s *Store) FindOneAndUpdate(ctx context.Context, collection string, filter store.Filter, update store.Update) (store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var after store.Document
	err := s.update(func(txn *badger.Txn) error {
		after = nil
		m, err := s.first(txn, collection, filter)
		if err != nil || m == nil {
			return err
		}
		before := store.Clone(m.doc)
		if _, err := store.ApplyUpdate(m.doc, update, m.pos); err != nil {
			return err
		}
		if err := s.put(txn, collection, before, m.doc); err != nil {
			return err
		}
		after = m.doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return after, nil
}

// FindOneAndDelete removes the first match and returns its prior contents.
func (s *Store) FindOneAndDelete(ctx context.Context, collection string, filter store.Filter) (store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var prior store.Document
	err := s.update(func(txn *badger.Txn) error {
		prior = nil
		m, err := s.first(txn, collection, filter)
		if err != nil || m == nil {
			return err
		}
		if err := s.remove(txn, collection, m.doc); err != nil {
			return err
		}
		prior = m.doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prior, nil
}

// UpdateOne reports whether a matching document was modified.
func (s *Store) UpdateOne(ctx context.Context, collection string, filter store.Filter, update store.Update) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var modified bool
	err := s.update(func(txn *badger.Txn) error {
		modified = false
		m, err := s.first(txn, collection, filter)
		if err != nil || m == nil {
			return err
		}
		before := store.Clone(m.doc)
		changed, err := store.ApplyUpdate(m.doc, update, m.pos)
		if err != nil || !changed {
			return err
		}
		if err := s.put(txn, collection, before, m.doc); err != nil {
			return err
		}
		modified = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return modified, nil
}

// FindNested returns the first element of arrayField matching match inside
// the first document matching filter.
func (s *Store) FindNested(ctx context.Context, collection string, filter store.Filter, arrayField string, match store.Filter) (store.Document, error) {
	doc, err := s.FindOne(ctx, collection, filter)
	if err != nil || doc == nil {
		return nil, err
	}
	return store.FindElement(doc, arrayField, match)
}

// EnsureUniqueIndex registers the index and builds its entries from the
// documents already stored. Existing duplicates fail with ErrDuplicateKey.
func (s *Store) EnsureUniqueIndex(ctx context.Context, collection string, index store.UniqueIndex) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	for _, existing := range s.indexes[collection] {
		if existing.Name == index.Name {
			s.mu.Unlock()
			return nil
		}
	}
	s.indexes[collection] = append(s.indexes[collection], index)
	s.mu.Unlock()

	err := s.update(func(txn *badger.Txn) error {
		docs, err := s.scan(txn, collection, store.Filter{}, 0)
		if err != nil {
			return err
		}
		for _, m := range docs {
			id, _ := m.doc[store.IDField].(string)
			key := indexKey(collection, index, store.UniqueKey(m.doc, index))
			if err := claim(txn, key, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.dropIndex(collection, index.Name)
		return fmt.Errorf("build index %s: %w", index.Name, err)
	}
	return nil
}

func (s *Store) dropIndex(collection, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.indexes[collection][:0]
	for _, idx := range s.indexes[collection] {
		if idx.Name != name {
			kept = append(kept, idx)
		}
	}
	s.indexes[collection] = kept
}

func (s *Store) indexesFor(collection string) []store.UniqueIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]store.UniqueIndex(nil), s.indexes[collection]...)
}

// update runs fn in a read-write transaction, retrying on conflicts.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	var err error
	for range maxTxnAttempts {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// scan returns matching documents. limit 0 means no limit.
func (s *Store) scan(txn *badger.Txn, collection string, filter store.Filter, limit int) ([]candidate, error) {
	// Lookups by id read a single key.
	if id, ok := filter[store.IDField].(string); ok {
		doc, err := get(txn, collection, id)
		if err != nil || doc == nil {
			return nil, err
		}
		matched, pos, err := store.Match(doc, filter)
		if err != nil || !matched {
			return nil, err
		}
		return []candidate{{doc: doc, pos: pos}}, nil
	}

	opts := badger.DefaultIteratorOptions
	opts.Prefix = docPrefix(collection)
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []candidate
	for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
		var doc store.Document
		err := it.Item().Value(func(val []byte) error {
			var decodeErr error
			doc, decodeErr = store.Unmarshal(val)
			return decodeErr
		})
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", it.Item().Key(), err)
		}

		matched, pos, err := store.Match(doc, filter)
		if err != nil {
			return nil, err
		}
		if !matched {
			continue
		}
		out = append(out, candidate{doc: doc, pos: pos})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) first(txn *badger.Txn, collection string, filter store.Filter) (*candidate, error) {
	matches, err := s.scan(txn, collection, filter, 1)
	if err != nil || len(matches) == 0 {
		return nil, err
	}
	return &matches[0], nil
}

func get(txn *badger.Txn, collection, id string) (store.Document, error) {
	item, err := txn.Get(docKey(collection, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}

	var doc store.Document
	err = item.Value(func(val []byte) error {
		var decodeErr error
		doc, decodeErr = store.Unmarshal(val)
		return decodeErr
	})
	return doc, err
}

// put writes next, moving unique index entries from before (nil for inserts).
func (s *Store) put(txn *badger.Txn, collection string, before, next store.Document) error {
	id, _ := next[store.IDField].(string)
	if id == "" {
		return store.ErrInvalidDoc.WithCause(errors.New("document has no id"))
	}

	for _, idx := range s.indexesFor(collection) {
		newKey := store.UniqueKey(next, idx)
		if before != nil {
			oldKey := store.UniqueKey(before, idx)
			if oldKey == newKey {
				continue
			}
			if err := txn.Delete(indexKey(collection, idx, oldKey)); err != nil {
				return fmt.Errorf("failed to delete index key: %w", err)
			}
		}
		if err := claim(txn, indexKey(collection, idx, newKey), id); err != nil {
			return fmt.Errorf("index %s: %w", idx.Name, err)
		}
	}

	data, err := store.Marshal(next)
	if err != nil {
		return err
	}
	if err := txn.Set(docKey(collection, id), data); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

func (s *Store) remove(txn *badger.Txn, collection string, doc store.Document) error {
	id, _ := doc[store.IDField].(string)
	for _, idx := range s.indexesFor(collection) {
		if err := txn.Delete(indexKey(collection, idx, store.UniqueKey(doc, idx))); err != nil {
			return fmt.Errorf("failed to delete index key: %w", err)
		}
	}
	return txn.Delete(docKey(collection, id))
}

// claim points an index key at id, failing if another document holds it.
func claim(txn *badger.Txn, key []byte, id string) error {
	item, err := txn.Get(key)
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return txn.Set(key, []byte(id))
	case err != nil:
		return fmt.Errorf("failed to check index key: %w", err)
	}

	owner, err := item.ValueCopy(nil)
	if err != nil {
		return fmt.Errorf("failed to read index key: %w", err)
	}
	if string(owner) != id {
		return store.ErrDuplicateKey.WithCause(fmt.Errorf("key %s", strings.TrimPrefix(string(key), "idx:")))
	}
	return nil
}
