// Package sqlite is an embedded store.Adapter backed by SQLite. Each
// document is one BSON row; unique indexes are enforced by the primary key
// of the unique_keys table.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bac-dam-1991/shopping-list/internal/store"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store provides SQLite-backed document persistence.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	// SQLite allows one writer; serializing here avoids SQLITE_BUSY on
	// read-to-write lock upgrades.
	writeMu sync.Mutex

	mu      sync.RWMutex
	indexes map[string][]store.UniqueIndex
}

var _ store.Adapter = (*Store)(nil)

// Open creates or opens a SQLite store at the given path.
// It configures WAL mode, sets pragmas, and applies the schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	// Pragmas are per connection; the DSN form would apply them to every
	// pooled connection, but the schema needs them first on this one.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	s := &Store{db: db, logger: logger, indexes: make(map[string][]store.UniqueIndex)}
	if err := s.loadIndexes(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite database opened", "path", path)
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	s.logger.Info("Closing sqlite database")
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) loadIndexes() error {
	rows, err := s.db.Query(`SELECT collection, name, fields FROM unique_indexes`)
	if err != nil {
		return fmt.Errorf("load indexes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var collection, name, fields string
		if err := rows.Scan(&collection, &name, &fields); err != nil {
			return fmt.Errorf("scan index: %w", err)
		}
		s.indexes[collection] = append(s.indexes[collection], store.UniqueIndex{
			Name:   name,
			Fields: strings.Split(fields, ","),
		})
	}
	return rows.Err()
}

func (s *Store) indexesFor(collection string) []store.UniqueIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]store.UniqueIndex(nil), s.indexes[collection]...)
}

type candidate struct {
	doc store.Document
	pos int
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// scan returns matching documents ordered by id. limit 0 means no limit.
func scan(ctx context.Context, q querier, collection string, filter store.Filter, limit int) ([]candidate, error) {
	query := `SELECT body FROM documents WHERE collection = ?`
	args := []any{collection}
	if id, ok := filter[store.IDField].(string); ok {
		query += ` AND id = ?`
		args = append(args, id)
	}
	query += ` ORDER BY id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var out []candidate
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc, err := store.Unmarshal(body)
		if err != nil {
			return nil, err
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
	return out, rows.Err()
}

func first(ctx context.Context, q querier, collection string, filter store.Filter) (*candidate, error) {
	matches, err := scan(ctx, q, collection, filter, 1)
	if err != nil || len(matches) == 0 {
		return nil, err
	}
	return &matches[0], nil
}

// Find returns all matching documents in insertion order.
func (s *Store) Find(ctx context.Context, collection string, filter store.Filter) ([]store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matches, err := scan(ctx, s.db, collection, filter, 0)
	if err != nil {
		return nil, err
	}
	out := make([]store.Document, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.doc)
	}
	return out, nil
}

// FindOne returns the first matching document or nil.
func (s *Store) FindOne(ctx context.Context, collection string, filter store.Filter) (store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := first(ctx, s.db, collection, filter)
	if err != nil || m == nil {
		return nil, err
	}
	return m.doc, nil
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
	out[store.IDField] = primitive.NewObjectID().Hex()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return s.write(ctx, tx, collection, out, true)
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
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		m, err := first(ctx, tx, collection, filter)
		if err != nil || m == nil {
			return err
		}
		if _, err := store.ApplyUpdate(m.doc, update, m.pos); err != nil {
			return err
		}
		if err := s.write(ctx, tx, collection, m.doc, false); err != nil {
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
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		m, err := first(ctx, tx, collection, filter)
		if err != nil || m == nil {
			return err
		}
		// unique_keys rows go with the document via ON DELETE CASCADE.
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`,
			collection, m.doc[store.IDField]); err != nil {
			return fmt.Errorf("delete document: %w", err)
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
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		m, err := first(ctx, tx, collection, filter)
		if err != nil || m == nil {
			return err
		}
		changed, err := store.ApplyUpdate(m.doc, update, m.pos)
		if err != nil || !changed {
			return err
		}
		if err := s.write(ctx, tx, collection, m.doc, false); err != nil {
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

// EnsureUniqueIndex records the index and builds keys for existing documents.
func (s *Store) EnsureUniqueIndex(ctx context.Context, collection string, index store.UniqueIndex) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, existing := range s.indexesFor(collection) {
		if existing.Name == index.Name {
			return nil
		}
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO unique_indexes (collection, name, fields) VALUES (?, ?, ?)`,
			collection, index.Name, strings.Join(index.Fields, ",")); err != nil {
			return fmt.Errorf("insert index: %w", err)
		}

		docs, err := scan(ctx, tx, collection, store.Filter{}, 0)
		if err != nil {
			return err
		}
		for _, m := range docs {
			if err := insertKey(ctx, tx, collection, index, m.doc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("build index %s: %w", index.Name, err)
	}

	s.mu.Lock()
	s.indexes[collection] = append(s.indexes[collection], index)
	s.mu.Unlock()
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// write upserts the document row and rebuilds its unique keys.
func (s *Store) write(ctx context.Context, tx *sql.Tx, collection string, doc store.Document, insert bool) error {
	id, _ := doc[store.IDField].(string)
	if id == "" {
		return store.ErrInvalidDoc.WithCause(errors.New("document has no id"))
	}

	body, err := store.Marshal(doc)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	if insert {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO documents (collection, id, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			collection, id, body, now, now)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE documents SET body = ?, updated_at = ? WHERE collection = ? AND id = ?`,
			body, now, collection, id)
	}
	if err != nil {
		return fmt.Errorf("write document: %w", err)
	}

	indexes := s.indexesFor(collection)
	if len(indexes) == 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM unique_keys WHERE collection = ? AND document_id = ?`, collection, id); err != nil {
		return fmt.Errorf("clear unique keys: %w", err)
	}
	for _, idx := range indexes {
		if err := insertKey(ctx, tx, collection, idx, doc); err != nil {
			return err
		}
	}
	return nil
}

func insertKey(ctx context.Context, tx *sql.Tx, collection string, idx store.UniqueIndex, doc store.Document) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO unique_keys (collection, index_name, value_key, document_id) VALUES (?, ?, ?, ?)`,
		collection, idx.Name, store.UniqueKey(doc, idx), doc[store.IDField])
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrDuplicateKey.WithCause(fmt.Errorf("index %s", idx.Name))
		}
		return fmt.Errorf("insert unique key: %w", err)
	}
	return nil
}
