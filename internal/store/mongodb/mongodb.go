// Package mongodb is the store.Adapter for a MongoDB deployment.
//
// Documents are kept with an ObjectID "_id"; the adapter exposes it as the
// hex string "id" and translates top-level "id" conditions on the way in.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/bac-dam-1991/shopping-list/internal/store"
)

const disconnectTimeout = 5 * time.Second

// Store wraps a connected MongoDB client bound to one database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
}

var _ store.Adapter = (*Store)(nil)

// Connect dials uri, verifies the primary is reachable and binds database.
func Connect(ctx context.Context, uri, database string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	opts := options.Client().
		ApplyURI(uri).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	logger.Info("MongoDB connected", "database", database)
	return &Store{client: client, db: client.Database(database), logger: logger}, nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	s.logger.Info("Disconnecting from MongoDB")
	return s.client.Disconnect(ctx)
}

// Ping checks that the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Database exposes the bound database, for tests that need to drop it.
func (s *Store) Database() *mongo.Database {
	return s.db
}

// toNative rewrites a public filter for MongoDB. ok is false when the filter
// names an id that cannot be an ObjectID and so can never match.
func toNative(filter store.Filter) (bson.M, bool) {
	out := make(bson.M, len(filter))
	for k, v := range filter {
		if k != store.IDField {
			out[k] = v
			continue
		}
		hex, isString := v.(string)
		if !isString {
			return nil, false
		}
		oid, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			return nil, false
		}
		out["_id"] = oid
	}
	return out, true
}

// fromNative rewrites a stored document into its public form.
func fromNative(doc bson.M) store.Document {
	if doc == nil {
		return nil
	}
	if oid, ok := doc["_id"].(primitive.ObjectID); ok {
		doc[store.IDField] = oid.Hex()
	}
	delete(doc, "_id")
	return doc
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrDuplicateKey.WithCause(err)
	}
	return err
}

// Find returns all matching documents in natural order.
func (s *Store) Find(ctx context.Context, collection string, filter store.Filter) ([]store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	native, ok := toNative(filter)
	if !ok {
		return []store.Document{}, nil
	}

	cursor, err := s.db.Collection(collection).Find(ctx, native)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("read cursor: %w", err)
	}

	out := make([]store.Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromNative(d))
	}
	return out, nil
}

// FindOne returns the first match or nil.
func (s *Store) FindOne(ctx context.Context, collection string, filter store.Filter) (store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	native, ok := toNative(filter)
	if !ok {
		return nil, nil
	}

	var doc bson.M
	err := s.db.Collection(collection).FindOne(ctx, native).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find one: %w", err)
	}
	return fromNative(doc), nil
}

// InsertOne stores a copy of doc under a new ObjectID.
func (s *Store) InsertOne(ctx context.Context, collection string, doc store.Document) (store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	oid := primitive.NewObjectID()
	native := make(bson.M, len(doc)+1)
	for k, v := range doc {
		if k != store.IDField {
			native[k] = v
		}
	}
	native["_id"] = oid

	if _, err := s.db.Collection(collection).InsertOne(ctx, native); err != nil {
		return nil, translateError(err)
	}

	out := store.Clone(doc)
	if out == nil {
		out = store.Document{}
	}
	out[store.IDField] = oid.Hex()
	return out, nil
}

// FindOneAndUpdate returns the document after the update, or nil.
func (s *Store) FindOneAndUpdate(ctx context.Context, collection string, filter store.Filter, update store.Update) (store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	native, ok := toNative(filter)
	if !ok {
		return nil, nil
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc bson.M
	err := s.db.Collection(collection).FindOneAndUpdate(ctx, native, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err)
	}
	return fromNative(doc), nil
}

// FindOneAndDelete removes the first match and returns its prior contents.
func (s *Store) FindOneAndDelete(ctx context.Context, collection string, filter store.Filter) (store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	native, ok := toNative(filter)
	if !ok {
		return nil, nil
	}

	var doc bson.M
	err := s.db.Collection(collection).FindOneAndDelete(ctx, native).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find one and delete: %w", err)
	}
	return fromNative(doc), nil
}

// UpdateOne reports whether a document was modified.
func (s *Store) UpdateOne(ctx context.Context, collection string, filter store.Filter, update store.Update) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	native, ok := toNative(filter)
	if !ok {
		return false, nil
	}

	res, err := s.db.Collection(collection).UpdateOne(ctx, native, update)
	if err != nil {
		return false, translateError(err)
	}
	return res.ModifiedCount > 0, nil
}

// FindNested unwinds arrayField of the first document matching filter and
// returns the first element matching match.
func (s *Store) FindNested(ctx context.Context, collection string, filter store.Filter, arrayField string, match store.Filter) (store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	native, ok := toNative(filter)
	if !ok {
		return nil, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: native}},
		{{Key: "$limit", Value: 1}},
		{{Key: "$unwind", Value: "$" + arrayField}},
		{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$" + arrayField}}},
		{{Key: "$match", Value: match}},
		{{Key: "$limit", Value: 1}},
	}

	cursor, err := s.db.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("read cursor: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

// EnsureUniqueIndex creates a named unique compound index over the fields.
// Creating an identical index again is a no-op on the server.
func (s *Store) EnsureUniqueIndex(ctx context.Context, collection string, index store.UniqueIndex) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	keys := make(bson.D, 0, len(index.Fields))
	for _, f := range index.Fields {
		keys = append(keys, bson.E{Key: f, Value: 1})
	}

	model := mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetUnique(true).SetName(index.Name),
	}
	if _, err := s.db.Collection(collection).Indexes().CreateOne(ctx, model); err != nil {
		return fmt.Errorf("create index %s: %w", index.Name, translateError(err))
	}
	return nil
}
