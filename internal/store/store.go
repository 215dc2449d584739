// Package store defines the document-store contract used by the shopping
// list repository, plus the pieces shared by its backends.
//
// Documents, filters and updates are bson.M values in MongoDB query
// language. The public identifier key is always "id"; backends that store
// it differently translate on the way in and out.
package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// Document is a stored record in its public form.
type Document = bson.M

// Filter selects documents. Supported conditions are field equality, dotted
// paths into arrays of sub-documents ("items.id") and $elemMatch.
type Filter = bson.M

// Update mutates a document with $set (including the positional "items.$"),
// $push, $pull and $inc.
type Update = bson.M

// IDField is the public identifier key of every document.
const IDField = "id"

// UniqueIndex declares that no two documents in a collection may share the
// same values for Fields.
type UniqueIndex struct {
	Name   string
	Fields []string
}

// Adapter is a document store. Absent results are reported as a nil
// Document, never as an error.
type Adapter interface {
	// Find returns every document matching filter. An empty filter matches all.
	Find(ctx context.Context, collection string, filter Filter) ([]Document, error)

	// FindOne returns the first matching document, or nil.
	FindOne(ctx context.Context, collection string, filter Filter) (Document, error)

	// InsertOne stores doc under a freshly assigned id and returns it with the id set.
	// A unique index violation returns ErrDuplicateKey.
	InsertOne(ctx context.Context, collection string, doc Document) (Document, error)

	// FindOneAndUpdate applies update to the first matching document and
	// returns the document as it is after the update, or nil when nothing matched.
	FindOneAndUpdate(ctx context.Context, collection string, filter Filter, update Update) (Document, error)

	// FindOneAndDelete removes the first matching document and returns its
	// prior contents, or nil when nothing matched.
	FindOneAndDelete(ctx context.Context, collection string, filter Filter) (Document, error)

	// UpdateOne applies update to the first matching document and reports
	// whether a document was modified.
	UpdateOne(ctx context.Context, collection string, filter Filter, update Update) (bool, error)

	// FindNested locates the first document matching filter, unwinds its
	// arrayField and returns the first element matching match, or nil.
	FindNested(ctx context.Context, collection string, filter Filter, arrayField string, match Filter) (Document, error)

	// EnsureUniqueIndex creates the index if it does not exist yet.
	EnsureUniqueIndex(ctx context.Context, collection string, index UniqueIndex) error

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying client.
	Close() error
}
