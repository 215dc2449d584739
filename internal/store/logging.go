package store

import (
	"context"
	"log/slog"
)

// logged decorates an Adapter so that every failure is logged with the
// operation, collection and payload before being returned unchanged.
type logged struct {
	next   Adapter
	logger *slog.Logger
}

// WithLogging wraps next with failure logging.
func WithLogging(next Adapter, logger *slog.Logger) Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &logged{next: next, logger: logger.With("component", "store")}
}

func (l *logged) fail(ctx context.Context, op, collection string, err error, args ...any) error {
	attrs := append([]any{"collection", collection, "error", err.Error()}, args...)
	l.logger.ErrorContext(ctx, "Unable to "+op, attrs...)
	return err
}

func (l *logged) Find(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	docs, err := l.next.Find(ctx, collection, filter)
	if err != nil {
		return nil, l.fail(ctx, "find", collection, err, "filter", filter)
	}
	return docs, nil
}

func (l *logged) FindOne(ctx context.Context, collection string, filter Filter) (Document, error) {
	doc, err := l.next.FindOne(ctx, collection, filter)
	if err != nil {
		return nil, l.fail(ctx, "find one", collection, err, "filter", filter)
	}
	return doc, nil
}

func (l *logged) InsertOne(ctx context.Context, collection string, doc Document) (Document, error) {
	out, err := l.next.InsertOne(ctx, collection, doc)
	if err != nil {
		return nil, l.fail(ctx, "insert one", collection, err, "document", doc)
	}
	return out, nil
}

func (l *logged) FindOneAndUpdate(ctx context.Context, collection string, filter Filter, update Update) (Document, error) {
	doc, err := l.next.FindOneAndUpdate(ctx, collection, filter, update)
	if err != nil {
		return nil, l.fail(ctx, "find one and update", collection, err, "filter", filter, "update", update)
	}
	return doc, nil
}

func (l *logged) FindOneAndDelete(ctx context.Context, collection string, filter Filter) (Document, error) {
	doc, err := l.next.FindOneAndDelete(ctx, collection, filter)
	if err != nil {
		return nil, l.fail(ctx, "find one and delete", collection, err, "filter", filter)
	}
	return doc, nil
}

func (l *logged) UpdateOne(ctx context.Context, collection string, filter Filter, update Update) (bool, error) {
	ok, err := l.next.UpdateOne(ctx, collection, filter, update)
	if err != nil {
		return false, l.fail(ctx, "update one", collection, err, "filter", filter, "update", update)
	}
	return ok, nil
}

func (l *logged) FindNested(ctx context.Context, collection string, filter Filter, arrayField string, match Filter) (Document, error) {
	doc, err := l.next.FindNested(ctx, collection, filter, arrayField, match)
	if err != nil {
		return nil, l.fail(ctx, "find nested document", collection, err, "filter", filter, "field", arrayField, "match", match)
	}
	return doc, nil
}

func (l *logged) EnsureUniqueIndex(ctx context.Context, collection string, index UniqueIndex) error {
	if err := l.next.EnsureUniqueIndex(ctx, collection, index); err != nil {
		return l.fail(ctx, "create index", collection, err, "index", index.Name, "fields", index.Fields)
	}
	return nil
}

func (l *logged) Ping(ctx context.Context) error {
	if err := l.next.Ping(ctx); err != nil {
		l.logger.WarnContext(ctx, "Store ping failed", "error", err.Error())
		return err
	}
	return nil
}

func (l *logged) Close() error {
	return l.next.Close()
}
