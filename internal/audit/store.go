package audit

import "context"

// Store is append-only. Entries are never updated or deleted.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
}
