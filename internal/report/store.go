package report

import (
	"context"
	"time"
)

// Store is the live report store: pending and verified records plus the
// singleton aggregate snapshot. Implementations return sentinel.ErrNotFound
// for absent keys so services can translate to domain errors.
//
// Stores are interface-driven to keep the domain logic testable and to allow
// swapping in-memory and external persistence without rewiring business code.
type Store interface {
	GetPending(ctx context.Context, key string) (Report, error)
	PutPending(ctx context.Context, r Report) error
	// DeletePending removes the pending record, returning ErrNotFound if it
	// is already gone. The not-found failure is the workflow's idempotency
	// guarantee for double verify/deny/delete attempts.
	DeletePending(ctx context.Context, key string) error
	ListPending(ctx context.Context) ([]Report, error)

	GetVerified(ctx context.Context, key string) (Report, error)
	PutVerified(ctx context.Context, r Report) error
	DeleteVerified(ctx context.Context, key string) error
	ListVerified(ctx context.Context) ([]Report, error)
	// IncrementVerifiedCount bumps reportedCount on an existing verified
	// record in one store-side operation where the backend allows it.
	IncrementVerifiedCount(ctx context.Context, key string, delta int) (Report, error)

	GetStats(ctx context.Context) (StatsSnapshot, error)
	PutStats(ctx context.Context, s StatsSnapshot) error
}

// ColdStore holds aged-out reports, keyed by their original address key.
// Cold-stored reports are by definition older than the retention window and
// only ever count toward the total in the aggregate snapshot.
type ColdStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, r Report) error
	List(ctx context.Context) ([]Report, error)
}

// ModerationEntry archives a submission whose note was flagged, so rejected
// content remains auditable even though the request failed.
type ModerationEntry struct {
	Address   string    `json:"address"`
	Note      string    `json:"note"`
	Source    string    `json:"source"`
	Score     float64   `json:"score"`
	Magnitude float64   `json:"magnitude"`
	FlaggedAt time.Time `json:"flaggedAt"`
}

// ModerationLog is append-only.
type ModerationLog interface {
	AppendModeration(ctx context.Context, e ModerationEntry) error
}
