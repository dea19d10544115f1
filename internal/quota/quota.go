// Package quota enforces the per-source daily submission limit. The check is
// the first gate with side effects in the intake pipeline: a blocked request
// performs zero writes anywhere else.
package quota

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Ledger tracks a daily submission count per (bucket, source) pair.
type Ledger interface {
	// Allow atomically increments the counter for the current UTC day and
	// reports whether the new count stayed within limit. The increment and
	// the day-rollover reset happen in a single read-modify-write; a plain
	// read-then-write is unsafe under concurrent submissions from one source.
	Allow(ctx context.Context, bucket, source string, limit int) (bool, error)
}

// Key hashes the bucket and source identifier together so raw client
// addresses never live in the ledger.
func Key(bucket, source string) string {
	sum := sha256.Sum256([]byte(bucket + source))
	return hex.EncodeToString(sum[:])
}
