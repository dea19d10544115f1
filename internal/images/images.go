// Package images is object storage for report images. Uploads land in the
// pending area; verification relocates them to the verified or denied area,
// or deletes them outright.
package images

import (
	"context"
	"path"
)

// Store is the object-storage port. Implementations treat a successful copy
// as the terminal state of a Move: once the destination exists and is
// referenced, the source's presence is no longer load-bearing.
type Store interface {
	// Move copies src to dst, then deletes src. An error means the copy did
	// not happen and nothing changed; a failed delete after a successful copy
	// is tolerated and logged, not surfaced.
	Move(ctx context.Context, src, dst string) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// PublicURL mints a public, token-bearing download URL for an object.
	// Callers persist the minted URL; the token is durable because the
	// record, not the store, remembers it.
	PublicURL(ctx context.Context, key string) (string, error)
}

// PendingPath is where a report's image lives while awaiting verification.
func PendingPath(reportKey, fileName string) string {
	return path.Join("pending", reportKey, fileName)
}

// VerifiedPath is the published area, keyed by report id.
func VerifiedPath(reportKey, fileName string) string {
	return path.Join("verified", reportKey, fileName)
}

// DeniedPath is the flat retention area for denied reports' images; they are
// kept for audit, not served.
func DeniedPath(fileName string) string {
	return path.Join("denied", fileName)
}

// FileName extracts the bare object file name from a path.
func FileName(key string) string {
	return path.Base(key)
}
