package audit

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies an audit entry by the decision it records.
type Kind string

const (
	// KindVerified records a pending report being published.
	KindVerified Kind = "verified"
	// KindDenied records a pending report being rejected. The image is
	// retained in the denied area, and the entry keeps its file name so the
	// retained object stays traceable.
	KindDenied Kind = "denied"
)

// Entry is one immutable verification or denial decision. Pure deletions are
// not audited.
type Entry struct {
	ID        uuid.UUID `json:"id"`
	Kind      Kind      `json:"kind"`
	ReportKey string    `json:"reportKey"`
	Address   string    `json:"address"`
	Verifier  string    `json:"verifier"`
	// ImageRef is the verified image URL for KindVerified, or the retained
	// file name for KindDenied.
	ImageRef  string    `json:"imageRef,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
