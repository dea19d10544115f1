package report

import "time"

// Report is one user-submitted sighting. The same shape moves through the
// pending, verified, and cold-stored stages of its lifecycle; Key doubles as
// the storage identifier while the report is live.
type Report struct {
	// Key is the deterministic address key derived from the geocoder-normalized
	// address. It is the dedup identifier: resubmissions of the same place
	// merge into the record stored under this key.
	Key string `json:"key" firestore:"key"`

	// Address is the geocoder-normalized address, not the raw user input.
	Address string  `json:"address" firestore:"address"`
	Lat     float64 `json:"lat" firestore:"lat"`
	Lng     float64 `json:"lng" firestore:"lng"`

	// AddedAt must fall on the current UTC day at submission time.
	AddedAt time.Time `json:"addedAt" firestore:"addedAt"`

	// AdditionalInfo is the free-text note, already moderated at intake.
	AdditionalInfo string `json:"additionalInfo,omitempty" firestore:"additionalInfo,omitempty"`

	// ImagePath is the object key in the image store while the report is
	// pending. ImageURL is the public token-bearing URL once verified.
	ImagePath string `json:"imagePath,omitempty" firestore:"imagePath,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty" firestore:"imageUrl,omitempty"`

	// ReportedCount is how many submissions merged into this record. Always
	// at least 1.
	ReportedCount int `json:"reportedCount" firestore:"reportedCount"`
}

// StatsSnapshot is the incrementally-maintained aggregate counter record. It
// is a cache, never a source of truth: Recalculate rebuilds it from the live
// and cold stores at any time.
type StatsSnapshot struct {
	TotalPins int `json:"totalPins" firestore:"totalPins"`
	TodayPins int `json:"todayPins" firestore:"todayPins"`
	WeekPins  int `json:"weekPins" firestore:"weekPins"`
}
