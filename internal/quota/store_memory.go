package quota

import (
	"context"
	"sync"
	"time"
)

type dayCount struct {
	date  string
	count int
}

// InMemoryLedger implements Ledger with a mutex map. It has no passive
// expiry, so Sweep must run periodically to prune buckets from past days.
type InMemoryLedger struct {
	mu      sync.Mutex
	buckets map[string]dayCount
	now     func() time.Time
}

func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{
		buckets: make(map[string]dayCount),
		now:     time.Now,
	}
}

func (l *InMemoryLedger) Allow(_ context.Context, bucket, source string, limit int) (bool, error) {
	today := l.now().UTC().Format("2006-01-02")
	key := Key(bucket, source)

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.buckets[key]
	if entry.date != today {
		entry = dayCount{date: today}
	}
	entry.count++
	l.buckets[key] = entry

	return entry.count <= limit, nil
}

// Sweep removes buckets from previous UTC days.
func (l *InMemoryLedger) Sweep(_ context.Context) error {
	today := l.now().UTC().Format("2006-01-02")

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, entry := range l.buckets {
		if entry.date != today {
			delete(l.buckets, key)
		}
	}
	return nil
}
