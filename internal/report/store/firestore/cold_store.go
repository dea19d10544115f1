package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"sightline/internal/report"
)

// ColdStore implements report.ColdStore on Firestore. Aged-out reports are
// documents keyed by their original address key, so re-runs of the aging job
// can detect copies that already happened.
type ColdStore struct {
	client     *firestore.Client
	collection string
}

func NewColdStore(client *firestore.Client, collection string) *ColdStore {
	return &ColdStore{client: client, collection: collection}
}

func (s *ColdStore) Exists(ctx context.Context, key string) (bool, error) {
	snap, err := s.client.Collection(s.collection).Doc(key).Get(ctx)
	if snap != nil && !snap.Exists() {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check cold report %s: %w", key, err)
	}
	return true, nil
}

func (s *ColdStore) Put(ctx context.Context, r report.Report) error {
	if _, err := s.client.Collection(s.collection).Doc(r.Key).Set(ctx, r); err != nil {
		return fmt.Errorf("put cold report %s: %w", r.Key, err)
	}
	return nil
}

func (s *ColdStore) List(ctx context.Context) ([]report.Report, error) {
	iter := s.client.Collection(s.collection).Documents(ctx)
	defer iter.Stop()

	var out []report.Report
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("list cold reports: %w", err)
		}
		var r report.Report
		if err := snap.DataTo(&r); err != nil {
			return nil, fmt.Errorf("decode cold report %s: %w", snap.Ref.ID, err)
		}
		out = append(out, r)
	}
}
