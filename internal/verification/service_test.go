package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"sightline/internal/audit"
	"sightline/internal/images"
	imagesmemory "sightline/internal/images/memory"
	"sightline/internal/report"
	reportmemory "sightline/internal/report/store/memory"
	dErrors "sightline/pkg/domain-errors"
	"sightline/pkg/platform/sentinel"
)

// =============================================================================
// Verification Workflow Test Suite
// =============================================================================
// The workflow's invariants are ordering ones: image relocation before any
// record change, exactly one verified record per address key, and not-found on
// the second attempt. All are covered here against the in-memory stores.

type VerificationSuite struct {
	suite.Suite
	store   *reportmemory.InMemoryStore
	images  *imagesmemory.InMemoryStore
	audits  *audit.InMemoryStore
	service *Service
}

func TestVerificationSuite(t *testing.T) {
	suite.Run(t, new(VerificationSuite))
}

func (s *VerificationSuite) SetupTest() {
	s.store = reportmemory.NewInMemoryStore()
	s.images = imagesmemory.NewInMemoryStore()
	s.audits = audit.NewInMemoryStore()

	auditor, err := audit.NewPublisher(s.audits)
	s.Require().NoError(err)

	s.service, err = New(s.store, s.images, auditor,
		WithRetryBackoff(time.Millisecond),
	)
	s.Require().NoError(err)
}

// seedPending creates a pending report with an uploaded image.
func (s *VerificationSuite) seedPending(key string) report.Report {
	rec := report.Report{
		Key:           key,
		Address:       "123 Main St",
		AddedAt:       time.Now().UTC(),
		ImagePath:     images.PendingPath(key, "photo.jpg"),
		ReportedCount: 1,
	}
	s.Require().NoError(s.store.PutPending(context.Background(), rec))
	s.images.PutObject(rec.ImagePath)
	return rec
}

func (s *VerificationSuite) exists(key string) bool {
	ok, err := s.images.Exists(context.Background(), key)
	s.Require().NoError(err)
	return ok
}

// =============================================================================
// Verify Tests
// =============================================================================

func (s *VerificationSuite) TestVerifyPublishesReport() {
	ctx := context.Background()
	s.seedPending("123_main_st")

	s.Require().NoError(s.service.Verify(ctx, "123_main_st", "reviewer@example.org"))

	rec, err := s.store.GetVerified(ctx, "123_main_st")
	s.Require().NoError(err)
	s.Equal(images.VerifiedPath("123_main_st", "photo.jpg"), rec.ImagePath)
	s.NotEmpty(rec.ImageURL, "download url minted during relocation")

	s.True(s.exists("verified/123_main_st/photo.jpg"))
	s.False(s.exists("pending/123_main_st/photo.jpg"))

	_, err = s.store.GetPending(ctx, "123_main_st")
	s.Error(err, "pending record removed")

	entries, err := s.audits.ListRecent(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(audit.KindVerified, entries[0].Kind)
	s.Equal("reviewer@example.org", entries[0].Verifier)
	s.Equal("123_main_st", entries[0].ReportKey)
}

func (s *VerificationSuite) TestVerifyTwiceFailsNotFound() {
	ctx := context.Background()
	s.seedPending("123_main_st")

	s.Require().NoError(s.service.Verify(ctx, "123_main_st", "reviewer@example.org"))

	err := s.service.Verify(ctx, "123_main_st", "reviewer@example.org")
	s.Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *VerificationSuite) TestVerifyMergesIntoExistingVerified() {
	ctx := context.Background()
	existing := report.Report{
		Key:           "123_main_st",
		Address:       "123 Main St",
		ImagePath:     images.VerifiedPath("123_main_st", "original.jpg"),
		ReportedCount: 2,
	}
	s.Require().NoError(s.store.PutVerified(ctx, existing))
	s.images.PutObject(existing.ImagePath)
	s.seedPending("123_main_st")

	s.Require().NoError(s.service.Verify(ctx, "123_main_st", "reviewer@example.org"))

	// Exactly one verified record, its count bumped, its original image kept;
	// the pending image is discarded rather than kept as a second copy.
	all, err := s.store.ListVerified(ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 1)
	s.Equal(3, all[0].ReportedCount)
	s.Equal(existing.ImagePath, all[0].ImagePath)

	s.True(s.exists(existing.ImagePath))
	s.False(s.exists("pending/123_main_st/photo.jpg"))
}

func (s *VerificationSuite) TestVerifyRelocationFailureLeavesPendingIntact() {
	ctx := context.Background()
	s.seedPending("123_main_st")
	s.images.FailMove = true

	err := s.service.Verify(ctx, "123_main_st", "reviewer@example.org")
	s.Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	// Nothing changed: the pending record and image are still there for a
	// retry, no verified record exists, and nothing was audited.
	_, err = s.store.GetPending(ctx, "123_main_st")
	s.NoError(err)
	s.True(s.exists("pending/123_main_st/photo.jpg"))
	_, err = s.store.GetVerified(ctx, "123_main_st")
	s.Error(err)
	entries, _ := s.audits.ListRecent(ctx, 10)
	s.Empty(entries)

	// The retry succeeds once the store recovers.
	s.images.FailMove = false
	s.NoError(s.service.Verify(ctx, "123_main_st", "reviewer@example.org"))
}

func (s *VerificationSuite) TestVerifyWithoutImage() {
	ctx := context.Background()
	rec := report.Report{Key: "456_oak_ave", Address: "456 Oak Ave", ReportedCount: 1}
	s.Require().NoError(s.store.PutPending(ctx, rec))

	s.Require().NoError(s.service.Verify(ctx, "456_oak_ave", "reviewer@example.org"))

	got, err := s.store.GetVerified(ctx, "456_oak_ave")
	s.Require().NoError(err)
	s.Empty(got.ImagePath)
	s.Empty(got.ImageURL)
}

// =============================================================================
// Deny Tests
// =============================================================================

func (s *VerificationSuite) TestDenyMovesImageToFlatDeniedArea() {
	ctx := context.Background()
	s.seedPending("123_main_st")

	s.Require().NoError(s.service.Deny(ctx, "123_main_st", "reviewer@example.org"))

	s.True(s.exists("denied/photo.jpg"), "denied area is flat, no per-report folder")
	s.False(s.exists("pending/123_main_st/photo.jpg"))

	_, err := s.store.GetPending(ctx, "123_main_st")
	s.Error(err, "pending record removed")

	entries, err := s.audits.ListRecent(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(audit.KindDenied, entries[0].Kind)
	s.Equal("photo.jpg", entries[0].ImageRef, "denial audit carries the bare file name")
	s.Equal("123 Main St", entries[0].Address)
}

func (s *VerificationSuite) TestDenyTwiceFailsNotFound() {
	ctx := context.Background()
	s.seedPending("123_main_st")

	s.Require().NoError(s.service.Deny(ctx, "123_main_st", "reviewer@example.org"))
	err := s.service.Deny(ctx, "123_main_st", "reviewer@example.org")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

// =============================================================================
// Delete Tests
// =============================================================================

func (s *VerificationSuite) TestDeleteDiscardsEverythingWithoutAudit() {
	ctx := context.Background()
	s.seedPending("123_main_st")

	s.Require().NoError(s.service.Delete(ctx, "123_main_st", "reviewer@example.org"))

	s.False(s.exists("pending/123_main_st/photo.jpg"))
	_, err := s.store.GetPending(ctx, "123_main_st")
	s.Error(err)

	entries, _ := s.audits.ListRecent(ctx, 10)
	s.Empty(entries, "pure deletion is not audited")

	err = s.service.Delete(ctx, "123_main_st", "reviewer@example.org")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

// =============================================================================
// Pending Removal Retry Tests
// =============================================================================
// Once the image has moved and the verified record is written, re-running the
// whole verify would duplicate the verified record, so the final pending
// removal retries in place instead of failing the operation outright.

// flakyDeleteStore fails DeletePending a set number of times, then delegates.
type flakyDeleteStore struct {
	*reportmemory.InMemoryStore
	failures int
	calls    int
}

func (f *flakyDeleteStore) DeletePending(ctx context.Context, key string) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("store unavailable")
	}
	return f.InMemoryStore.DeletePending(ctx, key)
}

func newRetryFixture(t *testing.T, failures int) (*Service, *flakyDeleteStore, *imagesmemory.InMemoryStore) {
	t.Helper()
	store := &flakyDeleteStore{InMemoryStore: reportmemory.NewInMemoryStore(), failures: failures}
	imgs := imagesmemory.NewInMemoryStore()
	auditor, err := audit.NewPublisher(audit.NewInMemoryStore())
	require.NoError(t, err)

	svc, err := New(store, imgs, auditor, WithRetryBackoff(time.Millisecond))
	require.NoError(t, err)
	return svc, store, imgs
}

func TestVerifyRetriesPendingRemoval(t *testing.T) {
	ctx := context.Background()
	svc, store, imgs := newRetryFixture(t, 2)

	rec := report.Report{
		Key:           "123_main_st",
		Address:       "123 Main St",
		AddedAt:       time.Now().UTC(),
		ImagePath:     images.PendingPath("123_main_st", "photo.jpg"),
		ReportedCount: 1,
	}
	require.NoError(t, store.PutPending(ctx, rec))
	imgs.PutObject(rec.ImagePath)

	require.NoError(t, svc.Verify(ctx, "123_main_st", "reviewer@example.org"),
		"removal succeeding within the retry budget must not fail the verify")
	require.Equal(t, 3, store.calls)

	verified, err := store.ListVerified(ctx)
	require.NoError(t, err)
	require.Len(t, verified, 1, "exactly one verified record after the retried removal")

	_, err = store.GetPending(ctx, "123_main_st")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestVerifyPendingRemovalExhaustion(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newRetryFixture(t, pendingRemoveAttempts)

	rec := report.Report{
		Key:           "123_main_st",
		Address:       "123 Main St",
		AddedAt:       time.Now().UTC(),
		ReportedCount: 1,
	}
	require.NoError(t, store.PutPending(ctx, rec))

	err := svc.Verify(ctx, "123_main_st", "reviewer@example.org")
	require.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	require.Equal(t, pendingRemoveAttempts, store.calls)

	// The verified record is already written at this point; only the pending
	// removal failed. A later verify or deny attempt converges the leftover.
	verified, err := store.ListVerified(ctx)
	require.NoError(t, err)
	require.Len(t, verified, 1)

	_, err = store.GetPending(ctx, "123_main_st")
	require.NoError(t, err, "pending record survives until a removal succeeds")
}
