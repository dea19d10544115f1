package intake

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sightline/internal/geocode"
	"sightline/internal/moderation"
	"sightline/internal/quota"
	"sightline/internal/report"
	reportmemory "sightline/internal/report/store/memory"
	dErrors "sightline/pkg/domain-errors"
)

// =============================================================================
// Intake Pipeline Test Suite
// =============================================================================
// The pipeline's value is the ordering of its gates and the merge semantics;
// both are exercised here with deterministic fakes for the external services.

type echoGeocoder struct {
	calls int
}

// Geocode returns a single precise US match whose formatted address echoes the
// input, so distinct inputs produce distinct address keys.
func (g *echoGeocoder) Geocode(_ context.Context, address string) ([]geocode.Candidate, error) {
	g.calls++
	return []geocode.Candidate{{
		FormattedAddress: address,
		Lat:              39.78,
		Lng:              -89.65,
		Country:          "US",
		Types:            []string{"street_address"},
	}}, nil
}

type neutralClassifier struct {
	calls int
}

func (c *neutralClassifier) Classify(context.Context, string) (moderation.Sentiment, error) {
	c.calls++
	return moderation.Sentiment{Score: 0.2, Magnitude: 0.1}, nil
}

type IntakeSuite struct {
	suite.Suite
	store      *reportmemory.InMemoryStore
	ledger     *quota.InMemoryLedger
	geocoder   *echoGeocoder
	classifier *neutralClassifier
	now        time.Time
	service    *Service
}

func TestIntakeSuite(t *testing.T) {
	suite.Run(t, new(IntakeSuite))
}

func (s *IntakeSuite) SetupTest() {
	s.store = reportmemory.NewInMemoryStore()
	s.ledger = quota.NewInMemoryLedger()
	s.geocoder = &echoGeocoder{}
	s.classifier = &neutralClassifier{}
	s.now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	s.service = s.newService(3)
}

func (s *IntakeSuite) newService(limit int) *Service {
	svc, err := New(
		s.store,
		s.ledger,
		moderation.New(s.classifier, s.store),
		geocode.NewValidator(s.geocoder, "US"),
		limit,
		WithClock(func() time.Time { return s.now }),
	)
	s.Require().NoError(err)
	return svc
}

func (s *IntakeSuite) submission(address, source string) Submission {
	return Submission{
		Address: address,
		AddedAt: s.now.Format(time.RFC3339),
		Source:  source,
	}
}

// =============================================================================
// Constructor Tests
// =============================================================================

func (s *IntakeSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil, s.ledger, moderation.New(s.classifier, s.store), geocode.NewValidator(s.geocoder, "US"), 3)
		s.Error(err)
		s.Contains(err.Error(), "report store is required")
	})
	s.Run("nil ledger returns error", func() {
		_, err := New(s.store, nil, moderation.New(s.classifier, s.store), geocode.NewValidator(s.geocoder, "US"), 3)
		s.Error(err)
		s.Contains(err.Error(), "quota ledger is required")
	})
}

// =============================================================================
// Gate Tests
// =============================================================================

func (s *IntakeSuite) TestMissingFields() {
	for _, sub := range []Submission{
		{AddedAt: s.now.Format(time.RFC3339), Source: "10.0.0.1"},
		{Address: "123 Main St", Source: "10.0.0.1"},
	} {
		_, err := s.service.Submit(context.Background(), sub)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	}
}

func (s *IntakeSuite) TestAddedAtMustBeToday() {
	s.Run("malformed timestamp", func() {
		sub := s.submission("123 Main St", "10.0.0.1")
		sub.AddedAt = "yesterday-ish"
		_, err := s.service.Submit(context.Background(), sub)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("previous utc day is rejected", func() {
		sub := s.submission("123 Main St", "10.0.0.1")
		sub.AddedAt = s.now.AddDate(0, 0, -1).Format(time.RFC3339)
		_, err := s.service.Submit(context.Background(), sub)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("same utc day in another zone is accepted", func() {
		sub := s.submission("123 Main St", "10.0.0.1")
		sub.AddedAt = s.now.In(time.FixedZone("UTC+3", 3*3600)).Format(time.RFC3339)
		_, err := s.service.Submit(context.Background(), sub)
		s.NoError(err)
	})
}

func (s *IntakeSuite) TestUnknownSource() {
	_, err := s.service.Submit(context.Background(), s.submission("123 Main St", ""))
	s.Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *IntakeSuite) TestQuotaBlockedPerformsNoOtherWork() {
	svc := s.newService(0)

	_, err := svc.Submit(context.Background(), s.submission("123 Main St", "10.0.0.1"))
	s.Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeQuotaExceeded))

	// Blocked before moderation and geocoding ran, and before any write.
	s.Zero(s.classifier.calls)
	s.Zero(s.geocoder.calls)
	pending, _ := s.store.ListPending(context.Background())
	s.Empty(pending)
	stats, _ := s.store.GetStats(context.Background())
	s.Zero(stats.TotalPins)
}

func (s *IntakeSuite) TestModerationRejectDoesNotPersist() {
	svc, err := New(
		s.store,
		s.ledger,
		moderation.New(classifierFunc(func() (moderation.Sentiment, error) {
			return moderation.Sentiment{Score: -0.9, Magnitude: 3.0}, nil
		}), s.store),
		geocode.NewValidator(s.geocoder, "US"),
		3,
		WithClock(func() time.Time { return s.now }),
	)
	s.Require().NoError(err)

	sub := s.submission("123 Main St", "10.0.0.1")
	sub.AdditionalInfo = "a hostile note"
	_, err = svc.Submit(context.Background(), sub)
	s.Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	pending, _ := s.store.ListPending(context.Background())
	s.Empty(pending)
	s.Len(s.store.ModerationEntries(), 1)
}

// =============================================================================
// Merge and Stats Tests
// =============================================================================

func (s *IntakeSuite) TestSubmitCreatesPendingRecord() {
	result, err := s.service.Submit(context.Background(), s.submission("123 Main St", "10.0.0.1"))
	s.Require().NoError(err)
	s.False(result.Updated)
	s.Equal("123 Main St", result.Address)

	rec, err := s.store.GetPending(context.Background(), report.AddressKey("123 Main St"))
	s.Require().NoError(err)
	s.Equal(1, rec.ReportedCount)
	s.Equal("123 Main St", rec.Address)

	stats, _ := s.store.GetStats(context.Background())
	s.Equal(report.StatsSnapshot{TotalPins: 1, TodayPins: 1, WeekPins: 1}, stats)
}

func (s *IntakeSuite) TestResubmissionMergesInsteadOfDuplicating() {
	ctx := context.Background()

	first := s.submission("123 Main St", "10.0.0.1")
	first.ImagePath = "pending/123_main_st/photo.jpg"
	_, err := s.service.Submit(ctx, first)
	s.Require().NoError(err)

	// A near-duplicate phrasing normalizes to the same address key and merges
	// instead of creating a second record.
	second := s.submission("123 MAIN ST!!", "10.0.0.1")
	second.AdditionalInfo = "still there"
	result, err := s.service.Submit(ctx, second)
	s.Require().NoError(err)
	s.True(result.Updated)

	pending, _ := s.store.ListPending(ctx)
	s.Len(pending, 1)

	rec, err := s.store.GetPending(ctx, report.AddressKey("123 Main St"))
	s.Require().NoError(err)
	s.Equal(2, rec.ReportedCount)
	s.Equal("still there", rec.AdditionalInfo, "newest note wins")
	s.Equal("pending/123_main_st/photo.jpg", rec.ImagePath, "existing image kept when none supplied")

	// Each accepted submission moves the totals by exactly one, merge or not.
	stats, _ := s.store.GetStats(ctx)
	s.Equal(2, stats.TotalPins)
	s.Equal(2, stats.TodayPins)
}

func (s *IntakeSuite) TestSubmitVerifiedLandsInVerifiedStore() {
	result, err := s.service.SubmitVerified(context.Background(), s.submission("123 Main St", "10.0.0.1"))
	s.Require().NoError(err)
	s.False(result.Updated)

	_, err = s.store.GetVerified(context.Background(), report.AddressKey("123 Main St"))
	s.NoError(err)
	pending, _ := s.store.ListPending(context.Background())
	s.Empty(pending)
}

// =============================================================================
// End-to-End Scenario
// =============================================================================

func (s *IntakeSuite) TestScenarioQuotaAndMerge() {
	ctx := context.Background()

	sub := s.submission("123 Main St", "src-1")
	sub.AdditionalInfo = "fine"
	for i := range 3 {
		result, err := s.service.Submit(ctx, sub)
		s.Require().NoError(err, "submission %d", i+1)
		s.Equal(i > 0, result.Updated)
	}

	rec, err := s.store.GetPending(ctx, report.AddressKey("123 Main St"))
	s.Require().NoError(err)
	s.Equal(3, rec.ReportedCount)

	_, err = s.service.Submit(ctx, sub)
	s.Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeQuotaExceeded))

	// A different source is still free to report elsewhere.
	_, err = s.service.Submit(ctx, s.submission("456 Oak Ave", "src-2"))
	s.NoError(err)
}

type classifierFunc func() (moderation.Sentiment, error)

func (f classifierFunc) Classify(context.Context, string) (moderation.Sentiment, error) {
	return f()
}
