// Package intake validates, deduplicates, and persists new sighting reports.
// Every step is a hard gate in a fixed order: cheap checks first, the quota
// charge before any geocoding or moderation cost, and no writes anywhere for
// a blocked submission.
package intake

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"sightline/internal/geocode"
	"sightline/internal/moderation"
	"sightline/internal/platform/metrics"
	"sightline/internal/quota"
	"sightline/internal/report"
	dErrors "sightline/pkg/domain-errors"
	"sightline/pkg/platform/sentinel"
)

// QuotaBucket is the rate-limit scope for report submissions.
const QuotaBucket = "submission"

var tracer = otel.Tracer("sightline/intake")

// Submission is one raw report from a client.
type Submission struct {
	// AddedAt is the client-supplied timestamp. It must parse and fall on
	// the current UTC calendar day; this is an anti-replay control, not a
	// general timestamp validator.
	AddedAt        string
	Address        string
	AdditionalInfo string
	// ImagePath is the object key of an already-uploaded image, if any.
	ImagePath string
	// Source identifies the submitter: first forwarded client address, or
	// the direct connection address. Empty means unknown and is rejected.
	Source string
}

// Result reports what the pipeline did with an accepted submission.
type Result struct {
	// Address is the geocoder-normalized address.
	Address string
	// Updated is true when the submission merged into an existing record
	// instead of creating a new one.
	Updated bool
}

type Service struct {
	store     report.Store
	ledger    quota.Ledger
	moderator *moderation.Service
	validator *geocode.Validator
	logger    *slog.Logger
	metrics   *metrics.Metrics

	dailyLimit int
	now        func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(
	store report.Store,
	ledger quota.Ledger,
	moderator *moderation.Service,
	validator *geocode.Validator,
	dailyLimit int,
	opts ...Option,
) (*Service, error) {
	if store == nil {
		return nil, errors.New("report store is required")
	}
	if ledger == nil {
		return nil, errors.New("quota ledger is required")
	}
	if moderator == nil {
		return nil, errors.New("moderation service is required")
	}
	if validator == nil {
		return nil, errors.New("geocode validator is required")
	}

	s := &Service{
		store:      store,
		ledger:     ledger,
		moderator:  moderator,
		validator:  validator,
		logger:     slog.Default(),
		dailyLimit: dailyLimit,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit runs the full pipeline and lands the report in the pending store.
func (s *Service) Submit(ctx context.Context, sub Submission) (Result, error) {
	return s.submit(ctx, sub, false)
}

// SubmitVerified is the intake variant that lands directly in the verified
// store, for imports that bypass the human verification queue. The gates are
// identical; only the target store and merge lookup differ.
func (s *Service) SubmitVerified(ctx context.Context, sub Submission) (Result, error) {
	return s.submit(ctx, sub, true)
}

func (s *Service) submit(ctx context.Context, sub Submission, verified bool) (Result, error) {
	ctx, span := tracer.Start(ctx, "intake.submit")
	defer span.End()

	if sub.Address == "" || sub.AddedAt == "" {
		return Result{}, s.reject("missing_fields",
			dErrors.New(dErrors.CodeValidation, "address and addedAt are required"))
	}

	addedAt, err := time.Parse(time.RFC3339, sub.AddedAt)
	if err != nil {
		return Result{}, s.reject("bad_date",
			dErrors.New(dErrors.CodeValidation, "addedAt is not a valid timestamp"))
	}
	today := s.now().UTC()
	if !sameUTCDay(addedAt, today) {
		return Result{}, s.reject("stale_date",
			dErrors.New(dErrors.CodeValidation, "addedAt must fall on the current UTC day"))
	}

	if sub.Source == "" {
		return Result{}, s.reject("unknown_source",
			dErrors.New(dErrors.CodeValidation, "source could not be determined"))
	}

	allowed, err := s.ledger.Allow(ctx, QuotaBucket, sub.Source, s.dailyLimit)
	if err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "quota check failed")
	}
	if !allowed {
		return Result{}, s.reject("quota_exceeded",
			dErrors.New(dErrors.CodeQuotaExceeded, "daily submission limit reached, try again tomorrow"))
	}

	if err := s.moderator.Check(ctx, sub.Address, sub.AdditionalInfo, sub.Source); err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			return Result{}, s.reject("moderated", err)
		}
		return Result{}, err
	}

	located, err := s.validator.Validate(ctx, sub.Address)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			return Result{}, s.reject("ungeocodable", err)
		}
		return Result{}, err
	}

	// The key comes from the normalized address so near-duplicate phrasings
	// of the same place collapse to one record.
	key := report.AddressKey(located.Address)
	if key == "" {
		return Result{}, s.reject("ungeocodable",
			dErrors.New(dErrors.CodeValidation, "address could not be resolved to a precise location"))
	}

	span.SetAttributes(
		attribute.String("report.key", key),
		attribute.Bool("report.verified_intake", verified),
	)

	result, err := s.upsert(ctx, key, located, addedAt, sub, verified)
	if err != nil {
		return Result{}, err
	}

	if s.metrics != nil {
		s.metrics.ReportsSubmitted.Inc()
		if result.Updated {
			s.metrics.ReportsMerged.Inc()
		}
	}
	s.logger.InfoContext(ctx, "report accepted",
		"key", key,
		"updated", result.Updated,
		"verified_intake", verified,
	)
	return result, nil
}

func (s *Service) upsert(
	ctx context.Context,
	key string,
	located geocode.Result,
	addedAt time.Time,
	sub Submission,
	verified bool,
) (Result, error) {
	get, put := s.store.GetPending, s.store.PutPending
	if verified {
		get, put = s.store.GetVerified, s.store.PutVerified
	}

	existing, err := get(ctx, key)
	updated := false
	var rec report.Report
	switch {
	case err == nil:
		// Resubmission of the same place: merge instead of duplicating the
		// key. The newest note and timestamp win; the existing image stays
		// unless a new one was supplied.
		updated = true
		rec = existing
		rec.AdditionalInfo = sub.AdditionalInfo
		rec.AddedAt = addedAt
		rec.ReportedCount++
		if sub.ImagePath != "" {
			rec.ImagePath = sub.ImagePath
		}
	case errors.Is(err, sentinel.ErrNotFound):
		rec = report.Report{
			Key:            key,
			Address:        located.Address,
			Lat:            located.Lat,
			Lng:            located.Lng,
			AddedAt:        addedAt,
			AdditionalInfo: sub.AdditionalInfo,
			ImagePath:      sub.ImagePath,
			ReportedCount:  1,
		}
	default:
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "report lookup failed")
	}

	if err := put(ctx, rec); err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "report save failed")
	}

	// The reported-count change is +1 whether the record was created or
	// merged, so the snapshot moves by exactly that delta; merges must not
	// double-count into the totals.
	if err := s.bumpStats(ctx); err != nil {
		return Result{}, err
	}

	return Result{Address: located.Address, Updated: updated}, nil
}

func (s *Service) bumpStats(ctx context.Context) error {
	snap, err := s.store.GetStats(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "stats read failed")
	}
	snap.TotalPins++
	// addedAt was gated to the current UTC day, so the submission counts
	// toward both rolling windows.
	snap.TodayPins++
	snap.WeekPins++
	if err := s.store.PutStats(ctx, snap); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "stats write failed")
	}
	return nil
}

func (s *Service) reject(reason string, err error) error {
	if s.metrics != nil {
		s.metrics.SubmissionsRejected.WithLabelValues(reason).Inc()
	}
	return err
}

func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
