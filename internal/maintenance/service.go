// Package maintenance runs the periodic housekeeping over the report stores:
// the daily age-out of stale published reports into cold storage, and the full
// stats recompute that reconciles the incrementally maintained snapshot.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sightline/internal/platform/metrics"
	"sightline/internal/report"
	"sightline/pkg/platform/sentinel"
)

// Sweeper prunes expired in-process state between runs. The in-memory quota
// ledger implements it; backends with native TTLs do not need to.
type Sweeper interface {
	Sweep(ctx context.Context) error
}

type Service struct {
	store   report.Store
	cold    report.ColdStore
	logger  *slog.Logger
	metrics *metrics.Metrics
	sweeper Sweeper

	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithSweeper(sw Sweeper) Option {
	return func(s *Service) { s.sweeper = sw }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store report.Store, cold report.ColdStore, retention, interval time.Duration, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("report store is required")
	}
	if cold == nil {
		return nil, errors.New("cold store is required")
	}

	s := &Service{
		store:     store,
		cold:      cold,
		logger:    slog.Default(),
		retention: retention,
		interval:  interval,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AgeOut moves published reports strictly older than the retention window
// into the cold store and removes them from the live store. A report exactly
// at the boundary stays live. The copy is skipped when the cold document
// already exists, so a rerun after a partial failure does not duplicate data.
// Any single copy or removal failure aborts the whole run; already-moved
// reports stay moved and the next run picks up the rest.
func (s *Service) AgeOut(ctx context.Context) (int, error) {
	now := s.now().UTC()
	cutoff := now.Add(-s.retention)

	live, err := s.store.ListVerified(ctx)
	if err != nil {
		return 0, fmt.Errorf("list live reports: %w", err)
	}

	aged := 0
	for _, rec := range live {
		if !rec.AddedAt.Before(cutoff) {
			continue
		}
		exists, err := s.cold.Exists(ctx, rec.Key)
		if err != nil {
			return aged, fmt.Errorf("cold lookup %s: %w", rec.Key, err)
		}
		if !exists {
			if err := s.cold.Put(ctx, rec); err != nil {
				return aged, fmt.Errorf("cold copy %s: %w", rec.Key, err)
			}
		}
		if err := s.store.DeleteVerified(ctx, rec.Key); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return aged, fmt.Errorf("remove live %s: %w", rec.Key, err)
		}
		aged++
	}

	// Aging relocates data, it does not delete it: the total is untouched,
	// today resets for the new day, and the week loses exactly what moved.
	snap, err := s.store.GetStats(ctx)
	if err != nil {
		return aged, fmt.Errorf("stats read: %w", err)
	}
	snap.TodayPins = 0
	snap.WeekPins -= aged
	if snap.WeekPins < 0 {
		snap.WeekPins = 0
	}
	if err := s.store.PutStats(ctx, snap); err != nil {
		return aged, fmt.Errorf("stats write: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ReportsAgedOut.Add(float64(aged))
	}
	s.logger.InfoContext(ctx, "age-out run complete", "aged", aged)
	return aged, nil
}

// Recalculate rebuilds the aggregate snapshot from scratch and overwrites the
// stored one. Totals sum reportedCount (treating an unset count as 1) across
// cold and live stores; the rolling windows come from live timestamps only,
// since cold reports are by definition past the window.
func (s *Service) Recalculate(ctx context.Context) (report.StatsSnapshot, error) {
	now := s.now().UTC()
	weekCutoff := now.Add(-7 * 24 * time.Hour)

	cold, err := s.cold.List(ctx)
	if err != nil {
		return report.StatsSnapshot{}, fmt.Errorf("list cold reports: %w", err)
	}
	verified, err := s.store.ListVerified(ctx)
	if err != nil {
		return report.StatsSnapshot{}, fmt.Errorf("list verified reports: %w", err)
	}
	pending, err := s.store.ListPending(ctx)
	if err != nil {
		return report.StatsSnapshot{}, fmt.Errorf("list pending reports: %w", err)
	}

	var snap report.StatsSnapshot
	for _, rec := range cold {
		snap.TotalPins += countOf(rec)
	}
	for _, rec := range append(verified, pending...) {
		n := countOf(rec)
		snap.TotalPins += n
		if sameUTCDay(rec.AddedAt, now) {
			snap.TodayPins += n
		}
		if rec.AddedAt.After(weekCutoff) {
			snap.WeekPins += n
		}
	}

	if err := s.store.PutStats(ctx, snap); err != nil {
		return report.StatsSnapshot{}, fmt.Errorf("stats write: %w", err)
	}

	if s.metrics != nil {
		s.metrics.StatsRecomputes.Inc()
	}
	s.logger.InfoContext(ctx, "stats recomputed",
		"total", snap.TotalPins,
		"today", snap.TodayPins,
		"week", snap.WeekPins,
	)
	return snap, nil
}

// RunScheduler runs AgeOut on the configured interval until the context is
// cancelled. Failures are logged and the next tick retries; the age-out is
// rerun-safe.
func (s *Service) RunScheduler(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "maintenance scheduler started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "maintenance scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.AgeOut(ctx); err != nil {
				s.logger.ErrorContext(ctx, "age-out run failed", "error", err.Error())
			}
			if s.sweeper != nil {
				if err := s.sweeper.Sweep(ctx); err != nil {
					s.logger.WarnContext(ctx, "quota sweep failed", "error", err.Error())
				}
			}
		}
	}
}

func countOf(r report.Report) int {
	if r.ReportedCount <= 0 {
		return 1
	}
	return r.ReportedCount
}

func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
