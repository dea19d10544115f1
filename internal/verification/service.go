// Package verification implements the reviewer workflow over pending reports:
// verify, deny, and delete. Pending is the only non-terminal state; each
// transition removes the pending record as its final step, so a second attempt
// on the same id fails not-found. That is the idempotency guarantee.
package verification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"sightline/internal/audit"
	"sightline/internal/images"
	"sightline/internal/platform/metrics"
	"sightline/internal/report"
	dErrors "sightline/pkg/domain-errors"
	"sightline/pkg/platform/sentinel"
)

// pendingRemoveAttempts bounds the retry on the final pending-record removal.
// Once the image has been relocated, re-running the whole operation would
// break the single-verified-record invariant, so the removal itself retries.
const pendingRemoveAttempts = 3

// AuditLog records verification outcomes.
type AuditLog interface {
	Emit(ctx context.Context, entry audit.Entry) error
}

type Service struct {
	store   report.Store
	images  images.Store
	auditor AuditLog
	logger  *slog.Logger
	metrics *metrics.Metrics

	retryBackoff time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithRetryBackoff overrides the delay between removal retries, for tests.
func WithRetryBackoff(d time.Duration) Option {
	return func(s *Service) { s.retryBackoff = d }
}

func New(store report.Store, imageStore images.Store, auditor AuditLog, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("report store is required")
	}
	if imageStore == nil {
		return nil, errors.New("image store is required")
	}
	if auditor == nil {
		return nil, errors.New("audit log is required")
	}

	s := &Service{
		store:        store,
		images:       imageStore,
		auditor:      auditor,
		logger:       slog.Default(),
		retryBackoff: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Verify publishes a pending report. The image relocation happens before any
// record changes: if it fails, the pending record is untouched and the caller
// can retry. When a verified record already exists at the same address key,
// the pending one merges into it and its image is discarded rather than kept
// as a second copy.
func (s *Service) Verify(ctx context.Context, key, verifier string) error {
	pending, err := s.loadPending(ctx, key)
	if err != nil {
		return err
	}

	existing, err := s.store.GetVerified(ctx, key)
	merge := err == nil
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "verified lookup failed")
	}

	imageRef := ""
	switch {
	case merge:
		imageRef = existing.ImageURL
		if pending.ImagePath != "" {
			// The surviving record keeps its own image; a stray pending
			// object is harmless, so deletion failure is only logged.
			if err := s.images.Delete(ctx, pending.ImagePath); err != nil {
				s.logger.WarnContext(ctx, "failed to discard pending image",
					"key", key,
					"path", pending.ImagePath,
					"error", err.Error(),
				)
			}
		}
		if _, err := s.store.IncrementVerifiedCount(ctx, key, 1); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "verified merge failed")
		}
	case pending.ImagePath != "":
		dst := images.VerifiedPath(key, images.FileName(pending.ImagePath))
		if err := s.images.Move(ctx, pending.ImagePath, dst); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "image relocation failed")
		}
		url, err := s.images.PublicURL(ctx, dst)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "download url minting failed")
		}
		pending.ImagePath = dst
		pending.ImageURL = url
		imageRef = url
		fallthrough
	default:
		if err := s.store.PutVerified(ctx, pending); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "verified save failed")
		}
	}

	if err := s.auditor.Emit(ctx, audit.Entry{
		Kind:      audit.KindVerified,
		ReportKey: key,
		Address:   pending.Address,
		Verifier:  verifier,
		ImageRef:  imageRef,
	}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit append failed")
	}

	if err := s.removePending(ctx, key); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.ReportsVerified.Inc()
	}
	s.logger.InfoContext(ctx, "report verified",
		"key", key,
		"verifier", verifier,
		"merged", merge,
	)
	return nil
}

// Deny rejects a pending report. The image moves to a flat denied area so
// reviewers can still inspect it, and the denial is audited with the derived
// file name.
func (s *Service) Deny(ctx context.Context, key, verifier string) error {
	pending, err := s.loadPending(ctx, key)
	if err != nil {
		return err
	}

	fileName := ""
	if pending.ImagePath != "" {
		fileName = images.FileName(pending.ImagePath)
		dst := images.DeniedPath(fileName)
		if err := s.images.Move(ctx, pending.ImagePath, dst); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "image relocation failed")
		}
	}

	if err := s.auditor.Emit(ctx, audit.Entry{
		Kind:      audit.KindDenied,
		ReportKey: key,
		Address:   pending.Address,
		Verifier:  verifier,
		ImageRef:  fileName,
	}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit append failed")
	}

	if err := s.removePending(ctx, key); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.ReportsDenied.Inc()
	}
	s.logger.InfoContext(ctx, "report denied", "key", key, "verifier", verifier)
	return nil
}

// Delete discards a pending report and its image outright. Unlike deny and
// verify, pure deletion leaves no audit entry.
func (s *Service) Delete(ctx context.Context, key, verifier string) error {
	pending, err := s.loadPending(ctx, key)
	if err != nil {
		return err
	}

	if pending.ImagePath != "" {
		if err := s.images.Delete(ctx, pending.ImagePath); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "image delete failed")
		}
	}

	if err := s.removePending(ctx, key); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.ReportsDeleted.Inc()
	}
	s.logger.InfoContext(ctx, "report deleted", "key", key, "verifier", verifier)
	return nil
}

func (s *Service) loadPending(ctx context.Context, key string) (report.Report, error) {
	rec, err := s.store.GetPending(ctx, key)
	if errors.Is(err, sentinel.ErrNotFound) {
		return report.Report{}, dErrors.New(dErrors.CodeNotFound, "report not found")
	}
	if err != nil {
		return report.Report{}, dErrors.Wrap(err, dErrors.CodeInternal, "pending lookup failed")
	}
	return rec, nil
}

func (s *Service) removePending(ctx context.Context, key string) error {
	var err error
	for attempt := range pendingRemoveAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return dErrors.Wrap(ctx.Err(), dErrors.CodeInternal, "pending removal interrupted")
			case <-time.After(s.retryBackoff):
			}
		}
		err = s.store.DeletePending(ctx, key)
		if err == nil || errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		s.logger.WarnContext(ctx, "pending removal failed, retrying",
			"key", key,
			"attempt", attempt+1,
			"error", err.Error(),
		)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "pending removal failed")
}
