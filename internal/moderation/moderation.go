// Package moderation classifies free-text notes before they reach a verifier.
// The Classifier port wraps the external sentiment service; the Service holds
// the rejection policy and the flagged-content archive.
package moderation

import (
	"context"
	"log/slog"
	"time"

	"sightline/internal/report"
	dErrors "sightline/pkg/domain-errors"
)

// Sentiment is the classifier's verdict on a note. Score runs from -1
// (negative) to 1 (positive); Magnitude is the overall strength of emotion.
type Sentiment struct {
	Score     float64
	Magnitude float64
}

// Classifier analyzes a note. Implementations return an error only for
// infrastructure failure.
type Classifier interface {
	Classify(ctx context.Context, text string) (Sentiment, error)
}

// Service applies the configurable rejection policy. Classifier failure fails
// the submission loudly rather than silently admitting unmoderated content:
// once content is published it cannot be unpublished cheaply, so the
// conservative direction is to reject.
type Service struct {
	classifier Classifier
	log        report.ModerationLog
	logger     *slog.Logger

	scoreThreshold     float64
	magnitudeThreshold float64
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithThresholds overrides the default policy. A note is rejected when its
// score is at or below the score threshold and its magnitude is at or above
// the magnitude threshold.
func WithThresholds(score, magnitude float64) Option {
	return func(s *Service) {
		s.scoreThreshold = score
		s.magnitudeThreshold = magnitude
	}
}

func New(classifier Classifier, log report.ModerationLog, opts ...Option) *Service {
	s := &Service{
		classifier:         classifier,
		log:                log,
		logger:             slog.Default(),
		scoreThreshold:     -0.4,
		magnitudeThreshold: 0.5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check validates a note. On rejection the original submission is archived to
// the moderation log before the error returns, so flagged content stays
// auditable.
func (s *Service) Check(ctx context.Context, address, note, source string) error {
	if note == "" {
		return nil
	}

	sentiment, err := s.classifier.Classify(ctx, note)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "content moderation unavailable")
	}

	if sentiment.Score > s.scoreThreshold || sentiment.Magnitude < s.magnitudeThreshold {
		return nil
	}

	entry := report.ModerationEntry{
		Address:   address,
		Note:      note,
		Source:    source,
		Score:     sentiment.Score,
		Magnitude: sentiment.Magnitude,
		FlaggedAt: time.Now().UTC(),
	}
	if err := s.log.AppendModeration(ctx, entry); err != nil {
		// The archive is part of the rejection contract; without it the
		// flagged content would vanish unreviewed.
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to archive flagged content")
	}

	s.logger.InfoContext(ctx, "submission note flagged by moderation",
		"score", sentiment.Score,
		"magnitude", sentiment.Magnitude,
	)
	return dErrors.New(dErrors.CodeValidation, "note was rejected by content moderation")
}
