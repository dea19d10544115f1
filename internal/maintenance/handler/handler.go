// Package handler exposes the maintenance jobs for on-demand runs.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sightline/internal/platform/metrics"
	"sightline/internal/platform/middleware"
	"sightline/internal/report"
	"sightline/internal/transport/http/shared"
	dErrors "sightline/pkg/domain-errors"
)

// Service defines the interface for maintenance jobs.
type Service interface {
	AgeOut(ctx context.Context) (int, error)
	Recalculate(ctx context.Context) (report.StatsSnapshot, error)
}

// Handler handles the admin maintenance endpoints.
type Handler struct {
	logger    *slog.Logger
	jobs      Service
	metrics   *metrics.Metrics
	validator middleware.TokenValidator
}

// New creates a new maintenance Handler.
func New(
	jobs Service,
	logger *slog.Logger,
	m *metrics.Metrics,
	validator middleware.TokenValidator,
) *Handler {
	return &Handler{
		logger:    logger,
		jobs:      jobs,
		metrics:   m,
		validator: validator,
	}
}

// Register registers the admin job routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(gr chi.Router) {
		gr.Use(middleware.Timeout(2 * time.Minute))
		gr.Use(middleware.RequireVerifier(h.validator, h.logger))
		gr.With(middleware.Latency(h.metrics, "recalculate")).
			Post("/admin/stats/recalculate", h.handleRecalculate)
		gr.With(middleware.Latency(h.metrics, "age_out")).
			Post("/admin/jobs/age-out", h.handleAgeOut)
	})
}

type recalculateResponse struct {
	TotalPins int `json:"totalPins"`
	TodayPins int `json:"todayPins"`
	WeekPins  int `json:"weekPins"`
}

type ageOutResponse struct {
	Aged int `json:"aged"`
}

func (h *Handler) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, err := h.jobs.Recalculate(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "stats recompute failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to recompute stats"))
		return
	}

	shared.WriteJSON(w, http.StatusOK, recalculateResponse{
		TotalPins: snap.TotalPins,
		TodayPins: snap.TodayPins,
		WeekPins:  snap.WeekPins,
	})
}

func (h *Handler) handleAgeOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	aged, err := h.jobs.AgeOut(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "age-out run failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "age-out run failed"))
		return
	}

	shared.WriteJSON(w, http.StatusOK, ageOutResponse{Aged: aged})
}
