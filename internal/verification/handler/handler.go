// Package handler exposes the verifier workflow over HTTP. All routes require
// a token carrying the verifier role.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sightline/internal/platform/metrics"
	"sightline/internal/platform/middleware"
	"sightline/internal/transport/http/shared"
	dErrors "sightline/pkg/domain-errors"
)

// Service defines the interface for verification workflow operations.
type Service interface {
	Verify(ctx context.Context, key, verifier string) error
	Deny(ctx context.Context, key, verifier string) error
	Delete(ctx context.Context, key, verifier string) error
}

// Handler handles verification workflow endpoints.
type Handler struct {
	logger    *slog.Logger
	workflow  Service
	metrics   *metrics.Metrics
	validator middleware.TokenValidator
}

// New creates a new verification Handler.
func New(
	workflow Service,
	logger *slog.Logger,
	m *metrics.Metrics,
	validator middleware.TokenValidator,
) *Handler {
	return &Handler{
		logger:    logger,
		workflow:  workflow,
		metrics:   m,
		validator: validator,
	}
}

// Register registers the workflow routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(gr chi.Router) {
		gr.Use(middleware.Timeout(30 * time.Second))
		gr.Use(middleware.RequireVerifier(h.validator, h.logger))
		gr.With(middleware.Latency(h.metrics, "verify")).
			Post("/reports/{id}/verify", h.action("verified", h.workflow.Verify))
		gr.With(middleware.Latency(h.metrics, "deny")).
			Post("/reports/{id}/deny", h.action("denied", h.workflow.Deny))
		gr.With(middleware.Latency(h.metrics, "delete")).
			Delete("/reports/{id}", h.action("deleted", h.workflow.Delete))
	})
}

type actionResponse struct {
	Message string `json:"message"`
}

func (h *Handler) action(
	verb string,
	op func(ctx context.Context, key, verifier string) error,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := middleware.GetRequestID(ctx)

		key := chi.URLParam(r, "id")
		if key == "" {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "report id is required"))
			return
		}

		verifier := middleware.GetVerifier(ctx)
		if verifier == "" {
			// Should never happen behind RequireVerifier.
			h.logger.ErrorContext(ctx, "verifier missing from context despite auth middleware",
				"request_id", requestID,
			)
			shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
			return
		}

		if err := op(ctx, key, verifier); err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				h.logger.WarnContext(ctx, "report not found",
					"request_id", requestID,
					"key", key,
				)
				shared.WriteError(w, err)
				return
			}
			h.logger.ErrorContext(ctx, "workflow operation failed",
				"request_id", requestID,
				"key", key,
				"error", err.Error(),
			)
			shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to process report"))
			return
		}

		shared.WriteJSON(w, http.StatusOK, actionResponse{Message: "report " + verb})
	}
}
