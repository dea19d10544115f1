// Package handler exposes report submission over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"sightline/internal/intake"
	"sightline/internal/platform/metrics"
	"sightline/internal/platform/middleware"
	"sightline/internal/transport/http/shared"
	dErrors "sightline/pkg/domain-errors"
)

// Service defines the interface for report intake.
type Service interface {
	Submit(ctx context.Context, sub intake.Submission) (intake.Result, error)
	SubmitVerified(ctx context.Context, sub intake.Submission) (intake.Result, error)
}

// Handler handles report submission endpoints.
type Handler struct {
	logger    *slog.Logger
	intake    Service
	metrics   *metrics.Metrics
	validator middleware.TokenValidator
}

// New creates a new intake Handler.
func New(
	intakeSvc Service,
	logger *slog.Logger,
	m *metrics.Metrics,
	validator middleware.TokenValidator,
) *Handler {
	return &Handler{
		logger:    logger,
		intake:    intakeSvc,
		metrics:   m,
		validator: validator,
	}
}

// Register registers the intake routes with the chi router. The shared
// middleware chain lives on the root router; only route-specific concerns are
// attached here.
func (h *Handler) Register(r chi.Router) {
	r.With(middleware.Timeout(30*time.Second), middleware.Latency(h.metrics, "submit")).
		Post("/reports", h.handleSubmit)
	r.With(
		middleware.Timeout(30*time.Second),
		middleware.Latency(h.metrics, "submit_verified"),
		middleware.RequireVerifier(h.validator, h.logger),
	).Post("/admin/reports", h.handleSubmitVerified)
}

type submitRequest struct {
	Address        string `json:"address"`
	AddedAt        string `json:"addedAt"`
	AdditionalInfo string `json:"additionalInfo"`
	ImagePath      string `json:"imagePath"`
}

type submitResponse struct {
	Address string `json:"address"`
	Status  string `json:"status"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, h.intake.Submit)
}

func (h *Handler) handleSubmitVerified(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, h.intake.SubmitVerified)
}

func (h *Handler) submit(
	w http.ResponseWriter,
	r *http.Request,
	submit func(context.Context, intake.Submission) (intake.Result, error),
) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid submit request",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := submit(ctx, intake.Submission{
		Address:        req.Address,
		AddedAt:        req.AddedAt,
		AdditionalInfo: req.AdditionalInfo,
		ImagePath:      req.ImagePath,
		Source:         ClientSource(r),
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) || dErrors.HasCode(err, dErrors.CodeQuotaExceeded) {
			h.logger.WarnContext(ctx, "submission rejected",
				"request_id", requestID,
				"error", err.Error(),
			)
			shared.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "submission failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to process report"))
		return
	}

	status, httpStatus := "created", http.StatusCreated
	if result.Updated {
		status, httpStatus = "updated", http.StatusOK
	}
	shared.WriteJSON(w, httpStatus, submitResponse{Address: result.Address, Status: status})
}

// ClientSource identifies the submitting client: the first hop in
// X-Forwarded-For when present, otherwise the direct connection address.
// Returns "" when neither yields a usable address.
func ClientSource(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
