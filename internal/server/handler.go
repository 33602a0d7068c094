package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/repair-orders/internal/access"
	"github.com/joseph-ayodele/repair-orders/internal/async"
	"github.com/joseph-ayodele/repair-orders/internal/common"
	"github.com/joseph-ayodele/repair-orders/internal/export"
	"github.com/joseph-ayodele/repair-orders/internal/metrics"
	"github.com/joseph-ayodele/repair-orders/internal/services/batch"
	"github.com/joseph-ayodele/repair-orders/internal/services/onboarding"
	"github.com/joseph-ayodele/repair-orders/internal/services/operator"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderRequestID = "X-Request-ID"

	maxBodyBytes   = 1 << 20
	maxUploadBytes = 50 << 20
	xlsxMime       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// HealthChecker is satisfied by *repository.DB.
type HealthChecker interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// CatalogInvalidator is satisfied by *pricelist.Cache.
type CatalogInvalidator interface {
	Invalidate(ctx context.Context) error
}

type Deps struct {
	Batches    *batch.Service
	Operators  *operator.Service
	Onboarding *onboarding.Flow
	Export     *export.Service
	Queue      async.Queue
	Catalog    CatalogInvalidator
	Access     *access.AllowList
	Metrics    *metrics.Registry
	DB         HealthChecker
	UploadDir  string
}

// Handler serves the admin HTTP API.
type Handler struct {
	d      Deps
	logger *slog.Logger
}

func NewHandler(d Deps, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if d.Access == nil {
		d.Access = access.NewAllowList(nil, logger)
	}
	return &Handler{d: d, logger: logger}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.identity)

	r.Get("/healthz", h.Health)
	if h.d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.d.Metrics.Handler())
	}

	r.Get("/stations", h.ListStations)
	r.Route("/batches", func(r chi.Router) {
		r.Get("/", h.ListBatches)
		r.Get("/review", h.ListReview)
		r.Get("/{id}", h.GetBatch)
		r.Post("/{id}/approve", h.Approve)
		r.Post("/{id}/reject", h.Reject)
	})
	r.Get("/export", h.ExportApproved)
	r.Get("/reports", h.OperatorReport)
	r.Post("/uploads", h.Upload)
	r.Post("/pricelist/refresh", h.RefreshPricelist)

	r.Route("/operators", func(r chi.Router) {
		r.Get("/", h.ListOperators)
		r.Post("/", h.RegisterOperator)
		r.Delete("/{tg_id}", h.RemoveOperator)
	})
	r.Post("/onboarding/start", h.StartOnboarding)
	r.Post("/onboarding/messages", h.OnboardingMessage)
	return r
}

// identity puts the request id and the acting identity into the context.
func (h *Handler) identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get(HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, rid)
		ctx := common.WithRequestID(r.Context(), rid)

		if v := strings.TrimSpace(r.Header.Get(HeaderActorID)); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				respondError(w, http.StatusBadRequest, HeaderActorID+" must be numeric")
				return
			}
			ctx = common.WithActorID(ctx, id)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.d.DB != nil {
		if err := h.d.DB.HealthCheck(r.Context(), 2*time.Second); err != nil {
			h.logger.Warn("http.health.db_failed", "error", err)
			respondError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) RefreshPricelist(w http.ResponseWriter, r *http.Request) {
	if h.d.Catalog == nil {
		respondError(w, http.StatusNotFound, "no catalog configured")
		return
	}
	if err := h.d.Access.Check(r.Context(), "refresh_pricelist"); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.d.Catalog.Invalidate(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "invalidated"})
}

// fail maps service errors onto HTTP statuses. Only authorization and
// not-found carry a user-facing message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrUnauthorized):
		respondError(w, http.StatusForbidden, common.UserMessage(err, "forbidden"))
	case errors.Is(err, common.ErrNotFound):
		respondError(w, http.StatusNotFound, common.UserMessage(err, "not found"))
	case errors.Is(err, common.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, common.UserMessage(err, "invalid input"))
	case errors.Is(err, async.ErrQueueClosed):
		respondError(w, http.StatusServiceUnavailable, "shutting down")
	default:
		h.logger.Error("http.request.failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", common.RequestIDFromContext(r.Context()),
			"error", err,
		)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return common.InvalidArgumentErrorf("invalid request body: %v", err)
	}
	return nil
}

func pathInt64(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, common.InvalidArgumentErrorf("%s must be numeric", name)
	}
	return v, nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func respondXLSX(w http.ResponseWriter, name string, data []byte) {
	w.Header().Set("Content-Type", xlsxMime)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
