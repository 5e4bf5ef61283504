package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"countyportal/internal/config"
	"countyportal/internal/metrics"
	"countyportal/internal/middleware"
	"countyportal/internal/rate"
	"countyportal/internal/service"
	"countyportal/internal/store"
	"countyportal/internal/util"
	"countyportal/internal/version"
)

const (
	commentRateLimit    = 10
	commentRateWindow   = time.Minute
	subscribeRateLimit  = 3
	subscribeRateWindow = 5 * time.Minute
	readyTimeout        = 2 * time.Second
)

type Handlers struct {
	cfg     config.Config
	svc     *service.Service
	limiter rate.Limiter
	logger  *zap.Logger
}

func NewRouter(cfg config.Config, svc *service.Service, limiter rate.Limiter, logger *zap.Logger, m *metrics.Metrics) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = rate.NewMemoryLimiter()
	}
	h := &Handlers{cfg: cfg, svc: svc, limiter: limiter, logger: logger.Named("api")}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RequestLogger(logger, m, cfg.TrustProxy))
	r.Use(middleware.SecurityHeaders)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
			ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
			MaxAge:         300,
		}))
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		util.WriteJSON(w, 200, map[string]any{"status": "ok", "version": version.Current()})
	})
	r.Get("/health/ready", h.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/projects/{id}", func(r chi.Router) {
			r.Get("/comments", h.ProjectComments)
			r.With(middleware.RateLimit(h.limiter, "comment_submit", commentRateLimit, commentRateWindow, cfg.TrustProxy)).
				Post("/comments", h.SubmitComment)
			r.With(middleware.RateLimit(h.limiter, "subscribe", subscribeRateLimit, subscribeRateWindow, cfg.TrustProxy)).
				Post("/subscriptions", h.Subscribe)
			r.Get("/subscribers/count", h.SubscriberCount)
		})
		r.Get("/subscriptions/verify", h.VerifySubscription)
		r.Post("/subscriptions/verify", h.VerifySubscription)
		r.Get("/subscriptions/unsubscribe", h.Unsubscribe)
		r.Post("/subscriptions/unsubscribe", h.Unsubscribe)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.AdminAuth(cfg.AdminTokens))
			r.Get("/comments", h.AdminListComments)
			r.Post("/comments/bulk", h.AdminBulkModerate)
			r.Post("/comments/{id}/approve", h.AdminApproveComment)
			r.Post("/comments/{id}/reject", h.AdminRejectComment)
			r.Post("/comments/{id}/grievance", h.AdminMarkGrievance)
			r.Post("/comments/{id}/respond", h.AdminRespond)
			r.Delete("/comments/{id}", h.AdminDeleteComment)

			r.Get("/word-lists", h.AdminWordLists)
			r.With(middleware.SuperAdminOnly(cfg.IsSuperAdmin)).Put("/word-lists", h.AdminReplaceWordLists)
			r.Get("/filter/stats", h.AdminFilterStats)
			r.Post("/filter/preview", h.AdminPreviewFilter)

			r.Post("/projects/{id}/notifications", h.AdminSendProjectUpdate)
			r.Get("/activity", h.AdminActivity)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		util.WriteError(w, http.StatusNotFound, "not_found", "not found", middleware.RequestID(r.Context()))
	})
	return r
}

func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	out := map[string]any{"checked_at": time.Now().UTC().Format(time.RFC3339)}

	// Mail is reported but does not gate readiness; comments keep working
	// while the relay is down.
	if checked, err := h.svc.MailHealth(ctx); checked && err != nil {
		h.logger.Warn("mail relay probe failed", zap.Error(err))
		out["mail"] = map[string]any{"ok": false}
	} else if checked {
		out["mail"] = map[string]any{"ok": true}
	}

	if err := h.svc.Ready(ctx); err != nil {
		h.logger.Warn("readiness check failed", zap.Error(err))
		out["status"] = "degraded"
		out["database"] = map[string]any{"ok": false}
		util.WriteJSON(w, http.StatusServiceUnavailable, out)
		return
	}
	out["status"] = "ready"
	out["database"] = map[string]any{"ok": true}
	util.WriteJSON(w, 200, out)
}

// writeServiceError maps service and store errors onto HTTP responses.
// Anything unrecognised is logged and reported as a generic failure.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	rid := middleware.RequestID(r.Context())
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		util.WriteError(w, http.StatusBadRequest, "validation_error", ve.Message, rid)
	case errors.Is(err, service.ErrDuplicateComment):
		util.WriteError(w, http.StatusConflict, "duplicate_comment", "Duplicate comment detected. Please wait before submitting again.", rid)
	case errors.Is(err, service.ErrAlreadySubscribed):
		util.WriteError(w, http.StatusConflict, "already_subscribed", "You are already subscribed to updates for this project.", rid)
	case errors.Is(err, service.ErrProjectNotFound):
		util.WriteError(w, http.StatusNotFound, "project_not_found", "Project not found.", rid)
	case errors.Is(err, service.ErrProjectUnavailable):
		util.WriteError(w, http.StatusNotFound, "project_unavailable", "Project not found or not available for subscription.", rid)
	case errors.Is(err, service.ErrInvalidToken):
		util.WriteError(w, http.StatusBadRequest, "invalid_token", "Invalid or expired link.", rid)
	case errors.Is(err, store.ErrNotFound):
		util.WriteError(w, http.StatusNotFound, "not_found", "not found", rid)
	default:
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.String("request_id", rid), zap.Error(err))
		util.WriteError(w, http.StatusInternalServerError, "internal_error", "An error occurred while processing your request. Please try again.", rid)
	}
}

func (h *Handlers) idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		util.WriteError(w, http.StatusBadRequest, "bad_request", "invalid id", middleware.RequestID(r.Context()))
		return 0, false
	}
	return id, true
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := util.DecodeJSON(w, r, dst); err != nil {
		util.WriteError(w, http.StatusBadRequest, "bad_request", err.Error(), middleware.RequestID(r.Context()))
		return false
	}
	return true
}

func parsePagination(r *http.Request) (int, int) {
	page := 1
	pageSize := 20
	if v := r.URL.Query().Get("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			page = p
		}
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if ps, err := strconv.Atoi(v); err == nil {
			if ps < 1 {
				ps = 1
			}
			if ps > 100 {
				ps = 100
			}
			pageSize = ps
		}
	}
	return page, pageSize
}
