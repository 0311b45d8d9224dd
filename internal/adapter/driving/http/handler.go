// Package httphandler is the HTTP driving adapter serving the REST API.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/wellpanel/internal/application"
	"github.com/ericfisherdev/wellpanel/internal/domain/model"
	"github.com/ericfisherdev/wellpanel/internal/domain/port/driven"
)

const defaultHistoryLimit = 30

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	authSvc  *application.AuthService
	syncSvc  *application.SyncService
	statsSvc *application.StatsService
	logger   *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	authSvc *application.AuthService,
	syncSvc *application.SyncService,
	statsSvc *application.StatsService,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		authSvc:  authSvc,
		syncSvc:  syncSvc,
		statsSvc: statsSvc,
		logger:   logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/auth/login", h.Login)
	mux.HandleFunc("DELETE /api/v1/auth/session", h.Logout)
	mux.HandleFunc("GET /api/v1/auth/status", h.AuthStatus)
	mux.HandleFunc("POST /api/v1/sync", h.TriggerSync)
	mux.HandleFunc("GET /api/v1/wellness/{date}", h.GetWellnessByDate)
	mux.HandleFunc("GET /api/v1/wellness", h.ListWellness)
	mux.HandleFunc("GET /api/v1/stats", h.GetStats)
	mux.HandleFunc("GET /api/v1/export", h.GetExport)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Login authenticates against the vendor with the submitted credentials.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	if err := h.authSvc.Login(r.Context(), req.Email, req.Password); err != nil {
		switch {
		case errors.Is(err, driven.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, driven.ErrAccountLocked):
			writeError(w, http.StatusLocked, "account locked")
		case errors.Is(err, driven.ErrMFARequired):
			writeError(w, http.StatusNotImplemented, "multi-factor authentication is not supported")
		default:
			h.logger.Error("login failed", "error", err)
			writeError(w, http.StatusBadGateway, "vendor login failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, AuthStatusResponse{Authenticated: true})
}

// Logout discards the current vendor session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authSvc.Logout(r.Context()); err != nil {
		h.logger.Error("logout failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AuthStatus reports whether a usable vendor session is held.
func (h *Handler) AuthStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, AuthStatusResponse{Authenticated: h.authSvc.Authenticated()})
}

// TriggerSync runs an immediate backfill, bypassing the interval. An
// optional "days" query parameter overrides the configured window.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid days parameter")
			return
		}
		days = n
	}

	res, err := h.syncSvc.TriggerSync(r.Context(), days)
	if err != nil {
		h.logger.Error("sync trigger failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !res.Success {
		if errors.Is(res.Err, application.ErrNotAuthenticated) {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		h.logger.Error("sync failed", "error", res.Err)
		writeError(w, http.StatusBadGateway, "sync failed")
		return
	}

	writeJSON(w, http.StatusOK, toSyncResponse(res))
}

// GetWellnessByDate returns the stored record for one calendar date.
func (h *Handler) GetWellnessByDate(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	rec, err := h.statsSvc.GetByDate(r.Context(), date)
	if err != nil {
		h.logger.Error("get wellness record failed", "date", date, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "no record for date")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// ListWellness returns recent records, newest first. An optional "limit"
// query parameter caps the count.
func (h *Handler) ListWellness(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		limit = n
	}

	records, err := h.statsSvc.GetHistory(r.Context(), limit)
	if err != nil {
		h.logger.Error("list wellness records failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if records == nil {
		records = []model.WellnessRecord{}
	}

	writeJSON(w, http.StatusOK, records)
}

// GetStats returns aggregate store counts and the last sync time.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.statsSvc.Stats(r.Context())
	if err != nil {
		h.logger.Error("get stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toStatsResponse(stats))
}

// GetExport returns the full serialized store with a manifest.
func (h *Handler) GetExport(w http.ResponseWriter, r *http.Request) {
	export, err := h.statsSvc.Export(r.Context())
	if err != nil {
		h.logger.Error("export failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="wellpanel-export.json"`)
	writeJSON(w, http.StatusOK, export)
}

// Health is a liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
