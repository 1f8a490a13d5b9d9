package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"crate/internal/digging"
	"crate/internal/logging"
	"crate/internal/queue"
)

// maxBodyBytes bounds request bodies accepted by POST endpoints.
const maxBodyBytes = 64 << 10

// QueueService is the queue surface served over HTTP.
type QueueService interface {
	UpNext(ctx context.Context, limit int) (digging.Page, error)
	ExportAll(ctx context.Context) ([]*queue.Entry, error)
	List(ctx context.Context, states ...queue.State) ([]*queue.Entry, error)
	Add(ctx context.Context, artist, title, catalogText string) (*queue.Entry, error)
	Remove(ctx context.Context, id int64) error
	RetryNow(ctx context.Context, id int64) (*queue.Entry, error)
	Stats(ctx context.Context) (digging.Stats, error)
	Clear(ctx context.Context) (int64, error)
}

// HealthChecker reports database health.
type HealthChecker interface {
	CheckHealth(ctx context.Context) (queue.Health, error)
}

// Handler serves the queue API.
type Handler struct {
	queue    QueueService
	health   HealthChecker
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// HandlerOption customises a Handler.
type HandlerOption func(*Handler)

// WithClock overrides the clock used for export filenames.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs the API handler. health may be nil.
func NewHandler(svc QueueService, health HealthChecker, logger *slog.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		queue:    svc,
		health:   health,
		logger:   logging.NewComponentLogger(logger, "api"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes mounts every endpoint on a chi router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.handleHealth)
		r.Route("/queue", func(r chi.Router) {
			r.Get("/", h.handleList)
			r.Post("/", h.handleAdd)
			r.Delete("/", h.handleClear)
			r.Get("/next", h.handleNext)
			r.Get("/export", h.handleExport)
			r.Get("/stats", h.handleStats)
			r.Delete("/{id}", h.handleRemove)
			r.Post("/{id}/retry", h.handleRetry)
		})
	})
	return r
}

func (h *Handler) handleNext(w http.ResponseWriter, r *http.Request) {
	limit := ParseLimit(r.URL.Query().Get("limit"))
	page, err := h.queue.UpNext(r.Context(), limit)
	if err != nil && !errors.Is(err, digging.ErrCatalogUnavailable) {
		h.writeServiceError(w, r, err)
		return
	}
	if err != nil {
		logging.WarnWithContext(h.requestLogger(r), "up next served with catalog failures", "catalog_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check catalog connectivity and token"),
			logging.String(logging.FieldImpact, "some entries stay unresolved until the next retry"),
		)
	}
	h.writeJSON(w, r, http.StatusOK, FromPage(page, err))
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	entries, err := h.queue.ExportAll(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ExportFilename(h.now())))
	h.writeJSON(w, r, http.StatusOK, FromEntries(entries))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	var states []queue.State
	for _, value := range r.URL.Query()["state"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		state, ok := queue.ParseState(trimmed)
		if !ok {
			h.writeError(w, r, http.StatusBadRequest, fmt.Sprintf("unknown state %q", trimmed))
			return
		}
		states = append(states, state)
	}
	entries, err := h.queue.List(r.Context(), states...)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, QueueListResponse{Entries: FromEntries(entries)})
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req AddEntryRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, validationMessage(err))
		return
	}
	entry, err := h.queue.Add(r.Context(), req.Artist, req.Title, req.CatalogText)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, QueueEntryResponse{Entry: FromEntry(entry)})
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.queue.Remove(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	entry, err := h.queue.RetryNow(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, QueueEntryResponse{Entry: FromEntry(entry)})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queue.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, QueueStatsResponse{Summary: FromSummary(stats.Summary, stats.InFlight)})
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	removed, err := h.queue.Clear(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, ClearResponse{Removed: removed})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if h.health != nil {
		health, err := h.health.CheckHealth(r.Context())
		if err != nil {
			logging.ErrorWithContext(h.requestLogger(r), "health check failed", "health_check_failed", logging.Error(err))
			h.writeJSON(w, r, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
			return
		}
		resp.QueueDBPath = health.Path
		resp.SchemaVersion = health.SchemaVersion
		resp.Entries = health.Entries
		resp.States = make(map[string]int, len(health.States))
		for state, count := range health.States {
			resp.States[string(state)] = count
		}
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, r, http.StatusBadRequest, "invalid queue entry id")
		return 0, false
	}
	return id, true
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Sprintf("%s failed %s=%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param())
	}
	return "invalid request"
}
