package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sigreg/internal/transport"
	dErrors "sigreg/pkg/domain-errors"
	"sigreg/pkg/platform/httputil"
)

// EventHandler consumes inbound chat events. Satisfied by session.Router.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev transport.Event) error
}

// Sweeper runs a reminder sweep on demand. Satisfied by reminder.Scheduler.
type Sweeper interface {
	RunOnce(ctx context.Context, offsetDays int) error
}

// Handler serves the inbound webhook and the admin surface.
type Handler struct {
	events  EventHandler
	sweeper Sweeper
	logger  *slog.Logger
}

type Option func(h *Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// New constructs a Handler.
func New(events EventHandler, sweeper Sweeper, opts ...Option) *Handler {
	h := &Handler{events: events, sweeper: sweeper, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router mounts all routes. reg backs the /metrics endpoint.
func (h *Handler) Router(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/v1/events", h.handleEvent)
	r.Post("/admin/sweep", h.handleSweep)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return r
}

// handleEvent accepts one chat event from the gateway. The event is handled
// synchronously; the session lock serializes events per chat.
func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	ev, ok := httputil.DecodeJSON[transport.Event](w, r)
	if !ok {
		return
	}
	if ev.ChatID == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "chat_id is required"))
		return
	}
	if ev.Kind != transport.KindText && ev.Kind != transport.KindAction {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "unknown event kind %q", ev.Kind))
		return
	}

	if err := h.events.HandleEvent(r.Context(), ev); err != nil {
		h.logger.Error("event handling failed", "chat_id", ev.ChatID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "handled"})
}

// handleSweep triggers a reminder sweep now. The optional signed offset
// query parameter shifts the sweep's notion of today by whole days.
func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "bad offset %q", raw))
			return
		}
		offset = n
	}

	if err := h.sweeper.RunOnce(r.Context(), offset); err != nil {
		h.logger.Error("manual sweep failed", "offset", offset, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "swept"})
}
