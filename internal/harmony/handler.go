package harmony

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Runner executes f on the goroutine that owns the Service and waits for it.
// clock.Loop satisfies it.
type Runner interface {
	Do(f func()) bool
}

// FeedSource resolves an event id to its feed set.
type FeedSource interface {
	Feeds(eventID string) ([]Feed, bool)
}

// SessionHandler exposes session control endpoints using go-chi.
type SessionHandler struct {
	svc    *Service
	run    Runner
	source FeedSource
	log    *slog.Logger
}

// NewHandler returns a SessionHandler driving svc through run.
func NewHandler(svc *Service, run Runner, source FeedSource, log *slog.Logger) *SessionHandler {
	return &SessionHandler{svc: svc, run: run, source: source, log: log}
}

// Routes mounts the session endpoints on r.
func (h *SessionHandler) Routes(r chi.Router) {
	r.Get("/", h.GetStatus)
	r.Post("/load/{event_id}", h.LoadEvent)
	r.Post("/connect", h.Connect)
	r.Post("/disconnect", h.Disconnect)
	r.Put("/network", h.SetNetwork)
}

func (h *SessionHandler) status() (Status, bool) {
	var st Status
	ok := h.run.Do(func() { st = h.svc.Status() })
	return st, ok
}

func (h *SessionHandler) writeStatus(w http.ResponseWriter, code int) {
	st, ok := h.status()
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(st)
}

// GetStatus handles GET /session.
func (h *SessionHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	h.writeStatus(w, http.StatusOK)
}

// LoadEvent handles POST /session/load/{event_id}.
func (h *SessionHandler) LoadEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "event_id")
	if eventID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	feeds, ok := h.source.Feeds(eventID)
	if !ok {
		h.log.Debug("load unknown event", slog.String("event_id", eventID))
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if !h.run.Do(func() { h.svc.LoadEvent(eventID, feeds) }) {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	h.writeStatus(w, http.StatusOK)
}

// Connect handles POST /session/connect. The response reports the
// reconnecting state; watch dataplane.status events for the transition.
func (h *SessionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	if !h.run.Do(h.svc.Connect) {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	h.writeStatus(w, http.StatusAccepted)
}

// Disconnect handles POST /session/disconnect.
func (h *SessionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if !h.run.Do(h.svc.Disconnect) {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	h.writeStatus(w, http.StatusOK)
}

type networkRequest struct {
	Condition string `json:"condition"`
}

// SetNetwork handles PUT /session/network.
// Body: { "condition": "poor" }.
func (h *SessionHandler) SetNetwork(w http.ResponseWriter, r *http.Request) {
	var req networkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid network body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	cond, err := ParseNetworkCondition(req.Condition)
	if err != nil {
		h.log.Debug("invalid network condition", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}

	if !h.run.Do(func() { h.svc.SetNetworkCondition(cond) }) {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	h.writeStatus(w, http.StatusOK)
}
