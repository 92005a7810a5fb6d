package orchestrator

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"harmony/internal/harmony"
)

const playlistContentType = "application/vnd.apple.mpegurl"

// Handler exposes catalog HTTP endpoints using go-chi.
type Handler struct {
	svc *Service
	log *slog.Logger
}

// NewHandler returns a Handler that uses the given Service and Logger.
func NewHandler(svc *Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Routes mounts the catalog endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/events", h.ListEvents)
	r.Route("/events/{event_id}", func(r chi.Router) {
		r.Get("/", h.GetEvent)
		r.Get("/feeds/{feed_id}/angles.m3u8", h.GetAnglePlaylist)
	})
}

// ListEvents handles GET /events.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Events())
}

// GetEvent handles GET /events/{event_id}.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id := EventID(chi.URLParam(r, "event_id"))
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	e, err := h.svc.Event(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// GetAnglePlaylist handles GET /events/{event_id}/feeds/{feed_id}/angles.m3u8.
// The optional angle query parameter selects the default angle.
func (h *Handler) GetAnglePlaylist(w http.ResponseWriter, r *http.Request) {
	eventID := EventID(chi.URLParam(r, "event_id"))
	feedID, err := strconv.Atoi(chi.URLParam(r, "feed_id"))
	if eventID == "" || err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var angle int
	if v := r.URL.Query().Get("angle"); v != "" {
		if angle, err = strconv.Atoi(v); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
	}

	m3u8, err := h.svc.AnglePlaylist(eventID, harmony.FeedID(feedID), harmony.AngleID(angle))
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", playlistContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(m3u8))
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEventNotFound), errors.Is(err, ErrFeedNotFound), errors.Is(err, ErrAngleNotFound):
		h.log.Debug("catalog lookup failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusNotFound)
	default:
		h.log.Error("catalog request failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
