// Package ws streams a Harmony session to websocket viewers. Every
// connection owns a selector; bus events are forwarded as envelopes and the
// viewer's selector state is pushed as view.state after each change.
package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"harmony/internal/clock"
	"harmony/internal/harmony"
	"harmony/internal/platform/metrics"
	"harmony/internal/selector"
)

// DefaultSendBuffer is the per-viewer outbound queue length.
const DefaultSendBuffer = 64

// Loop runs callbacks on the goroutine that owns the Service. clock.Loop
// satisfies it.
type Loop interface {
	clock.Scheduler
	Do(f func()) bool
}

// Handler upgrades viewer connections.
type Handler struct {
	svc        *harmony.Service
	loop       Loop
	log        *slog.Logger
	metrics    *metrics.Metrics
	upgrader   websocket.Upgrader
	sendBuffer int
	viewers    atomic.Int64
}

// NewHandler returns a Handler serving svc. m may be nil.
func NewHandler(svc *harmony.Service, loop Loop, sendBuffer int, log *slog.Logger, m *metrics.Metrics) *Handler {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	return &Handler{
		svc:        svc,
		loop:       loop,
		log:        log,
		metrics:    m,
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Viewers returns the number of open connections.
func (h *Handler) Viewers() int { return int(h.viewers.Load()) }

// ServeHTTP handles GET /ws?feed=<id>. The feed defaults to the principal
// feed.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	feed := harmony.PrincipalFeed
	if q := r.URL.Query().Get("feed"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("invalid feed"))
			return
		}
		feed = harmony.FeedID(n)
	}

	v := newViewer(uuid.NewString(), h.sendBuffer, h.log, h.metrics)

	var err error
	if !h.loop.Do(func() { err = v.mount(h.svc, h.loop, feed) }) {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		v.log.Info("viewer rejected", slog.Int("feed_id", int(feed)), slog.String("error", err.Error()))
		if errors.Is(err, selector.ErrUnknownFeed) {
			w.WriteHeader(http.StatusNotFound)
		} else {
			w.WriteHeader(http.StatusInternalServerError)
		}
		_, _ = w.Write([]byte(err.Error()))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied.
		v.log.Debug("upgrade failed", slog.String("error", err.Error()))
		h.loop.Do(v.unmount)
		return
	}
	v.conn = conn
	h.setViewers(h.viewers.Add(1))
	v.log.Info("viewer connected", slog.Int("feed_id", int(feed)))

	go v.writeLoop()
	h.readLoop(v)

	h.loop.Do(v.unmount)
	v.close()
	h.setViewers(h.viewers.Add(-1))
	v.log.Info("viewer disconnected")
}

func (h *Handler) setViewers(n int64) {
	if h.metrics != nil {
		h.metrics.SetViewers(int(n))
	}
}

func (h *Handler) readLoop(v *viewer) {
	conn := v.conn
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				v.log.Debug("read failed", slog.String("error", err.Error()))
			}
			return
		}

		var in InboundEnvelope
		if err := json.Unmarshal(data, &in); err != nil {
			v.enqueue(errorEnvelope("", errBadPayload))
			continue
		}
		var cmd Command
		if len(in.Data) > 0 {
			if err := json.Unmarshal(in.Data, &cmd); err != nil {
				v.enqueue(errorEnvelope(in.Kind, errBadPayload))
				continue
			}
		}

		var applyErr error
		if !h.loop.Do(func() { applyErr = v.apply(in.Kind, cmd) }) {
			v.enqueue(errorEnvelope(in.Kind, errUnavailable))
			return
		}
		if applyErr != nil {
			v.log.Debug("command rejected", slog.String("kind", in.Kind), slog.String("error", applyErr.Error()))
			v.enqueue(errorEnvelope(in.Kind, applyErr))
		}
	}
}
