package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"harmony/internal/clock"
	"harmony/internal/harmony"
	"harmony/internal/platform/metrics"
	"harmony/internal/selector"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// viewer is one websocket connection with its own selector. Fields below
// the marker are confined to the scheduler goroutine.
type viewer struct {
	id      string
	log     *slog.Logger
	metrics *metrics.Metrics
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once

	// loop-confined
	bus    *harmony.Bus
	sched  clock.Scheduler
	sel    *selector.Selector
	detach func()
	subs   []harmony.Subscription
}

func newViewer(id string, buffer int, log *slog.Logger, m *metrics.Metrics) *viewer {
	return &viewer{
		id:      id,
		log:     log.With(slog.String("conn_id", id)),
		metrics: m,
		send:    make(chan []byte, buffer),
		done:    make(chan struct{}),
	}
}

// enqueue never blocks the loop: a slow viewer loses frames instead.
func (v *viewer) enqueue(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		v.log.Error("encode frame failed", slog.String("error", err.Error()))
		return
	}
	select {
	case v.send <- data:
	case <-v.done:
	default:
		v.log.Debug("send buffer full, dropping frame")
	}
}

// mount creates the selector and subscribes to the bus. It must run on the
// scheduler goroutine.
func (v *viewer) mount(svc *harmony.Service, sched clock.Scheduler, feed harmony.FeedID) error {
	v.bus = svc.Bus()
	v.sched = sched
	if err := v.attach(svc.Feeds(), feed); err != nil {
		return err
	}

	// Raw events go out before the view change they cause.
	v.subs = v.bus.SubscribeAll(func(e harmony.Event) { v.enqueue(harmony.Wrap(e)) })
	v.reattach()
	v.subs = append(v.subs, harmony.On(v.bus, v.reload))

	v.pushView(v.sel.View())
	return nil
}

func (v *viewer) attach(feeds []harmony.Feed, feed harmony.FeedID) error {
	sel, err := selector.New(feeds, feed, v.sched, selector.Options{
		OnChange: v.pushView,
		Log:      v.log,
		Metrics:  v.metrics,
	})
	if err != nil {
		return err
	}
	v.sel = sel
	return nil
}

func (v *viewer) reattach() {
	if v.detach != nil {
		v.detach()
	}
	v.detach = v.sel.Attach(v.bus)
}

// reload replaces the selector after the session switched events. The viewer
// stays on its feed when the new event has one with the same id.
func (v *viewer) reload(e harmony.SessionLoaded) {
	keep := v.sel.Active()
	if len(harmony.AvailableAngles(e.Feeds, keep)) == 0 && keep != harmony.PrincipalFeed {
		keep = harmony.PrincipalFeed
	}

	old := v.sel
	if err := v.attach(e.Feeds, keep); err != nil {
		v.log.Warn("rebuild selector failed", slog.String("event_id", e.EventID), slog.String("error", err.Error()))
		v.enqueue(errorEnvelope("", err))
		return
	}
	old.Close()
	v.reattach()
	v.pushView(v.sel.View())
}

// unmount cancels every subscription and timer. It must run on the
// scheduler goroutine.
func (v *viewer) unmount() {
	harmony.CancelAll(v.subs)
	v.subs = nil
	if v.detach != nil {
		v.detach()
		v.detach = nil
	}
	if v.sel != nil {
		v.sel.Close()
	}
}

func (v *viewer) pushView(view selector.View) {
	v.enqueue(Envelope{Kind: KindViewState, Data: view})
}

// apply runs one inbound command against the selector.
func (v *viewer) apply(kind string, c Command) error {
	switch kind {
	case CmdSelectFeed:
		return v.sel.SelectFeed(c.FeedID)
	case CmdEnterSplit:
		return v.sel.EnterSplitMode()
	case CmdExitSplit:
		return v.sel.ExitSplitMode(c.FeedID)
	case CmdToggleMember:
		return v.sel.ToggleMember(c.FeedID)
	case CmdPickAngle:
		return v.sel.PickAngle(c.FeedID, c.AngleID)
	case CmdSetAutoDirector:
		return v.sel.SetAutoDirector(c.FeedID, c.Enabled)
	}
	return errUnknownKind
}

func (v *viewer) close() {
	v.once.Do(func() { close(v.done) })
}

// writeLoop owns all writes to the connection.
func (v *viewer) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = v.conn.Close()
	}()

	for {
		select {
		case msg := <-v.send:
			_ = v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				v.log.Debug("write failed", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			_ = v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-v.done:
			_ = v.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
