package harmony

import (
	"log/slog"
	"math/rand/v2"
	"runtime/debug"
	"time"

	"harmony/internal/clock"
	"harmony/internal/platform/metrics"
)

// Defaults for Config fields left zero.
const (
	DefaultConnectDelay     = 1200 * time.Millisecond
	DefaultHeartbeatPeriod  = 100 * time.Millisecond
	DefaultTelemetryPeriod  = 100 * time.Millisecond
	DefaultDirectorPeriod   = time.Second
	DefaultPoorNetworkDrop  = 0.7
	DefaultPrincipalCutProb = 0.2
	DefaultFeedCutProb      = 0.1
	InitialQueueOffset      = 42984120
	DirectorTransitionSec   = 0.5
)

// DirectorReasons are the labels a director cut is attributed to.
var DirectorReasons = []string{
	"Ball Action",
	"Crowd Reaction",
	"Tactical Shift",
	"Player Focus",
	"Replay Analysis",
}

// Config tunes the simulator. Zero values select the defaults above.
type Config struct {
	ConnectDelay     time.Duration
	HeartbeatPeriod  time.Duration
	TelemetryPeriod  time.Duration
	DirectorPeriod   time.Duration
	PoorNetworkDrop  float64
	PrincipalCutProb float64
	FeedCutProb      float64
	// Seed makes the simulation reproducible. Zero seeds from the clock.
	Seed int64
}

func (c Config) withDefaults() Config {
	if c.ConnectDelay <= 0 {
		c.ConnectDelay = DefaultConnectDelay
	}
	if c.HeartbeatPeriod <= 0 {
		c.HeartbeatPeriod = DefaultHeartbeatPeriod
	}
	if c.TelemetryPeriod <= 0 {
		c.TelemetryPeriod = DefaultTelemetryPeriod
	}
	if c.DirectorPeriod <= 0 {
		c.DirectorPeriod = DefaultDirectorPeriod
	}
	if c.PoorNetworkDrop <= 0 {
		c.PoorNetworkDrop = DefaultPoorNetworkDrop
	}
	if c.PrincipalCutProb <= 0 {
		c.PrincipalCutProb = DefaultPrincipalCutProb
	}
	if c.FeedCutProb <= 0 {
		c.FeedCutProb = DefaultFeedCutProb
	}
	return c
}

// Status is a point-in-time view of the session.
type Status struct {
	EventID     string           `json:"eventId,omitempty"`
	DataPlane   DataPlaneState   `json:"dataPlane"`
	Connected   bool             `json:"connected"`
	Tick        uint64           `json:"tick"`
	QueueOffset uint64           `json:"queueOffset"`
	Network     NetworkCondition `json:"network"`
	Feeds       int              `json:"feeds"`
}

// Service is the Harmony session: it owns the feed set, the simulated data
// plane lifecycle and the three producers, and publishes everything on its
// Bus. All methods and timer callbacks must run on the scheduler's goroutine
// (clock.Loop.Do in a server, the test goroutine with clock.Virtual).
type Service struct {
	bus     *Bus
	sched   clock.Scheduler
	cfg     Config
	rng     *rand.Rand
	log     *slog.Logger
	metrics *metrics.Metrics

	eventID   string
	feeds     []Feed
	positions map[FeedID]Position

	state       DataPlaneState
	network     NetworkCondition
	tick        uint64
	queueOffset uint64

	connectTimer   clock.Timer
	heartbeatTimer clock.Timer
	telemetryTimer clock.Timer
	directorTimer  clock.Timer
}

// NewService returns a disconnected Service with no feeds loaded.
// log may be nil; m may be nil to disable metric recording.
func NewService(bus *Bus, sched clock.Scheduler, cfg Config, log *slog.Logger, m *metrics.Metrics) *Service {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = sched.Now().UnixNano()
	}
	return &Service{
		bus:         bus,
		sched:       sched,
		cfg:         cfg,
		rng:         rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)),
		log:         log,
		metrics:     m,
		positions:   make(map[FeedID]Position),
		state:       DataPlaneDisconnected,
		network:     NetworkGood,
		queueOffset: InitialQueueOffset,
	}
}

// Bus returns the bus the service publishes on.
func (s *Service) Bus() *Bus { return s.bus }

// Feeds returns a copy of the loaded feed set.
func (s *Service) Feeds() []Feed {
	return append([]Feed(nil), s.feeds...)
}

// LoadEvent replaces the feed set and resets every position to the feed's
// initial position. It works in any connection state.
func (s *Service) LoadEvent(eventID string, feeds []Feed) {
	s.eventID = eventID
	s.feeds = append([]Feed(nil), feeds...)
	s.positions = make(map[FeedID]Position, len(feeds))
	for _, f := range s.feeds {
		p := f.InitialPosition
		p.FeedID = f.ID
		p.X = clamp(p.X)
		p.Y = clamp(p.Y)
		p.Heading = wrapHeading(s.rng.Float64() * 360)
		if f.Device == DeviceDrone {
			alt := droneBaseAltitude
			p.Altitude = &alt
		}
		zero := 0.0
		p.Speed = &zero
		s.positions[f.ID] = p
	}
	s.log.Info("event loaded", slog.String("event_id", eventID), slog.Int("feeds", len(feeds)))
	s.bus.Publish(SessionLoaded{EventID: eventID, Feeds: s.Feeds()})
}

// Connect moves the data plane to reconnecting and, after the connect
// delay, to connected with all producers running. Calling it again restarts
// the delay without duplicating timers.
func (s *Service) Connect() {
	s.stopTimers()

	s.setState(DataPlaneReconnecting)
	s.log.Info("data plane connecting", slog.Duration("delay", s.cfg.ConnectDelay))

	s.connectTimer = s.sched.AfterFunc(s.cfg.ConnectDelay, func() {
		s.connectTimer = nil
		s.startProducers()
		s.setState(DataPlaneConnected)
		s.bus.Publish(ConnectionStatus{Connected: true})
		s.log.Info("data plane connected", slog.String("event_id", s.eventID))
	})
}

// Disconnect stops every producer and publishes the disconnected state.
// Safe to call repeatedly; each call re-announces the state.
func (s *Service) Disconnect() {
	s.stopTimers()
	s.setState(DataPlaneDisconnected)
	s.bus.Publish(ConnectionStatus{Connected: false})
	s.log.Info("data plane disconnected")
}

// SetNetworkCondition toggles the simulated packet loss on telemetry.
func (s *Service) SetNetworkCondition(c NetworkCondition) {
	if s.network != c {
		s.log.Info("network condition changed", slog.String("network", string(c)))
	}
	s.network = c
}

// Status returns a snapshot of the session.
func (s *Service) Status() Status {
	return Status{
		EventID:     s.eventID,
		DataPlane:   s.state,
		Connected:   s.state == DataPlaneConnected,
		Tick:        s.tick,
		QueueOffset: s.queueOffset,
		Network:     s.network,
		Feeds:       len(s.feeds),
	}
}

// Position returns the last computed position of a feed.
func (s *Service) Position(id FeedID) (Position, bool) {
	p, ok := s.positions[id]
	return p, ok
}

func (s *Service) setState(st DataPlaneState) {
	s.state = st
	if s.metrics != nil {
		s.metrics.SetDataPlaneConnected(st == DataPlaneConnected)
	}
	s.bus.Publish(DataPlaneStatus{State: st})
}

func (s *Service) startProducers() {
	s.heartbeatTimer = s.sched.Every(s.cfg.HeartbeatPeriod, s.guard("heartbeat", s.heartbeat))
	s.telemetryTimer = s.sched.Every(s.cfg.TelemetryPeriod, s.guard("telemetry", s.telemetry))
	s.directorTimer = s.sched.Every(s.cfg.DirectorPeriod, s.guard("director", s.director))
}

func (s *Service) stopTimers() {
	clock.StopAll(s.connectTimer, s.heartbeatTimer, s.telemetryTimer, s.directorTimer)
	s.connectTimer = nil
	s.heartbeatTimer = nil
	s.telemetryTimer = nil
	s.directorTimer = nil
}

// guard keeps a panicking producer tick from killing later ticks.
func (s *Service) guard(name string, tick func()) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("producer tick panicked",
					slog.String("producer", name),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
				if s.metrics != nil {
					s.metrics.IncHandlerPanics()
				}
			}
		}()
		tick()
	}
}

func (s *Service) heartbeat() {
	s.tick++
	s.queueOffset += uint64(s.rng.IntN(5))
	s.bus.Publish(Pulse{
		ServerTimeMs: s.sched.Now().UnixMilli(),
		Tick:         s.tick,
		QueueOffset:  s.queueOffset,
	})
}
