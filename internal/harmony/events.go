package harmony

import "encoding/json"

// Kind names an event type. Convention: "category.action".
type Kind string

const (
	KindPulse            Kind = "harmony.pulse"
	KindTelemetry        Kind = "telemetry.update"
	KindDirector         Kind = "director.command"
	KindConnectionStatus Kind = "connection.status"
	KindDataPlaneStatus  Kind = "dataplane.status"
	KindSessionLoaded    Kind = "session.loaded"
)

// Kinds lists every event kind in a stable order.
var Kinds = []Kind{
	KindPulse,
	KindTelemetry,
	KindDirector,
	KindConnectionStatus,
	KindDataPlaneStatus,
	KindSessionLoaded,
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Event is the closed set of payloads published on the Bus. Handlers switch
// on the concrete type.
type Event interface {
	Kind() Kind
	sealed()
}

// Pulse is the heartbeat.
type Pulse struct {
	ServerTimeMs int64  `json:"serverTimeMs"`
	Tick         uint64 `json:"tick"`
	QueueOffset  uint64 `json:"queueOffset"`
}

// TelemetryUpdate is a full snapshot of every tracked feed's position.
type TelemetryUpdate struct {
	Positions map[FeedID]Position `json:"positions"`
}

// DirectorCommand is an automated suggestion to switch a feed's angle.
type DirectorCommand struct {
	TargetFeedID          FeedID  `json:"targetFeedId"`
	AngleID               AngleID `json:"angleId"`
	SourceFeedID          FeedID  `json:"sourceFeedId,omitempty"`
	Reason                string  `json:"reason"`
	TransitionDurationSec float64 `json:"transitionDurationSec"`
	Partition             int     `json:"partition"`
}

// ConnectionStatus reports whether producers are live.
type ConnectionStatus struct {
	Connected bool `json:"connected"`
}

// DataPlaneStatus reports data plane lifecycle transitions.
type DataPlaneStatus struct {
	State DataPlaneState `json:"state"`
}

// SessionLoaded announces that the feed set was replaced.
type SessionLoaded struct {
	EventID string `json:"eventId,omitempty"`
	Feeds   []Feed `json:"feeds"`
}

func (Pulse) Kind() Kind            { return KindPulse }
func (TelemetryUpdate) Kind() Kind  { return KindTelemetry }
func (DirectorCommand) Kind() Kind  { return KindDirector }
func (ConnectionStatus) Kind() Kind { return KindConnectionStatus }
func (DataPlaneStatus) Kind() Kind  { return KindDataPlaneStatus }
func (SessionLoaded) Kind() Kind    { return KindSessionLoaded }

func (Pulse) sealed()            {}
func (TelemetryUpdate) sealed()  {}
func (DirectorCommand) sealed()  {}
func (ConnectionStatus) sealed() {}
func (DataPlaneStatus) sealed()  {}
func (SessionLoaded) sealed()    {}

// Envelope is the wire form of an event.
type Envelope struct {
	Kind Kind        `json:"kind"`
	Data interface{} `json:"data"`
}

// Wrap puts e in an Envelope.
func Wrap(e Event) Envelope {
	return Envelope{Kind: e.Kind(), Data: e}
}

// MarshalEvent encodes e as an envelope.
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(Wrap(e))
}
