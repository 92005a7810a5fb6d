package ws

import (
	"encoding/json"
	"errors"

	"harmony/internal/harmony"
	"harmony/internal/selector"
)

// Outbound kinds that are not bus events.
const (
	KindViewState = "view.state"
	KindError     = "error"
)

// Inbound command kinds.
const (
	CmdSelectFeed      = "select_feed"
	CmdEnterSplit      = "enter_split"
	CmdExitSplit       = "exit_split"
	CmdToggleMember    = "toggle_member"
	CmdPickAngle       = "pick_angle"
	CmdSetAutoDirector = "set_auto_director"
)

// Envelope is an outbound frame. Bus events use harmony.Envelope, which has
// the same shape.
type Envelope struct {
	Kind string      `json:"kind"`
	Data interface{} `json:"data"`
}

// InboundEnvelope is a frame received from a viewer.
type InboundEnvelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Command is the payload of every inbound kind; fields a kind does not use
// are ignored.
type Command struct {
	FeedID  harmony.FeedID  `json:"feedId"`
	AngleID harmony.AngleID `json:"angleId"`
	Enabled bool            `json:"enabled"`
}

// ErrorPayload is the data of an error frame.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Request string `json:"request,omitempty"`
}

var (
	errUnknownKind = errors.New("unsupported message kind")
	errBadPayload  = errors.New("malformed payload")
	errUnavailable = errors.New("session unavailable")
)

func errorCode(err error) string {
	switch {
	case errors.Is(err, selector.ErrUnknownFeed):
		return "unknown_feed"
	case errors.Is(err, selector.ErrUnknownAngle):
		return "unknown_angle"
	case errors.Is(err, selector.ErrWrongMode):
		return "wrong_mode"
	case errors.Is(err, selector.ErrNotRendered):
		return "not_rendered"
	case errors.Is(err, errUnknownKind):
		return "unknown_kind"
	case errors.Is(err, errBadPayload):
		return "bad_request"
	case errors.Is(err, errUnavailable):
		return "unavailable"
	}
	return "internal"
}

func errorEnvelope(request string, err error) Envelope {
	return Envelope{
		Kind: KindError,
		Data: ErrorPayload{Code: errorCode(err), Message: err.Error(), Request: request},
	}
}
