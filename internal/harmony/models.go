package harmony

import (
	"fmt"
	"strings"
)

// FeedID identifies a video feed within a loaded event.
type FeedID int

// PrincipalFeed is the composite feed whose angles are the primary sources
// of every other feed.
const PrincipalFeed FeedID = 0

// AngleID identifies a camera angle. Angle ids and feed ids are separate
// namespaces; an angle id shared by several feeds denotes one shared source.
type AngleID int

// DeviceKind is the capture device behind a feed.
type DeviceKind string

const (
	DevicePlatform DeviceKind = "platform"
	DeviceMobile   DeviceKind = "mobile"
	DeviceAR       DeviceKind = "ar"
	DeviceVRMR     DeviceKind = "vrmr"
	DeviceDrone    DeviceKind = "drone"
)

// ParseDeviceKind accepts the canonical names case-insensitively, plus the
// "vr/mr" spelling used in catalogs.
func ParseDeviceKind(s string) (DeviceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "platform":
		return DevicePlatform, nil
	case "mobile":
		return DeviceMobile, nil
	case "ar":
		return DeviceAR, nil
	case "vrmr", "vr/mr", "vr":
		return DeviceVRMR, nil
	case "drone":
		return DeviceDrone, nil
	}
	return "", fmt.Errorf("unknown device kind %q", s)
}

// Position is a feed's location on the venue map. X and Y are percentages
// of the map; Heading is in degrees within [0, 360).
type Position struct {
	FeedID   FeedID   `json:"feedId"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Altitude *float64 `json:"altitude,omitempty"`
	Speed    *float64 `json:"speed,omitempty"`
	Heading  float64  `json:"heading"`
}

// Angle is one selectable source of a feed.
type Angle struct {
	ID        AngleID `json:"id"`
	Label     string  `json:"label,omitempty"`
	SourceRef string  `json:"sourceRef"`
}

// Feed is immutable once an event is loaded.
type Feed struct {
	ID              FeedID     `json:"id"`
	Name            string     `json:"name,omitempty"`
	Device          DeviceKind `json:"device"`
	Angles          []Angle    `json:"angles"`
	InitialPosition Position   `json:"initialPosition"`
}

// IsPrincipal reports whether f is the composite feed.
func (f Feed) IsPrincipal() bool { return f.ID == PrincipalFeed }

// Primary returns the feed's first angle.
func (f Feed) Primary() (Angle, bool) {
	if len(f.Angles) == 0 {
		return Angle{}, false
	}
	return f.Angles[0], true
}

// Angle looks up one of the feed's own angles.
func (f Feed) Angle(id AngleID) (Angle, bool) {
	for _, a := range f.Angles {
		if a.ID == id {
			return a, true
		}
	}
	return Angle{}, false
}

// PrincipalAngles synthesizes the composite feed's angles: the primary
// angle of every non-principal feed, in feed order. An angle id that is
// the primary of several feeds is listed once, under the first feed.
func PrincipalAngles(feeds []Feed) []Angle {
	out := make([]Angle, 0, len(feeds))
	seen := make(map[AngleID]bool, len(feeds))
	for _, f := range feeds {
		if f.IsPrincipal() {
			continue
		}
		if a, ok := f.Primary(); ok {
			if seen[a.ID] {
				continue
			}
			seen[a.ID] = true
			if a.Label == "" {
				a.Label = f.Name
			}
			out = append(out, a)
		}
	}
	return out
}

// AvailableAngles returns the angles a viewer can pick for feed id.
func AvailableAngles(feeds []Feed, id FeedID) []Angle {
	if id == PrincipalFeed {
		return PrincipalAngles(feeds)
	}
	for _, f := range feeds {
		if f.ID == id {
			return append([]Angle(nil), f.Angles...)
		}
	}
	return nil
}

// NetworkCondition is the simulated channel quality.
type NetworkCondition string

const (
	NetworkGood NetworkCondition = "good"
	NetworkPoor NetworkCondition = "poor"
)

// ParseNetworkCondition parses "good" or "poor" case-insensitively.
func ParseNetworkCondition(s string) (NetworkCondition, error) {
	switch NetworkCondition(strings.ToLower(strings.TrimSpace(s))) {
	case NetworkGood:
		return NetworkGood, nil
	case NetworkPoor:
		return NetworkPoor, nil
	}
	return "", fmt.Errorf("unknown network condition %q", s)
}

// DataPlaneState is the connection lifecycle of the simulated data plane.
type DataPlaneState string

const (
	DataPlaneDisconnected DataPlaneState = "disconnected"
	DataPlaneReconnecting DataPlaneState = "reconnecting"
	DataPlaneConnected    DataPlaneState = "connected"
)
