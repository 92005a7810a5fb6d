package orchestrator

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"harmony/internal/harmony"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// ErrInvalidCatalog wraps every validation failure.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Default returns the built-in catalog.
func Default() ([]Event, error) {
	return Parse(defaultCatalog)
}

// LoadFile reads and validates a catalog YAML file.
func LoadFile(path string) ([]Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Load returns the catalog at path, or the built-in one when path is empty.
func Load(path string) ([]Event, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}

// Parse decodes and validates a catalog document. Unknown keys are rejected.
func Parse(data []byte) ([]Event, error) {
	var doc catalogDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if len(doc.Events) == 0 {
		return nil, fmt.Errorf("%w: no events", ErrInvalidCatalog)
	}

	seen := make(map[string]bool, len(doc.Events))
	events := make([]Event, 0, len(doc.Events))
	for _, ed := range doc.Events {
		if ed.ID == "" {
			return nil, fmt.Errorf("%w: event without id", ErrInvalidCatalog)
		}
		if seen[ed.ID] {
			return nil, fmt.Errorf("%w: duplicate event %q", ErrInvalidCatalog, ed.ID)
		}
		seen[ed.ID] = true

		ev, err := resolveEvent(ed)
		if err != nil {
			return nil, fmt.Errorf("%w: event %q: %v", ErrInvalidCatalog, ed.ID, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func resolveEvent(ed eventDoc) (Event, error) {
	angleIDs := make(map[int]bool)
	shared := make(map[int]harmony.Angle, len(ed.SharedAngles))
	for _, ad := range ed.SharedAngles {
		if angleIDs[ad.ID] {
			return Event{}, fmt.Errorf("duplicate angle id %d", ad.ID)
		}
		angleIDs[ad.ID] = true
		shared[ad.ID] = toAngle(ad)
	}

	feeds := make([]harmony.Feed, 0, len(ed.Feeds))
	for _, fd := range ed.Feeds {
		f, err := resolveFeed(fd, shared, angleIDs)
		if err != nil {
			return Event{}, err
		}
		feeds = append(feeds, f)
	}
	if err := ValidateFeeds(feeds); err != nil {
		return Event{}, err
	}
	return Event{ID: EventID(ed.ID), Details: ed.Details, Feeds: feeds}, nil
}

func resolveFeed(fd feedDoc, shared map[int]harmony.Angle, angleIDs map[int]bool) (harmony.Feed, error) {
	device, err := harmony.ParseDeviceKind(fd.Device)
	if err != nil {
		return harmony.Feed{}, fmt.Errorf("feed %d: %w", fd.ID, err)
	}

	f := harmony.Feed{
		ID:     harmony.FeedID(fd.ID),
		Name:   fd.Name,
		Device: device,
		InitialPosition: harmony.Position{
			FeedID: harmony.FeedID(fd.ID),
			X:      fd.Position.X,
			Y:      fd.Position.Y,
		},
	}
	for _, ad := range fd.Angles {
		if angleIDs[ad.ID] {
			return harmony.Feed{}, fmt.Errorf("feed %d: duplicate angle id %d", fd.ID, ad.ID)
		}
		angleIDs[ad.ID] = true
		f.Angles = append(f.Angles, toAngle(ad))
	}
	for _, id := range fd.Shared {
		a, ok := shared[id]
		if !ok {
			return harmony.Feed{}, fmt.Errorf("feed %d: unknown shared angle %d", fd.ID, id)
		}
		if _, dup := f.Angle(a.ID); dup {
			return harmony.Feed{}, fmt.Errorf("feed %d: shared angle %d listed twice", fd.ID, id)
		}
		f.Angles = append(f.Angles, a)
	}
	return f, nil
}

func toAngle(ad angleDoc) harmony.Angle {
	return harmony.Angle{ID: harmony.AngleID(ad.ID), Label: ad.Label, SourceRef: ad.Source}
}

// ValidateFeeds checks the structural rules of a feed set: exactly one
// principal feed on the platform device with no angles of its own, unique
// feed ids, at least one angle on every other feed, no primary angle shared
// by two feeds, and map positions within [0,100].
func ValidateFeeds(feeds []harmony.Feed) error {
	ids := make(map[harmony.FeedID]bool, len(feeds))
	primaries := make(map[harmony.AngleID]harmony.FeedID, len(feeds))
	principal := 0
	for _, f := range feeds {
		if ids[f.ID] {
			return fmt.Errorf("duplicate feed id %d", f.ID)
		}
		ids[f.ID] = true

		if f.IsPrincipal() {
			principal++
			if f.Device != harmony.DevicePlatform {
				return fmt.Errorf("principal feed must use device %q, got %q", harmony.DevicePlatform, f.Device)
			}
			if len(f.Angles) > 0 {
				return errors.New("principal feed must not declare angles")
			}
		} else {
			if f.Device == harmony.DevicePlatform {
				return fmt.Errorf("feed %d: only the principal feed uses device %q", f.ID, harmony.DevicePlatform)
			}
			if len(f.Angles) == 0 {
				return fmt.Errorf("feed %d: no angles", f.ID)
			}
			primary := f.Angles[0].ID
			if owner, taken := primaries[primary]; taken {
				return fmt.Errorf("feed %d: primary angle %d already leads feed %d", f.ID, primary, owner)
			}
			primaries[primary] = f.ID
		}

		p := f.InitialPosition
		if p.X < 0 || p.X > 100 || p.Y < 0 || p.Y > 100 {
			return fmt.Errorf("feed %d: position (%g,%g) outside [0,100]", f.ID, p.X, p.Y)
		}
	}
	if principal != 1 {
		return fmt.Errorf("expected one principal feed, found %d", principal)
	}
	return nil
}
