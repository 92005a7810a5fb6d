package harmony

import (
	"log/slog"
	"math"
)

const (
	minCoord = 5.0
	maxCoord = 95.0

	droneBaseAltitude  = 45.0
	droneAltitudeSwing = 2.0
	droneOrbitStep     = 0.2
	walkStep           = 0.05 // each axis moves within ±walkStep/2
	headingJitter      = 2.0
)

func clamp(v float64) float64 {
	return math.Max(minCoord, math.Min(maxCoord, v))
}

// wrapHeading maps any angle into [0, 360).
func wrapHeading(h float64) float64 {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	if h >= 360 {
		h = 0
	}
	return h
}

// nextPosition advances one feed by one telemetry tick.
func (s *Service) nextPosition(f Feed, prev Position) Position {
	nowMs := float64(s.sched.Now().UnixMilli())

	var dx, dy, speed float64
	next := prev
	next.FeedID = f.ID
	next.Altitude = nil

	if f.Device == DeviceDrone {
		phase := nowMs / 2000
		dx = math.Sin(phase) * droneOrbitStep
		dy = math.Cos(phase) * droneOrbitStep
		speed = 25 + s.rng.Float64()*5
		alt := droneBaseAltitude + math.Sin(nowMs/1000)*droneAltitudeSwing
		next.Altitude = &alt
	} else {
		dx = (s.rng.Float64() - 0.5) * walkStep
		dy = (s.rng.Float64() - 0.5) * walkStep
		speed = s.rng.Float64() * 2
	}

	next.X = clamp(prev.X + dx)
	next.Y = clamp(prev.Y + dy)
	next.Speed = &speed
	next.Heading = wrapHeading(prev.Heading + (s.rng.Float64()*2-1)*headingJitter)
	return next
}

func (s *Service) telemetry() {
	snapshot := make(map[FeedID]Position, len(s.feeds))
	for _, f := range s.feeds {
		if f.IsPrincipal() {
			continue
		}
		prev, ok := s.positions[f.ID]
		if !ok {
			prev = f.InitialPosition
		}
		snapshot[f.ID] = s.nextPosition(f, prev)
	}
	for id, p := range snapshot {
		s.positions[id] = p
	}

	if s.network == NetworkPoor && s.rng.Float64() < s.cfg.PoorNetworkDrop {
		if s.metrics != nil {
			s.metrics.IncTelemetryDropped()
		}
		return
	}
	s.bus.Publish(TelemetryUpdate{Positions: snapshot})
}

func (s *Service) director() {
	var others []Feed
	for _, f := range s.feeds {
		if !f.IsPrincipal() {
			others = append(others, f)
		}
	}

	if len(others) > 0 && s.rng.Float64() < s.cfg.PrincipalCutProb {
		src := others[s.rng.IntN(len(others))]
		if a, ok := src.Primary(); ok {
			s.cut(PrincipalFeed, a.ID, src.ID)
		}
	}

	for _, f := range others {
		if len(f.Angles) <= 1 {
			continue
		}
		if s.rng.Float64() < s.cfg.FeedCutProb {
			a := f.Angles[s.rng.IntN(len(f.Angles))]
			s.cut(f.ID, a.ID, f.ID)
		}
	}
}

func (s *Service) cut(target FeedID, angle AngleID, source FeedID) {
	cmd := DirectorCommand{
		TargetFeedID:          target,
		AngleID:               angle,
		SourceFeedID:          source,
		Reason:                DirectorReasons[s.rng.IntN(len(DirectorReasons))],
		TransitionDurationSec: DirectorTransitionSec,
		Partition:             s.rng.IntN(3),
	}
	s.log.Debug("director cut",
		slog.Int("feed_id", int(target)),
		slog.Int("angle_id", int(angle)),
		slog.String("reason", cmd.Reason))
	s.bus.Publish(cmd)
}
