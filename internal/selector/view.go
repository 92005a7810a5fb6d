package selector

import "harmony/internal/harmony"

// FeedView is what a viewer shows for one rendered feed.
type FeedView struct {
	FeedID       harmony.FeedID    `json:"feedId"`
	Angle        harmony.Angle     `json:"angle"`
	Angles       []harmony.Angle   `json:"angles"`
	AutoDirector bool              `json:"autoDirector"`
	Transition   bool              `json:"transition"`
	Status       string            `json:"status,omitempty"`
	Position     *harmony.Position `json:"position,omitempty"`
}

// View is a serializable snapshot of a Selector.
type View struct {
	Mode     Mode             `json:"mode"`
	Active   harmony.FeedID   `json:"active"`
	Split    []harmony.FeedID `json:"split,omitempty"`
	Rendered []FeedView       `json:"rendered"`
	LastTick uint64           `json:"lastTick"`
}

// View snapshots the selector.
func (s *Selector) View() View {
	v := View{
		Mode:     s.mode,
		Active:   s.active,
		Split:    s.SplitSet(),
		LastTick: s.lastTick,
	}
	for _, id := range s.Rendered() {
		angles := harmony.AvailableAngles(s.feeds, id)
		fv := FeedView{
			FeedID:       id,
			Angles:       angles,
			AutoDirector: s.auto[id],
			Status:       s.status[id],
		}
		if cur, ok := s.displayed[id]; ok {
			fv.Angle, _ = s.angle(id, cur)
		}
		if _, ok := s.pending[id]; ok {
			fv.Transition = true
		}
		if p, ok := s.positions[id]; ok {
			fv.Position = &p
		}
		v.Rendered = append(v.Rendered, fv)
	}
	return v
}
