// Package focus holds the active ring filter of a view.
package focus

import (
	"log/slog"

	"github.com/opensource-finance/ringscope/internal/domain"
	"github.com/opensource-finance/ringscope/internal/projector"
)

// GlobalLabel labels the action that clears the filter.
const GlobalLabel = "Global View"

// Action is one entry of the ring picker.
type Action struct {
	Label       string  `json:"label"`
	RingID      string  `json:"ringId"`
	PatternType string  `json:"patternType,omitempty"`
	RiskScore   float64 `json:"riskScore,omitempty"`
	Members     int     `json:"members,omitempty"`
	Active      bool    `json:"active"`
}

// Selector tracks the active ring filter.
type Selector struct {
	rings  []domain.FraudRing
	active string
}

// NewSelector creates a selector over the rings of a result, starting
// from the global view.
func NewSelector(rings []domain.FraudRing) *Selector {
	s := &Selector{}
	s.Reset(rings)
	return s
}

// Reset replaces the known rings and returns to the global view. A ring id
// listed twice keeps its first position and its last record.
func (s *Selector) Reset(rings []domain.FraudRing) {
	s.rings = make([]domain.FraudRing, 0, len(rings))
	pos := make(map[string]int, len(rings))
	for _, r := range rings {
		if i, ok := pos[r.RingID]; ok {
			s.rings[i] = r
			continue
		}
		pos[r.RingID] = len(s.rings)
		s.rings = append(s.rings, r)
	}
	s.active = projector.GlobalView
}

// Active returns the active ring id. The global view is projector.GlobalView.
func (s *Selector) Active() string {
	return s.active
}

// Select sets the active ring and reports whether it changed. A ring id
// that names no known ring is kept as the filter and projects as the
// global view.
func (s *Selector) Select(ringID string) bool {
	if ringID == s.active {
		return false
	}
	if ringID != projector.GlobalView && !s.known(ringID) {
		slog.Warn("ring filter does not resolve, showing global view", "ring_id", ringID)
	}
	s.active = ringID
	return true
}

// Actions lists the global action followed by one action per ring, in
// result order. The global action is active while the filter names no
// known ring, since that filter projects as the global view.
func (s *Selector) Actions() []Action {
	actions := make([]Action, 0, len(s.rings)+1)
	actions = append(actions, Action{
		Label:  GlobalLabel,
		RingID: projector.GlobalView,
		Active: s.active == projector.GlobalView || !s.known(s.active),
	})
	for _, r := range s.rings {
		actions = append(actions, Action{
			Label:       r.RingID,
			RingID:      r.RingID,
			PatternType: r.PatternType,
			RiskScore:   r.RiskScore,
			Members:     len(r.MemberAccounts),
			Active:      s.active == r.RingID,
		})
	}
	return actions
}

func (s *Selector) known(ringID string) bool {
	for _, r := range s.rings {
		if r.RingID == ringID {
			return true
		}
	}
	return false
}
