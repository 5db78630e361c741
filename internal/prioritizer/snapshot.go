package prioritizer

import "remindd/internal/notification"

// Snapshot is the persisted form of the learning state.
type Snapshot struct {
	History   []Interaction                 `json:"history"`
	HourPrefs map[int]float64               `json:"hour_prefs"`
	TypePrefs map[notification.Type]float64 `json:"type_prefs"`
}

// Export copies the learning state out for persistence.
func (s *Service) Export() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		History:   append([]Interaction(nil), s.history...),
		HourPrefs: make(map[int]float64, len(s.hourPrefs)),
		TypePrefs: make(map[notification.Type]float64, len(s.typePrefs)),
	}
	for k, v := range s.hourPrefs {
		snap.HourPrefs[k] = v
	}
	for k, v := range s.typePrefs {
		snap.TypePrefs[k] = v
	}
	return snap
}

// Import replaces the learning state from a snapshot. The preference
// tables are recomputed from the restored history so the two can never
// disagree.
func (s *Service) Import(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append([]Interaction(nil), snap.History...)
	if len(s.history) > maxHistory {
		s.history = s.history[len(s.history)-maxHistory:]
	}
	s.relearnLocked()
}
