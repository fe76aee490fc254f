package array

import (
	"sync"

	"github.com/thatsimonsguy/array-controller/internal/model"
)

// State is the mutable per-battery record. The switching engine owns
// IsCharging and the measurement orchestrator owns the voltage fields.
type State struct {
	mu        sync.RWMutex
	batteries [model.BatteryCount]model.BatteryState
}

func New() *State {
	s := &State{}
	for i := range s.batteries {
		s.batteries[i].ID = model.BatteryID(i + 1)
	}
	return s
}

func (s *State) SetReading(r model.Reading) {
	if !r.Battery.Valid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b := &s.batteries[r.Battery.Index()]
	b.VoltageMes = r.Volts
	b.InRange = r.InRange
	b.MeasuredAt = r.TakenAt
}

// SetCharging marks exactly the given batteries as charging.
func (s *State) SetCharging(charging []model.BatteryID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.batteries {
		s.batteries[i].IsCharging = false
	}
	for _, id := range charging {
		if id.Valid() {
			s.batteries[id.Index()].IsCharging = true
		}
	}
}

func (s *State) Battery(id model.BatteryID) (model.BatteryState, bool) {
	if !id.Valid() {
		return model.BatteryState{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batteries[id.Index()], true
}

func (s *State) Snapshot() [model.BatteryCount]model.BatteryState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batteries
}

// Restore loads last known voltages. Charging flags are left to the
// switching engine.
func (s *State) Restore(snap [model.BatteryCount]model.BatteryState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.batteries {
		b := &s.batteries[i]
		b.VoltageMes = snap[i].VoltageMes
		b.InRange = snap[i].InRange
		b.MeasuredAt = snap[i].MeasuredAt
	}
}
