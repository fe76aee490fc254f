// Package recorder fans completed readings and switch events out to the
// history database and metrics.
package recorder

import (
	"database/sql"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/array-controller/db"
	"github.com/thatsimonsguy/array-controller/internal/array"
	"github.com/thatsimonsguy/array-controller/internal/datadog"
	"github.com/thatsimonsguy/array-controller/internal/model"
	"github.com/thatsimonsguy/array-controller/internal/store"
)

type Sink struct {
	db        *sql.DB
	snapshots *store.Store
	state     *array.State
}

// New returns a sink writing to conn. A nil conn records metrics only.
func New(conn *sql.DB) *Sink {
	return &Sink{db: conn}
}

// WithSnapshots also saves the state after every batch of readings.
func (s *Sink) WithSnapshots(st *store.Store, state *array.State) *Sink {
	s.snapshots = st
	s.state = state
	return s
}

func (s *Sink) RecordReadings(readings []model.Reading) {
	datadog.RecordReadings(readings)
	if s.db != nil {
		if err := db.InsertReadings(s.db, readings); err != nil {
			log.Error().Err(err).Int("readings", len(readings)).Msg("Failed to store readings")
		}
	}
	if s.snapshots != nil {
		if err := s.snapshots.Save(s.state.Snapshot()); err != nil {
			log.Warn().Err(err).Msg("Failed to save battery snapshot")
		}
	}
}

func (s *Sink) RecordSwitch(ev model.SwitchEvent) {
	datadog.RecordSwitch(ev)
	if s.db == nil {
		return
	}
	if err := db.InsertSwitchEvent(s.db, ev); err != nil {
		log.Error().Err(err).Str("to", string(ev.To)).Msg("Failed to store switch event")
	}
}
