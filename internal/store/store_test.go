package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/array-controller/internal/model"
)

func TestSaveLoad_DropsChargingFlag(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "data", "state.json"))

	var snap [model.BatteryCount]model.BatteryState
	for i := range snap {
		snap[i] = model.BatteryState{ID: model.BatteryID(i + 1), VoltageMes: 3.7 + float64(i)*0.05, InRange: true, MeasuredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	}
	snap[2].IsCharging = true
	require.NoError(t, s.Save(snap))

	got, err := s.Load()
	require.NoError(t, err)
	assert.InDelta(t, 3.8, got[2].VoltageMes, 1e-9)
	assert.False(t, got[2].IsCharging)
	assert.Equal(t, model.BatteryID(5), got[4].ID)
}

func TestLoad_Missing(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "none.json")).Load()
	assert.Error(t, err)
}
