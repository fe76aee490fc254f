package model

import (
	"fmt"
	"time"
)

// BatteryCount is fixed by the board: five cells, never resized.
const BatteryCount = 5

type BatteryID int

func (id BatteryID) Valid() bool {
	return id >= 1 && id <= BatteryCount
}

// Index returns the zero-based array slot for id.
func (id BatteryID) Index() int {
	return int(id) - 1
}

func (id BatteryID) String() string {
	return fmt.Sprintf("battery_%d", int(id))
}

type GPIOPin struct {
	Number     int
	ActiveHigh bool
}

type CaseID string

const CaseDisconnected CaseID = "disconnected"

type BatteryState struct {
	ID         BatteryID `json:"id"`
	VoltageMes float64   `json:"voltage_mes"`
	IsCharging bool      `json:"is_charging"`
	InRange    bool      `json:"in_range"`
	MeasuredAt time.Time `json:"measured_at"`
}

type MeasurementKind string

const (
	KindLoaded   MeasurementKind = "loaded"
	KindUnloaded MeasurementKind = "unloaded"
)

func (k MeasurementKind) Valid() bool {
	return k == KindLoaded || k == KindUnloaded
}

type Reading struct {
	Battery BatteryID       `json:"battery"`
	Kind    MeasurementKind `json:"kind"`
	Raw     int             `json:"raw"`
	Volts   float64         `json:"volts"`   // unclamped, used for decisions
	Display float64         `json:"display"` // clamped to the plausible band
	InRange bool            `json:"in_range"`
	TakenAt time.Time       `json:"taken_at"`
}

// SwitchEvent records one completed (or failed) case transition.
type SwitchEvent struct {
	From     CaseID        `json:"from"`
	To       CaseID        `json:"to"`
	Result   CaseID        `json:"result"`
	Err      string        `json:"error,omitempty"`
	At       time.Time     `json:"at"`
	Duration time.Duration `json:"duration"`
}
