package gpio

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/array-controller/internal/model"
	"github.com/thatsimonsguy/array-controller/internal/pinctrl"
	"github.com/thatsimonsguy/array-controller/internal/topology"
)

// Driver drives and reads digital lines. Active is logical: the pin's
// ActiveHigh flag decides the physical level.
type Driver interface {
	Write(pin model.GPIOPin, active bool) error
	Read(pin model.GPIOPin) (bool, error)
}

// Level returns the physical level that puts pin in the given logical state.
func Level(pin model.GPIOPin, active bool) bool {
	return pin.ActiveHigh == active
}

// Pinctrl drives pins through the Raspberry Pi pinctrl tool.
type Pinctrl struct{}

func (Pinctrl) Write(pin model.GPIOPin, active bool) error {
	if err := pinctrl.SetPin(pin.Number, pinctrl.DriveOpts(Level(pin, active))...); err != nil {
		return fmt.Errorf("drive pin %d: %w", pin.Number, err)
	}
	return nil
}

func (Pinctrl) Read(pin model.GPIOPin) (bool, error) {
	level, err := pinctrl.ReadLevel(pin.Number)
	if err != nil {
		return false, err
	}
	return level == pin.ActiveHigh, nil
}

// Levels samples every line with a single `pinctrl get` and returns the
// physical levels keyed by GPIO number.
func (Pinctrl) Levels() (map[int]bool, error) {
	all, err := pinctrl.ReadAllPins()
	if err != nil {
		return nil, err
	}
	levels := make(map[int]bool, len(all))
	for n, state := range all {
		levels[n] = state.Level == "hi"
	}
	return levels, nil
}

type safeMode struct {
	next Driver
}

// SafeMode wraps d so writes are logged and dropped. Reads pass through.
func SafeMode(d Driver) Driver {
	return &safeMode{next: d}
}

func (s *safeMode) Write(pin model.GPIOPin, active bool) error {
	log.Debug().Int("pin", pin.Number).Bool("active", active).Msg("safe mode: pin write suppressed")
	return nil
}

func (s *safeMode) Read(pin model.GPIOPin) (bool, error) {
	return s.next.Read(pin)
}

// ValidateStartupPins refuses to run if any FET gate is already active.
func ValidateStartupPins(d Driver, topo *topology.Topology) error {
	for _, b := range topo.Batteries() {
		checks := map[string][]model.GPIOPin{
			"output": b.OutputFETs,
			"charge": b.ChargeFETs,
		}
		for role, pins := range checks {
			for _, pin := range pins {
				active, err := d.Read(pin)
				if err != nil {
					return fmt.Errorf("failed to read pin level for %s %s FET (GPIO %d): %w", b.ID, role, pin.Number, err)
				}
				if active {
					return fmt.Errorf("pin %d (%s %s FET) is active at startup", pin.Number, b.ID, role)
				}
			}
		}
	}
	return nil
}
