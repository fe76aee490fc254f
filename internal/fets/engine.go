package fets

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"github.com/thatsimonsguy/array-controller/internal/array"
	"github.com/thatsimonsguy/array-controller/internal/clock"
	"github.com/thatsimonsguy/array-controller/internal/gpio"
	"github.com/thatsimonsguy/array-controller/internal/model"
	"github.com/thatsimonsguy/array-controller/internal/topology"
)

var (
	ErrInvalidCase = errors.New("invalid case")
	ErrSwitchFault = errors.New("switch fault")
)

// Timing holds the documented MOSFET switching characteristics, already
// including the gate driver's RC delay.
type Timing struct {
	TurnOnDelay  time.Duration
	RiseTime     time.Duration
	TurnOffDelay time.Duration
	FallTime     time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		TurnOnDelay:  100 * time.Microsecond,
		RiseTime:     150 * time.Microsecond,
		TurnOffDelay: 250 * time.Microsecond,
		FallTime:     150 * time.Microsecond,
	}
}

func (t Timing) TurnOnSettle() time.Duration {
	return t.TurnOnDelay + t.RiseTime
}

func (t Timing) TurnOffSettle() time.Duration {
	return t.TurnOffDelay + t.FallTime
}

// Engine is the only code path that toggles FET pins. Every transition goes
// through the all-open configuration and holds the lock until the new
// configuration has settled, so concurrent callers queue.
type Engine struct {
	mu       sync.Mutex
	topo     *topology.Topology
	driver   gpio.Driver
	state    *array.State
	clock    clock.Clock
	timing   Timing
	observer func(model.SwitchEvent)

	current model.CaseID
}

type Config struct {
	Timing   Timing
	Clock    clock.Clock
	Observer func(model.SwitchEvent)
}

func New(topo *topology.Topology, driver gpio.Driver, state *array.State, cfg Config) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Timing == (Timing{}) {
		cfg.Timing = DefaultTiming()
	}
	return &Engine{
		topo:     topo,
		driver:   driver,
		state:    state,
		clock:    cfg.Clock,
		timing:   cfg.Timing,
		observer: cfg.Observer,
		current:  model.CaseDisconnected,
	}
}

// Current returns the active case. It blocks while a transition is running.
func (e *Engine) Current() model.CaseID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// ApplyCase opens every FET, waits the turn-off settle time, closes the FETs
// of the requested case and waits the turn-on settle time. When it returns
// nil the physical configuration matches the case. On any error the array
// is left disconnected.
func (e *Engine) ApplyCase(id model.CaseID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	from := e.current
	start := e.clock.Now()
	err := e.apply(id)
	e.report(from, id, start, err)
	return err
}

// FullDisconnect opens every FET and waits the turn-off settle time.
func (e *Engine) FullDisconnect() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	from := e.current
	start := e.clock.Now()
	err := e.disconnect()
	e.report(from, model.CaseDisconnected, start, err)
	return err
}

func (e *Engine) apply(id model.CaseID) error {
	c, defined := e.topo.Case(id)

	if err := e.disconnect(); err != nil {
		return err
	}
	if !defined {
		return fmt.Errorf("%w: %q", ErrInvalidCase, id)
	}
	if id == model.CaseDisconnected {
		return nil
	}

	for _, pin := range e.topo.ClosedPins(c) {
		if err := e.driver.Write(pin, true); err != nil {
			log.Error().Err(err).Str("case", string(id)).Int("pin", pin.Number).Msg("FET close failed, reverting to disconnected")
			if derr := e.disconnect(); derr != nil {
				err = multierr.Append(err, derr)
			}
			return fmt.Errorf("%w: closing %s: %w", ErrSwitchFault, id, err)
		}
	}
	e.clock.Sleep(e.timing.TurnOnSettle())

	e.current = id
	e.state.SetCharging(c.Charge)
	return nil
}

// disconnect attempts every pin even if some fail.
func (e *Engine) disconnect() error {
	var errs error
	for _, pin := range e.topo.FETPins() {
		errs = multierr.Append(errs, e.driver.Write(pin, false))
	}
	e.current = model.CaseDisconnected
	e.state.SetCharging(nil)
	e.clock.Sleep(e.timing.TurnOffSettle())

	if errs != nil {
		return fmt.Errorf("%w: full disconnect: %w", ErrSwitchFault, errs)
	}
	return nil
}

func (e *Engine) report(from, to model.CaseID, start time.Time, err error) {
	ev := model.SwitchEvent{
		From:     from,
		To:       to,
		Result:   e.current,
		At:       start,
		Duration: e.clock.Now().Sub(start),
	}
	if err != nil {
		ev.Err = err.Error()
		log.Error().Err(err).Str("from", string(from)).Str("to", string(to)).Msg("Case transition failed, array disconnected")
	} else {
		log.Debug().Str("from", string(from)).Str("to", string(to)).Dur("took", ev.Duration).Msg("Case applied")
	}
	if e.observer != nil {
		e.observer(ev)
	}
}
