package controller

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"github.com/thatsimonsguy/array-controller/internal/clock"
	"github.com/thatsimonsguy/array-controller/internal/debounce"
	"github.com/thatsimonsguy/array-controller/internal/fets"
	"github.com/thatsimonsguy/array-controller/internal/model"
	"github.com/thatsimonsguy/array-controller/internal/topology"
)

var ErrQueueFull = errors.New("case request queue full")

const (
	DefaultPollInterval = 5 * time.Millisecond
	defaultRequestDepth = 8
)

// Switcher is the switching engine as seen by the main loop.
type Switcher interface {
	ApplyCase(id model.CaseID) error
	Current() model.CaseID
}

type Measurer interface {
	MeasureUnloaded() ([model.BatteryCount]model.Reading, error)
	MeasureLoaded() ([model.BatteryCount]model.Reading, error)
}

// Recorder receives completed readings. Implementations must not block for
// long; they run on the main loop.
type Recorder interface {
	RecordReadings(readings []model.Reading)
}

type Config struct {
	PollInterval    time.Duration
	MeasureInterval time.Duration // zero disables periodic sweeps
	RequestDepth    int
	Clock           clock.Clock
}

// Controller is the single owner of case changes: button presses, queued
// requests and measurement sweeps all run on its goroutine, one at a time.
type Controller struct {
	switcher Switcher
	measurer Measurer
	filter   *debounce.Filter
	edges    *debounce.Queue
	buttons  []topology.Button
	recorder Recorder
	clock    clock.Clock

	requests        chan model.CaseID
	pollInterval    time.Duration
	measureInterval time.Duration
}

func New(topo *topology.Topology, sw Switcher, m Measurer, filter *debounce.Filter, edges *debounce.Queue, rec Recorder, cfg Config) *Controller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.RequestDepth <= 0 {
		cfg.RequestDepth = defaultRequestDepth
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	return &Controller{
		switcher:        sw,
		measurer:        m,
		filter:          filter,
		edges:           edges,
		buttons:         topo.Buttons(),
		recorder:        rec,
		clock:           cfg.Clock,
		requests:        make(chan model.CaseID, cfg.RequestDepth),
		pollInterval:    cfg.PollInterval,
		measureInterval: cfg.MeasureInterval,
	}
}

// RequestCase queues a case change for the main loop. It never blocks.
func (c *Controller) RequestCase(id model.CaseID) error {
	select {
	case c.requests <- id:
		return nil
	default:
		return ErrQueueFull
	}
}

// SeedButtons samples every button once so the debounce filter starts from
// the real resting level instead of the first edge.
func (c *Controller) SeedButtons(in debounce.Input) {
	now := c.clock.Now()
	for _, b := range c.buttons {
		level, err := in.Read(b.Pin)
		if err != nil {
			log.Warn().Err(err).Int("pin", b.Pin.Number).Msg("Failed to read button at startup")
			continue
		}
		c.filter.Observe(b.Pin.Number, level, now)
	}
}

func (c *Controller) Run(ctx context.Context) error {
	poll := time.NewTicker(c.pollInterval)
	defer poll.Stop()

	var sweep <-chan time.Time
	if c.measureInterval > 0 {
		t := time.NewTicker(c.measureInterval)
		defer t.Stop()
		sweep = t.C
	}

	log.Info().
		Dur("poll_interval", c.pollInterval).
		Dur("measure_interval", c.measureInterval).
		Int("buttons", len(c.buttons)).
		Msg("Starting array controller loop")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-poll.C:
			c.Step()
		case id := <-c.requests:
			c.apply(id, "request")
		case <-sweep:
			if err := c.Sweep(); err != nil {
				log.Warn().Err(err).Msg("Measurement sweep reported faults")
			}
		}
	}
}

// Step drains pending edges into the filter, refreshes its level snapshot
// and acts on stable presses. It returns the number of presses handled.
func (c *Controller) Step() int {
	if c.edges != nil {
		c.edges.Drain(func(ev debounce.Event) {
			c.filter.Observe(ev.Pin.Number, ev.Active, ev.At)
		})
	}

	c.filter.Refresh()

	presses := 0
	for _, b := range c.buttons {
		if !c.filter.Poll(b.Pin) {
			continue
		}
		presses++
		log.Info().Int("pin", b.Pin.Number).Str("case", string(b.Case)).Msg("Button pressed")
		c.apply(b.Case, "button")
	}
	return presses
}

// Sweep measures unloaded then loaded voltages and hands both sets to the
// recorder. A switching fault in the unloaded sweep skips the loaded one.
func (c *Controller) Sweep() error {
	unloaded, err := c.measurer.MeasureUnloaded()
	c.record(unloaded[:])
	if errors.Is(err, fets.ErrSwitchFault) || errors.Is(err, fets.ErrInvalidCase) {
		return err
	}

	loaded, lerr := c.measurer.MeasureLoaded()
	c.record(loaded[:])
	return multierr.Append(err, lerr)
}

func (c *Controller) apply(id model.CaseID, source string) {
	from := c.switcher.Current()
	if err := c.switcher.ApplyCase(id); err != nil {
		log.Error().Err(err).Str("source", source).Str("case", string(id)).Msg("Case request failed")
		return
	}
	log.Info().Str("source", source).Str("from", string(from)).Str("to", string(id)).Msg("Case changed")
}

// record drops slots that were never sampled.
func (c *Controller) record(readings []model.Reading) {
	if c.recorder == nil {
		return
	}
	var taken []model.Reading
	for _, r := range readings {
		if !r.TakenAt.IsZero() {
			taken = append(taken, r)
		}
	}
	if len(taken) > 0 {
		c.recorder.RecordReadings(taken)
	}
}
