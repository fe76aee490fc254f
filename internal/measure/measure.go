package measure

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"github.com/thatsimonsguy/array-controller/internal/adc"
	"github.com/thatsimonsguy/array-controller/internal/array"
	"github.com/thatsimonsguy/array-controller/internal/clock"
	"github.com/thatsimonsguy/array-controller/internal/fets"
	"github.com/thatsimonsguy/array-controller/internal/model"
	"github.com/thatsimonsguy/array-controller/internal/topology"
	"github.com/thatsimonsguy/array-controller/internal/voltage"
)

// DefaultRestDelay is the electrochemical settle time after a battery is
// isolated or loaded, well above the FET settle times.
const DefaultRestDelay = 2 * time.Second

// Switcher is the part of the switching engine the orchestrator needs.
type Switcher interface {
	ApplyCase(id model.CaseID) error
	Current() model.CaseID
}

type Config struct {
	RestDelay time.Duration
	Clock     clock.Clock
}

type Orchestrator struct {
	switcher  Switcher
	reader    adc.Reader
	conv      voltage.Converter
	topo      *topology.Topology
	state     *array.State
	clock     clock.Clock
	restDelay time.Duration
}

func New(sw Switcher, reader adc.Reader, conv voltage.Converter, topo *topology.Topology, state *array.State, cfg Config) (*Orchestrator, error) {
	if err := conv.Validate(); err != nil {
		return nil, fmt.Errorf("invalid converter: %w", err)
	}
	if conv.ADCMaxCount != reader.MaxCount() {
		return nil, fmt.Errorf("converter expects max count %d, adc reports %d", conv.ADCMaxCount, reader.MaxCount())
	}
	if cfg.RestDelay <= 0 {
		cfg.RestDelay = DefaultRestDelay
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	return &Orchestrator{
		switcher:  sw,
		reader:    reader,
		conv:      conv,
		topo:      topo,
		state:     state,
		clock:     cfg.Clock,
		restDelay: cfg.RestDelay,
	}, nil
}

func (o *Orchestrator) MeasureUnloaded() ([model.BatteryCount]model.Reading, error) {
	return o.sweep(model.KindUnloaded)
}

func (o *Orchestrator) MeasureLoaded() ([model.BatteryCount]model.Reading, error) {
	return o.sweep(model.KindLoaded)
}

// MeasureBattery measures a single battery and then restores the case that
// was active before.
func (o *Orchestrator) MeasureBattery(id model.BatteryID, kind model.MeasurementKind) (model.Reading, error) {
	if !id.Valid() {
		return model.Reading{}, fmt.Errorf("unknown battery %d", id)
	}
	if !kind.Valid() {
		return model.Reading{}, fmt.Errorf("unknown measurement kind %q", kind)
	}
	prior := o.switcher.Current()

	r, err := o.measure(id, kind)
	if isSwitchFault(err) {
		return r, err
	}
	return r, multierr.Append(err, o.finish(prior, err))
}

// sweep measures every battery in turn. Sensing faults are collected and the
// sweep continues; a switching fault aborts it with the array disconnected.
func (o *Orchestrator) sweep(kind model.MeasurementKind) ([model.BatteryCount]model.Reading, error) {
	var (
		readings [model.BatteryCount]model.Reading
		errs     error
	)
	prior := o.switcher.Current()
	started := o.clock.Now()

	for id := model.BatteryID(1); id <= model.BatteryCount; id++ {
		r, err := o.measure(id, kind)
		readings[id.Index()] = r
		if isSwitchFault(err) {
			return readings, err
		}
		errs = multierr.Append(errs, err)
	}

	errs = multierr.Append(errs, o.finish(prior, errs))

	log.Info().
		Str("kind", string(kind)).
		Dur("took", o.clock.Now().Sub(started)).
		Int("faults", len(multierr.Errors(errs))).
		Msg("Measurement sweep complete")
	return readings, errs
}

// finish re-applies the prior case after a clean measurement. After a
// sensing fault the array is left disconnected.
func (o *Orchestrator) finish(prior model.CaseID, measureErr error) error {
	target := prior
	if measureErr != nil {
		target = model.CaseDisconnected
		log.Warn().Err(measureErr).Str("prior_case", string(prior)).Msg("Sensing fault during measurement, leaving array disconnected")
	}
	if err := o.switcher.ApplyCase(target); err != nil {
		return fmt.Errorf("restore %s: %w", target, err)
	}
	return nil
}

func (o *Orchestrator) measure(id model.BatteryID, kind model.MeasurementKind) (model.Reading, error) {
	r := model.Reading{Battery: id, Kind: kind}

	caseID := topology.IsolateCase(id)
	if kind == model.KindLoaded {
		caseID = topology.LoadCase(id)
	}
	if err := o.switcher.ApplyCase(caseID); err != nil {
		return r, fmt.Errorf("%s: %w", id, err)
	}
	o.clock.Sleep(o.restDelay)

	b, _ := o.topo.Battery(id)
	raw, err := o.reader.Read(b.ADCChannel)
	if err != nil {
		return r, fmt.Errorf("%s: read adc channel %d: %w", id, b.ADCChannel, err)
	}

	res, convErr := o.conv.Convert(raw)
	r.Raw = res.Raw
	r.Volts = res.Volts
	r.Display = res.Display
	r.InRange = res.InRange
	r.TakenAt = o.clock.Now()
	o.state.SetReading(r)

	evt := log.Debug()
	if convErr != nil {
		evt = log.Warn().Err(convErr)
	}
	evt.Str("battery", id.String()).
		Str("kind", string(kind)).
		Int("raw", raw).
		Float64("volts", r.Volts).
		Msg("Battery measured")

	if convErr != nil {
		return r, fmt.Errorf("%s: %w", id, convErr)
	}
	return r, nil
}

func isSwitchFault(err error) bool {
	return errors.Is(err, fets.ErrSwitchFault) || errors.Is(err, fets.ErrInvalidCase)
}

// Sag returns unloaded minus loaded volts per battery: the drop under load
// that a charge estimator would work from.
func Sag(loaded, unloaded [model.BatteryCount]model.Reading) [model.BatteryCount]float64 {
	var out [model.BatteryCount]float64
	for i := range out {
		out[i] = unloaded[i].Volts - loaded[i].Volts
	}
	return out
}
