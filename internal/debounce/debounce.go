package debounce

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/array-controller/internal/clock"
	"github.com/thatsimonsguy/array-controller/internal/model"
)

// ErrDebounceTimeout marks a line that stayed indeterminate past the timeout
// window. It is resolved inside the filter by discarding the transition.
var ErrDebounceTimeout = errors.New("debounce timeout")

const (
	DefaultDwell   = 30 * time.Millisecond
	DefaultTimeout = 500 * time.Millisecond
)

// Input samples a raw logical level. gpio.Driver satisfies it.
type Input interface {
	Read(pin model.GPIOPin) (bool, error)
}

// Snapshotter samples every line at once, returning physical levels keyed by
// GPIO number. When Input also implements it, Refresh takes one snapshot per
// main-loop step and Poll reads from it.
type Snapshotter interface {
	Levels() (map[int]bool, error)
}

type Config struct {
	Dwell   time.Duration
	Timeout time.Duration
	Clock   clock.Clock
	Input   Input // optional; Poll samples it when set
}

type line struct {
	seen         bool
	clean        bool
	raw          bool
	rawSince     time.Time
	pendingSince time.Time
	timedOut     bool
	presses      int
}

// Filter debounces each line independently. It is not safe for concurrent
// use; the main loop owns it.
type Filter struct {
	dwell   time.Duration
	timeout time.Duration
	clock   clock.Clock
	input   Input
	lines   map[int]*line

	snapshot map[int]bool
	snapped  bool
}

func New(cfg Config) *Filter {
	if cfg.Dwell <= 0 {
		cfg.Dwell = DefaultDwell
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	return &Filter{
		dwell:   cfg.Dwell,
		timeout: cfg.Timeout,
		clock:   cfg.Clock,
		input:   cfg.Input,
		lines:   map[int]*line{},
	}
}

func (f *Filter) line(pin int) *line {
	l, ok := f.lines[pin]
	if !ok {
		l = &line{}
		f.lines[pin] = l
	}
	return l
}

// Observe records a raw level seen at time at. The first observation of a
// line is taken as its clean state and never produces an edge. A level that
// held for the dwell window before at is committed here, so edges drained
// late from a queue still yield their press.
func (f *Filter) Observe(pin int, raw bool, at time.Time) {
	l := f.line(pin)
	if !l.seen {
		l.seen = true
		l.clean, l.raw, l.rawSince = raw, raw, at
		return
	}
	if raw == l.raw {
		return
	}
	if at.Sub(l.rawSince) >= f.dwell {
		f.settle(pin, l)
	}
	l.raw = raw
	l.rawSince = at
	if l.pendingSince.IsZero() && raw != l.clean {
		l.pendingSince = at
	}
}

// settle commits the current raw level, which has held for the dwell
// window. A transition that took longer than the timeout to settle is
// discarded.
func (f *Filter) settle(pin int, l *line) {
	stableAt := l.rawSince.Add(f.dwell)
	expired := l.timedOut ||
		(f.timeout > 0 && !l.pendingSince.IsZero() && stableAt.Sub(l.pendingSince) >= f.timeout)
	l.pendingSince = time.Time{}
	l.timedOut = false
	if l.raw == l.clean {
		return
	}
	l.clean = l.raw
	if expired {
		log.Debug().Err(ErrDebounceTimeout).Int("pin", pin).Dur("window", f.timeout).Msg("discarding indeterminate input")
		return
	}
	if l.clean {
		l.presses++
	}
}

// Poll reports whether the line produced a stable press (inactive to active
// edge) since the last poll. Release edges and discarded transitions return
// false. Presses committed from queued edges are reported one per call.
func (f *Filter) Poll(pin model.GPIOPin) bool {
	now := f.clock.Now()
	if raw, ok := f.sample(pin); ok {
		f.Observe(pin.Number, raw, now)
	}

	l := f.line(pin.Number)
	if !l.seen {
		return false
	}

	if now.Sub(l.rawSince) >= f.dwell {
		f.settle(pin.Number, l)
	} else if !l.timedOut && f.timeout > 0 && !l.pendingSince.IsZero() && now.Sub(l.pendingSince) >= f.timeout {
		l.timedOut = true
	}

	if l.presses > 0 {
		l.presses--
		return true
	}
	return false
}

// Refresh replaces the level snapshot when Input is a Snapshotter. A failed
// snapshot leaves every line unsampled until the next Refresh.
func (f *Filter) Refresh() {
	s, ok := f.input.(Snapshotter)
	if !ok {
		return
	}
	levels, err := s.Levels()
	if err != nil {
		log.Debug().Err(err).Msg("debounce snapshot failed")
		levels = nil
	}
	f.snapshot, f.snapped = levels, true
}

func (f *Filter) sample(pin model.GPIOPin) (bool, bool) {
	if f.snapped {
		physical, ok := f.snapshot[pin.Number]
		return physical == pin.ActiveHigh, ok
	}
	if f.input == nil {
		return false, false
	}
	raw, err := f.input.Read(pin)
	if err != nil {
		log.Debug().Err(err).Int("pin", pin.Number).Msg("debounce sample failed")
		return false, false
	}
	return raw, true
}

// Clean returns the debounced level of a line.
func (f *Filter) Clean(pin int) bool {
	if l, ok := f.lines[pin]; ok {
		return l.clean
	}
	return false
}
