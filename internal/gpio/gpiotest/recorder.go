// Package gpiotest provides an in-memory gpio.Driver that records every
// write with a timestamp.
package gpiotest

import (
	"fmt"
	"sync"
	"time"

	"github.com/thatsimonsguy/array-controller/internal/clock"
	"github.com/thatsimonsguy/array-controller/internal/model"
)

type Write struct {
	Pin    int
	Active bool
	At     time.Time
}

type Recorder struct {
	mu     sync.Mutex
	clock  clock.Clock
	state  map[int]bool
	trace  []Write
	failOn map[int]error
	failCl map[int]error
}

func NewRecorder(c clock.Clock) *Recorder {
	return &Recorder{
		clock:  c,
		state:  map[int]bool{},
		failOn: map[int]error{},
		failCl: map[int]error{},
	}
}

// FailPin makes every write to pin return err.
func (r *Recorder) FailPin(pin int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failOn[pin] = err
}

// FailClose makes writes that activate pin return err.
func (r *Recorder) FailClose(pin int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failCl[pin] = err
}

// Set forces a logical level without recording a write.
func (r *Recorder) Set(pin int, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[pin] = active
}

func (r *Recorder) Write(pin model.GPIOPin, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failOn[pin.Number]; ok {
		return fmt.Errorf("GPIO%d: %w", pin.Number, err)
	}
	if err, ok := r.failCl[pin.Number]; ok && active {
		return fmt.Errorf("GPIO%d: %w", pin.Number, err)
	}
	r.state[pin.Number] = active
	r.trace = append(r.trace, Write{Pin: pin.Number, Active: active, At: r.clock.Now()})
	return nil
}

func (r *Recorder) Read(pin model.GPIOPin) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state[pin.Number], nil
}

func (r *Recorder) Active(pin int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state[pin]
}

// ActivePins returns every pin currently active.
func (r *Recorder) ActivePins() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int
	for pin, on := range r.state {
		if on {
			out = append(out, pin)
		}
	}
	return out
}

func (r *Recorder) Trace() []Write {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Write(nil), r.trace...)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace = nil
}
