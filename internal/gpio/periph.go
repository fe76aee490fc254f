package gpio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/thatsimonsguy/array-controller/internal/model"
)

// Periph drives pins through periph.io's host drivers.
type Periph struct {
	mu   sync.Mutex
	pins map[int]gpio.PinIO
}

func NewPeriph() (*Periph, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	return &Periph{pins: map[int]gpio.PinIO{}}, nil
}

func (p *Periph) lookup(number int) (gpio.PinIO, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pin, ok := p.pins[number]; ok {
		return pin, nil
	}
	pin := gpioreg.ByName(fmt.Sprintf("GPIO%d", number))
	if pin == nil {
		return nil, fmt.Errorf("GPIO%d not found", number)
	}
	p.pins[number] = pin
	return pin, nil
}

func (p *Periph) Write(pin model.GPIOPin, active bool) error {
	io, err := p.lookup(pin.Number)
	if err != nil {
		return err
	}
	if err := io.Out(gpio.Level(Level(pin, active))); err != nil {
		return fmt.Errorf("drive GPIO%d: %w", pin.Number, err)
	}
	return nil
}

func (p *Periph) Read(pin model.GPIOPin) (bool, error) {
	io, err := p.lookup(pin.Number)
	if err != nil {
		return false, err
	}
	return bool(io.Read()) == pin.ActiveHigh, nil
}

// EdgeHandler receives the logical level seen on an edge. It runs on the
// watcher goroutine and must not block.
type EdgeHandler func(pin model.GPIOPin, active bool)

// WatchEdges configures pin as a pulled input and calls fn for every edge
// until ctx is done.
func (p *Periph) WatchEdges(ctx context.Context, pin model.GPIOPin, fn EdgeHandler) error {
	io, err := p.lookup(pin.Number)
	if err != nil {
		return err
	}
	pull := gpio.PullDown
	if !pin.ActiveHigh {
		pull = gpio.PullUp
	}
	if err := io.In(pull, gpio.BothEdges); err != nil {
		return fmt.Errorf("configure GPIO%d as input: %w", pin.Number, err)
	}

	go func() {
		defer io.Halt()
		for ctx.Err() == nil {
			if io.WaitForEdge(100 * time.Millisecond) {
				fn(pin, bool(io.Read()) == pin.ActiveHigh)
			}
		}
	}()
	return nil
}
