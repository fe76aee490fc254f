package voltage

import (
	"errors"
	"fmt"
)

// ErrOutOfRange means a converted voltage is outside the physically
// plausible battery band, which points to a wiring or ADC fault.
var ErrOutOfRange = errors.New("voltage out of range")

// Converter turns raw ADC counts into battery terminal volts: first the ADC
// reference scale, then inversion of the R1/R2 divider.
type Converter struct {
	ReferenceVolts float64
	ADCMaxCount    int
	R1             float64 // ohms, battery side
	R2             float64 // ohms, ground side
	FloorVolts     float64
	MaxVolts       float64
}

// Board values: 5 V reference, 10-bit MCP3008, 100k/33k divider.
func Default() Converter {
	return Converter{
		ReferenceVolts: 5.0,
		ADCMaxCount:    1023,
		R1:             100000,
		R2:             33000,
		FloorVolts:     0.0,
		MaxVolts:       5.0,
	}
}

func (c Converter) Validate() error {
	switch {
	case c.ReferenceVolts <= 0:
		return fmt.Errorf("reference voltage must be positive, got %v", c.ReferenceVolts)
	case c.ADCMaxCount <= 0:
		return fmt.Errorf("adc max count must be positive, got %d", c.ADCMaxCount)
	case c.R1 < 0 || c.R2 <= 0:
		return fmt.Errorf("invalid divider r1=%v r2=%v", c.R1, c.R2)
	case c.FloorVolts >= c.MaxVolts:
		return fmt.Errorf("floor %v must be below max %v", c.FloorVolts, c.MaxVolts)
	}
	return nil
}

func (c Converter) ADCScale() float64 {
	return c.ReferenceVolts / float64(c.ADCMaxCount)
}

func (c Converter) DividerInverse() float64 {
	return (c.R1 + c.R2) / c.R2
}

// Volts is the unclamped conversion.
func (c Converter) Volts(count int) float64 {
	return float64(count) * c.ADCScale() * c.DividerInverse()
}

// Clamp limits v to the plausible band. Display use only.
func (c Converter) Clamp(v float64) float64 {
	if v < c.FloorVolts {
		return c.FloorVolts
	}
	if v > c.MaxVolts {
		return c.MaxVolts
	}
	return v
}

// Result is a single conversion. Volts is what logic should act on; Display
// is clamped for reporting.
type Result struct {
	Raw     int
	Volts   float64
	Display float64
	InRange bool
}

// Convert returns the conversion and ErrOutOfRange when the result falls
// outside [FloorVolts, MaxVolts]. The result is populated either way.
func (c Converter) Convert(count int) (Result, error) {
	v := c.Volts(count)
	r := Result{
		Raw:     count,
		Volts:   v,
		Display: c.Clamp(v),
		InRange: v >= c.FloorVolts && v <= c.MaxVolts,
	}
	if !r.InRange {
		return r, fmt.Errorf("%w: %.3fV from count %d (band %.2f-%.2fV)", ErrOutOfRange, v, count, c.FloorVolts, c.MaxVolts)
	}
	return r, nil
}
