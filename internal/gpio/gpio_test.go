package gpio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/array-controller/internal/clock"
	"github.com/thatsimonsguy/array-controller/internal/gpio/gpiotest"
	"github.com/thatsimonsguy/array-controller/internal/model"
	"github.com/thatsimonsguy/array-controller/internal/pinctrl"
	"github.com/thatsimonsguy/array-controller/internal/topology"
)

func TestValidateStartupPins_Valid(t *testing.T) {
	rec := gpiotest.NewRecorder(clock.NewFake(time.Now()))

	assert.NoError(t, ValidateStartupPins(rec, topology.Default()))
}

func TestValidateStartupPins_ActiveFET(t *testing.T) {
	rec := gpiotest.NewRecorder(clock.NewFake(time.Now()))
	rec.Set(17, true) // battery 3 charge FET

	err := ValidateStartupPins(rec, topology.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pin 17")
}

func TestSafeMode_DropsWrites(t *testing.T) {
	rec := gpiotest.NewRecorder(clock.NewFake(time.Now()))
	d := SafeMode(rec)

	require.NoError(t, d.Write(model.GPIOPin{Number: 5, ActiveHigh: true}, true))
	assert.Empty(t, rec.Trace())

	rec.Set(5, true)
	active, err := d.Read(model.GPIOPin{Number: 5, ActiveHigh: true})
	require.NoError(t, err)
	assert.True(t, active)
}

func TestLevel(t *testing.T) {
	assert.True(t, Level(model.GPIOPin{ActiveHigh: true}, true))
	assert.False(t, Level(model.GPIOPin{ActiveHigh: true}, false))
	assert.False(t, Level(model.GPIOPin{ActiveHigh: false}, true))
	assert.True(t, Level(model.GPIOPin{ActiveHigh: false}, false))
}

func TestPinctrl_ActiveLowWrite(t *testing.T) {
	orig := pinctrl.Run
	defer func() { pinctrl.Run = orig }()

	var got []string
	pinctrl.Run = func(args ...string) ([]byte, error) {
		got = args
		return nil, nil
	}

	require.NoError(t, Pinctrl{}.Write(model.GPIOPin{Number: 24, ActiveHigh: false}, true))
	assert.Equal(t, []string{"set", "24", "op", "pn", "dl"}, got)
}

func TestPinctrl_Read(t *testing.T) {
	orig := pinctrl.Run
	defer func() { pinctrl.Run = orig }()

	pinctrl.Run = func(args ...string) ([]byte, error) {
		return []byte("0\n"), nil
	}

	active, err := Pinctrl{}.Read(model.GPIOPin{Number: 24, ActiveHigh: false})
	require.NoError(t, err)
	assert.True(t, active)
}

func TestPinctrl_LevelsUsesOneGet(t *testing.T) {
	orig := pinctrl.Run
	defer func() { pinctrl.Run = orig }()

	calls := 0
	pinctrl.Run = func(args ...string) ([]byte, error) {
		calls++
		assert.Equal(t, []string{"get"}, args)
		return []byte(`14: ip    pu | hi // TXD0/GPIO14 = input
15: ip    pu | lo // RXD0/GPIO15 = input
24: ip    pu | hi // GPIO24 = input
`), nil
	}

	levels, err := Pinctrl{}.Levels()
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, map[int]bool{14: true, 15: false, 24: true}, levels)
}
