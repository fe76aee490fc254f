package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/array-controller/internal/array"
	"github.com/thatsimonsguy/array-controller/internal/clock"
	"github.com/thatsimonsguy/array-controller/internal/debounce"
	"github.com/thatsimonsguy/array-controller/internal/fets"
	"github.com/thatsimonsguy/array-controller/internal/gpio/gpiotest"
	"github.com/thatsimonsguy/array-controller/internal/measure"
	"github.com/thatsimonsguy/array-controller/internal/model"
	"github.com/thatsimonsguy/array-controller/internal/topology"
	"github.com/thatsimonsguy/array-controller/internal/voltage"
)

type stubADC struct{ counts map[int]int }

func (s stubADC) MaxCount() int { return 1023 }

func (s stubADC) Read(channel int) (int, error) { return s.counts[channel], nil }

type collector struct{ readings []model.Reading }

func (c *collector) RecordReadings(r []model.Reading) { c.readings = append(c.readings, r...) }

type harness struct {
	ctl    *Controller
	engine *fets.Engine
	rec    *gpiotest.Recorder
	clk    *clock.Fake
	edges  *debounce.Queue
	sink   *collector
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		clk:   clock.NewFake(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)),
		edges: debounce.NewQueue(16),
		sink:  &collector{},
	}
	topo := topology.Default()
	state := array.New()
	h.rec = gpiotest.NewRecorder(h.clk)
	h.engine = fets.New(topo, h.rec, state, fets.Config{Clock: h.clk})

	orch, err := measure.New(h.engine, stubADC{counts: map[int]int{0: 190, 1: 191, 2: 192, 3: 193, 4: 194}},
		voltage.Default(), topo, state, measure.Config{Clock: h.clk})
	require.NoError(t, err)

	filter := debounce.New(debounce.Config{Clock: h.clk})
	cfg.Clock = h.clk
	h.ctl = New(topo, h.engine, orch, filter, h.edges, h.sink, cfg)
	h.ctl.SeedButtons(h.rec)
	return h
}

var button1 = model.GPIOPin{Number: 24, ActiveHigh: false}

func TestStep_StablePressAppliesCase(t *testing.T) {
	h := newHarness(t, Config{})

	h.edges.Push(debounce.Event{Pin: button1, Active: true, At: h.clk.Now()})
	assert.Equal(t, 0, h.ctl.Step(), "press not yet stable")

	h.clk.Advance(40 * time.Millisecond)
	assert.Equal(t, 1, h.ctl.Step())
	assert.Equal(t, model.CaseID("output_1"), h.engine.Current())

	h.clk.Advance(40 * time.Millisecond)
	assert.Equal(t, 0, h.ctl.Step(), "held button does not repeat")
}

func TestStep_BounceYieldsSinglePress(t *testing.T) {
	h := newHarness(t, Config{})

	for i := 0; i < 9; i++ {
		h.clk.Advance(time.Millisecond)
		h.edges.Push(debounce.Event{Pin: button1, Active: i%2 == 0, At: h.clk.Now()})
		h.ctl.Step()
	}
	presses := 0
	for i := 0; i < 10; i++ {
		h.clk.Advance(10 * time.Millisecond)
		presses += h.ctl.Step()
	}

	assert.Equal(t, 1, presses)
	assert.Equal(t, model.CaseID("output_1"), h.engine.Current())
}

func TestStep_DisconnectButton(t *testing.T) {
	h := newHarness(t, Config{})
	require.NoError(t, h.engine.ApplyCase("charge_4"))

	stop := model.GPIOPin{Number: 15, ActiveHigh: false}
	h.edges.Push(debounce.Event{Pin: stop, Active: true, At: h.clk.Now()})
	h.clk.Advance(40 * time.Millisecond)

	assert.Equal(t, 1, h.ctl.Step())
	assert.Equal(t, model.CaseDisconnected, h.engine.Current())
	assert.Empty(t, h.rec.ActivePins())
}

func TestRequestCase_QueueFull(t *testing.T) {
	h := newHarness(t, Config{RequestDepth: 1})

	require.NoError(t, h.ctl.RequestCase("output_3"))
	assert.ErrorIs(t, h.ctl.RequestCase("output_4"), ErrQueueFull)
}

func TestRun_AppliesQueuedRequests(t *testing.T) {
	h := newHarness(t, Config{PollInterval: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.ctl.Run(ctx) }()

	require.NoError(t, h.ctl.RequestCase("charge_2"))
	assert.Eventually(t, func() bool {
		return h.engine.Current() == "charge_2"
	}, time.Second, time.Millisecond)

	// an undefined case leaves the array disconnected
	require.NoError(t, h.ctl.RequestCase("output_9"))
	assert.Eventually(t, func() bool {
		return h.engine.Current() == model.CaseDisconnected
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("controller loop did not stop")
	}
}

func TestSweep_RecordsUnloadedThenLoaded(t *testing.T) {
	h := newHarness(t, Config{})
	require.NoError(t, h.engine.ApplyCase("output_5"))

	require.NoError(t, h.ctl.Sweep())

	require.Len(t, h.sink.readings, 2*model.BatteryCount)
	for i, r := range h.sink.readings {
		want := model.KindUnloaded
		if i >= model.BatteryCount {
			want = model.KindLoaded
		}
		assert.Equal(t, want, r.Kind)
		assert.Equal(t, model.BatteryID(i%model.BatteryCount+1), r.Battery)
	}
	assert.Equal(t, model.CaseID("output_5"), h.engine.Current())
}

func TestSweep_SwitchFaultSkipsLoaded(t *testing.T) {
	h := newHarness(t, Config{})
	h.rec.FailPin(4, errors.New("driver fault"))

	err := h.ctl.Sweep()
	assert.ErrorIs(t, err, fets.ErrSwitchFault)
	assert.Empty(t, h.sink.readings)
	assert.Equal(t, model.CaseDisconnected, h.engine.Current())
}

func TestStep_PressAndReleaseQueuedBeforeOneDrain(t *testing.T) {
	h := newHarness(t, Config{})

	t0 := h.clk.Now()
	h.edges.Push(debounce.Event{Pin: button1, Active: true, At: t0.Add(100 * time.Millisecond)})
	h.edges.Push(debounce.Event{Pin: button1, Active: false, At: t0.Add(400 * time.Millisecond)})
	h.clk.Advance(time.Second)

	assert.Equal(t, 1, h.ctl.Step())
	assert.Equal(t, model.CaseID("output_1"), h.engine.Current())
}

func TestStep_PressDuringSweepIsAppliedAfter(t *testing.T) {
	h := newHarness(t, Config{})

	h.edges.Push(debounce.Event{Pin: button1, Active: true, At: h.clk.Now()})
	require.NoError(t, h.ctl.Sweep())
	// released long before the loop drains the queue again
	h.edges.Push(debounce.Event{Pin: button1, Active: false, At: h.clk.Now()})

	assert.Equal(t, model.CaseDisconnected, h.engine.Current(), "sweep restores the prior case")
	assert.Equal(t, 1, h.ctl.Step())
	assert.Equal(t, model.CaseID("output_1"), h.engine.Current())
}
