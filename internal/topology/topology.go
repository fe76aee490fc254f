package topology

import (
	"fmt"
	"sort"
	"strings"

	"github.com/thatsimonsguy/array-controller/internal/model"
)

// MaxFETPins is the number of digital outputs the board routes to MOSFET gates.
const MaxFETPins = 21

// MaxButtons is the number of discrete mode-select lines on the board.
const MaxButtons = 6

type Battery struct {
	ID         model.BatteryID
	ADCChannel int
	OutputFETs []model.GPIOPin
	ChargeFETs []model.GPIOPin
}

// Case is one exhaustive FET configuration. Batteries not listed have all
// their FETs open.
type Case struct {
	ID            model.CaseID
	Output        []model.BatteryID
	Charge        []model.BatteryID
	AllowParallel bool
}

func (c Case) Charging(id model.BatteryID) bool {
	return containsID(c.Charge, id)
}

type Button struct {
	Pin  model.GPIOPin
	Case model.CaseID
}

// Topology is immutable once built; all accessors return copies.
type Topology struct {
	batteries [model.BatteryCount]Battery
	cases     map[model.CaseID]Case
	buttons   []Button
}

func New(batteries []Battery, cases []Case, buttons []Button) (*Topology, error) {
	t := &Topology{cases: make(map[model.CaseID]Case, len(cases)+1)}

	if len(batteries) != model.BatteryCount {
		return nil, fmt.Errorf("topology requires %d batteries, got %d", model.BatteryCount, len(batteries))
	}

	var (
		usedPins  = map[int]string{}
		conflicts []string
		fetPins   int
	)
	claim := func(pin model.GPIOPin, owner string) {
		if other, exists := usedPins[pin.Number]; exists {
			conflicts = append(conflicts, fmt.Sprintf("%s and %s both use pin %d", owner, other, pin.Number))
			return
		}
		usedPins[pin.Number] = owner
	}

	seenChannels := map[int]model.BatteryID{}
	for _, b := range batteries {
		if !b.ID.Valid() {
			return nil, fmt.Errorf("invalid battery id %d", b.ID)
		}
		if t.batteries[b.ID.Index()].ID != 0 {
			return nil, fmt.Errorf("battery %d defined twice", b.ID)
		}
		if len(b.OutputFETs) == 0 || len(b.ChargeFETs) == 0 {
			return nil, fmt.Errorf("battery %d needs at least one output and one charge FET", b.ID)
		}
		if other, exists := seenChannels[b.ADCChannel]; exists {
			return nil, fmt.Errorf("batteries %d and %d share ADC channel %d", b.ID, other, b.ADCChannel)
		}
		seenChannels[b.ADCChannel] = b.ID

		for i, p := range b.OutputFETs {
			claim(p, fmt.Sprintf("%s.output[%d]", b.ID, i))
		}
		for i, p := range b.ChargeFETs {
			claim(p, fmt.Sprintf("%s.charge[%d]", b.ID, i))
		}
		fetPins += len(b.OutputFETs) + len(b.ChargeFETs)

		t.batteries[b.ID.Index()] = Battery{
			ID:         b.ID,
			ADCChannel: b.ADCChannel,
			OutputFETs: append([]model.GPIOPin(nil), b.OutputFETs...),
			ChargeFETs: append([]model.GPIOPin(nil), b.ChargeFETs...),
		}
	}
	if fetPins > MaxFETPins {
		return nil, fmt.Errorf("topology uses %d FET pins, board has %d", fetPins, MaxFETPins)
	}

	t.cases[model.CaseDisconnected] = Case{ID: model.CaseDisconnected}
	for _, c := range cases {
		if c.ID == "" {
			return nil, fmt.Errorf("case with empty id")
		}
		if _, exists := t.cases[c.ID]; exists {
			return nil, fmt.Errorf("case %q defined twice", c.ID)
		}
		if err := validateCase(c); err != nil {
			return nil, err
		}
		t.cases[c.ID] = Case{
			ID:            c.ID,
			Output:        append([]model.BatteryID(nil), c.Output...),
			Charge:        append([]model.BatteryID(nil), c.Charge...),
			AllowParallel: c.AllowParallel,
		}
	}

	if len(buttons) > MaxButtons {
		return nil, fmt.Errorf("topology defines %d buttons, board has %d", len(buttons), MaxButtons)
	}
	for i, btn := range buttons {
		if _, ok := t.cases[btn.Case]; !ok {
			return nil, fmt.Errorf("button %d maps to unknown case %q", i, btn.Case)
		}
		claim(btn.Pin, fmt.Sprintf("button[%d]", i))
	}
	t.buttons = append([]Button(nil), buttons...)

	if len(conflicts) > 0 {
		return nil, fmt.Errorf("conflicting GPIO pins: %s", strings.Join(conflicts, ", "))
	}
	return t, nil
}

// validateCase enforces mutual exclusion between the output bus and the
// charge source.
func validateCase(c Case) error {
	for _, id := range append(append([]model.BatteryID(nil), c.Output...), c.Charge...) {
		if !id.Valid() {
			return fmt.Errorf("case %q references unknown battery %d", c.ID, id)
		}
	}
	if hasDuplicates(c.Output) || hasDuplicates(c.Charge) {
		return fmt.Errorf("case %q lists a battery twice", c.ID)
	}
	if len(c.Charge) > 1 {
		return fmt.Errorf("case %q charges %d batteries, at most one may charge", c.ID, len(c.Charge))
	}
	if len(c.Charge) == 1 && len(c.Output) > 0 {
		return fmt.Errorf("case %q connects the charge source and the output bus at the same time", c.ID)
	}
	if len(c.Output) > 1 && !c.AllowParallel {
		return fmt.Errorf("case %q puts %d batteries on the bus without AllowParallel", c.ID, len(c.Output))
	}
	return nil
}

func (t *Topology) Battery(id model.BatteryID) (Battery, bool) {
	if !id.Valid() {
		return Battery{}, false
	}
	return t.batteries[id.Index()], true
}

func (t *Topology) Batteries() []Battery {
	out := make([]Battery, 0, model.BatteryCount)
	out = append(out, t.batteries[:]...)
	return out
}

func (t *Topology) Case(id model.CaseID) (Case, bool) {
	c, ok := t.cases[id]
	return c, ok
}

// CaseIDs returns every defined case, sorted for stable output.
func (t *Topology) CaseIDs() []model.CaseID {
	ids := make([]model.CaseID, 0, len(t.cases))
	for id := range t.cases {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (t *Topology) Buttons() []Button {
	return append([]Button(nil), t.buttons...)
}

// FETPins returns every FET pin, charge FETs first, then output FETs, in
// battery order. This is the order used for a full disconnect.
func (t *Topology) FETPins() []model.GPIOPin {
	var pins []model.GPIOPin
	for _, b := range t.batteries {
		pins = append(pins, b.ChargeFETs...)
	}
	for _, b := range t.batteries {
		pins = append(pins, b.OutputFETs...)
	}
	return pins
}

// ClosedPins returns the pins a case closes: output FETs in table order,
// then charge FETs.
func (t *Topology) ClosedPins(c Case) []model.GPIOPin {
	var pins []model.GPIOPin
	for _, id := range c.Output {
		pins = append(pins, t.batteries[id.Index()].OutputFETs...)
	}
	for _, id := range c.Charge {
		pins = append(pins, t.batteries[id.Index()].ChargeFETs...)
	}
	return pins
}

func OutputCase(id model.BatteryID) model.CaseID {
	return model.CaseID(fmt.Sprintf("output_%d", int(id)))
}

func ChargeCase(id model.BatteryID) model.CaseID {
	return model.CaseID(fmt.Sprintf("charge_%d", int(id)))
}

func IsolateCase(id model.BatteryID) model.CaseID {
	return model.CaseID(fmt.Sprintf("isolate_%d", int(id)))
}

// LoadCase is the configuration a battery is measured under when loaded.
func LoadCase(id model.BatteryID) model.CaseID {
	return OutputCase(id)
}

func containsID(ids []model.BatteryID, id model.BatteryID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func hasDuplicates(ids []model.BatteryID) bool {
	seen := map[model.BatteryID]bool{}
	for _, id := range ids {
		if seen[id] {
			return true
		}
		seen[id] = true
	}
	return false
}
