package topology

import "github.com/thatsimonsguy/array-controller/internal/model"

// Board pin assignments (BCM numbering). SPI0 (GPIO 7-11) is reserved for
// the MCP3008 and GPIO 0/1 for the HAT EEPROM. The last two buttons sit on
// the UART pins, so the serial console must be disabled in config.txt; the
// boot script then reclaims GPIO 14/15 as pulled-up inputs.
var boardBatteries = []Battery{
	{ID: 1, ADCChannel: 0, OutputFETs: fets(2, 3), ChargeFETs: fets(4)},
	{ID: 2, ADCChannel: 1, OutputFETs: fets(5, 6), ChargeFETs: fets(12)},
	{ID: 3, ADCChannel: 2, OutputFETs: fets(13, 16), ChargeFETs: fets(17)},
	{ID: 4, ADCChannel: 3, OutputFETs: fets(18, 19), ChargeFETs: fets(20)},
	{ID: 5, ADCChannel: 4, OutputFETs: fets(21, 22), ChargeFETs: fets(23)},
}

var boardButtons = []Button{
	{Pin: button(24), Case: OutputCase(1)},
	{Pin: button(25), Case: OutputCase(2)},
	{Pin: button(26), Case: OutputCase(3)},
	{Pin: button(27), Case: OutputCase(4)},
	{Pin: button(14), Case: OutputCase(5)},
	{Pin: button(15), Case: model.CaseDisconnected},
}

// BoardCases is the case table: one output, one charge and one isolation
// case per battery plus the implicit disconnected case.
func BoardCases() []Case {
	var cases []Case
	for id := model.BatteryID(1); id <= model.BatteryCount; id++ {
		cases = append(cases,
			Case{ID: OutputCase(id), Output: []model.BatteryID{id}},
			Case{ID: ChargeCase(id), Charge: []model.BatteryID{id}},
			Case{ID: IsolateCase(id)},
		)
	}
	return cases
}

// Default returns the board's build-time topology.
func Default() *Topology {
	t, err := New(boardBatteries, BoardCases(), boardButtons)
	if err != nil {
		panic("invalid board topology: " + err.Error())
	}
	return t
}

func fets(numbers ...int) []model.GPIOPin {
	pins := make([]model.GPIOPin, 0, len(numbers))
	for _, n := range numbers {
		pins = append(pins, model.GPIOPin{Number: n, ActiveHigh: true})
	}
	return pins
}

// buttons pull up and short to ground when pressed
func button(n int) model.GPIOPin {
	return model.GPIOPin{Number: n, ActiveHigh: false}
}
