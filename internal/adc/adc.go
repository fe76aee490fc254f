package adc

import (
	"fmt"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// Reader samples one analog channel and returns the raw count.
type Reader interface {
	Read(channel int) (int, error)
	MaxCount() int
}

const (
	mcp3008Channels = 8
	mcp3008Max      = 1023
)

// MCP3008 is a 10-bit, 8-channel SPI ADC.
type MCP3008 struct {
	port spi.PortCloser
	conn spi.Conn
}

// OpenMCP3008 opens the named SPI port (e.g. "SPI0.0"). An empty name picks
// the first registered port.
func OpenMCP3008(bus string) (*MCP3008, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	port, err := spireg.Open(bus)
	if err != nil {
		return nil, fmt.Errorf("open spi port %q: %w", bus, err)
	}
	conn, err := port.Connect(1*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return nil, multierr.Combine(fmt.Errorf("connect spi port %q: %w", bus, err), port.Close())
	}
	return &MCP3008{port: port, conn: conn}, nil
}

func (m *MCP3008) MaxCount() int { return mcp3008Max }

func (m *MCP3008) Read(channel int) (int, error) {
	if channel < 0 || channel >= mcp3008Channels {
		return 0, fmt.Errorf("mcp3008 has no channel %d", channel)
	}
	tx := frame(channel)
	rx := make([]byte, len(tx))
	if err := m.conn.Tx(tx[:], rx); err != nil {
		return 0, fmt.Errorf("mcp3008 channel %d: %w", channel, err)
	}
	return decode(rx), nil
}

func (m *MCP3008) Close() error {
	return m.port.Close()
}

// frame builds a single-ended conversion request: start bit, then SGL/DIFF
// and the channel in the high nibble, then clocks for the 10 result bits.
func frame(channel int) [3]byte {
	return [3]byte{1, byte((8 + channel) << 4), 0}
}

// decode keeps only the final 10 bits; earlier bits are undefined.
func decode(rx []byte) int {
	return 0x03FF & ((int(rx[1]) << 8) | int(rx[2]))
}
