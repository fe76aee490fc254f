package adc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/spi"
)

type fakeConn struct {
	spi.Conn // unused methods panic
	lastTx   []byte
	reply    []byte
	err      error
}

func (f *fakeConn) Tx(w, r []byte) error {
	f.lastTx = append([]byte(nil), w...)
	if f.err != nil {
		return f.err
	}
	copy(r, f.reply)
	return nil
}

func TestFrame(t *testing.T) {
	assert.Equal(t, [3]byte{0x01, 0x80, 0x00}, frame(0))
	assert.Equal(t, [3]byte{0x01, 0xC0, 0x00}, frame(4))
}

func TestDecode_MasksGarbageBits(t *testing.T) {
	assert.Equal(t, 614, decode([]byte{0xFF, 0xFE, 0x66}))
	assert.Equal(t, 1023, decode([]byte{0x00, 0x03, 0xFF}))
}

func TestMCP3008_Read(t *testing.T) {
	conn := &fakeConn{reply: []byte{0x00, 0x02, 0x66}}
	m := &MCP3008{conn: conn}

	v, err := m.Read(2)
	require.NoError(t, err)
	assert.Equal(t, 614, v)
	assert.Equal(t, []byte{0x01, 0xA0, 0x00}, conn.lastTx)
	assert.Equal(t, 1023, m.MaxCount())
}

func TestMCP3008_ReadErrors(t *testing.T) {
	m := &MCP3008{conn: &fakeConn{err: errors.New("spi timeout")}}

	_, err := m.Read(1)
	assert.Error(t, err)

	_, err = m.Read(8)
	assert.Error(t, err)
}
