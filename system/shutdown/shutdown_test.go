package shutdown

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) *int {
	t.Helper()
	code := -1
	prev := ExitFunc
	ExitFunc = func(c int) { code = c }
	t.Cleanup(func() {
		ExitFunc = prev
		SetDisconnect(nil)
	})
	return &code
}

func TestShutdownWithError_DisconnectsThenExits(t *testing.T) {
	code := capture(t)
	calls := 0
	SetDisconnect(func() error { calls++; return nil })

	ShutdownWithError(errors.New("adc missing"), "startup failed")

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, *code)
}

func TestShutdown_ExitsEvenIfDisconnectFails(t *testing.T) {
	code := capture(t)
	SetDisconnect(func() error { return errors.New("driver fault") })

	Shutdown()
	assert.Equal(t, 0, *code)
}

func TestShutdown_NoHook(t *testing.T) {
	code := capture(t)
	Shutdown()
	assert.Equal(t, 0, *code)
}
