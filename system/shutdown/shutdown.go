package shutdown

import (
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

// ExitFunc ends the process after the array is disconnected.
var ExitFunc = os.Exit

var (
	mu         sync.Mutex
	disconnect func() error
)

// SetDisconnect registers the hook that opens every FET on the way out.
func SetDisconnect(fn func() error) {
	mu.Lock()
	disconnect = fn
	mu.Unlock()
}

func Shutdown() {
	openAll()
	ExitFunc(0)
}

func ShutdownWithError(err error, msg string) {
	log.Error().Err(err).Msg(msg)
	openAll()
	ExitFunc(1)
}

func openAll() {
	mu.Lock()
	fn := disconnect
	mu.Unlock()

	if fn == nil {
		log.Warn().Msg("No disconnect hook registered, FET state unknown at exit")
		return
	}
	if err := fn(); err != nil {
		log.Error().Err(err).Msg("Failed to open every FET during shutdown")
		return
	}
	log.Info().Msg("All FETs open, array disconnected")
}
