package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"github.com/thatsimonsguy/array-controller/db"
	"github.com/thatsimonsguy/array-controller/internal/adc"
	"github.com/thatsimonsguy/array-controller/internal/api"
	"github.com/thatsimonsguy/array-controller/internal/array"
	"github.com/thatsimonsguy/array-controller/internal/config"
	"github.com/thatsimonsguy/array-controller/internal/controller"
	"github.com/thatsimonsguy/array-controller/internal/datadog"
	"github.com/thatsimonsguy/array-controller/internal/debounce"
	"github.com/thatsimonsguy/array-controller/internal/fets"
	"github.com/thatsimonsguy/array-controller/internal/gpio"
	"github.com/thatsimonsguy/array-controller/internal/logging"
	"github.com/thatsimonsguy/array-controller/internal/measure"
	"github.com/thatsimonsguy/array-controller/internal/model"
	"github.com/thatsimonsguy/array-controller/internal/recorder"
	"github.com/thatsimonsguy/array-controller/internal/store"
	"github.com/thatsimonsguy/array-controller/internal/topology"
	"github.com/thatsimonsguy/array-controller/internal/voltage"
	"github.com/thatsimonsguy/array-controller/system/shutdown"
	"github.com/thatsimonsguy/array-controller/system/startup"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogFile)

	log.Info().
		Str("config_file", cfg.ConfigFile).
		Str("db_path", cfg.DBPath).
		Str("gpio_backend", cfg.GPIOBackend).
		Msg("Starting battery array controller")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	topo := topology.Default()
	state := array.New()

	driver, periph := openGPIO(cfg)
	if cfg.SafeMode {
		driver = gpio.SafeMode(driver)
		log.Warn().Msg("SAFE MODE ENABLED, FET writes are dropped")
	}

	datadog.InitMetrics(datadog.Settings{
		Enabled:   cfg.Datadog.Enabled,
		AgentAddr: cfg.Datadog.AgentAddr,
		Namespace: cfg.Datadog.Namespace,
		Tags:      cfg.Datadog.Tags,
	})

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		shutdown.ShutdownWithError(err, "Failed to open history database")
	}

	snapshots := store.New(cfg.StateFile)
	if snap, err := snapshots.Load(); err != nil {
		log.Warn().Err(err).Msg("No saved battery snapshot, starting with empty readings")
	} else {
		state.Restore(snap)
	}
	sink := recorder.New(database).WithSnapshots(snapshots, state)

	engine := fets.New(topo, driver, state, fets.Config{Observer: sink.RecordSwitch})
	shutdown.SetDisconnect(engine.FullDisconnect)

	if err := gpio.ValidateStartupPins(driver, topo); err != nil {
		shutdown.ShutdownWithError(err, "Refusing to run with FETs closed at startup")
	}
	if err := engine.FullDisconnect(); err != nil {
		shutdown.ShutdownWithError(err, "Failed to open every FET at startup")
	}

	if err := startup.WriteStartupScript(topo, cfg.BootScriptFilePath); err != nil {
		log.Warn().Err(err).Str("path", cfg.BootScriptFilePath).Msg("Failed to write GPIO boot script")
	}

	reader, err := adc.OpenMCP3008(cfg.SPIBus)
	if err != nil {
		shutdown.ShutdownWithError(err, "Failed to open ADC")
	}

	orch, err := measure.New(engine, reader, voltage.Default(), topo, state, measure.Config{})
	if err != nil {
		shutdown.ShutdownWithError(err, "Invalid measurement setup")
	}

	// edge-capable backends feed the queue; pinctrl is sampled on each poll
	var (
		edges  *debounce.Queue
		filter *debounce.Filter
	)
	if periph != nil {
		edges = debounce.NewQueue(0)
		filter = debounce.New(debounce.Config{Timeout: debounce.DefaultTimeout})
		for _, b := range topo.Buttons() {
			err := periph.WatchEdges(ctx, b.Pin, func(pin model.GPIOPin, active bool) {
				if !edges.Push(debounce.Event{Pin: pin, Active: active, At: time.Now()}) {
					log.Debug().Int("pin", pin.Number).Uint32("drops", edges.Drops()).Msg("Edge queue full")
				}
			})
			if err != nil {
				shutdown.ShutdownWithError(err, "Failed to watch button")
			}
		}
	} else {
		// reads bypass safe mode, so the bare backend is sampled with one
		// pinctrl get per poll
		filter = debounce.New(debounce.Config{Timeout: debounce.DefaultTimeout, Input: gpio.Pinctrl{}})
	}

	ctl := controller.New(topo, engine, orch, filter, edges, sink, controller.Config{
		PollInterval:    cfg.PollInterval(),
		MeasureInterval: cfg.MeasureInterval(),
	})
	ctl.SeedButtons(driver)

	if cfg.APIPort > 0 {
		server := api.NewServer(database, state, topo, engine, ctl)
		go func() {
			if err := server.Start(cfg.APIPort); err != nil {
				log.Error().Err(err).Msg("REST API server stopped")
			}
		}()
	}

	if cfg.HistoryRetentionDays > 0 {
		go pruneHistory(ctx, database, cfg.Retention())
	}

	if err := ctl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		shutdown.ShutdownWithError(err, "Controller loop failed")
	}
	log.Info().Msg("Shutdown requested")
	shutdown.SetDisconnect(func() error {
		err := engine.FullDisconnect()
		datadog.Close()
		return multierr.Combine(err, reader.Close(), database.Close())
	})
	shutdown.Shutdown()
}

func openGPIO(cfg config.Config) (gpio.Driver, *gpio.Periph) {
	if cfg.GPIOBackend == config.BackendPinctrl {
		return gpio.Pinctrl{}, nil
	}
	p, err := gpio.NewPeriph()
	if err != nil {
		// no FET has been driven yet
		log.Fatal().Err(err).Msg("Failed to initialise periph GPIO")
	}
	return p, p
}

func pruneHistory(ctx context.Context, database *sql.DB, keep time.Duration) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := db.PruneBefore(database, time.Now().Add(-keep))
			if err != nil {
				log.Warn().Err(err).Msg("Failed to prune history")
				continue
			}
			if n > 0 {
				log.Info().Int64("rows", n).Msg("Pruned old measurements")
			}
		}
	}
}
