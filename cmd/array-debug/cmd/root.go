package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thatsimonsguy/array-controller/internal/array"
	"github.com/thatsimonsguy/array-controller/internal/config"
	"github.com/thatsimonsguy/array-controller/internal/fets"
	"github.com/thatsimonsguy/array-controller/internal/gpio"
	"github.com/thatsimonsguy/array-controller/internal/logging"
	"github.com/thatsimonsguy/array-controller/internal/topology"
)

var (
	// Global flags
	backend  string
	dbPath   string
	logLevel string
	safeMode bool
)

var rootCmd = &cobra.Command{
	Use:   "array-debug",
	Short: "Bench tool for the battery array board",
	Long: `Drive the battery array board by hand: list and apply cases, take
measurements, inspect stored history and check the voltage conversion.

Stop the array-controller service first; both processes would drive the
same FET pins.

Examples:
  array-debug cases                          # List every defined case
  array-debug apply output_2                 # Put battery 2 on the bus
  array-debug measure --battery 3            # Isolate and sample battery 3
  array-debug history --db data/array.db     # Latest stored readings
  array-debug convert 614                    # Raw count to volts`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logging.ParseLevel(logLevel), "")
	},
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backend, "backend", config.BackendPinctrl, "GPIO backend (pinctrl or periph)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "data/array.db", "Path to the SQLite history database")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&safeMode, "safe-mode", false, "Log FET writes instead of driving them")
}

func openDriver() (gpio.Driver, error) {
	var d gpio.Driver
	switch backend {
	case config.BackendPinctrl:
		d = gpio.Pinctrl{}
	case config.BackendPeriph:
		p, err := gpio.NewPeriph()
		if err != nil {
			return nil, err
		}
		d = p
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
	if safeMode {
		d = gpio.SafeMode(d)
	}
	return d, nil
}

// openEngine starts from a full disconnect, like the service does.
func openEngine() (*fets.Engine, *topology.Topology, *array.State, error) {
	driver, err := openDriver()
	if err != nil {
		return nil, nil, nil, err
	}
	topo := topology.Default()
	state := array.New()
	engine := fets.New(topo, driver, state, fets.Config{})
	if err := engine.FullDisconnect(); err != nil {
		return nil, nil, nil, err
	}
	return engine, topo, state, nil
}
