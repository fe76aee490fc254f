package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/thatsimonsguy/array-controller/internal/adc"
	"github.com/thatsimonsguy/array-controller/internal/measure"
	"github.com/thatsimonsguy/array-controller/internal/model"
	"github.com/thatsimonsguy/array-controller/internal/voltage"
)

var (
	spiBus  string
	loaded  bool
	battery int
)

var measureCmd = &cobra.Command{
	Use:   "measure",
	Short: "Measure one battery or sweep all of them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		engine, topo, state, err := openEngine()
		if err != nil {
			return err
		}
		reader, err := adc.OpenMCP3008(spiBus)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, reader.Close()) }()

		orch, err := measure.New(engine, reader, voltage.Default(), topo, state, measure.Config{})
		if err != nil {
			return err
		}

		kind := model.KindUnloaded
		if loaded {
			kind = model.KindLoaded
		}
		out := cmd.OutOrStdout()

		if battery != 0 {
			r, merr := orch.MeasureBattery(model.BatteryID(battery), kind)
			printReading(out, r)
			return merr
		}

		var readings [model.BatteryCount]model.Reading
		var merr error
		if loaded {
			readings, merr = orch.MeasureLoaded()
		} else {
			readings, merr = orch.MeasureUnloaded()
		}
		for _, r := range readings {
			printReading(out, r)
		}
		return merr
	},
}

func printReading(out io.Writer, r model.Reading) {
	if r.TakenAt.IsZero() {
		fmt.Fprintf(out, "%s %-8s not sampled\n", r.Battery, r.Kind)
		return
	}
	flag := ""
	if !r.InRange {
		flag = " OUT OF RANGE"
	}
	fmt.Fprintf(out, "%s %-8s raw=%4d volts=%6.3f display=%5.3f%s\n", r.Battery, r.Kind, r.Raw, r.Volts, r.Display, flag)
}

func init() {
	measureCmd.Flags().StringVar(&spiBus, "spi", "SPI0.0", "SPI port of the MCP3008")
	measureCmd.Flags().BoolVar(&loaded, "loaded", false, "Measure on the output bus instead of isolated")
	measureCmd.Flags().IntVar(&battery, "battery", 0, "Measure only this battery (1-5)")
	rootCmd.AddCommand(measureCmd)
}
