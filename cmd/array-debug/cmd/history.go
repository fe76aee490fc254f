package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/thatsimonsguy/array-controller/db"
	"github.com/thatsimonsguy/array-controller/internal/model"
	"github.com/thatsimonsguy/array-controller/internal/voltage"
)

var (
	historyLimit   int
	historyBattery int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show stored readings and recent case changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		if historyBattery != 0 {
			readings, err := db.BatteryHistoryCLI(dbPath, model.BatteryID(historyBattery), historyLimit)
			if err != nil {
				return err
			}
			for _, r := range readings {
				fmt.Fprintf(out, "%s ", r.TakenAt.Format("2006-01-02 15:04:05"))
				printReading(out, r)
			}
			return nil
		}

		unloaded, loadedReadings, switches, err := db.HistoryCLI(dbPath, historyLimit)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "latest unloaded:")
		for _, r := range unloaded {
			printReading(out, r)
		}
		fmt.Fprintln(out, "latest loaded:")
		for _, r := range loadedReadings {
			printReading(out, r)
		}
		fmt.Fprintln(out, "case changes:")
		for _, ev := range switches {
			status := "ok"
			if ev.Err != "" {
				status = ev.Err
			}
			fmt.Fprintf(out, "%s %s -> %s (%s) %s\n", ev.At.Format("2006-01-02 15:04:05.000"), ev.From, ev.To, ev.Duration, status)
		}
		return nil
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert <count>",
	Short: "Convert a raw ADC count to battery volts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		count, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("count must be an integer: %w", err)
		}
		res, convErr := voltage.Default().Convert(count)
		fmt.Fprintf(cmd.OutOrStdout(), "raw=%d volts=%.3f display=%.3f in_range=%t\n", res.Raw, res.Volts, res.Display, res.InRange)
		return convErr
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum rows to show")
	historyCmd.Flags().IntVar(&historyBattery, "battery", 0, "Show the history of one battery (1-5)")
	rootCmd.AddCommand(historyCmd, convertCmd)
}
