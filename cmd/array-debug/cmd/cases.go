package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thatsimonsguy/array-controller/internal/model"
	"github.com/thatsimonsguy/array-controller/internal/topology"
)

var casesCmd = &cobra.Command{
	Use:   "cases",
	Short: "List the defined cases and the FETs each one closes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		topo := topology.Default()
		out := cmd.OutOrStdout()
		for _, id := range topo.CaseIDs() {
			c, _ := topo.Case(id)
			var pins []string
			for _, p := range topo.ClosedPins(c) {
				pins = append(pins, fmt.Sprintf("GPIO%d", p.Number))
			}
			closed := strings.Join(pins, ",")
			if closed == "" {
				closed = "-"
			}
			fmt.Fprintf(out, "%-14s output=%-10s charge=%-4s closes=%s\n", id, ids(c.Output), ids(c.Charge), closed)
		}
		for _, b := range topo.Buttons() {
			fmt.Fprintf(out, "button GPIO%d -> %s\n", b.Pin.Number, b.Case)
		}
		return nil
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply <case>",
	Short: "Disconnect, then close the FETs of one case",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, _, err := openEngine()
		if err != nil {
			return err
		}
		if err := engine.ApplyCase(model.CaseID(args[0])); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", engine.Current())
		return nil
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Open every FET",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, _, _, err := openEngine(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "all FETs open")
		return nil
	},
}

func ids(list []model.BatteryID) string {
	if len(list) == 0 {
		return "-"
	}
	var parts []string
	for _, id := range list {
		parts = append(parts, fmt.Sprint(int(id)))
	}
	return strings.Join(parts, ",")
}

func init() {
	rootCmd.AddCommand(casesCmd, applyCmd, disconnectCmd)
}
