package startup

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/thatsimonsguy/array-controller/internal/gpio"
	"github.com/thatsimonsguy/array-controller/internal/model"
	"github.com/thatsimonsguy/array-controller/internal/topology"
)

// BootScript returns a bash script that drives every FET gate to its
// inactive level, charge FETs first, then configures each button line as an
// input pulled toward its released level.
func BootScript(topo *topology.Topology) string {
	var lines []string
	lines = append(lines, "#!/bin/bash", "", "# Battery array FET gates held open at boot", "")

	write := func(label string, pin model.GPIOPin) {
		drive := "dl"
		if gpio.Level(pin, false) {
			drive = "dh"
		}
		lines = append(lines, fmt.Sprintf("# %s", label))
		lines = append(lines, fmt.Sprintf("pinctrl set %d op pn %s", pin.Number, drive))
		lines = append(lines, "")
	}

	for _, b := range topo.Batteries() {
		for i, pin := range b.ChargeFETs {
			write(fmt.Sprintf("%s.charge_fet_%d", b.ID, i+1), pin)
		}
	}
	for _, b := range topo.Batteries() {
		for i, pin := range b.OutputFETs {
			write(fmt.Sprintf("%s.output_fet_%d", b.ID, i+1), pin)
		}
	}

	for _, b := range topo.Buttons() {
		pull := "pd"
		if !b.Pin.ActiveHigh {
			pull = "pu"
		}
		lines = append(lines, fmt.Sprintf("# button %s", b.Case))
		lines = append(lines, fmt.Sprintf("pinctrl set %d ip %s", b.Pin.Number, pull))
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n") + "\n"
}

func WriteStartupScript(topo *topology.Topology, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(BootScript(topo)), 0755)
}

func InstallStartupService(scriptPath, servicePath string) error {
	unitContents := fmt.Sprintf(`[Unit]
Description=Hold battery array FETs open at boot
DefaultDependencies=no
Before=basic.target

[Service]
Type=oneshot
Environment=PATH=/usr/local/bin:/usr/bin:/bin
ExecStart=%s
RemainAfterExit=true

[Install]
WantedBy=sysinit.target
`, scriptPath)

	return os.WriteFile(servicePath, []byte(unitContents), 0644)
}

func RunStartupScript(path string) error {
	cmd := exec.Command("/bin/bash", path)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
