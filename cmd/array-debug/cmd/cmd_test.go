package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/array-controller/internal/voltage"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCasesCommand(t *testing.T) {
	out, err := run(t, "cases")
	require.NoError(t, err)

	assert.Contains(t, out, "charge_3")
	assert.Contains(t, out, "closes=GPIO17")
	assert.Contains(t, out, "closes=GPIO2,GPIO3")
	assert.Contains(t, out, "button GPIO15 -> disconnected")
}

func TestConvertCommand(t *testing.T) {
	out, err := run(t, "convert", "200")
	require.NoError(t, err)
	assert.Contains(t, out, "volts=3.940")
	assert.Contains(t, out, "in_range=true")

	out, err = run(t, "convert", "614")
	assert.ErrorIs(t, err, voltage.ErrOutOfRange)
	assert.Contains(t, out, "display=5.000")

	_, err = run(t, "convert", "lots")
	assert.Error(t, err)
}

func TestInstallBootCommand(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "init.sh")
	unit := filepath.Join(dir, "init.service")

	out, err := run(t, "install-boot", "--script", script, "--service", unit)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+script)

	b, err := os.ReadFile(script)
	require.NoError(t, err)
	assert.Contains(t, string(b), "pinctrl set 4 op pn dl")
}
