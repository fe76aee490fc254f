package pinctrl

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGetAllOutput(t *testing.T) {
	sample := `
 0: ip    pu | hi // ID_SDA/GPIO0 = input
 1: ip    pu | hi // ID_SCL/GPIO1 = input
 2: no    pu | -- // GPIO2 = none
 4: ip    pn | lo // GPIO4 = input
 5: op dh pu | hi // GPIO5 = output
 6: op dh pu | hi // GPIO6 = output
12: op dh pd | hi // GPIO12 = output
13: op dh pd | hi // GPIO13 = output
26: op dl pn | lo // GPIO26 = output
`

	states, err := parseGetOutput(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, states, 9)

	if ps := states[5]; ps.Level != "hi" || ps.Mode != "op" || ps.Pull != "pu" || ps.Drive != "dh" {
		t.Errorf("GPIO5 parsed incorrectly: %+v", ps)
	}
	if ps := states[2]; ps.Level != "--" || ps.Mode != "no" {
		t.Errorf("GPIO2 parsed incorrectly: %+v", ps)
	}
	if ps := states[26]; ps.Level != "lo" || ps.Mode != "op" || ps.Pull != "pn" || ps.Drive != "dl" {
		t.Errorf("GPIO26 parsed incorrectly: %+v", ps)
	}
}

func TestParseLevelOutput(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"0", false},
		{"1", true},
		{"\n1\n", true},
		{"\n0\n", false},
	}
	for _, tc := range tests {
		result, err := parseLevelOutput(tc.input)
		if err != nil {
			t.Errorf("error parsing level output %q: %v", tc.input, err)
		}
		if result != tc.expected {
			t.Errorf("expected %v for input %q, got %v", tc.expected, tc.input, result)
		}
	}

	_, err := parseLevelOutput("x")
	assert.Error(t, err)
}

func TestSetPin_PassesArgs(t *testing.T) {
	orig := Run
	defer func() { Run = orig }()

	var got []string
	Run = func(args ...string) ([]byte, error) {
		got = args
		return nil, nil
	}

	require.NoError(t, SetPin(17, DriveOpts(true)...))
	assert.Equal(t, []string{"set", "17", "op", "pn", "dh"}, got)
}

func TestSetPin_Error(t *testing.T) {
	orig := Run
	defer func() { Run = orig }()

	Run = func(args ...string) ([]byte, error) {
		return []byte("no such pin"), errors.New("exit status 1")
	}

	err := SetPin(99, DriveOpts(false)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such pin")
}

func TestReadPin(t *testing.T) {
	orig := Run
	defer func() { Run = orig }()

	Run = func(args ...string) ([]byte, error) {
		return []byte(`17: op dl pn | lo // GPIO17 = output`), nil
	}

	ps, err := ReadPin(17)
	require.NoError(t, err)
	assert.Equal(t, "dl", ps.Drive)

	_, err = ReadPin(18)
	assert.Error(t, err)
}
