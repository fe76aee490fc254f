package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/thatsimonsguy/array-controller/internal/logging"
)

const (
	BackendPinctrl = "pinctrl"
	BackendPeriph  = "periph"
)

type Datadog struct {
	Enabled   bool     `json:"enabled"`
	AgentAddr string   `json:"agent_addr"`
	Namespace string   `json:"namespace"`
	Tags      []string `json:"tags"`
}

// Config holds operational settings only. Board wiring, converter constants
// and MOSFET timing are compiled in.
type Config struct {
	ConfigFile string        `json:"-"`
	EnvFile    string        `json:"-"`
	LogLevel   zerolog.Level `json:"-"`

	LogFile     string `json:"log_file"`
	DBPath      string `json:"db_path"`
	StateFile   string `json:"state_file"`
	GPIOBackend string `json:"gpio_backend"`
	SPIBus      string `json:"spi_bus"`
	SafeMode    bool   `json:"safe_mode"`

	PollIntervalMillis     int `json:"poll_interval_ms"`
	MeasureIntervalSeconds int `json:"measure_interval_seconds"`
	HistoryRetentionDays   int `json:"history_retention_days"`

	APIPort int `json:"api_port"`

	BootScriptFilePath string `json:"boot_script_file_path"`
	OSServicePath      string `json:"os_service_path"`

	Datadog Datadog `json:"datadog"`
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMillis) * time.Millisecond
}

func (c Config) MeasureInterval() time.Duration {
	return time.Duration(c.MeasureIntervalSeconds) * time.Second
}

func (c Config) Retention() time.Duration {
	return time.Duration(c.HistoryRetentionDays) * 24 * time.Hour
}

// Load parses the process flags and panics on an unusable config.
func Load() Config {
	cfg, err := LoadArgs(os.Args[1:])
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}
	return cfg
}

func LoadArgs(args []string) (Config, error) {
	var (
		cfg      Config
		logLevel string
		safeMode bool
	)

	fset := flag.NewFlagSet("array-controller", flag.ContinueOnError)
	fset.StringVar(&cfg.ConfigFile, "config-file", "config.json", "Path to controller config file")
	fset.StringVar(&cfg.EnvFile, "env-file", ".env", "Optional dotenv file for agent addresses")
	fset.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fset.BoolVar(&safeMode, "safe-mode", false, "Never drive GPIO outputs")
	if err := fset.Parse(args); err != nil {
		return cfg, err
	}
	cfg.LogLevel = logging.ParseLevel(logLevel)

	if err := godotenv.Load(cfg.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("failed to load env file: %w", err)
	}

	file, err := os.Open(cfg.ConfigFile)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	if safeMode {
		cfg.SafeMode = true
	}
	if addr := os.Getenv("DD_AGENT_ADDR"); addr != "" {
		cfg.Datadog.AgentAddr = addr
	}
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.DBPath == "" {
		cfg.DBPath = "data/array.db"
	}
	if cfg.StateFile == "" {
		cfg.StateFile = "data/state.json"
	}
	if cfg.GPIOBackend == "" {
		cfg.GPIOBackend = BackendPeriph
	}
	if cfg.SPIBus == "" {
		cfg.SPIBus = "SPI0.0"
	}
	if cfg.PollIntervalMillis == 0 {
		cfg.PollIntervalMillis = 5
		if cfg.GPIOBackend == BackendPinctrl {
			// every poll forks pinctrl
			cfg.PollIntervalMillis = 20
		}
	}
	if cfg.BootScriptFilePath == "" {
		cfg.BootScriptFilePath = "/usr/local/bin/array-gpio-init.sh"
	}
	if cfg.OSServicePath == "" {
		cfg.OSServicePath = "/etc/systemd/system/array-gpio-init.service"
	}
}

func (cfg *Config) validate() error {
	var problems []string

	switch cfg.GPIOBackend {
	case BackendPinctrl, BackendPeriph:
	default:
		problems = append(problems, fmt.Sprintf("gpio_backend %q is not %s or %s", cfg.GPIOBackend, BackendPinctrl, BackendPeriph))
	}
	if cfg.PollIntervalMillis < 0 {
		problems = append(problems, "poll_interval_ms must be positive")
	}
	if cfg.MeasureIntervalSeconds < 0 {
		problems = append(problems, "measure_interval_seconds must not be negative")
	}
	if cfg.HistoryRetentionDays < 0 {
		problems = append(problems, "history_retention_days must not be negative")
	}
	if cfg.APIPort < 0 || cfg.APIPort > 65535 {
		problems = append(problems, fmt.Sprintf("api_port %d out of range", cfg.APIPort))
	}
	if cfg.Datadog.Enabled && cfg.Datadog.AgentAddr == "" {
		problems = append(problems, "datadog.agent_addr is required when datadog is enabled")
	}

	if len(problems) > 0 {
		return errors.New("invalid config: " + strings.Join(problems, ", "))
	}
	return nil
}
