package config

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/pulsgram/internal/events"
)

// Mode selects the exchange environment and outbound destinations. It is
// resolved once at startup and threaded through worker construction, so
// destination selection stays testable.
type Mode string

const (
	ModeTest       Mode = "test"
	ModeProduction Mode = "production"
)

// Config is the resolved engine configuration.
type Config struct {
	Mode             Mode
	BaseURL          string // empty means "derive from Mode"
	SignalSourcePeer int64  // chat peer the signal channel posts from
	SignalsPeer      int64  // destination for re-broadcast signals
	ErrorsPeer       int64  // destination for error reports
	BusCapacity      int
}

type configTmp struct {
	Mode              string `yaml:"mode"`
	BaseURL           string `yaml:"base_url,omitempty"`
	SignalSourcePeer  int64  `yaml:"signal_source_peer"`
	TestSignalsPeer   int64  `yaml:"test_signals_peer"`
	TestErrorsPeer    int64  `yaml:"test_errors_peer"`
	ProductionSignals int64  `yaml:"production_signals_peer"`
	ProductionErrors  int64  `yaml:"production_errors_peer"`
	BusCapacity       int    `yaml:"bus_capacity,omitempty"`
}

// Get loads configuration from the yaml file named by --config.
func Get() (Config, error) {
	path := flag.String("config", "config.yaml", "path to yaml config")
	flag.Parse()

	return Load(*path)
}

// Load reads and resolves the yaml config at path.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp configTmp
	if err := yaml.Unmarshal(raw, &tmp); err != nil {
		return Config{}, err
	}

	return resolve(tmp)
}

func resolve(tmp configTmp) (Config, error) {
	mode := Mode(tmp.Mode)
	if mode != ModeTest && mode != ModeProduction {
		return Config{}, fmt.Errorf("incorrect 'mode' param in yaml config: %q (want %q or %q)",
			tmp.Mode, ModeTest, ModeProduction)
	}

	if tmp.SignalSourcePeer == 0 {
		return Config{}, fmt.Errorf("missing 'signal_source_peer' param in yaml config")
	}

	cfg := Config{
		Mode:             mode,
		BaseURL:          tmp.BaseURL,
		SignalSourcePeer: tmp.SignalSourcePeer,
		BusCapacity:      tmp.BusCapacity,
	}
	if cfg.BusCapacity == 0 {
		cfg.BusCapacity = events.DefaultCapacity
	}

	switch mode {
	case ModeProduction:
		cfg.SignalsPeer = tmp.ProductionSignals
		cfg.ErrorsPeer = tmp.ProductionErrors
	default:
		cfg.SignalsPeer = tmp.TestSignalsPeer
		cfg.ErrorsPeer = tmp.TestErrorsPeer
	}

	if cfg.SignalsPeer == 0 || cfg.ErrorsPeer == 0 {
		return Config{}, fmt.Errorf("missing signals/errors peer for mode %q in yaml config", mode)
	}

	return cfg, nil
}
