// Package config loads the YAML configuration file (speed_factor,
// modbus.port, tick_interval_ms, microstop.rates, breakdowns, hierarchy
// ids, log path), per spec.md §6.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/domain"
)

// Config is the fully-parsed, validated configuration.
type Config struct {
	SpeedFactor     float64              `yaml:"speed_factor"`
	Modbus          ModbusConfig         `yaml:"modbus"`
	TickIntervalMS  int                  `yaml:"tick_interval_ms"`
	Microstop       MicrostopConfig      `yaml:"microstop"`
	Breakdowns      BreakdownConfig      `yaml:"breakdowns"`
	Hierarchy       domain.HierarchyIDs  `yaml:"hierarchy"`
	LogPath         string               `yaml:"log_path"`
	CataloguePath   string               `yaml:"catalogue_path"`
	SchedulePath    string               `yaml:"schedule_path"`
}

// ModbusConfig configures the Modbus TCP server.
type ModbusConfig struct {
	Port           int `yaml:"port"`
	FallbackPort   int `yaml:"fallback_port"`
	TimeoutSeconds int `yaml:"timeout_seconds"`
	MaxClients     int `yaml:"max_clients"`
}

// MicrostopConfig tunes the per-kind microstop Bernoulli rates.
type MicrostopConfig struct {
	// Rates maps a microstop code (MS01..MS10) to its per-tick probability
	// while RUNNING with an active order, spec.md §4.6 step 3.
	Rates map[string]float64 `yaml:"rates"`
}

// BreakdownConfig tunes minor (unplanned, non-scheduled) breakdown
// injection; planned breakdowns come from the schedule itself.
type BreakdownConfig struct {
	MinorRatePerTick float64 `yaml:"minor_rate_per_tick"`
}

// Default returns sane defaults, overridden by the loaded file and then by
// CLI flags.
func Default() Config {
	return Config{
		SpeedFactor:    1.0,
		TickIntervalMS: 100,
		Modbus: ModbusConfig{
			Port:           502,
			FallbackPort:   5020,
			TimeoutSeconds: 30,
			MaxClients:     32,
		},
		Microstop: MicrostopConfig{
			Rates: map[string]float64{
				"MS01": 0.0006, "MS02": 0.0004, "MS03": 0.0005,
				"MS04": 0.0003, "MS05": 0.0003, "MS06": 0.0002,
				"MS07": 0.0004, "MS08": 0.0003, "MS09": 0.0003,
				"MS10": 0.0002,
			},
		},
		Breakdowns: BreakdownConfig{MinorRatePerTick: 0.00002},
		Hierarchy: domain.HierarchyIDs{
			Enterprise: "sparkylarks", Site: "site-01", Area: "bottling", Line: "line-1",
		},
		LogPath:       "logs/transactions.jsonl",
		CataloguePath: "config/catalogue.yaml",
		SchedulePath:  "config/schedule.yaml",
	}
}

// Load reads and merges a YAML config file over Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %q: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %q: %w", path, err)
	}

	return cfg, nil
}

// Validate enforces the configuration error taxonomy of spec.md §7.
func (c Config) Validate() error {
	if c.SpeedFactor <= 0 {
		return fmt.Errorf("speed_factor must be > 0")
	}
	if c.TickIntervalMS <= 0 {
		return fmt.Errorf("tick_interval_ms must be > 0")
	}
	if c.Modbus.Port <= 0 || c.Modbus.Port > 65535 {
		return fmt.Errorf("modbus.port must be in 1..65535")
	}
	if c.LogPath == "" {
		return fmt.Errorf("log_path must be set")
	}
	return nil
}

// TickInterval returns the configured tick interval as a time.Duration.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMS) * time.Millisecond
}
