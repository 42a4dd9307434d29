// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Openbeamline Authors

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/openbeamline/motord/pkg/motorrec"
	"gopkg.in/yaml.v3"
)

// DriverConfig selects the hardware-motion collaborator for one positioner.
// Type "sim" runs the in-memory simulator; "serial" talks the ASCII motion
// protocol over a serial port.
type DriverConfig struct {
	Type string `yaml:"type"`
	Port string `yaml:"port"` // serial device, e.g. /dev/ttyUSB0
	Baud int    `yaml:"baud"`
}

// MotorConfig seeds one positioner record.
type MotorConfig struct {
	Name        string  `yaml:"name"`
	Address     uint64  `yaml:"address"` // pvwire record address
	Description string  `yaml:"description"`
	EGU         string  `yaml:"egu"`        // engineering unit label
	Resolution  float64 `yaml:"resolution"` // engineering units per step
	Direction   string  `yaml:"direction"`  // "Pos" or "Neg"
	Offset      float64 `yaml:"offset"`
	Velocity    float64 `yaml:"velocity"` // engineering units per second
	Precision   int     `yaml:"precision"`
	HighLimit   float64 `yaml:"high_limit"`
	LowLimit    float64 `yaml:"low_limit"`
	TweakStep   float64 `yaml:"tweak_step"`

	Driver DriverConfig `yaml:"driver"`
}

// ServerConfig holds the pvwire server options.
type ServerConfig struct {
	Listen         string `yaml:"listen"`           // HTTP listen address
	Username       string `yaml:"username"`         // optional HTTP Basic auth
	Password       string `yaml:"password"`         //
	PollIntervalMs int    `yaml:"poll_interval_ms"` // raw readback poll period
}

// Config aggregates the motord configuration.
type Config struct {
	Server ServerConfig  `yaml:"server"`
	Motors []MotorConfig `yaml:"motors"`
}

// Load reads a YAML file and returns the validated configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8180"
	}
	if cfg.Server.PollIntervalMs <= 0 {
		cfg.Server.PollIntervalMs = 100
	}

	if len(cfg.Motors) == 0 {
		return nil, fmt.Errorf("at least one motor is required")
	}

	names := map[string]bool{}
	addrs := map[uint64]bool{}
	for i := range cfg.Motors {
		m := &cfg.Motors[i]
		if m.Name == "" {
			return nil, fmt.Errorf("motors[%d]: name is required", i)
		}
		if names[m.Name] {
			return nil, fmt.Errorf("duplicate motor name %q", m.Name)
		}
		names[m.Name] = true

		if m.Address == 0 {
			return nil, fmt.Errorf("motor %q: address is required and must be nonzero", m.Name)
		}
		if addrs[m.Address] {
			return nil, fmt.Errorf("motor %q: duplicate address 0x%X", m.Name, m.Address)
		}
		addrs[m.Address] = true

		if m.Resolution == 0 {
			return nil, fmt.Errorf("motor %q: resolution must be nonzero", m.Name)
		}
		if _, err := ParseDirection(m.Direction); err != nil {
			return nil, fmt.Errorf("motor %q: %w", m.Name, err)
		}
		if m.Velocity <= 0 {
			m.Velocity = 1.0
		}
		if m.TweakStep <= 0 {
			m.TweakStep = 1.0
		}

		switch m.Driver.Type {
		case "", "sim":
			m.Driver.Type = "sim"
		case "serial":
			if m.Driver.Port == "" {
				return nil, fmt.Errorf("motor %q: serial driver requires a port", m.Name)
			}
			if m.Driver.Baud <= 0 {
				m.Driver.Baud = 115200
			}
		default:
			return nil, fmt.Errorf("motor %q: unknown driver type %q", m.Name, m.Driver.Type)
		}
	}

	return &cfg, nil
}

// ParseDirection maps the config spelling onto the record enum. An empty
// string defaults to positive.
func ParseDirection(s string) (motorrec.Direction, error) {
	switch s {
	case "", "Pos", "pos":
		return motorrec.DirPositive, nil
	case "Neg", "neg":
		return motorrec.DirNegative, nil
	}
	return 0, fmt.Errorf("direction must be \"Pos\" or \"Neg\", got %q", s)
}

// PollInterval returns the raw readback poll period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Server.PollIntervalMs) * time.Millisecond
}

// RecordConfig maps one motor entry onto the engine's seed configuration.
// The Mover is attached by the caller once the driver is built.
func (m *MotorConfig) RecordConfig() motorrec.Config {
	dir, _ := ParseDirection(m.Direction)
	return motorrec.Config{
		Name:          m.Name,
		Description:   m.Description,
		EGU:           m.EGU,
		Resolution:    m.Resolution,
		Direction:     dir,
		Offset:        m.Offset,
		Velocity:      m.Velocity,
		Precision:     m.Precision,
		TweakStep:     m.TweakStep,
		UserHighLimit: m.HighLimit,
		UserLowLimit:  m.LowLimit,
	}
}
