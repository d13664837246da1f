// Package config handles loading, defaulting, and validation of the padmond
// TOML configuration file. Every section maps to a typed struct so the rest
// of the codebase gets strong typing without manual key lookups.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/strikeline/padmon/internal/wire"
)

// Config is the top-level configuration, mirroring the TOML sections.
type Config struct {
	Logging   LoggingConfig   `toml:"logging"   json:"logging"`
	Server    ServerConfig    `toml:"server"    json:"server"`
	Serial    SerialConfig    `toml:"serial"    json:"serial"`
	History   HistoryConfig   `toml:"history"   json:"history"`
	Display   DisplayConfig   `toml:"display"   json:"display"`
	Recording RecordingConfig `toml:"recording" json:"recording"`
	MQTT      MQTTConfig      `toml:"mqtt"      json:"mqtt"`
}

type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
}

type ServerConfig struct {
	Bind               string `toml:"bind"                 json:"bind"`
	SnapshotIntervalMS int    `toml:"snapshot_interval_ms" json:"snapshot_interval_ms"`
}

type SerialConfig struct {
	// Port, when set, is connected automatically at startup.
	Port           string `toml:"port"             json:"port"`
	StallTimeoutMS int    `toml:"stall_timeout_ms" json:"stall_timeout_ms"`
}

type HistoryConfig struct {
	Capacity int `toml:"capacity" json:"capacity"`
}

type DisplayConfig struct {
	// Thresholds are reference lines per channel in wire order, drawn by
	// clients against the raw values. Purely cosmetic.
	Thresholds []int `toml:"thresholds" json:"thresholds"`
}

type RecordingConfig struct {
	Dir string `toml:"dir" json:"dir"`
}

type MQTTConfig struct {
	Enabled  bool   `toml:"enabled"   json:"enabled"`
	Broker   string `toml:"broker"    json:"broker"`
	Topic    string `toml:"topic"     json:"topic"`
	ClientID string `toml:"client_id" json:"client_id"`
}

// Default returns a Config populated with sane defaults. Values here are
// used whenever the TOML file omits a field.
func Default() Config {
	return Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Bind:               "127.0.0.1:8090",
			SnapshotIntervalMS: 50,
		},
		Serial: SerialConfig{
			Port:           "",
			StallTimeoutMS: 3000,
		},
		History: HistoryConfig{
			Capacity: 1000,
		},
		Display: DisplayConfig{
			Thresholds: []int{450, 350, 350, 450},
		},
		Recording: RecordingConfig{
			Dir: "/var/lib/padmon/recordings",
		},
		MQTT: MQTTConfig{
			Enabled:  false,
			Broker:   "tcp://localhost:1883",
			Topic:    "padmon/hits",
			ClientID: "padmond",
		},
	}
}

// Load reads the TOML file at path, layers it on top of the defaults, and
// validates the result. An error is returned if the file can't be read,
// parsed, or if any constraint is violated.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}

	if err := validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Server.Bind == "" {
		return errors.New("server.bind must not be empty")
	}
	if cfg.Server.SnapshotIntervalMS < 10 {
		return errors.New("server.snapshot_interval_ms must be >= 10")
	}
	if cfg.Serial.StallTimeoutMS < 0 {
		return errors.New("serial.stall_timeout_ms must be >= 0")
	}
	if cfg.History.Capacity < 1 || cfg.History.Capacity > 100000 {
		return errors.New("history.capacity must be between 1 and 100000")
	}
	if len(cfg.Display.Thresholds) != wire.NumChannels {
		return fmt.Errorf("display.thresholds must list exactly %d values", wire.NumChannels)
	}
	for _, v := range cfg.Display.Thresholds {
		if v < 0 || v > wire.MaxRaw {
			return fmt.Errorf("display.thresholds value %d out of range 0..%d", v, wire.MaxRaw)
		}
	}
	if cfg.Recording.Dir == "" {
		return errors.New("recording.dir must not be empty")
	}
	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return errors.New("mqtt.broker must not be empty when mqtt is enabled")
		}
		if cfg.MQTT.Topic == "" {
			return errors.New("mqtt.topic must not be empty when mqtt is enabled")
		}
	}
	return nil
}
