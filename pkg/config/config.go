// Package config implements the daemon-level TOML configuration for
// cmd/bmobjectd: TTL bounds, default proof-of-work difficulty, and the
// listen address, grounded on echenim-Bedrock's internal/config
// DefaultConfig/Validate/LoadFile shape.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/bmnet/bmobject/pkg/pow"
)

// Duration wraps time.Duration to support TOML string values like
// "24h" instead of a raw nanosecond integer.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the full daemon configuration.
type Config struct {
	ListenAddr string `toml:"listen_addr"`

	DefaultTTL Duration `toml:"default_ttl"`
	MinExpiry  Duration `toml:"min_expiry"`
	MaxTTL     Duration `toml:"max_ttl"`

	NonceTrialsPerByte      uint64 `toml:"nonce_trials_per_byte"`
	PayloadLengthExtraBytes uint64 `toml:"payload_length_extra_bytes"`
	SkipPow                 bool   `toml:"skip_pow"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:              "0.0.0.0:8444",
		DefaultTTL:              Duration{2 * 24 * time.Hour},
		MinExpiry:               Duration{3 * time.Hour},
		MaxTTL:                  Duration{28 * 24 * time.Hour},
		NonceTrialsPerByte:      pow.DefaultNonceTrialsPerByte,
		PayloadLengthExtraBytes: pow.DefaultPayloadLengthExtraBytes,
		SkipPow:                 false,
	}
}

// Validate checks config for invalid values.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("config: listen_addr must not be empty")
	}
	if c.DefaultTTL.Duration <= 0 {
		return errors.New("config: default_ttl must be > 0")
	}
	if c.MaxTTL.Duration <= 0 {
		return errors.New("config: max_ttl must be > 0")
	}
	if c.MinExpiry.Duration < 0 {
		return errors.New("config: min_expiry must be >= 0")
	}
	if c.NonceTrialsPerByte == 0 {
		return fmt.Errorf("config: nonce_trials_per_byte must be > 0, got %d", c.NonceTrialsPerByte)
	}
	return nil
}

// LoadFile reads and parses a TOML config file over DefaultConfig's
// values and validates the result.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse TOML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
