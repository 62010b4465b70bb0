package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Election policy names accepted in Config.Election.
const (
	ElectionRoundRobin    = "round-robin"
	ElectionStakeWeighted = "stake-weighted"
)

// Duration wraps time.Duration so it can be written as "10ms" in TOML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config contains the tunables of the engine core.
type Config struct {
	// Validators is the number of validator actors.
	Validators int `toml:"validators"`
	// BatchSize is the maximum number of transactions per block.
	BatchSize int `toml:"batch_size"`
	// MaxPending bounds the mempool.
	MaxPending int `toml:"max_pending"`
	// PollInterval bounds how long a waiting validator can miss a wake or
	// the stop signal.
	PollInterval Duration `toml:"poll_interval"`
	// Election selects the proposer election policy.
	Election string `toml:"election"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Validators:   4,
		BatchSize:    100,
		MaxPending:   10000,
		PollInterval: Duration(5 * time.Millisecond),
		Election:     ElectionRoundRobin,
	}
}

// Validate checks the configuration for usability.
func (c Config) Validate() error {
	if c.Validators < 1 {
		return errors.New("config: at least one validator is required")
	}
	if c.BatchSize < 1 {
		return errors.New("config: batch size must be positive")
	}
	if c.MaxPending < 1 {
		return errors.New("config: max pending must be positive")
	}
	if c.PollInterval <= 0 {
		return errors.New("config: poll interval must be positive")
	}
	if c.Election != ElectionRoundRobin && c.Election != ElectionStakeWeighted {
		return fmt.Errorf("config: unknown election policy %q", c.Election)
	}
	return nil
}

// LoadConfig reads a TOML file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// NewElection builds the configured election policy over the registered
// validator order.
func NewElection(cfg Config, validators []AccountID, ledger *Ledger) (Election, error) {
	switch cfg.Election {
	case ElectionRoundRobin:
		return NewRoundRobin(validators), nil
	case ElectionStakeWeighted:
		return NewStakeWeighted(validators, ledger), nil
	default:
		return nil, fmt.Errorf("unknown election policy %q", cfg.Election)
	}
}
