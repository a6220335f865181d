package client

import (
	"fmt"
	"time"

	"github.com/coniks-sys/treesync/protocol"
)

// Config bounds how long an orchestrator polls for the finality of a
// submitted transaction. Polling backs off exponentially from
// PollInterval up to MaxPollInterval and gives up after
// FinalityTimeout.
type Config struct {
	PollInterval    time.Duration `toml:"poll_interval"`
	MaxPollInterval time.Duration `toml:"max_poll_interval"`
	FinalityTimeout time.Duration `toml:"finality_timeout"`
}

// DefaultConfig returns the polling bounds used when none are set.
func DefaultConfig() *Config {
	return &Config{
		PollInterval:    500 * time.Millisecond,
		MaxPollInterval: 5 * time.Second,
		FinalityTimeout: 2 * time.Minute,
	}
}

// Validate returns an ErrConfig unless every bound is positive and
// PollInterval doesn't exceed MaxPollInterval. A zero FinalityTimeout
// would let polling run forever.
func (cfg *Config) Validate() error {
	switch {
	case cfg.PollInterval <= 0:
		return fmt.Errorf("%w: poll interval must be positive", protocol.ErrConfig)
	case cfg.MaxPollInterval <= 0:
		return fmt.Errorf("%w: max poll interval must be positive", protocol.ErrConfig)
	case cfg.FinalityTimeout <= 0:
		return fmt.Errorf("%w: finality timeout must be positive", protocol.ErrConfig)
	case cfg.PollInterval > cfg.MaxPollInterval:
		return fmt.Errorf("%w: poll interval %v exceeds max poll interval %v",
			protocol.ErrConfig, cfg.PollInterval, cfg.MaxPollInterval)
	}
	return nil
}
