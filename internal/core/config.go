package core

import (
	"fmt"

	"github.com/google/uuid"
)

// Config is the singleton, admin-owned wager configuration. It is created
// once at startup and never mutated at runtime; re-initialization requires a
// restart.
type Config struct {
	// Admin may append prices and is the trusted identity behind the feed.
	Admin uuid.UUID

	// Currency is the single accepted asset, in its smallest unit.
	Currency string

	// BetSize is the fixed stake for every game, host and opponent alike.
	BetSize int64

	// WinThresholdPercent and JoinThresholdPercent are percentages scaled by
	// ThresholdDecimals (e.g. 500 with 2 decimals is 5.00%).
	WinThresholdPercent  uint64
	JoinThresholdPercent uint64
	ThresholdDecimals    int32
}

func (c Config) Validate() error {
	if c.Admin == uuid.Nil {
		return fmt.Errorf("%w: admin identity required", ErrInvalidConfig)
	}
	if c.Currency == "" {
		return fmt.Errorf("%w: currency required", ErrInvalidConfig)
	}
	if c.BetSize <= 0 {
		return fmt.Errorf("%w: bet size must be positive, got %d", ErrInvalidConfig, c.BetSize)
	}
	if c.ThresholdDecimals < 0 {
		return fmt.Errorf("%w: threshold decimals must be non-negative", ErrInvalidConfig)
	}
	return nil
}
