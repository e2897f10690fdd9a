package domain

import (
	"fmt"
	"time"
)

// Snapshot defaults.
const (
	DefaultSnapshotInterval = 5 * time.Minute
	DefaultMaxBackups       = 5
)

// SnapshotConfig controls the autosave cadence and rotation policy.
//
// It is an immutable value: callers replace it as a whole through
// UpdateConfig rather than mutating a shared instance.
type SnapshotConfig struct {
	// Enabled turns periodic snapshots on or off.
	Enabled bool `json:"enabled" koanf:"enabled"`

	// Interval is the time between two snapshot ticks. Must be > 0 when enabled.
	Interval time.Duration `json:"interval" koanf:"interval"`

	// MaxBackups is the number of newest backups kept after rotation (>= 1).
	MaxBackups int `json:"max_backups" koanf:"max_backups"`
}

// DefaultSnapshotConfig returns an enabled config with a 5 minute interval
// and 5 retained backups.
func DefaultSnapshotConfig() SnapshotConfig {
	return SnapshotConfig{
		Enabled:    true,
		Interval:   DefaultSnapshotInterval,
		MaxBackups: DefaultMaxBackups,
	}
}

// Validate rejects out-of-range values. Values are never clamped.
func (c SnapshotConfig) Validate() error {
	if c.MaxBackups < 1 {
		return ErrInvalidConfig.WithDetails(fmt.Sprintf("max_backups must be at least 1, got %d", c.MaxBackups))
	}
	if c.Enabled && c.Interval <= 0 {
		return ErrInvalidConfig.WithDetails(fmt.Sprintf("interval must be positive when enabled, got %s", c.Interval))
	}
	return nil
}
