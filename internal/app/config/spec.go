package config

import (
	"time"

	"github.com/yndnr/snapkeep/internal/core/domain"
)

// Config is the root configuration for snapkeep.
type Config struct {
	Autosave AutosaveSection `koanf:"autosave" json:"autosave" yaml:"autosave"`
	Recovery RecoverySection `koanf:"recovery" json:"recovery" yaml:"recovery"`
	Log      LogSection      `koanf:"log" json:"log" yaml:"log"`
	Metrics  MetricsSection  `koanf:"metrics" json:"metrics" yaml:"metrics"`
}

// AutosaveSection configures periodic snapshots.
type AutosaveSection struct {
	Enabled    bool          `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Interval   time.Duration `koanf:"interval" json:"interval" yaml:"interval"`
	MaxBackups int           `koanf:"max_backups" json:"max_backups" yaml:"max_backups"`

	// MinFreeBytes refuses a snapshot when less space would remain. 0 disables the check.
	MinFreeBytes uint64 `koanf:"min_free_bytes" json:"min_free_bytes" yaml:"min_free_bytes"`
}

// Snapshot returns the engine configuration.
func (s AutosaveSection) Snapshot() domain.SnapshotConfig {
	return domain.SnapshotConfig{
		Enabled:    s.Enabled,
		Interval:   s.Interval,
		MaxBackups: s.MaxBackups,
	}
}

// RecoverySection configures the recovery ledger.
type RecoverySection struct {
	// MaxAge is the age past which recovery records are purged.
	MaxAge time.Duration `koanf:"max_age" json:"max_age" yaml:"max_age"`

	// PurgeInterval is the time between background purges while watching.
	// 0 purges only at startup.
	PurgeInterval time.Duration `koanf:"purge_interval" json:"purge_interval" yaml:"purge_interval"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" json:"level" yaml:"level"`
	Format string `koanf:"format" json:"format" yaml:"format"`
}

// MetricsSection configures the metrics endpoint.
type MetricsSection struct {
	// Addr is the listen address for /metrics and /healthz. Empty disables it.
	Addr string `koanf:"addr" json:"addr" yaml:"addr"`
}
