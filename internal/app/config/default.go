package config

import (
	"time"

	"github.com/yndnr/snapkeep/internal/core/domain"
)

// Default configuration values.
const (
	DefaultRecoveryMaxAge = 24 * time.Hour
	DefaultPurgeInterval  = time.Hour

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Autosave: AutosaveSection{
			Enabled:    true,
			Interval:   domain.DefaultSnapshotInterval,
			MaxBackups: domain.DefaultMaxBackups,
		},
		Recovery: RecoverySection{
			MaxAge:        DefaultRecoveryMaxAge,
			PurgeInterval: DefaultPurgeInterval,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
