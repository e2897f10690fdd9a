package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/yndnr/snapkeep/internal/core/domain"
	"github.com/yndnr/snapkeep/internal/telemetry/logger"
	"github.com/yndnr/snapkeep/internal/telemetry/metric"
)

// Status is the body of GET /status.
type Status struct {
	ProjectPath string                 `json:"project_path" yaml:"project_path"`
	BaseDir     string                 `json:"base_dir" yaml:"base_dir"`
	Running     bool                   `json:"running" yaml:"running"`
	Interval    string                 `json:"interval" yaml:"interval"`
	MaxBackups  int                    `json:"max_backups" yaml:"max_backups"`
	Latest      *domain.BackupInfo     `json:"latest_backup,omitempty" yaml:"latest_backup,omitempty"`
	Record      *domain.RecoveryRecord `json:"recovery_record,omitempty" yaml:"recovery_record,omitempty"`
	Recovery    domain.RecoverySummary `json:"recovery" yaml:"recovery"`
}

// StatusFunc reports the current state for GET /status.
type StatusFunc func(ctx context.Context) (Status, error)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	Metrics *metric.Registry
	Status  StatusFunc
	Logger  logger.Logger
}

// NewRouter creates the handler for all endpoints.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}

	if cfg.Status != nil {
		mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
			v, err := cfg.Status(r.Context())
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{
					"code":    domain.GetErrorCode(err),
					"message": err.Error(),
				})
				return
			}
			writeJSON(w, http.StatusOK, v)
		})
	}

	return Chain(mux, Recover(log), AccessLog(log))
}
