package command

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/snapkeep/internal/app/config"
	"github.com/yndnr/snapkeep/internal/core/service"
	"github.com/yndnr/snapkeep/internal/infra/confloader"
	"github.com/yndnr/snapkeep/internal/infra/shutdown"
	"github.com/yndnr/snapkeep/internal/server/httpserver"
	"github.com/yndnr/snapkeep/internal/storage/autosave"
	"github.com/yndnr/snapkeep/internal/storage/recovery"
	"github.com/yndnr/snapkeep/internal/telemetry/logger"
	"github.com/yndnr/snapkeep/internal/telemetry/metric"
)

const shutdownTimeout = 30 * time.Second

// WatchCommand returns the watch command.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Autosave a project file until interrupted",
		Description: "Snapshots the JSON content of --project on the autosave interval and\n" +
			"keeps a recovery record pointing at the newest backup. On SIGINT or\n" +
			"SIGTERM backups and the record are removed unless --keep is set.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "project",
				Aliases:  []string{"p"},
				Usage:    "project file to autosave",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "base-dir",
				Aliases: []string{"d"},
				Usage:   "directory holding .autosave and .recovery (default: the project's directory)",
			},
			&cli.BoolFlag{
				Name:  "temp",
				Usage: "treat the project as never saved; records are marked temporary",
			},
			&cli.BoolFlag{
				Name:  "keep",
				Usage: "keep backups and the recovery record on exit",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "serve /metrics, /healthz and /status on this address (overrides metrics.addr)",
			},
		},
		Action: watch,
	}
}

// FileState reads the project file on every snapshot. Its content must be
// valid JSON and is stored verbatim.
func FileState(path string) autosave.StateProvider {
	return autosave.StateProviderFunc(func() (any, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if !json.Valid(data) {
			return nil, fmt.Errorf("%s: content is not valid JSON", filepath.Base(path))
		}
		return json.RawMessage(data), nil
	})
}

func watch(c *cli.Context) error {
	st := state(c)
	cfg := *st.cfg
	if c.IsSet("metrics-addr") {
		cfg.Metrics.Addr = c.String("metrics-addr")
		if err := config.Verify(&cfg); err != nil {
			return err
		}
	}

	project, err := filepath.Abs(c.String("project"))
	if err != nil {
		return fmt.Errorf("resolve project: %w", err)
	}
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.WithProject(logger.WithLogger(ctx, st.log.With("command", "watch")), project)
	log := logger.L(ctx)

	base := filepath.Dir(project)
	if c.String("base-dir") != "" {
		if base, err = filepath.Abs(c.String("base-dir")); err != nil {
			return fmt.Errorf("resolve base dir: %w", err)
		}
	}

	metrics := metric.NewRegistry()
	ledger := recovery.NewLedger(recovery.WithLogger(log), recovery.WithMetrics(metrics))
	guard, err := service.NewGuard(base, ledger, log)
	if err != nil {
		return err
	}

	pending, err := guard.PendingRecoveries(cfg.Recovery.MaxAge)
	if err != nil {
		return err
	}
	for _, rec := range pending {
		log.Warn("recovery available",
			"id", rec.ID,
			"backup_path", rec.BackupPath,
			"project_path", rec.ProjectPath,
			"age", rec.Age(time.Now()).Round(time.Second))
	}

	svc, err := autosave.NewService(cfg.Autosave.Snapshot(),
		autosave.WithLogger(log),
		autosave.WithMetrics(metrics),
		autosave.WithSnapshotHandler(guard.HandleSnapshot),
		autosave.WithMinFreeBytes(cfg.Autosave.MinFreeBytes),
	)
	if err != nil {
		return err
	}

	projectPath := project
	if c.Bool("temp") {
		projectPath = ""
	}
	if err := guard.Open(svc, FileState(project), projectPath); err != nil {
		return err
	}

	handler := shutdown.NewHandler(shutdownTimeout)

	if cfg.Metrics.Addr != "" {
		srv := httpserver.New(cfg.Metrics.Addr, httpserver.NewRouter(httpserver.RouterConfig{
			Metrics: metrics,
			Status:  statusFunc(guard, svc, ledger, base),
			Logger:  log,
		}))
		go func() {
			log.Info("metrics server listening", "addr", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil {
				log.Error("metrics server error", "error", err)
			}
		}()
		handler.OnShutdown(func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		})
	}

	clean := !c.Bool("keep")
	handler.OnShutdown(func(ctx context.Context) error {
		return guard.Close(ctx, clean)
	})

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	var janitorDone sync.WaitGroup
	janitorDone.Add(1)
	go func() {
		defer janitorDone.Done()
		(&recovery.Janitor{
			Ledger:   ledger,
			MaxAge:   cfg.Recovery.MaxAge,
			Interval: cfg.Recovery.PurgeInterval,
			Logger:   log,
		}).Run(janitorCtx)
	}()
	handler.OnShutdown(func(context.Context) error {
		stopJanitor()
		janitorDone.Wait()
		return nil
	})

	if st.configFile != "" {
		w, err := watchConfig(st, svc, log)
		if err != nil {
			log.Warn("config hot reload disabled", "error", err)
		} else {
			handler.OnShutdown(func(context.Context) error {
				return w.Stop()
			})
		}
	}

	log.Info("watching project",
		"session_path", guard.ProjectPath(),
		"base_dir", base,
		"interval", cfg.Autosave.Interval,
		"max_backups", cfg.Autosave.MaxBackups)

	sig, err := handler.Wait(ctx)
	if err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}
	log.Info("stopped", "signal", fmt.Sprint(sig), "backups_kept", !clean)
	return nil
}

// watchConfig applies autosave and log changes from the config file.
// Reloads that fail to load or verify are logged and ignored.
func watchConfig(st *appState, svc *autosave.Service, log logger.Logger) (*confloader.Watcher, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(st.configFile); err != nil {
		_ = w.Stop()
		return nil, err
	}

	w.OnChange(func(path string) {
		next, err := config.Load(st.configFile, st.dotEnv...)
		if err != nil {
			log.Warn("config reload rejected", "path", path, "error", err)
			return
		}
		if err := svc.UpdateConfig(next.Autosave.Snapshot()); err != nil {
			log.Warn("autosave config rejected", "path", path, "error", err)
			return
		}
		logger.SetLevel(next.Log.Level)
		log.Info("config reloaded",
			"path", path,
			"enabled", next.Autosave.Enabled,
			"interval", next.Autosave.Interval,
			"max_backups", next.Autosave.MaxBackups)
	})
	w.StartAsync()
	return w, nil
}

func statusFunc(guard *service.Guard, svc *autosave.Service, ledger *recovery.Ledger, base string) httpserver.StatusFunc {
	return func(context.Context) (httpserver.Status, error) {
		cfg := svc.Config()
		status := httpserver.Status{
			ProjectPath: guard.ProjectPath(),
			BaseDir:     base,
			Running:     svc.Running(),
			Interval:    cfg.Interval.String(),
			MaxBackups:  cfg.MaxBackups,
		}
		if latest, err := svc.LatestBackup(base); err == nil {
			status.Latest = &latest
		}
		if rec, ok := guard.Current(); ok {
			status.Record = &rec
		}
		summary, err := ledger.Summary()
		if err != nil {
			return httpserver.Status{}, err
		}
		status.Recovery = summary
		return status, nil
	}
}
