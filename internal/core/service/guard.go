package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yndnr/snapkeep/internal/core/domain"
	"github.com/yndnr/snapkeep/internal/storage/autosave"
	"github.com/yndnr/snapkeep/internal/telemetry/logger"
)

// Snapshotter is the autosave engine as seen by a Guard.
type Snapshotter interface {
	Start(provider autosave.StateProvider, projectPath, baseDir string) error
	Shutdown(ctx context.Context) error
	ClearBackups(baseDir string) error
}

// RecordStore is the recovery ledger as seen by a Guard.
type RecordStore interface {
	Initialize(baseDir string) error
	Save(rec domain.RecoveryRecord) (domain.RecoveryRecord, error)
	List() ([]domain.RecoveryRecord, error)
	Clear(rec domain.RecoveryRecord) error
	CleanupOlderThan(maxAge time.Duration) (int, error)
}

// Guard keeps one recovery record in step with the autosave backups of an
// open project.
type Guard struct {
	baseDir string
	records RecordStore
	logger  logger.Logger

	mu          sync.Mutex
	snap        Snapshotter
	projectPath string
	isTemp      bool
	current     domain.RecoveryRecord
}

// NewGuard binds a Guard to baseDir and initializes its record store.
func NewGuard(baseDir string, records RecordStore, log logger.Logger) (*Guard, error) {
	if records == nil {
		return nil, domain.ErrMissingArgument.WithDetails("record store")
	}
	if err := records.Initialize(baseDir); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Guard{
		baseDir: baseDir,
		records: records,
		logger:  log.With("component", "guard"),
	}, nil
}

// PendingRecoveries removes records older than maxAge and returns the rest.
// Call it before Open to find work left behind by a crashed session.
func (g *Guard) PendingRecoveries(maxAge time.Duration) ([]domain.RecoveryRecord, error) {
	if n, err := g.records.CleanupOlderThan(maxAge); err != nil {
		g.logger.Warn("purge stale recovery records failed", "error", err)
	} else if n > 0 {
		g.logger.Info("purged stale recovery records", "count", n)
	}
	return g.records.List()
}

// Resolve removes a record once the host has restored or discarded it.
func (g *Guard) Resolve(rec domain.RecoveryRecord) error {
	return g.records.Clear(rec)
}

// Open starts autosaving a project. An empty projectPath opens a project
// that has never been saved; its records are marked temporary.
func (g *Guard) Open(snap Snapshotter, provider autosave.StateProvider, projectPath string) error {
	if snap == nil {
		return domain.ErrMissingArgument.WithDetails("snapshotter")
	}

	g.mu.Lock()
	if g.snap != nil {
		g.mu.Unlock()
		return domain.ErrInvalidArgument.WithDetails("guard already open")
	}
	isTemp := projectPath == ""
	if isTemp {
		projectPath = domain.TempProjectPath(g.baseDir)
	}
	g.snap = snap
	g.projectPath = projectPath
	g.isTemp = isTemp
	g.current = domain.RecoveryRecord{}
	g.mu.Unlock()

	if err := snap.Start(provider, projectPath, g.baseDir); err != nil {
		g.mu.Lock()
		g.snap = nil
		g.mu.Unlock()
		return err
	}
	g.logger.Info("session opened", "project_path", projectPath, "temp", isTemp)
	return nil
}

// ProjectPath returns the path the open session autosaves under.
func (g *Guard) ProjectPath() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.projectPath
}

// Current returns the record registered for the latest snapshot, if any.
func (g *Guard) Current() (domain.RecoveryRecord, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current, g.current.ID != ""
}

// HandleSnapshot registers a record for a new backup and drops the one
// registered for the previous backup. Install it with
// autosave.WithSnapshotHandler.
func (g *Guard) HandleSnapshot(ev domain.SnapshotEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.snap == nil || ev.BaseDir != g.baseDir {
		return
	}

	rec := ev.RecoveryRecord()
	rec.IsTemp = rec.IsTemp || g.isTemp
	saved, err := g.records.Save(rec)
	if err != nil {
		// Keep the previous record; it still points at a valid backup
		// unless rotation removed it.
		g.logger.Error("register recovery record failed", "backup_path", ev.Path, "error", err)
		return
	}

	if g.current.ID != "" {
		if err := g.records.Clear(g.current); err != nil {
			g.logger.Warn("drop previous recovery record failed", "id", g.current.ID, "error", err)
		}
	}
	g.current = saved
}

// Close stops autosaving and waits for a snapshot in progress. A clean close
// means the project was saved or discarded on purpose: backups and the
// session's record are removed. Otherwise both are left for recovery.
func (g *Guard) Close(ctx context.Context, clean bool) error {
	g.mu.Lock()
	snap := g.snap
	g.mu.Unlock()
	if snap == nil {
		return nil
	}

	// Snapshotter calls run without g.mu: a write in progress delivers its
	// event through HandleSnapshot, which takes g.mu.
	err := snap.Shutdown(ctx)

	g.mu.Lock()
	if g.snap != snap {
		g.mu.Unlock()
		return err
	}
	g.snap = nil
	cur := g.current
	if clean {
		g.current = domain.RecoveryRecord{}
	}
	g.mu.Unlock()

	if !clean {
		g.logger.Info("session closed, recovery data kept", "record_id", cur.ID)
		return err
	}

	if cerr := snap.ClearBackups(g.baseDir); cerr != nil {
		err = errors.Join(err, cerr)
	}
	if cur.ID != "" {
		if cerr := g.records.Clear(cur); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	g.logger.Info("session closed cleanly")
	return err
}
