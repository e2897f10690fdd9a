package autosave

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shirou/gopsutil/v4/disk"
	"golang.org/x/sync/singleflight"

	"github.com/yndnr/snapkeep/internal/core/domain"
	"github.com/yndnr/snapkeep/internal/infra/fsutil"
	"github.com/yndnr/snapkeep/internal/telemetry/logger"
	"github.com/yndnr/snapkeep/internal/telemetry/metric"
)

// tickTimeout bounds one automatic snapshot.
const tickTimeout = 30 * time.Second

// StateProvider returns the current project state. The result is written as
// JSON: []byte and json.RawMessage are taken verbatim, anything else is
// marshalled.
type StateProvider interface {
	ProjectState() (any, error)
}

// StateProviderFunc adapts a function to StateProvider.
type StateProviderFunc func() (any, error)

// ProjectState implements StateProvider.
func (f StateProviderFunc) ProjectState() (any, error) { return f() }

// SnapshotHandler receives an event after each successful snapshot. It runs
// on the snapshot path and must not call SaveNow or ClearBackups.
type SnapshotHandler func(domain.SnapshotEvent)

// ErrorReporter receives each snapshot failure exactly once.
type ErrorReporter func(error)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metric.Registry) Option {
	return func(s *Service) { s.metrics = m }
}

// WithSnapshotHandler sets the snapshot-taken callback.
func WithSnapshotHandler(h SnapshotHandler) Option {
	return func(s *Service) { s.onSnapshot = h }
}

// WithErrorReporter sets the failure callback.
func WithErrorReporter(r ErrorReporter) Option {
	return func(s *Service) { s.onError = r }
}

// WithMinFreeBytes refuses writes when the filesystem holding the autosave
// directory has less than n bytes free after the write. Zero disables the check.
func WithMinFreeBytes(n uint64) Option {
	return func(s *Service) { s.minFree = n }
}

// WithClock overrides the time source used for backup ids.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

type target struct {
	provider    StateProvider
	projectPath string
	baseDir     string
}

type run struct {
	stop  chan struct{}
	reset chan struct{}
	done  chan struct{}
}

// Service takes periodic snapshots of one project.
type Service struct {
	mu     sync.Mutex
	cfg    domain.SnapshotConfig
	target *target
	run    *run

	// writeMu serializes every write and guards entropy/lastID.
	writeMu sync.Mutex
	flight  singleflight.Group
	entropy *ulid.MonotonicEntropy
	lastID  ulid.ULID

	logger     logger.Logger
	metrics    *metric.Registry
	onSnapshot SnapshotHandler
	onError    ErrorReporter
	minFree    uint64
	now        func() time.Time
}

// NewService creates a stopped Service.
func NewService(cfg domain.SnapshotConfig, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Service{
		cfg:     cfg,
		entropy: ulid.Monotonic(rand.Reader, 0),
		logger:  logger.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "autosave")
	return s, nil
}

// Start targets a project and arms the timer. Any previous run is stopped
// first. With autosave disabled the target is remembered and nothing else
// happens.
func (s *Service) Start(provider StateProvider, projectPath, baseDir string) error {
	if provider == nil {
		return domain.ErrMissingArgument.WithDetails("state provider")
	}
	if baseDir == "" {
		return domain.ErrMissingArgument.WithDetails("base dir")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.target = &target{provider: provider, projectPath: projectPath, baseDir: baseDir}
	if !s.cfg.Enabled {
		s.logger.Debug("autosave disabled, not scheduling", "base_dir", baseDir)
		return nil
	}
	s.startLocked()
	s.logger.Info("autosave started",
		"project_path", projectPath,
		"base_dir", baseDir,
		"interval", s.cfg.Interval,
		"max_backups", s.cfg.MaxBackups,
	)
	return nil
}

// Stop cancels the next scheduled tick and forgets the target. A write in
// progress completes. Calling Stop on a stopped Service does nothing.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopLocked() {
		s.logger.Info("autosave stopped")
	}
	s.target = nil
}

// Shutdown stops the Service and waits for the timer loop and any write in
// progress, automatic or manual, to finish. No backup is written after it
// returns nil.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	r := s.run
	s.stopLocked()
	s.target = nil
	s.mu.Unlock()

	if r != nil {
		select {
		case <-r.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	idle := make(chan struct{})
	go func() {
		s.writeMu.Lock()
		s.writeMu.Unlock()
		close(idle)
	}()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpdateConfig replaces the configuration. An invalid config is rejected and
// the current one stays in effect. Backups on disk are never touched.
func (s *Service) UpdateConfig(cfg domain.SnapshotConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.cfg
	s.cfg = cfg

	switch {
	case !cfg.Enabled:
		if s.stopLocked() {
			s.logger.Info("autosave disabled")
		}
	case s.run == nil && s.target != nil:
		s.startLocked()
		s.logger.Info("autosave enabled", "interval", cfg.Interval)
	case s.run != nil && prev.Interval != cfg.Interval:
		select {
		case s.run.reset <- struct{}{}:
		default:
		}
		s.logger.Info("autosave rescheduled", "interval", cfg.Interval)
	}
	return nil
}

// Config returns the configuration in effect.
func (s *Service) Config() domain.SnapshotConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Running reports whether a timer is armed.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run != nil
}

// SaveNow takes a snapshot immediately. A call that overlaps an automatic
// snapshot of the same project shares its result.
func (s *Service) SaveNow(ctx context.Context) (domain.SnapshotEvent, error) {
	s.mu.Lock()
	t := s.target
	s.mu.Unlock()
	if t == nil {
		return domain.SnapshotEvent{}, domain.ErrNotRunning
	}
	return s.save(ctx, t)
}

// ClearBackups removes the autosave directory of baseDir. A missing
// directory is not an error.
func (s *Service) ClearBackups(baseDir string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := RemoveBackups(baseDir); err != nil {
		return err
	}
	s.metrics.SetBackups(0, 0)
	s.logger.Info("backups cleared", "base_dir", baseDir)
	return nil
}

// Backups lists the backups of baseDir, oldest first.
func (s *Service) Backups(baseDir string) ([]domain.BackupInfo, error) {
	return ListBackups(baseDir)
}

// LatestBackup returns the newest backup of baseDir.
func (s *Service) LatestBackup(baseDir string) (domain.BackupInfo, error) {
	return LatestBackup(baseDir)
}

func (s *Service) startLocked() {
	r := &run{
		stop:  make(chan struct{}),
		reset: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	s.run = r
	go s.loop(r, s.target)
}

func (s *Service) stopLocked() bool {
	if s.run == nil {
		return false
	}
	close(s.run.stop)
	s.run = nil
	return true
}

// targets reports whether t is still the project being saved.
func (s *Service) targets(t *target) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target == t
}

func (s *Service) interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Interval
}

// loop re-arms the timer only after a tick returns, so ticks never overlap.
func (s *Service) loop(r *run, t *target) {
	defer close(r.done)

	timer := time.NewTimer(s.interval())
	defer timer.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-r.reset:
			timer.Reset(s.interval())
		case <-timer.C:
			select {
			case <-r.stop:
				return
			default:
			}
			ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
			_, _ = s.save(ctx, t)
			cancel()
			timer.Reset(s.interval())
		}
	}
}

func (s *Service) save(ctx context.Context, t *target) (domain.SnapshotEvent, error) {
	v, err, shared := s.flight.Do(t.baseDir, func() (any, error) {
		return s.snapshot(ctx, t)
	})
	if shared {
		s.logger.Debug("snapshot coalesced", "base_dir", t.baseDir)
	}
	if err != nil {
		return domain.SnapshotEvent{}, err
	}
	return v.(domain.SnapshotEvent), nil
}

// snapshot runs one unit of work. Failures are reported here so coalesced
// callers do not report twice.
func (s *Service) snapshot(ctx context.Context, t *target) (domain.SnapshotEvent, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !s.targets(t) {
		s.logger.Debug("snapshot dropped, target stopped", "base_dir", t.baseDir)
		return domain.SnapshotEvent{}, domain.ErrNotRunning
	}

	start := time.Now()
	ev, err := s.write(ctx, t)
	if err != nil {
		status := metric.StatusFailure
		if errors.Is(err, domain.ErrInsufficientSpace) {
			status = metric.StatusSkipped
		}
		s.metrics.ObserveSnapshot(status, time.Since(start))
		s.logger.Error("snapshot failed", "base_dir", t.baseDir, "error", err)
		s.report(err)
		return domain.SnapshotEvent{}, err
	}
	s.metrics.ObserveSnapshot(metric.StatusSuccess, time.Since(start))
	s.logger.Debug("snapshot written", "path", ev.Path, "size", ev.Size)

	if s.onSnapshot != nil {
		s.onSnapshot(ev)
	}
	return ev, nil
}

func (s *Service) write(ctx context.Context, t *target) (domain.SnapshotEvent, error) {
	state, err := t.provider.ProjectState()
	if err != nil {
		return domain.SnapshotEvent{}, domain.ErrStateUnavailable.Wrap(err)
	}
	data, err := encodeState(state)
	if err != nil {
		return domain.SnapshotEvent{}, domain.ErrSerialize.Wrap(err)
	}

	dir := Dir(t.baseDir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return domain.SnapshotEvent{}, domain.ErrSnapshotWrite.Wrap(err)
	}
	// Writes are serialized, so any temp file present now was orphaned by a crash.
	fsutil.RemoveMatching(dir, tempPattern)

	if err := s.checkFreeSpace(ctx, dir, len(data)); err != nil {
		return domain.SnapshotEvent{}, err
	}

	existing, err := listDir(dir)
	if err != nil {
		return domain.SnapshotEvent{}, domain.ErrSnapshotWrite.Wrap(err)
	}
	var newest ulid.ULID
	if n := len(existing); n > 0 {
		newest = ulid.MustParse(existing[n-1].ID)
	}
	id, err := s.nextID(newest)
	if err != nil {
		return domain.SnapshotEvent{}, domain.ErrSnapshotWrite.Wrap(err)
	}

	path, err := fsutil.WriteAtomic(dir, backupName(id), tempPattern, data, 0o600)
	if err != nil {
		return domain.SnapshotEvent{}, domain.ErrSnapshotWrite.Wrap(err)
	}
	if err := fsutil.SyncDir(dir); err != nil {
		s.logger.Warn("sync autosave dir failed", "dir", dir, "error", err)
	}

	retained, err := rotate(dir, s.Config().MaxBackups)
	if err != nil {
		// The new backup is durable; report the rotation problem on its own.
		s.logger.Warn("rotation incomplete", "dir", dir, "error", err)
		s.report(err)
	}
	s.metrics.SetBackups(len(retained), int64(len(data)))

	_, statErr := os.Stat(t.projectPath)
	return domain.SnapshotEvent{
		ID:          id.String(),
		Path:        path,
		ProjectPath: t.projectPath,
		BaseDir:     t.baseDir,
		Timestamp:   ulid.Time(id.Time()).UTC(),
		Size:        int64(len(data)),
		IsTemp:      t.projectPath == "" || statErr != nil,
	}, nil
}

// nextID returns a ULID that sorts after every backup already on disk.
// floor is the newest existing id; if another process wrote it, the new
// timestamp is pushed past it because entropy order is not shared.
func (s *Service) nextID(floor ulid.ULID) (ulid.ULID, error) {
	ms := ulid.Timestamp(s.now())
	if floor.Compare(s.lastID) > 0 && ms <= floor.Time() {
		ms = floor.Time() + 1
	}
	if ms < s.lastID.Time() {
		ms = s.lastID.Time()
	}
	id, err := ulid.New(ms, s.entropy)
	if err != nil {
		return ulid.ULID{}, err
	}
	s.lastID = id
	return id, nil
}

func (s *Service) checkFreeSpace(ctx context.Context, dir string, size int) error {
	if s.minFree == 0 {
		return nil
	}
	usage, err := disk.UsageWithContext(ctx, dir)
	if err != nil {
		s.logger.Warn("disk usage unavailable, skipping preflight", "dir", dir, "error", err)
		return nil
	}
	need := s.minFree + uint64(size)
	if usage.Free < need {
		return domain.ErrInsufficientSpace.WithDetails(
			fmt.Sprintf("%s: %d bytes free, need %d", dir, usage.Free, need))
	}
	return nil
}

func (s *Service) report(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}
