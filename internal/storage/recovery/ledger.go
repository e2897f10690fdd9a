package recovery

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/snapkeep/internal/core/domain"
	"github.com/yndnr/snapkeep/internal/infra/fsutil"
	"github.com/yndnr/snapkeep/internal/telemetry/logger"
	"github.com/yndnr/snapkeep/internal/telemetry/metric"
)

const (
	// DirName is the per-project recovery directory.
	DirName = ".recovery"

	manifestVersion = 1
	manifestExt     = ".json"
	tempPattern     = ".manifest-*.tmp"
)

type manifest struct {
	Version     int       `json:"version"`
	BackupPath  string    `json:"backup_path"`
	ProjectPath string    `json:"project_path"`
	Timestamp   time.Time `json:"timestamp"`
	IsTemp      bool      `json:"is_temp"`
}

func manifestFromRecord(r domain.RecoveryRecord) manifest {
	return manifest{
		Version:     manifestVersion,
		BackupPath:  r.BackupPath,
		ProjectPath: r.ProjectPath,
		Timestamp:   r.Timestamp,
		IsTemp:      r.IsTemp,
	}
}

func (m manifest) record(id string) domain.RecoveryRecord {
	return domain.RecoveryRecord{
		ID:          id,
		BackupPath:  m.BackupPath,
		ProjectPath: m.ProjectPath,
		Timestamp:   domain.NormalizeTime(m.Timestamp),
		IsTemp:      m.IsTemp,
	}
}

// Dir returns the recovery directory of a project base directory.
func Dir(baseDir string) string {
	return filepath.Join(baseDir, DirName)
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(led *Ledger) {
		if l != nil {
			led.logger = l
		}
	}
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metric.Registry) Option {
	return func(led *Ledger) { led.metrics = m }
}

// WithClock overrides the time source for timestamps and age cleanup.
func WithClock(now func() time.Time) Option {
	return func(led *Ledger) {
		if now != nil {
			led.now = now
		}
	}
}

// WithErrorReporter receives one ErrCorruptManifest per unreadable manifest.
// A manifest that stays corrupt across scans is reported once.
func WithErrorReporter(r func(error)) Option {
	return func(led *Ledger) { led.onError = r }
}

// Ledger stores recovery records for one project base directory.
type Ledger struct {
	mu      sync.Mutex
	dir     string
	entropy *ulid.MonotonicEntropy
	lastID  ulid.ULID

	logger  logger.Logger
	metrics *metric.Registry
	now     func() time.Time
	onError func(error)

	// corrupt manifests already reported, by path
	reported map[string]struct{}
}

// NewLedger creates an uninitialized Ledger.
func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		entropy:  ulid.Monotonic(rand.Reader, 0),
		logger:   logger.Nop(),
		now:      time.Now,
		reported: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "recovery")
	return l
}

// Initialize binds the ledger to baseDir and creates its recovery directory.
// Calling it again with the same directory is harmless.
func (l *Ledger) Initialize(baseDir string) error {
	if baseDir == "" {
		return domain.ErrMissingArgument.WithDetails("base dir")
	}
	dir := Dir(baseDir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return domain.ErrManifestWrite.WithDetails("create recovery dir").Wrap(err)
	}

	l.mu.Lock()
	l.dir = dir
	l.mu.Unlock()
	return nil
}

// Dir returns the recovery directory, or "" before Initialize.
func (l *Ledger) Dir() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dir
}

// Save persists rec as a new manifest and returns it with its ID set. A zero
// Timestamp is stamped with the current time.
func (l *Ledger) Save(rec domain.RecoveryRecord) (domain.RecoveryRecord, error) {
	if rec.BackupPath == "" {
		return domain.RecoveryRecord{}, domain.ErrMissingArgument.WithDetails("backup path")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dir == "" {
		return domain.RecoveryRecord{}, domain.ErrLedgerNotInitialized
	}

	if rec.Timestamp.IsZero() {
		rec.Timestamp = l.now()
	}
	rec.Timestamp = domain.NormalizeTime(rec.Timestamp)

	data, err := json.MarshalIndent(manifestFromRecord(rec), "", "  ")
	if err != nil {
		return domain.RecoveryRecord{}, domain.ErrManifestWrite.Wrap(err)
	}

	// The directory may have been removed behind our back.
	if err := os.MkdirAll(l.dir, 0o750); err != nil {
		return domain.RecoveryRecord{}, domain.ErrManifestWrite.Wrap(err)
	}
	id, err := l.nextID()
	if err != nil {
		return domain.RecoveryRecord{}, domain.ErrManifestWrite.Wrap(err)
	}
	if _, err := fsutil.WriteAtomic(l.dir, id.String()+manifestExt, tempPattern, data, 0o600); err != nil {
		return domain.RecoveryRecord{}, domain.ErrManifestWrite.Wrap(err)
	}
	if err := fsutil.SyncDir(l.dir); err != nil {
		l.logger.Warn("sync recovery dir failed", "dir", l.dir, "error", err)
	}

	rec.ID = id.String()
	l.logger.Debug("recovery record saved", "id", rec.ID, "backup_path", rec.BackupPath)
	return rec, nil
}

// List returns every readable record, oldest first. Corrupt manifests are
// skipped and reported. A missing directory yields an empty list.
func (l *Ledger) List() ([]domain.RecoveryRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := l.scan()
	if err != nil {
		return nil, err
	}
	l.metrics.SetRecoveryRecords(len(res.records))
	return res.records, nil
}

// Summary counts records by kind from a single scan.
func (l *Ledger) Summary() (domain.RecoverySummary, error) {
	records, err := l.List()
	if err != nil {
		return domain.RecoverySummary{}, err
	}
	return domain.SummarizeRecords(records), nil
}

// Clear removes the manifest of rec. Records are matched by ID; a record
// without an ID matches every manifest with identical content. Clearing a
// record that does not exist is not an error.
func (l *Ledger) Clear(rec domain.RecoveryRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dir == "" {
		return domain.ErrLedgerNotInitialized
	}

	if rec.ID != "" {
		id, err := ulid.ParseStrict(strings.TrimSpace(rec.ID))
		if err != nil {
			return domain.ErrInvalidRecordID.WithDetails(rec.ID)
		}
		// Manifest names use the canonical upper-case form.
		return l.remove(filepath.Join(l.dir, id.String()+manifestExt))
	}

	res, err := l.scan()
	if err != nil {
		return err
	}
	var errs []error
	for _, r := range res.records {
		if r.SameContent(rec) {
			if err := l.remove(filepath.Join(l.dir, r.ID+manifestExt)); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// ClearAll removes every manifest, corrupt ones included.
func (l *Ledger) ClearAll() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dir == "" {
		return domain.ErrLedgerNotInitialized
	}

	res, err := l.scan()
	if err != nil {
		return err
	}
	var errs []error
	for _, r := range res.records {
		if err := l.remove(filepath.Join(l.dir, r.ID+manifestExt)); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range res.corrupt {
		if err := l.remove(c.path); err != nil {
			errs = append(errs, err)
		}
	}
	fsutil.RemoveMatching(l.dir, tempPattern)
	l.metrics.SetRecoveryRecords(0)
	l.logger.Info("recovery records cleared", "count", len(res.records)+len(res.corrupt))
	return errors.Join(errs...)
}

// CleanupOlderThan removes records whose timestamp is strictly before
// now-maxAge. A record exactly maxAge old is kept. Corrupt manifests whose
// modification time is past the same threshold are removed as well.
// It returns the number of manifests removed.
func (l *Ledger) CleanupOlderThan(maxAge time.Duration) (int, error) {
	if maxAge < 0 {
		return 0, domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("max age must not be negative, got %s", maxAge))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dir == "" {
		return 0, domain.ErrLedgerNotInitialized
	}

	res, err := l.scan()
	if err != nil {
		return 0, err
	}

	threshold := l.now().Add(-maxAge)
	removedValid := 0
	var errs []error
	for _, r := range res.records {
		if !r.Timestamp.Before(threshold) {
			continue
		}
		if err := l.remove(filepath.Join(l.dir, r.ID+manifestExt)); err != nil {
			errs = append(errs, err)
			continue
		}
		removedValid++
	}
	removed := removedValid
	for _, c := range res.corrupt {
		if !c.modTime.Before(threshold) {
			continue
		}
		if err := l.remove(c.path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	l.metrics.AddRecoveryPurged(removed)
	l.metrics.SetRecoveryRecords(len(res.records) - removedValid)
	if removed > 0 {
		l.logger.Info("old recovery records removed", "count", removed, "max_age", maxAge)
	}
	return removed, errors.Join(errs...)
}

func (l *Ledger) nextID() (ulid.ULID, error) {
	ms := ulid.Timestamp(l.now())
	if ms < l.lastID.Time() {
		ms = l.lastID.Time()
	}
	id, err := ulid.New(ms, l.entropy)
	if err != nil {
		return ulid.ULID{}, err
	}
	l.lastID = id
	return id, nil
}

func (l *Ledger) remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return domain.ErrManifestWrite.WithDetails("remove " + filepath.Base(path)).Wrap(err)
	}
	delete(l.reported, path)
	return nil
}

type corruptEntry struct {
	path    string
	modTime time.Time
}

type scanResult struct {
	records []domain.RecoveryRecord
	corrupt []corruptEntry
}

// scan reads every manifest in the directory. Callers hold l.mu.
func (l *Ledger) scan() (scanResult, error) {
	res := scanResult{records: []domain.RecoveryRecord{}}
	if l.dir == "" {
		return res, domain.ErrLedgerNotInitialized
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return res, nil
		}
		return res, fmt.Errorf("recovery: read dir: %w", err)
	}

	seen := make(map[string]struct{})
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, manifestExt) {
			continue
		}
		path := filepath.Join(l.dir, name)
		id := strings.TrimSuffix(name, manifestExt)

		rec, err := readManifest(path, id)
		if err != nil {
			var mod time.Time
			if fi, statErr := e.Info(); statErr == nil {
				mod = fi.ModTime()
			}
			res.corrupt = append(res.corrupt, corruptEntry{path: path, modTime: mod})
			seen[path] = struct{}{}
			if _, ok := l.reported[path]; !ok {
				l.reportCorrupt(path, err)
			}
			continue
		}
		res.records = append(res.records, rec)
	}
	// Forget manifests that were repaired or removed so a later corruption
	// of the same file is reported again.
	l.reported = seen

	sort.Slice(res.records, func(i, j int) bool { return res.records[i].ID < res.records[j].ID })
	return res, nil
}

func readManifest(path, id string) (domain.RecoveryRecord, error) {
	if _, err := ulid.ParseStrict(id); err != nil {
		return domain.RecoveryRecord{}, fmt.Errorf("file name is not a record id: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.RecoveryRecord{}, err
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.RecoveryRecord{}, err
	}
	if m.Version != manifestVersion {
		return domain.RecoveryRecord{}, fmt.Errorf("unsupported manifest version %d", m.Version)
	}
	if m.BackupPath == "" || m.Timestamp.IsZero() {
		return domain.RecoveryRecord{}, errors.New("manifest is missing required fields")
	}
	return m.record(id), nil
}

func (l *Ledger) reportCorrupt(path string, cause error) {
	err := domain.ErrCorruptManifest.WithDetails(filepath.Base(path)).Wrap(cause)
	l.logger.Warn("skipping corrupt recovery manifest", "path", path, "error", cause)
	l.metrics.IncManifestErrors()
	if l.onError != nil {
		l.onError(err)
	}
}
