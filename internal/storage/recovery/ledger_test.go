package recovery

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/snapkeep/internal/core/domain"
	"github.com/yndnr/snapkeep/internal/telemetry/metric"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newLedger(t *testing.T, opts ...Option) (*Ledger, string) {
	t.Helper()
	base := t.TempDir()
	l := NewLedger(opts...)
	require.NoError(t, l.Initialize(base))
	return l, base
}

func record(base, name string, ts time.Time, isTemp bool) domain.RecoveryRecord {
	return domain.RecoveryRecord{
		BackupPath:  filepath.Join(base, ".autosave", "backup_"+name+".json"),
		ProjectPath: filepath.Join(base, name+".json"),
		Timestamp:   ts,
		IsTemp:      isTemp,
	}
}

func TestLedger_NotInitialized(t *testing.T) {
	l := NewLedger()

	_, err := l.Save(record("/tmp", "a", time.Now(), false))
	require.ErrorIs(t, err, domain.ErrLedgerNotInitialized)

	_, err = l.List()
	require.ErrorIs(t, err, domain.ErrLedgerNotInitialized)

	require.ErrorIs(t, l.Clear(domain.RecoveryRecord{}), domain.ErrLedgerNotInitialized)
	require.ErrorIs(t, l.ClearAll(), domain.ErrLedgerNotInitialized)

	_, err = l.CleanupOlderThan(time.Hour)
	require.ErrorIs(t, err, domain.ErrLedgerNotInitialized)
}

func TestLedger_InitializeIdempotent(t *testing.T) {
	l, base := newLedger(t)
	saved, err := l.Save(record(base, "a", time.Now(), false))
	require.NoError(t, err)

	require.NoError(t, l.Initialize(base))
	records, err := l.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Equal(saved))
	assert.Equal(t, Dir(base), l.Dir())

	require.ErrorIs(t, NewLedger().Initialize(""), domain.ErrMissingArgument)
}

func TestLedger_SaveAndList(t *testing.T) {
	l, base := newLedger(t)

	rec := domain.NewRecoveryRecord(filepath.Join(base, "b.json"), filepath.Join(base, "p.json"), true)
	saved, err := l.Save(rec)
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	assert.True(t, saved.SameContent(rec))

	records, err := l.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Equal(saved), "got %+v, want %+v", records[0], saved)
}

func TestLedger_SaveStampsZeroTimestamp(t *testing.T) {
	clock := newFakeClock()
	l, base := newLedger(t, WithClock(clock.Now))

	saved, err := l.Save(record(base, "a", time.Time{}, false))
	require.NoError(t, err)
	assert.True(t, saved.Timestamp.Equal(clock.Now()))
}

func TestLedger_SaveRequiresBackupPath(t *testing.T) {
	l, _ := newLedger(t)
	_, err := l.Save(domain.RecoveryRecord{ProjectPath: "p"})
	require.ErrorIs(t, err, domain.ErrMissingArgument)
}

func TestLedger_ManifestFormat(t *testing.T) {
	l, base := newLedger(t)
	ts := time.Date(2025, 3, 1, 12, 0, 0, 123456789, time.UTC)
	saved, err := l.Save(record(base, "a", ts, true))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(Dir(base), saved.ID+".json"))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, map[string]any{
		"version":      float64(1),
		"backup_path":  saved.BackupPath,
		"project_path": saved.ProjectPath,
		"timestamp":    "2025-03-01T12:00:00.123456789Z",
		"is_temp":      true,
	}, got)
}

func TestLedger_IDsFollowSaveOrder(t *testing.T) {
	clock := newFakeClock()
	l, base := newLedger(t, WithClock(clock.Now))

	var saved []domain.RecoveryRecord
	for _, name := range []string{"a", "b", "c"} {
		rec, err := l.Save(record(base, name, clock.Now(), false))
		require.NoError(t, err)
		saved = append(saved, rec)
	}

	records, err := l.List()
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i := range saved {
		assert.Equal(t, saved[i].ID, records[i].ID)
	}
}

func TestLedger_SurvivesRestart(t *testing.T) {
	first, base := newLedger(t)
	saved, err := first.Save(record(base, "scene", time.Now(), false))
	require.NoError(t, err)

	second := NewLedger()
	require.NoError(t, second.Initialize(base))
	records, err := second.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Equal(saved))
}

func TestLedger_CleanupOlderThan(t *testing.T) {
	clock := newFakeClock()
	reg := metric.NewRegistry()
	l, base := newLedger(t, WithClock(clock.Now), WithMetrics(reg))
	now := clock.Now()

	_, err := l.Save(record(base, "old", now.Add(-25*time.Hour), false))
	require.NoError(t, err)
	fresh, err := l.Save(record(base, "fresh", now, false))
	require.NoError(t, err)

	n, err := l.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records, err := l.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Equal(fresh))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.RecoveryPurged))

	clock.Advance(time.Millisecond)
	n, err = l.CleanupOlderThan(0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records, err = l.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLedger_CleanupBoundaryRetained(t *testing.T) {
	clock := newFakeClock()
	l, base := newLedger(t, WithClock(clock.Now))
	now := clock.Now()

	exact, err := l.Save(record(base, "exact", now.Add(-24*time.Hour), false))
	require.NoError(t, err)
	_, err = l.Save(record(base, "past", now.Add(-24*time.Hour-time.Nanosecond), false))
	require.NoError(t, err)

	n, err := l.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records, err := l.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, exact.ID, records[0].ID)
}

func TestLedger_CleanupNegativeAge(t *testing.T) {
	l, _ := newLedger(t)
	_, err := l.CleanupOlderThan(-time.Second)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestLedger_ClearAll(t *testing.T) {
	l, base := newLedger(t)
	for _, name := range []string{"a", "b", "c"} {
		_, err := l.Save(record(base, name, time.Now(), name == "b"))
		require.NoError(t, err)
	}
	writeManifest(t, base, "01ARZ3NDEKTSV4RRFFQ69G5FAV.json", "{broken")

	require.NoError(t, l.ClearAll())

	records, err := l.List()
	require.NoError(t, err)
	assert.Empty(t, records)

	entries, err := os.ReadDir(Dir(base))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLedger_Summary(t *testing.T) {
	l, base := newLedger(t)
	for i, isTemp := range []bool{true, false, true, false, false} {
		_, err := l.Save(record(base, string(rune('a'+i)), time.Now(), isTemp))
		require.NoError(t, err)
	}

	sum, err := l.Summary()
	require.NoError(t, err)
	assert.Equal(t, domain.RecoverySummary{TotalCount: 5, TempCount: 2, PermanentCount: 3}, sum)
	assert.Equal(t, sum.TotalCount, sum.TempCount+sum.PermanentCount)

	empty, _ := newLedger(t)
	sum, err = empty.Summary()
	require.NoError(t, err)
	assert.Equal(t, domain.RecoverySummary{}, sum)
}

func TestLedger_ClearByID(t *testing.T) {
	l, base := newLedger(t)
	a, err := l.Save(record(base, "a", time.Now(), false))
	require.NoError(t, err)
	b, err := l.Save(record(base, "b", time.Now(), false))
	require.NoError(t, err)

	require.NoError(t, l.Clear(a))
	require.NoError(t, l.Clear(a), "clearing an absent record")

	records, err := l.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, b.ID, records[0].ID)
}

func TestLedger_ClearByContent(t *testing.T) {
	l, base := newLedger(t)
	ts := time.Now()
	rec := record(base, "a", ts, false)
	_, err := l.Save(rec)
	require.NoError(t, err)
	other, err := l.Save(record(base, "b", ts, false))
	require.NoError(t, err)

	require.NoError(t, l.Clear(rec))

	records, err := l.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, other.ID, records[0].ID)
}

func TestLedger_ClearInvalidID(t *testing.T) {
	l, _ := newLedger(t)
	for _, id := range []string{"../../etc/passwd", "not-a-ulid", "01ARZ3NDEKTSV4RRFFQ69G5FA"} {
		err := l.Clear(domain.RecoveryRecord{ID: id})
		assert.ErrorIs(t, err, domain.ErrInvalidRecordID, id)
	}
}

func TestLedger_SkipsCorruptManifests(t *testing.T) {
	var mu sync.Mutex
	var reported []error
	reg := metric.NewRegistry()
	l, base := newLedger(t, WithMetrics(reg), WithErrorReporter(func(err error) {
		mu.Lock()
		reported = append(reported, err)
		mu.Unlock()
	}))

	good, err := l.Save(record(base, "good", time.Now(), false))
	require.NoError(t, err)
	writeManifest(t, base, "01ARZ3NDEKTSV4RRFFQ69G5FAV.json", "{not json")
	writeManifest(t, base, "01ARZ3NDEKTSV4RRFFQ69G5FAW.json",
		`{"version":2,"backup_path":"b","project_path":"p","timestamp":"2025-03-01T12:00:00Z","is_temp":false}`)
	writeManifest(t, base, "notes.json", `{}`)

	records, err := l.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, good.ID, records[0].ID)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reported, 3)
	for _, err := range reported {
		assert.ErrorIs(t, err, domain.ErrCorruptManifest)
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(reg.ManifestErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.RecoveryRecords))
}

func TestLedger_CleanupRemovesOldCorruptManifests(t *testing.T) {
	clock := newFakeClock()
	l, base := newLedger(t, WithClock(clock.Now))

	oldPath := writeManifest(t, base, "01ARZ3NDEKTSV4RRFFQ69G5FAV.json", "{")
	freshPath := writeManifest(t, base, "01ARZ3NDEKTSV4RRFFQ69G5FAW.json", "{")
	old := clock.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, old, old))
	fresh := clock.Now()
	require.NoError(t, os.Chtimes(freshPath, fresh, fresh))

	n, err := l.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = os.Stat(oldPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(freshPath)
	assert.NoError(t, err)
}

func TestLedger_MissingDirListsEmpty(t *testing.T) {
	l, base := newLedger(t)
	require.NoError(t, os.RemoveAll(Dir(base)))

	records, err := l.List()
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)

	_, err = l.Save(record(base, "a", time.Now(), false))
	require.NoError(t, err, "save recreates the directory")
}

func writeManifest(t *testing.T, base, name, content string) string {
	t.Helper()
	path := filepath.Join(Dir(base), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLedger_ClearLowercaseID(t *testing.T) {
	l, base := newLedger(t)
	saved, err := l.Save(record(base, "a", time.Now(), false))
	require.NoError(t, err)

	require.NoError(t, l.Clear(domain.RecoveryRecord{ID: strings.ToLower(saved.ID)}))

	records, err := l.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLedger_CorruptManifestReportedOnce(t *testing.T) {
	var reported int
	reg := metric.NewRegistry()
	l, base := newLedger(t, WithMetrics(reg), WithErrorReporter(func(error) { reported++ }))

	path := writeManifest(t, base, "01ARZ3NDEKTSV4RRFFQ69G5FAV.json", "{not json")
	for range 3 {
		_, err := l.List()
		require.NoError(t, err)
	}
	_, err := l.Summary()
	require.NoError(t, err)
	assert.Equal(t, 1, reported)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.ManifestErrors))

	// Once the file is gone, corrupting it again is a new report.
	require.NoError(t, os.Remove(path))
	_, err = l.List()
	require.NoError(t, err)
	writeManifest(t, base, "01ARZ3NDEKTSV4RRFFQ69G5FAV.json", "{")
	_, err = l.List()
	require.NoError(t, err)
	assert.Equal(t, 2, reported)
	assert.Equal(t, 2.0, testutil.ToFloat64(reg.ManifestErrors))
}

func TestLedger_CleanupGaugeCountsReadableRecords(t *testing.T) {
	clock := newFakeClock()
	reg := metric.NewRegistry()
	l, base := newLedger(t, WithClock(clock.Now), WithMetrics(reg))

	_, err := l.Save(record(base, "old", clock.Now().Add(-48*time.Hour), false))
	require.NoError(t, err)
	_, err = l.Save(record(base, "fresh", clock.Now(), false))
	require.NoError(t, err)
	corrupt := writeManifest(t, base, "01ARZ3NDEKTSV4RRFFQ69G5FAV.json", "{")
	now := clock.Now()
	require.NoError(t, os.Chtimes(corrupt, now, now))

	n, err := l.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.RecoveryRecords))

	records, err := l.List()
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.RecoveryRecords))
}
