package command

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/snapkeep/internal/core/domain"
	"github.com/yndnr/snapkeep/internal/storage/autosave"
	"github.com/yndnr/snapkeep/internal/storage/recovery"
)

// runApp runs the CLI with args and returns what it printed on stdout.
func runApp(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := App()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.RunContext(ctx, append([]string{"snapkeep", "--env-file", filepath.Join(t.TempDir(), "none.env")}, args...))
	t.Logf("stderr:\n%s", stderr.String())
	return stdout.String(), err
}

// seedBackups writes n backups of {"n": i} into base.
func seedBackups(t *testing.T, base string, n int) []domain.BackupInfo {
	t.Helper()
	cfg := domain.SnapshotConfig{Enabled: true, Interval: time.Hour, MaxBackups: 10}
	svc, err := autosave.NewService(cfg)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	i := 0
	provider := autosave.StateProviderFunc(func() (any, error) {
		i++
		return map[string]int{"n": i}, nil
	})
	if err := svc.Start(provider, filepath.Join(base, "proj.json"), base); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer svc.Shutdown(context.Background())

	for j := 0; j < n; j++ {
		if _, err := svc.SaveNow(context.Background()); err != nil {
			t.Fatalf("SaveNow() error = %v", err)
		}
	}
	infos, err := autosave.ListBackups(base)
	if err != nil {
		t.Fatalf("ListBackups() error = %v", err)
	}
	return infos
}

// seedRecords saves one record per timestamp into base.
func seedRecords(t *testing.T, base string, stamps ...time.Time) []domain.RecoveryRecord {
	t.Helper()
	ledger := recovery.NewLedger()
	if err := ledger.Initialize(base); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	var out []domain.RecoveryRecord
	for i, ts := range stamps {
		rec := domain.RecoveryRecord{
			BackupPath:  filepath.Join(base, ".autosave", "backup_x.json"),
			ProjectPath: filepath.Join(base, "proj.json"),
			Timestamp:   ts,
			IsTemp:      i%2 == 1,
		}
		saved, err := ledger.Save(rec)
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		out = append(out, saved)
	}
	return out
}

func decodeJSON(t *testing.T, s string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(s), v); err != nil {
		t.Fatalf("decode %q: %v", s, err)
	}
}

func countManifests(t *testing.T, base string) int {
	t.Helper()
	entries, err := os.ReadDir(recovery.Dir(base))
	if err != nil {
		if os.IsNotExist(err) {
			return 0
		}
		t.Fatalf("ReadDir() error = %v", err)
	}
	n := 0
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".json" {
			n++
		}
	}
	return n
}
