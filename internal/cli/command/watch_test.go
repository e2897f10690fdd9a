package command

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yndnr/snapkeep/internal/storage/autosave"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within 5s")
}

func writeProject(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "proj.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileState(t *testing.T) {
	path := writeProject(t, `{"title":"draft"}`)

	state, err := FileState(path).ProjectState()
	if err != nil {
		t.Fatalf("ProjectState() error = %v", err)
	}
	raw, ok := state.(json.RawMessage)
	if !ok || string(raw) != `{"title":"draft"}` {
		t.Errorf("ProjectState() = %v, want raw project JSON", state)
	}

	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := FileState(path).ProjectState(); err == nil {
		t.Error("expected error for invalid JSON")
	}

	if _, err := FileState(filepath.Join(t.TempDir(), "missing.json")).ProjectState(); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWatch(t *testing.T) {
	t.Setenv("SNAPKEEP_AUTOSAVE_INTERVAL", "20ms")
	t.Setenv("SNAPKEEP_AUTOSAVE_MAX_BACKUPS", "2")

	tests := []struct {
		name        string
		extra       []string
		wantBackups bool
	}{
		{"clean exit removes recovery data", nil, false},
		{"keep leaves recovery data", []string{"--keep"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			project := writeProject(t, `{"title":"draft"}`)
			base := filepath.Dir(project)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			errCh := make(chan error, 1)
			go func() {
				args := append([]string{"watch", "--project", project}, tt.extra...)
				_, err := runApp(t, ctx, args...)
				errCh <- err
			}()

			waitFor(t, func() bool {
				infos, err := autosave.ListBackups(base)
				return err == nil && len(infos) >= 2 && countManifests(t, base) == 1
			})

			cancel()
			select {
			case err := <-errCh:
				if err != nil {
					t.Fatalf("watch error = %v", err)
				}
			case <-time.After(5 * time.Second):
				t.Fatal("watch did not stop")
			}

			infos, err := autosave.ListBackups(base)
			if err != nil {
				t.Fatalf("ListBackups() error = %v", err)
			}
			if got := len(infos) > 0; got != tt.wantBackups {
				t.Errorf("backups present = %v, want %v", got, tt.wantBackups)
			}
			if len(infos) > 2 {
				t.Errorf("backups = %d, want at most 2", len(infos))
			}
			wantRecords := 0
			if tt.wantBackups {
				wantRecords = 1
			}
			if n := countManifests(t, base); n != wantRecords {
				t.Errorf("manifests = %d, want %d", n, wantRecords)
			}
		})
	}
}

func TestWatch_MissingProject(t *testing.T) {
	_, err := runApp(t, context.Background(), "watch")
	if err == nil {
		t.Error("expected error without --project")
	}
}
