package autosave

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/snapkeep/internal/core/domain"
)

const (
	// DirName is the per-project autosave directory.
	DirName = ".autosave"

	filePrefix    = "backup_"
	fileExtension = ".json"
	tempPattern   = ".backup-*.tmp"
)

// Dir returns the autosave directory of a project base directory.
func Dir(baseDir string) string {
	return filepath.Join(baseDir, DirName)
}

func backupName(id ulid.ULID) string {
	return filePrefix + id.String() + fileExtension
}

// parseBackupName extracts the ULID from a backup file name.
func parseBackupName(name string) (ulid.ULID, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileExtension) {
		return ulid.ULID{}, false
	}
	id, err := ulid.ParseStrict(strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileExtension))
	if err != nil {
		return ulid.ULID{}, false
	}
	return id, true
}

// ListBackups lists backups of a project, oldest first. A missing directory
// yields an empty list.
func ListBackups(baseDir string) ([]domain.BackupInfo, error) {
	return listDir(Dir(baseDir))
}

func listDir(dir string) ([]domain.BackupInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []domain.BackupInfo{}, nil
		}
		return nil, err
	}

	type item struct {
		id   ulid.ULID
		info domain.BackupInfo
	}
	items := make([]item, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, ok := parseBackupName(e.Name())
		if !ok {
			continue
		}
		var size int64
		if fi, err := e.Info(); err == nil {
			size = fi.Size()
		}
		items = append(items, item{
			id: id,
			info: domain.BackupInfo{
				ID:        id.String(),
				Path:      filepath.Join(dir, e.Name()),
				Timestamp: ulid.Time(id.Time()).UTC(),
				Size:      size,
			},
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].id.Compare(items[j].id) < 0 })

	infos := make([]domain.BackupInfo, len(items))
	for i, it := range items {
		infos[i] = it.info
	}
	return infos, nil
}

// LatestBackup returns the newest backup of a project.
func LatestBackup(baseDir string) (domain.BackupInfo, error) {
	infos, err := ListBackups(baseDir)
	if err != nil {
		return domain.BackupInfo{}, err
	}
	if len(infos) == 0 {
		return domain.BackupInfo{}, domain.ErrBackupNotFound.WithDetails(baseDir)
	}
	return infos[len(infos)-1], nil
}

// FindBackup returns the backup of a project with the given ID.
func FindBackup(baseDir, id string) (domain.BackupInfo, error) {
	want, err := ulid.ParseStrict(strings.TrimSpace(id))
	if err != nil {
		return domain.BackupInfo{}, domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("backup id %q", id))
	}
	infos, err := ListBackups(baseDir)
	if err != nil {
		return domain.BackupInfo{}, err
	}
	for _, info := range infos {
		if info.ID == want.String() {
			return info, nil
		}
	}
	return domain.BackupInfo{}, domain.ErrBackupNotFound.WithDetails(want.String())
}

// RemoveBackups deletes the autosave directory of a project. A missing
// directory is not an error. A running Service must use ClearBackups.
func RemoveBackups(baseDir string) error {
	if err := os.RemoveAll(Dir(baseDir)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return domain.ErrSnapshotWrite.WithDetails("clear backups").Wrap(err)
	}
	return nil
}

// LoadBackup decodes a backup file into v.
func LoadBackup(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ErrBackupNotFound.WithDetails(path)
		}
		return fmt.Errorf("autosave: read backup: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("autosave: decode backup %s: %w", filepath.Base(path), err)
	}
	return nil
}

// rotate removes all but the newest keep backups. It returns what is left.
func rotate(dir string, keep int) ([]domain.BackupInfo, error) {
	infos, err := listDir(dir)
	if err != nil {
		return nil, domain.ErrRotation.Wrap(err)
	}
	if len(infos) <= keep {
		return infos, nil
	}

	cut := len(infos) - keep
	var errs []error
	for _, info := range infos[:cut] {
		if err := os.Remove(info.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return infos[cut:], domain.ErrRotation.Wrap(errors.Join(errs...))
	}
	return infos[cut:], nil
}

// encodeState turns provider output into backup bytes. Raw JSON is written
// as-is after validation; everything else goes through encoding/json.
func encodeState(state any) ([]byte, error) {
	switch v := state.(type) {
	case nil:
		return nil, errors.New("provider returned nil state")
	case json.RawMessage:
		if !json.Valid(v) {
			return nil, errors.New("provider returned invalid JSON")
		}
		return v, nil
	case []byte:
		if !json.Valid(v) {
			return nil, errors.New("provider returned invalid JSON")
		}
		return v, nil
	default:
		return json.MarshalIndent(v, "", "  ")
	}
}
