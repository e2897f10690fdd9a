package domain

import "time"

// SnapshotEvent is emitted after a backup has been durably written and the
// rotation for that tick has run.
type SnapshotEvent struct {
	ID          string    `json:"id" yaml:"id"`
	Path        string    `json:"path" yaml:"path"`
	ProjectPath string    `json:"project_path" yaml:"project_path"`
	BaseDir     string    `json:"base_dir" yaml:"base_dir"`
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`
	Size        int64     `json:"size" yaml:"size"`
	IsTemp      bool      `json:"is_temp" yaml:"is_temp"`
}

// RecoveryRecord converts the event into the record a host registers with
// the recovery ledger.
func (e SnapshotEvent) RecoveryRecord() RecoveryRecord {
	return RecoveryRecord{
		BackupPath:  e.Path,
		ProjectPath: e.ProjectPath,
		Timestamp:   NormalizeTime(e.Timestamp),
		IsTemp:      e.IsTemp,
	}
}

// BackupInfo describes one backup file found under the autosave directory.
type BackupInfo struct {
	ID        string    `json:"id" yaml:"id"`
	Path      string    `json:"path" yaml:"path" table:"wide"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Size      int64     `json:"size" yaml:"size"`
}
