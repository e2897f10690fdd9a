package domain

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// TempProjectPrefix prefixes placeholder paths of never-saved projects.
const TempProjectPrefix = "untitled-"

// RecoveryRecord is a durable pointer to a backup that may hold unsaved work.
//
// The record identity is ID, the base name of the manifest file that stores
// it. ID is assigned by the ledger and is never part of the manifest body.
type RecoveryRecord struct {
	ID          string    `json:"id" yaml:"id"`
	BackupPath  string    `json:"backup_path" yaml:"backup_path"`
	ProjectPath string    `json:"project_path" yaml:"project_path"`
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`
	IsTemp      bool      `json:"is_temp" yaml:"is_temp"`
}

// NewRecoveryRecord creates a record stamped with the current time.
func NewRecoveryRecord(backupPath, projectPath string, isTemp bool) RecoveryRecord {
	return RecoveryRecord{
		BackupPath:  backupPath,
		ProjectPath: projectPath,
		Timestamp:   NormalizeTime(time.Now()),
		IsTemp:      isTemp,
	}
}

// Equal reports whether both records describe the same recovery point.
// Timestamps are compared by instant, not by location or monotonic reading.
func (r RecoveryRecord) Equal(o RecoveryRecord) bool {
	return r.ID == o.ID &&
		r.BackupPath == o.BackupPath &&
		r.ProjectPath == o.ProjectPath &&
		r.IsTemp == o.IsTemp &&
		r.Timestamp.Equal(o.Timestamp)
}

// SameContent is Equal without the ID.
func (r RecoveryRecord) SameContent(o RecoveryRecord) bool {
	o.ID = r.ID
	return r.Equal(o)
}

// Age returns how long ago the record was created.
func (r RecoveryRecord) Age(now time.Time) time.Duration {
	return now.Sub(r.Timestamp)
}

// RecoverySummary counts the currently listed recovery records.
type RecoverySummary struct {
	TotalCount     int `json:"total_count" yaml:"total_count"`
	TempCount      int `json:"temp_count" yaml:"temp_count"`
	PermanentCount int `json:"permanent_count" yaml:"permanent_count"`
}

// SummarizeRecords builds a summary from one listing.
func SummarizeRecords(records []RecoveryRecord) RecoverySummary {
	s := RecoverySummary{TotalCount: len(records)}
	for _, r := range records {
		if r.IsTemp {
			s.TempCount++
		}
	}
	s.PermanentCount = s.TotalCount - s.TempCount
	return s
}

// TempProjectPath returns a placeholder project path for a project that has
// never been saved. The file does not exist; it only keys the recovery record.
func TempProjectPath(baseDir string) string {
	return filepath.Join(baseDir, TempProjectPrefix+uuid.NewString()+".json")
}

// NormalizeTime drops the monotonic reading and location so that a value
// survives a JSON round trip unchanged.
func NormalizeTime(t time.Time) time.Time {
	return t.Round(0).UTC()
}
