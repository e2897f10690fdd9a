// Package domain defines the core value types for snapkeep.
//
// Domain types are plain values without IO dependencies. This package contains:
//
//   - SnapshotConfig: autosave cadence and rotation policy
//   - RecoveryRecord: durable pointer to a backup that may hold unsaved work
//   - SnapshotEvent / BackupInfo: what the autosave engine produces
//   - Errors: coded error taxonomy shared by the storage components
//
// Both storage components (autosave and recovery) depend on this package and
// on nothing else from each other.
package domain
