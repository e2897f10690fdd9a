// Package autosave provides the periodic snapshot engine.
//
// A Service owns one timer. Each tick asks the caller's StateProvider for the
// current project state, writes it under <base_dir>/.autosave and rotates the
// directory down to the configured number of backups:
//
//	<base_dir>/.autosave/backup_<ULID>.json
//
// ULIDs are timestamp-major and monotonic within a process, so lexical order
// of the file names is creation order.
//
// Write protocol (one tick):
//
//  1. Serialize state to JSON
//  2. Write a temp file in the same directory, fsync, close
//  3. Rename to the final name, fsync the directory
//  4. List, sort, remove everything but the newest MaxBackups
//  5. Emit a SnapshotEvent
//
// A crash at any step leaves previous backups untouched and the new one
// either complete under its final name or absent. Leftover temp files are
// removed by the next write.
//
// Failures never stop the timer. They are reported once through the error
// reporter and the next tick retries from scratch.
package autosave
