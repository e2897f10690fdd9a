// Package recovery persists crash-recovery records as manifest files.
//
// Each record lives in its own file under <base_dir>/.recovery, named by a
// ULID assigned at save time:
//
//	<base_dir>/.recovery/01J9Z3M6Q0W4V8K2N5R7T1XBCD.json
//
//	{
//	  "version": 1,
//	  "backup_path": "/work/.autosave/backup_01J9Z3M6PY....json",
//	  "project_path": "/work/scene.json",
//	  "timestamp": "2025-03-01T12:00:00.123456789Z",
//	  "is_temp": false
//	}
//
// Manifests are written through a temp file and rename, so a scan never sees
// a half-written record. A manifest that cannot be decoded, or that carries
// an unknown version, is skipped and reported; it never aborts a scan.
package recovery
