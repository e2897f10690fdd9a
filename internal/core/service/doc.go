// Package service wires autosave and crash recovery into one editing session.
//
// The autosave engine and the recovery ledger do not know about each other.
// Guard sits between them: every snapshot the engine reports becomes the
// session's single recovery record, and a clean close removes both the
// backups and the record. Anything left behind after an unclean exit is
// what PendingRecoveries returns on the next start.
package service
