// Package store provides local persistence for the playground client using SQLite.
//
// # Data
//
//   - Preferences: key-value settings such as the selected endpoint
//     (PrefEndpoint) and the last selected target (PrefTarget)
//   - Run log: one RunRecord per submitted run with its outcome
//   - Session state: the latest workflow session-state snapshot per
//     (workflow, session), written after each workflow run and by the refresher
//
// Conversation messages and the session list are not stored here; the
// backend owns them.
//
// # Implementations
//
// SQLiteStore uses modernc.org/sqlite (pure Go, no cgo) in WAL mode and
// creates its schema on open. MockStore is an in-memory implementation for
// tests.
package store
