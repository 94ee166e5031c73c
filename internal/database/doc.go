// Package database provides SQLite-based storage of mirror run history.
//
// The HistoryDB stores:
//   - One record per run with its summary and the full run as JSON
//   - The latest known state of every mirrored page, per site
//
// The history is a ledger only. A run never reads it to decide what to
// fetch: every run is a full rebuild.
//
// Design decision: We use SQLite (via modernc.org/sqlite) because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. WAL mode lets "gemirror history" read while a run writes
package database
