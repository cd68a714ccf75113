// Package ledger persists the task lifecycle in SQLite.
//
// The ledger is the single source of truth for tracked items. Statuses form a
// strictly ordered lifecycle (tracked → torrent_ready → artifact_ready →
// archived) and every write is guarded so a status never moves backwards,
// which makes discovery updates commutative: whatever order they arrive in,
// the highest status wins.
package ledger
