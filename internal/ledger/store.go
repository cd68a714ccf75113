package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"courier/internal/config"
)

// Store manages task and setting persistence backed by SQLite. It is the only
// component that writes task state; everything else requests transitions
// through its API.
type Store struct {
	db         *sql.DB
	path       string
	storageDir string
}

// Open initializes or connects to the ledger database and verifies the schema.
// When the config requests stateless mode the ledger lives in memory and is
// lost on exit.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := ":memory:"
	if !cfg.Paths.Stateless {
		dbPath = filepath.Join(cfg.Paths.StorageDir, "courier.db")
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if cfg.Paths.Stateless {
		// database/sql opens a fresh in-memory database per connection;
		// a single connection keeps one coherent store.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, storageDir: cfg.Paths.StorageDir}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// EarliestImportDate returns the tracking watermark, inserting "now" on first
// call. Items added at the seed source before this instant are permanently
// ignored. Idempotent after the first call.
func (s *Store) EarliestImportDate(ctx context.Context) (time.Time, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("begin watermark tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`,
		SettingEarliestImportDate,
		now,
	); err != nil {
		return time.Time{}, fmt.Errorf("insert watermark: %w", err)
	}

	var raw string
	if err := tx.QueryRowContext(
		ctx,
		`SELECT value FROM settings WHERE key = ?`,
		SettingEarliestImportDate,
	).Scan(&raw); err != nil {
		return time.Time{}, fmt.Errorf("read watermark: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return time.Time{}, fmt.Errorf("commit watermark: %w", err)
	}

	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse watermark %q: %w", raw, err)
	}
	return parsed, nil
}

// UpdateTaskInfo upserts the given tasks. For existing rows the name, status,
// and content path are replaced only when the incoming status is strictly
// greater than the stored one; lower-status updates are rejected silently
// because they represent a stale read racing a newer one.
func (s *Store) UpdateTaskInfo(ctx context.Context, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO tasks (hash, name, status, content_path)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(hash) DO UPDATE SET
            name = excluded.name,
            status = excluded.status,
            content_path = excluded.content_path
        WHERE excluded.status > tasks.status`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, task := range tasks {
		if task.Hash == "" {
			return errors.New("task hash is required")
		}
		if _, err := stmt.ExecContext(ctx, task.Hash, task.Name, statusOrdinal(task.Status), task.ContentPath); err != nil {
			return fmt.Errorf("upsert task %s: %w", task.Hash, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit task updates: %w", err)
	}
	return nil
}

// GetTask fetches a task by hash. Returns nil when the hash is unknown.
func (s *Store) GetTask(ctx context.Context, hash string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT hash, name, status, content_path FROM tasks WHERE hash = ?`, hash)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// TasksWithStatus returns a snapshot of tasks currently in the given state.
func (s *Store) TasksWithStatus(ctx context.Context, status Status) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT hash, name, status, content_path FROM tasks WHERE status = ?`, statusOrdinal(status))
	if err != nil {
		return nil, fmt.Errorf("query tasks by status: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// Stats returns a count of tasks grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("ledger stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var ordinal, count int
		if err := rows.Scan(&ordinal, &count); err != nil {
			return nil, err
		}
		status, err := statusFromOrdinal(ordinal)
		if err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// ArtifactPath returns the relay-side directory for a hash. Pure function of
// the storage root and the hash, no I/O.
func (s *Store) ArtifactPath(hash string) string {
	return filepath.Join(s.storageDir, hash)
}

// PrepareArtifactStorage ensures the relay-side directory for hash exists.
// Idempotent.
func (s *Store) PrepareArtifactStorage(hash string) error {
	if err := os.MkdirAll(s.ArtifactPath(hash), 0o755); err != nil {
		return fmt.Errorf("prepare artifact storage for %s: %w", hash, err)
	}
	return nil
}

// MarkArtifactReady transitions a task from StatusTorrentReady to
// StatusArtifactReady. A task in any other state is left untouched; callers
// have already filtered by status, so a miss only means a concurrent update
// got there first.
func (s *Store) MarkArtifactReady(ctx context.Context, hash string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks SET status = ? WHERE hash = ? AND status = ?`,
		statusOrdinal(StatusArtifactReady),
		hash,
		statusOrdinal(StatusTorrentReady),
	)
	if err != nil {
		return fmt.Errorf("mark artifact ready %s: %w", hash, err)
	}
	return nil
}

// ReadyArtifacts lists the consumer-visible projection of every task in
// StatusArtifactReady.
func (s *Store) ReadyArtifacts(ctx context.Context) ([]ArtifactInfo, error) {
	tasks, err := s.TasksWithStatus(ctx, StatusArtifactReady)
	if err != nil {
		return nil, err
	}
	artifacts := make([]ArtifactInfo, 0, len(tasks))
	for _, task := range tasks {
		artifacts = append(artifacts, ArtifactInfo{
			Hash: task.Hash,
			Name: task.Name,
			Path: s.ArtifactPath(task.Hash),
		})
	}
	return artifacts, nil
}

// FinalizeArtifact transitions a task from StatusArtifactReady to
// StatusArchived and reclaims its relay storage. The status commit happens
// strictly before the directory removal: a crash in between leaves an
// orphaned directory, never an ArtifactReady row pointing at deleted storage.
//
// Returns ErrTaskNotFound when no artifact exists for hash and
// ErrAlreadyArchived when the task already completed its lifecycle.
func (s *Store) FinalizeArtifact(ctx context.Context, hash string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks SET status = ? WHERE hash = ? AND status = ?`,
		statusOrdinal(StatusArchived),
		hash,
		statusOrdinal(StatusArtifactReady),
	)
	if err != nil {
		return fmt.Errorf("finalize artifact %s: %w", hash, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		task, err := s.GetTask(ctx, hash)
		if err != nil {
			return err
		}
		if task == nil {
			return ErrTaskNotFound
		}
		if task.Status.Terminal() {
			return ErrAlreadyArchived
		}
		// Not yet staged at the relay; nothing visible to confirm.
		return ErrTaskNotFound
	}

	if err := os.RemoveAll(s.ArtifactPath(hash)); err != nil {
		return fmt.Errorf("reclaim artifact storage %s: %w", hash, err)
	}
	return nil
}

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		hash        string
		name        string
		ordinal     int
		contentPath string
	)
	if err := scanner.Scan(&hash, &name, &ordinal, &contentPath); err != nil {
		return nil, err
	}
	status, err := statusFromOrdinal(ordinal)
	if err != nil {
		return nil, err
	}
	return &Task{Hash: hash, Name: name, Status: status, ContentPath: contentPath}, nil
}
