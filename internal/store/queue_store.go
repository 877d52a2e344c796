package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"

	"ytqueue/internal/core"
)

// QueueStore persists the live queue so it survives restarts.
type QueueStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenQueueStore opens (or creates) the SQLite database at path and applies migrations.
// Use ":memory:" for a throwaway store.
func OpenQueueStore(dbPath string, logger *zap.Logger) (*QueueStore, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		dsn += "?_journal=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer; a single connection also keeps ":memory:" coherent.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Queue store opened", zap.String("path", dbPath))

	return &QueueStore{db: db, logger: logger}, nil
}

// SaveSnapshot replaces the stored queue with snap in one transaction.
func (s *QueueStore) SaveSnapshot(ctx context.Context, snap core.QueueSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM queue_tracks"); err != nil {
		return fmt.Errorf("failed to clear queue tracks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO queue_tracks (position, track_id, title, artist, duration_secs, thumbnail, kind)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range snap.Tracks {
		if _, err := stmt.ExecContext(ctx, i, t.ID, t.Title, t.Artist, t.DurationSecs, t.Thumbnail, t.Kind.String()); err != nil {
			return fmt.Errorf("failed to insert track %s: %w", t.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO queue_state (id, current_index, infinite_mode, updated_at)
		VALUES (1, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			current_index = excluded.current_index,
			infinite_mode = excluded.infinite_mode,
			updated_at = excluded.updated_at
	`, snap.Index, snap.InfiniteMode)
	if err != nil {
		return fmt.Errorf("failed to save queue state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	s.logger.Debug("Saved queue snapshot",
		zap.Int("tracks", len(snap.Tracks)),
		zap.Int("index", snap.Index))

	return nil
}

// LoadSnapshot returns the stored queue, or an empty snapshot with index -1.
func (s *QueueStore) LoadSnapshot(ctx context.Context) (core.QueueSnapshot, error) {
	snap := core.QueueSnapshot{Tracks: []core.Track{}, Index: -1}

	err := s.db.QueryRowContext(ctx,
		"SELECT current_index, infinite_mode FROM queue_state WHERE id = 1",
	).Scan(&snap.Index, &snap.InfiniteMode)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return snap, fmt.Errorf("failed to load queue state: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT track_id, title, artist, duration_secs, thumbnail, kind
		FROM queue_tracks ORDER BY position
	`)
	if err != nil {
		return snap, fmt.Errorf("failed to load queue tracks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t    core.Track
			kind string
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.Artist, &t.DurationSecs, &t.Thumbnail, &kind); err != nil {
			return snap, fmt.Errorf("failed to scan queue track: %w", err)
		}
		t.Kind = core.ParseClassification(kind)
		snap.Tracks = append(snap.Tracks, t)
	}
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("failed to iterate queue tracks: %w", err)
	}

	if len(snap.Tracks) == 0 {
		snap.Index = -1
	} else if snap.Index >= len(snap.Tracks) {
		snap.Index = len(snap.Tracks) - 1
	}

	return snap, nil
}

// SchemaVersion reports the highest applied migration.
func (s *QueueStore) SchemaVersion() (int, error) {
	return schemaVersion(s.db)
}

// RollbackMigration reverts the latest migration. Rolling back the first one
// drops the saved queue; the next open recreates the schema empty.
func (s *QueueStore) RollbackMigration() (int, error) {
	version, err := rollbackLatest(s.db)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Rolled back queue store migration", zap.Int("version", version))
	return version, nil
}

// Close closes the database.
func (s *QueueStore) Close() error {
	return s.db.Close()
}
