// Package db wraps pgxpool with the board/release persistence queries
// this engine needs, adapted in place from common/db:
// identical pool setup (size bounds, idle/lifetime timeouts,
// startup ping) plus the handful of queries that back flow/board.Store's
// version/current index, which common/db
// never needed since it has no board-version concept.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lyzr/flowengine/internal/config"
	"github.com/lyzr/flowengine/internal/logger"
)

// DB wraps a pgxpool.Pool with the connection lifecycle
// common/db.New established (bounded pool, startup ping, graceful
// Close), reused here for the board-version and current-draft index
// tables.
type DB struct {
	*pgxpool.Pool
	log *logger.Logger
}

// New opens a connection pool against cfg.Database and verifies it with
// a bounded ping before returning, exactly as common/db.New does.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("db: parse database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxLifetime
	poolCfg.MaxConnIdleTime = cfg.Database.MaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("db: create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}

	log.Info("database connected", "host", cfg.Database.Host, "db", cfg.Database.Database)
	return &DB{Pool: pool, log: log}, nil
}

func (db *DB) Close() {
	db.log.Info("closing database connection pool")
	db.Pool.Close()
}

func (db *DB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return db.Pool.Ping(ctx)
}

// PutVersionIndex records that boardID now has version v stored under
// blobRef, backing flow/board.Store's ListVersions/GetSnapshot split
// between "where is the blob" (external/store) and "which versions
// exist" (here).
func (db *DB) PutVersionIndex(ctx context.Context, boardID string, major, minor, patch uint32, blobRef string) error {
	_, err := db.Exec(ctx, `
		INSERT INTO board_versions (board_id, major, minor, patch, blob_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (board_id, major, minor, patch) DO UPDATE SET blob_ref = EXCLUDED.blob_ref`,
		boardID, major, minor, patch, blobRef)
	if err != nil {
		return fmt.Errorf("db: put version index: %w", err)
	}
	return nil
}

// ListVersionIndex returns every recorded version for boardID, ordered
// oldest to newest.
func (db *DB) ListVersionIndex(ctx context.Context, boardID string) ([]VersionRow, error) {
	rows, err := db.Query(ctx, `
		SELECT major, minor, patch, blob_ref FROM board_versions
		WHERE board_id = $1 ORDER BY major, minor, patch`, boardID)
	if err != nil {
		return nil, fmt.Errorf("db: list version index: %w", err)
	}
	defer rows.Close()

	var out []VersionRow
	for rows.Next() {
		var v VersionRow
		if err := rows.Scan(&v.Major, &v.Minor, &v.Patch, &v.BlobRef); err != nil {
			return nil, fmt.Errorf("db: scan version row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// VersionRow is one row of the board_versions index.
type VersionRow struct {
	Major, Minor, Patch uint32
	BlobRef             string
}

// PutCurrentIndex records boardID's mutable draft as pointing at
// blobRef, the other half of flow/board.Store's PutCurrent.
func (db *DB) PutCurrentIndex(ctx context.Context, boardID, blobRef string) error {
	_, err := db.Exec(ctx, `
		INSERT INTO board_current (board_id, blob_ref, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (board_id) DO UPDATE SET blob_ref = EXCLUDED.blob_ref, updated_at = now()`,
		boardID, blobRef)
	if err != nil {
		return fmt.Errorf("db: put current index: %w", err)
	}
	return nil
}

// GetCurrentIndex returns the blob ref currently backing boardID's
// mutable draft.
func (db *DB) GetCurrentIndex(ctx context.Context, boardID string) (string, error) {
	var ref string
	err := db.QueryRow(ctx, `SELECT blob_ref FROM board_current WHERE board_id = $1`, boardID).Scan(&ref)
	if err != nil {
		return "", fmt.Errorf("db: get current index: %w", err)
	}
	return ref, nil
}

// DeleteBoardIndex removes every version and current-draft row for
// boardID; the blobs themselves are reclaimed by external/store
// separately (they may outlive the index for audit purposes).
func (db *DB) DeleteBoardIndex(ctx context.Context, boardID string) error {
	if _, err := db.Exec(ctx, `DELETE FROM board_versions WHERE board_id = $1`, boardID); err != nil {
		return fmt.Errorf("db: delete version index: %w", err)
	}
	if _, err := db.Exec(ctx, `DELETE FROM board_current WHERE board_id = $1`, boardID); err != nil {
		return fmt.Errorf("db: delete current index: %w", err)
	}
	return nil
}
