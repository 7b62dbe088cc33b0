package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/shelfmark/shelfmark/internal/domain"
	"github.com/shelfmark/shelfmark/internal/logger"
)

const dbFileName = "bookmarks.db"

type requirement struct {
	name       string
	definition string
}

var tables = []requirement{
	{
		name: "bookmarks",
		definition: `CREATE TABLE IF NOT EXISTS bookmarks (
    uuid TEXT PRIMARY KEY NOT NULL,
    parent_id TEXT NOT NULL DEFAULT '',
    name TEXT NOT NULL DEFAULT '',
    modified TEXT NOT NULL DEFAULT '',
    kind TEXT NOT NULL DEFAULT '',
    url TEXT NOT NULL DEFAULT '',
    order_idx INTEGER NOT NULL DEFAULT 0,
    image_id TEXT NOT NULL DEFAULT '',
    image TEXT NOT NULL DEFAULT '',
    undo_trash TEXT NOT NULL DEFAULT ''
);`,
	},
	{
		name:       "bookmarks_parent_idx",
		definition: `CREATE INDEX IF NOT EXISTS bookmarks_parent_idx ON bookmarks (parent_id);`,
	},
	{
		name:       "bookmarks_url_idx",
		definition: `CREATE INDEX IF NOT EXISTS bookmarks_url_idx ON bookmarks (url);`,
	},
	{
		name:       "bookmarks_image_idx",
		definition: `CREATE INDEX IF NOT EXISTS bookmarks_image_idx ON bookmarks (image_id);`,
	},
	{
		name:       "bookmarks_parent_kind_idx",
		definition: `CREATE INDEX IF NOT EXISTS bookmarks_parent_kind_idx ON bookmarks (parent_id, kind);`,
	},
	{
		name: "settings",
		definition: `CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY NOT NULL,
    value TEXT NOT NULL DEFAULT ''
);`,
	},
}

const recordColumns = "uuid, parent_id, name, modified, kind, url, order_idx, image_id, image, undo_trash"

// Store is the authoritative bookmark database.
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

// Open opens (creating if needed) the bookmark database under dataDir.
func Open(dataDir string, log logger.Logger) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dataDir, dbFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes statements; each mutating call below
	// still runs in its own transaction.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: log}
	if err := s.ensureTables(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureTables() error {
	for _, table := range tables {
		if _, err := s.db.Exec(table.definition); err != nil {
			return fmt.Errorf("failed to create %s: %w", table.name, err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// AddOrReplace inserts a record. Without override an existing id fails with
// domain.ErrConflict and leaves the store unchanged. No change-log entry is
// written here; journaling is the caller's explicit follow-up.
func (s *Store) AddOrReplace(ctx context.Context, rec domain.Record, override bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if !override {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM bookmarks WHERE uuid = ?", rec.ID).Scan(&exists)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s", domain.ErrConflict, rec.ID)
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("failed to check record: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO bookmarks (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ParentID, rec.Name, rec.Modified, rec.Kind, rec.URL,
		rec.OrderIndex, rec.ImageID, rec.Image, rec.UndoTrash)
	if err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return tx.Commit()
}

// Get returns the record with the given id, or nil if absent.
func (s *Store) Get(ctx context.Context, id string) (*domain.Record, error) {
	return s.queryOne(ctx, "SELECT "+recordColumns+" FROM bookmarks WHERE uuid = ?", id)
}

// GetByURL returns one record with the given url, or nil. When several
// records share a url the row with the smallest rowid wins.
func (s *Store) GetByURL(ctx context.Context, url string) (*domain.Record, error) {
	return s.queryOne(ctx,
		"SELECT "+recordColumns+" FROM bookmarks WHERE url = ? ORDER BY rowid LIMIT 1", url)
}

// GetByImageID returns one record referencing the given image id, or nil.
func (s *Store) GetByImageID(ctx context.Context, imageID string) (*domain.Record, error) {
	return s.queryOne(ctx,
		"SELECT "+recordColumns+" FROM bookmarks WHERE image_id = ? ORDER BY rowid LIMIT 1", imageID)
}

// ChildrenOf returns the direct children of parentID, unordered. Callers
// sort by OrderIndex.
func (s *Store) ChildrenOf(ctx context.Context, parentID string) ([]domain.Record, error) {
	return s.queryMany(ctx,
		"SELECT "+recordColumns+" FROM bookmarks WHERE parent_id = ?", parentID)
}

// FoldersUnder returns the direct folder children of parentID.
func (s *Store) FoldersUnder(ctx context.Context, parentID string) ([]domain.Record, error) {
	return s.queryMany(ctx,
		"SELECT "+recordColumns+" FROM bookmarks WHERE parent_id = ? AND kind = ?",
		parentID, domain.KindFolder)
}

// Delete removes the record with the given id. A missing id is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM bookmarks WHERE uuid = ?", id); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// UpdateImage updates only the image field. A missing id is logged and
// ignored: image updates legitimately race with concurrent deletes.
func (s *Store) UpdateImage(ctx context.Context, id, image string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE bookmarks SET image = ? WHERE uuid = ?", image, id)
	if err != nil {
		return fmt.Errorf("failed to update image: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		s.logger.Warn("image update for unknown record", logger.String("record_id", id))
	}
	return nil
}

// Clear drops every record. Settings survive.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM bookmarks"); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	return nil
}

func (s *Store) queryOne(ctx context.Context, query string, args ...any) (*domain.Record, error) {
	var r domain.Record
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&r.ID, &r.ParentID, &r.Name, &r.Modified, &r.Kind, &r.URL,
		&r.OrderIndex, &r.ImageID, &r.Image, &r.UndoTrash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query record: %w", err)
	}
	return &r, nil
}

func (s *Store) queryMany(ctx context.Context, query string, args ...any) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Record
	for rows.Next() {
		var r domain.Record
		if err := rows.Scan(&r.ID, &r.ParentID, &r.Name, &r.Modified, &r.Kind, &r.URL,
			&r.OrderIndex, &r.ImageID, &r.Image, &r.UndoTrash); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
