package library

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/spf13/afero"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// ErrNotFound is returned when no item exists for an id.
var ErrNotFound = errors.New("library item not found")

// Store persists library items in sqlite and owns deletion of their files.
type Store struct {
	db *sql.DB
	fs afero.Fs
}

// Open opens (creating when needed) the sqlite database at dbPath and applies
// pending migrations. Item files are removed through fsys.
func Open(ctx context.Context, dbPath string, fsys afero.Fs) (*Store, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create library dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open library db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[library] database ready at %s", dbPath)
	return &Store{db: db, fs: fsys}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	migrations, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	for _, r := range results {
		log.Printf("[library] applied migration %s", r.Source.Path)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts the item, replacing any existing record with the same id.
func (s *Store) Create(ctx context.Context, item Item) error {
	if item.ID == uuid.Nil {
		return fmt.Errorf("create item %q: missing id", item.CacheID)
	}
	if item.SortName == "" {
		item.SortName = SortName(item.Name)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (id, cache_id, name, sort_name, path, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			cache_id = excluded.cache_id,
			name = excluded.name,
			sort_name = excluded.sort_name,
			path = excluded.path`,
		item.ID.String(), item.CacheID, item.Name, item.SortName, item.Path, item.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("create item %s: %w", item.ID, err)
	}
	return nil
}

// Get returns the item with the given id or ErrNotFound.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, cache_id, name, sort_name, path, created_at
		FROM items WHERE id = ?`, id.String())
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", id, err)
	}
	return item, nil
}

// Delete removes the item record and, when deleteFile is set, its backing file.
// A file that is already gone is not an error.
func (s *Store) Delete(ctx context.Context, id uuid.UUID, deleteFile bool) error {
	item, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	if deleteFile && item.Path != "" {
		if err := s.fs.Remove(item.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("delete file for item %s: %w", id, err)
		}
	}
	return nil
}

// List returns every item ordered by sort name.
func (s *Store) List(ctx context.Context) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cache_id, name, sort_name, path, created_at
		FROM items ORDER BY sort_name, cache_id`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("list items: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*Item, error) {
	var (
		item Item
		id   string
	)
	if err := row.Scan(&id, &item.CacheID, &item.Name, &item.SortName, &item.Path, &item.CreatedAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse item id %q: %w", id, err)
	}
	item.ID = parsed
	return &item, nil
}
