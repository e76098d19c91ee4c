// Package sqlite provides a SQLite-backed save store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pefman/arcana-duel/internal/store"
	"github.com/pefman/arcana-duel/internal/store/sqlite/migrations"
)

// Store persists saves in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ store.SaveStore = (*Store)(nil)

func toMillis(value time.Time) int64 { return value.UTC().UnixMilli() }

func fromMillis(value int64) time.Time { return time.UnixMilli(value).UTC() }

// Open opens a SQLite save store and applies embedded migrations. The path
// ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Put inserts or replaces a save and stamps UpdatedAt.
func (s *Store) Put(ctx context.Context, sv store.Save) (store.Save, error) {
	if err := ctx.Err(); err != nil {
		return store.Save{}, err
	}
	if err := sv.Validate(); err != nil {
		return store.Save{}, err
	}
	sv.UpdatedAt = s.now().UTC().Truncate(time.Millisecond)
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO saves (kind, id, name, data, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (kind, id) DO UPDATE SET
		   name = excluded.name,
		   data = excluded.data,
		   updated_at = excluded.updated_at`,
		sv.Kind, sv.ID, strings.TrimSpace(sv.Name), string(sv.Data), toMillis(sv.UpdatedAt),
	)
	if err != nil {
		return store.Save{}, fmt.Errorf("put save %s/%s: %w", sv.Kind, sv.ID, err)
	}
	sv.Name = strings.TrimSpace(sv.Name)
	return sv, nil
}

// Get returns one save.
func (s *Store) Get(ctx context.Context, kind, id string) (store.Save, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT kind, id, name, data, updated_at FROM saves WHERE kind = ? AND id = ?`, kind, id)
	sv, err := scanSave(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Save{}, store.ErrNotFound
	}
	if err != nil {
		return store.Save{}, fmt.Errorf("get save %s/%s: %w", kind, id, err)
	}
	return sv, nil
}

// List returns every save of kind, most recently updated first.
func (s *Store) List(ctx context.Context, kind string) ([]store.Save, error) {
	return s.Search(ctx, kind, "")
}

// Search lists saves of kind whose name contains query, case-insensitively.
func (s *Store) Search(ctx context.Context, kind, query string) ([]store.Save, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT kind, id, name, data, updated_at FROM saves
		 WHERE kind = ? AND lower(name) LIKE ? ESCAPE '\'
		 ORDER BY updated_at DESC, id`, kind, pattern)
	if err != nil {
		return nil, fmt.Errorf("list saves %s: %w", kind, err)
	}
	defer rows.Close()

	out := []store.Save{}
	for rows.Next() {
		sv, err := scanSave(rows)
		if err != nil {
			return nil, fmt.Errorf("scan save: %w", err)
		}
		out = append(out, sv)
	}
	return out, rows.Err()
}

// Delete removes a save. Deleting a missing save returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, kind, id string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM saves WHERE kind = ? AND id = ?`, kind, id)
	if err != nil {
		return fmt.Errorf("delete save %s/%s: %w", kind, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete save %s/%s: %w", kind, id, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSave(row scanner) (store.Save, error) {
	var (
		sv      store.Save
		data    string
		updated int64
	)
	if err := row.Scan(&sv.Kind, &sv.ID, &sv.Name, &data, &updated); err != nil {
		return store.Save{}, err
	}
	sv.Data = []byte(data)
	sv.UpdatedAt = fromMillis(updated)
	return sv, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
