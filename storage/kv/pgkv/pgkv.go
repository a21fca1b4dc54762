// Package pgkv stores collections as jsonb rows of the `collections` table.
package pgkv

import (
	"context"
	"database/sql"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/nbkrcse/labtrack/core"
)

const (
	getQuery    = `SELECT data FROM collections WHERE name = $1`
	deleteQuery = `DELETE FROM collections WHERE name = $1`
	upsertQuery = `
INSERT INTO collections (name, data, updated_at) VALUES ($1, CAST($2 AS jsonb), now())
ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`
)

type Store struct {
	db *sqlx.DB
}

var _ core.BatchStore = (*Store)(nil) // interface compliance check

func New(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

func (s *Store) Get(ctx context.Context, collection string) ([]byte, error) {
	var data []byte
	if err := s.db.GetContext(ctx, &data, getQuery, collection); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, core.NewStorageError("get", collection, err)
	}
	return data, nil
}

func (s *Store) Set(ctx context.Context, collection string, data []byte) error {
	if _, err := s.db.ExecContext(ctx, upsertQuery, collection, string(data)); err != nil {
		return core.NewStorageError("set", collection, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection string) error {
	if _, err := s.db.ExecContext(ctx, deleteQuery, collection); err != nil {
		return core.NewStorageError("delete", collection, err)
	}
	return nil
}

// SetMany writes all collections in one transaction.
func (s *Store) SetMany(ctx context.Context, data map[string][]byte) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return core.NewStorageError("set", "", errors.Wrap(err, "beginning transaction"))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// stable lock order
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err = tx.ExecContext(ctx, upsertQuery, name, string(data[name])); err != nil {
			return core.NewStorageError("set", name, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return core.NewStorageError("set", "", errors.Wrap(err, "committing transaction"))
	}
	return nil
}
