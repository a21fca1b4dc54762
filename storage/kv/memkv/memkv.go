// Package memkv is an in-process core.Store, used in debug mode and tests.
package memkv

import (
	"context"
	"sync"

	"github.com/nbkrcse/labtrack/core"
)

// Operations, as reported by core.StorageError.Op
const (
	OpGet    = "get"
	OpSet    = "set"
	OpDelete = "delete"
)

type (
	DB struct {
		sync.RWMutex
		table map[string][]byte

		// injected failures by op, then collection ("" matches any collection)
		failures map[string]map[string]error
	}
)

var _ core.BatchStore = (*DB)(nil) // interface compliance check

func Open() *DB {
	return &DB{
		table:    make(map[string][]byte),
		failures: make(map[string]map[string]error),
	}
}

// FailOn makes every `op` on `collection` fail with err until cleared with a nil err.
func (db *DB) FailOn(op, collection string, err error) {
	db.Lock()
	defer db.Unlock()

	if err == nil {
		delete(db.failures[op], collection)
		return
	}
	if db.failures[op] == nil {
		db.failures[op] = make(map[string]error)
	}
	db.failures[op][collection] = err
}

// Reset drops all collections and injected failures.
func (db *DB) Reset() {
	db.Lock()
	defer db.Unlock()

	db.table = make(map[string][]byte)
	db.failures = make(map[string]map[string]error)
}

func (db *DB) failure(op, collection string) error {
	byColl, ok := db.failures[op]
	if !ok {
		return nil
	}
	if err, ok := byColl[collection]; ok {
		return core.NewStorageError(op, collection, err)
	}
	if err, ok := byColl[""]; ok {
		return core.NewStorageError(op, collection, err)
	}
	return nil
}

func (db *DB) Get(_ context.Context, collection string) ([]byte, error) {
	db.RLock()
	defer db.RUnlock()

	if err := db.failure(OpGet, collection); err != nil {
		return nil, err
	}
	data, ok := db.table[collection]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

func (db *DB) Set(_ context.Context, collection string, data []byte) error {
	db.Lock()
	defer db.Unlock()

	if err := db.failure(OpSet, collection); err != nil {
		return err
	}
	db.table[collection] = append([]byte(nil), data...)
	return nil
}

func (db *DB) Delete(_ context.Context, collection string) error {
	db.Lock()
	defer db.Unlock()

	if err := db.failure(OpDelete, collection); err != nil {
		return err
	}
	delete(db.table, collection)
	return nil
}

// SetMany writes all collections or none of them.
func (db *DB) SetMany(_ context.Context, data map[string][]byte) error {
	db.Lock()
	defer db.Unlock()

	for coll := range data {
		if err := db.failure(OpSet, coll); err != nil {
			return err
		}
	}
	for coll, d := range data {
		db.table[coll] = append([]byte(nil), d...)
	}
	return nil
}

// Unbatched hides SetMany so that callers fall back to sequential writes.
func Unbatched(db *DB) core.Store {
	return unbatched{db: db}
}

type unbatched struct {
	db *DB
}

func (u unbatched) Get(ctx context.Context, collection string) ([]byte, error) {
	return u.db.Get(ctx, collection)
}

func (u unbatched) Set(ctx context.Context, collection string, data []byte) error {
	return u.db.Set(ctx, collection, data)
}

func (u unbatched) Delete(ctx context.Context, collection string) error {
	return u.db.Delete(ctx, collection)
}
