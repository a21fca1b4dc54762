// Package repos implements the domain repositories over a core.Store.
// Every collection is read and written whole, encoded as JSON.
package repos

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/nbkrcse/labtrack/core"
)

// DB is shared by the repositories of one process.
type DB struct {
	store core.Store

	// serializes read-modify-write cycles across all collections
	mu sync.Mutex
}

func NewDB(store core.Store) *DB {
	return &DB{store: store}
}

// Store returns the underlying store.
func (db *DB) Store() core.Store {
	return db.store
}

// load decodes the collection into dst, a pointer to a slice. Missing collections leave dst untouched.
func (db *DB) load(ctx context.Context, collection string, dst interface{}) error {
	data, err := db.store.Get(ctx, collection)
	if err != nil {
		return asStorageError("get", collection, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return core.NewStorageError("decode", collection, err)
	}
	return nil
}

func encode(collection string, src interface{}) ([]byte, error) {
	data, err := json.Marshal(src)
	if err != nil {
		return nil, core.NewStorageError("encode", collection, err)
	}
	return data, nil
}

func (db *DB) save(ctx context.Context, collection string, src interface{}) error {
	data, err := encode(collection, src)
	if err != nil {
		return err
	}
	if err := db.store.Set(ctx, collection, data); err != nil {
		return asStorageError("set", collection, err)
	}
	return nil
}

// saveMany writes the encoded collections in one batch when the store supports it,
// else one after the other in the given order.
func (db *DB) saveMany(ctx context.Context, order []string, data map[string][]byte) error {
	if bs, ok := db.store.(core.BatchStore); ok {
		if err := bs.SetMany(ctx, data); err != nil {
			return asStorageError("set", "", err)
		}
		return nil
	}
	for _, coll := range order {
		if err := db.store.Set(ctx, coll, data[coll]); err != nil {
			return asStorageError("set", coll, err)
		}
	}
	return nil
}

func asStorageError(op, collection string, err error) error {
	if core.IsStorage(err) {
		return err
	}
	return core.NewStorageError(op, collection, err)
}
