// Package rediskv stores each collection under the key "<prefix>:<collection>".
package rediskv

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/nbkrcse/labtrack/core"
)

type Store struct {
	client redis.UniversalClient
	prefix string
}

var _ core.BatchStore = (*Store)(nil) // interface compliance check

// NewClient connects to the configured Redis server and checks the connection.
func NewClient(ctx context.Context, conf core.RedisConfig) (redis.UniversalClient, error) {
	if conf.Addr == "" {
		return nil, errors.New("redis configuration error: Addr must be provided")
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{conf.Addr},
		Password: conf.Password,
		DB:       conf.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "connecting to redis (%s)", conf.Addr)
	}
	return client, nil
}

func New(client redis.UniversalClient, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(collection string) string {
	if s.prefix == "" {
		return collection
	}
	return s.prefix + ":" + collection
}

func (s *Store) Get(ctx context.Context, collection string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(collection)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, core.NewStorageError("get", collection, err)
	}
	return data, nil
}

func (s *Store) Set(ctx context.Context, collection string, data []byte) error {
	if err := s.client.Set(ctx, s.key(collection), data, 0).Err(); err != nil {
		return core.NewStorageError("set", collection, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection string) error {
	if err := s.client.Del(ctx, s.key(collection)).Err(); err != nil {
		return core.NewStorageError("delete", collection, err)
	}
	return nil
}

// SetMany writes all collections in a MULTI/EXEC transaction.
func (s *Store) SetMany(ctx context.Context, data map[string][]byte) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for coll, d := range data {
			pipe.Set(ctx, s.key(coll), d, 0)
		}
		return nil
	})
	if err != nil {
		return core.NewStorageError("set", "", errors.Wrap(err, "redis transaction"))
	}
	return nil
}
