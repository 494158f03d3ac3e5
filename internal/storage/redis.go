package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"cohere/internal/domain"
)

// Redis key prefix for record collections; one hash per collection keyed by
// record id, values JSON documents.
const collectionKeyPrefix = "cohere:records:"

// RedisStore is the distributed-deployment implementation: multiple engine
// instances share record state through Redis hashes. Per-key write
// serialization comes from Redis itself processing commands one at a time.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func collectionKey(collection string) string {
	return collectionKeyPrefix + collection
}

func (s *RedisStore) Get(ctx context.Context, collection, id string, opts ReadOptions) (*domain.Record, error) {
	raw, err := s.client.HGet(ctx, collectionKey(collection), id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s/%s: %w", collection, id, err)
	}
	var record domain.Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("decode record %s/%s: %w", collection, id, err)
	}
	if !Visible(&record, opts) {
		return nil, ErrNotFound
	}
	return &record, nil
}

func (s *RedisStore) Put(ctx context.Context, collection string, record *domain.Record) (*domain.Record, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode record %s/%s: %w", collection, record.ID, err)
	}
	if err := s.client.HSet(ctx, collectionKey(collection), record.ID, raw).Err(); err != nil {
		return nil, fmt.Errorf("redis put %s/%s: %w", collection, record.ID, err)
	}
	return record.Clone(), nil
}

func (s *RedisStore) GetAll(ctx context.Context, collection string, opts ReadOptions) ([]*domain.Record, error) {
	entries, err := s.client.HGetAll(ctx, collectionKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis getAll %s: %w", collection, err)
	}
	records := make([]*domain.Record, 0, len(entries))
	for id, raw := range entries {
		var record domain.Record
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("decode record %s/%s: %w", collection, id, err)
		}
		if Visible(&record, opts) {
			records = append(records, &record)
		}
	}
	sortRecords(records)
	return records, nil
}

func (s *RedisStore) Delete(ctx context.Context, collection, id string) error {
	if err := s.client.HDel(ctx, collectionKey(collection), id).Err(); err != nil {
		return fmt.Errorf("redis delete %s/%s: %w", collection, id, err)
	}
	return nil
}
