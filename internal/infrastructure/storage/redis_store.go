package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/go-redis/redis/v8"

	"HeadlineRadar/internal/domain"
	"HeadlineRadar/internal/ports"
)

const redisMergeAttempts = 3

// RedisStore keeps one JSON value per identity with a retention TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ ports.HistoryStore = (*RedisStore)(nil)

// NewRedisClient builds a client and pings it. An unreachable server is only
// logged: lookups then fail and the detector marks items new.
func NewRedisClient(ctx context.Context, addr, password string, db int, logger *slog.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
	})
	if err := client.Ping(ctx).Err(); err != nil && logger != nil {
		logger.Warn("redis unreachable, history degraded until it recovers", "addr", addr, "error", err)
	}
	return client
}

// NewRedisStore namespaces keys under prefix; ttl zero means no expiry.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "headlineradar:history"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// Lookup reads one record. An undecodable value reads as missing and is
// replaced on the next merge.
func (s *RedisStore) Lookup(ctx context.Context, id domain.Identity) (domain.HistoryRecord, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.HistoryRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("get history: %w", err)
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		return domain.HistoryRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

// Merge applies every delta in one optimistic WATCH/MULTI transaction, so a
// failed merge writes nothing and can be retried as a whole.
func (s *RedisStore) Merge(ctx context.Context, deltas []domain.HistoryRecord) error {
	deltas = coalesce(deltas)
	if len(deltas) == 0 {
		return nil
	}
	keys := make([]string, len(deltas))
	for i, d := range deltas {
		keys[i] = s.key(d.Identity)
	}

	txf := func(tx *redis.Tx) error {
		values, err := tx.MGet(ctx, keys...).Result()
		if err != nil {
			return fmt.Errorf("read history: %w", err)
		}

		payloads := make([][]byte, len(deltas))
		for i, d := range deltas {
			if payloads[i], err = mergeStored(values[i], d); err != nil {
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, key := range keys {
				pipe.Set(ctx, key, payloads[i], s.ttl)
			}
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < redisMergeAttempts; attempt++ {
		err = s.client.Watch(ctx, txf, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("merge %d records: %w", len(deltas), err)
	}
	return nil
}

// mergeStored folds delta into the stored value as returned by MGET. A
// missing or undecodable value counts as an empty record.
func mergeStored(stored any, delta domain.HistoryRecord) ([]byte, error) {
	var current domain.HistoryRecord
	if raw, ok := stored.(string); ok {
		if rec, err := decodeRecord([]byte(raw)); err == nil {
			current = rec
		}
	}
	payload, err := json.Marshal(current.Merge(delta))
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return payload, nil
}

func (s *RedisStore) key(id domain.Identity) string {
	return s.prefix + ":" + id.Key()
}

func decodeRecord(raw []byte) (domain.HistoryRecord, error) {
	var rec domain.HistoryRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}
