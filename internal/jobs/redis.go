package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces registry keys in a shared Redis database.
const keyPrefix = "fitplan:job:"

// RedisRegistry stores JSON-encoded job snapshots in Redis so several
// server processes can answer status queries for the same job. Cleanup
// maps to key expiry.
type RedisRegistry[T any] struct {
	rdb  *redis.Client
	kind string
}

// NewRedisClient parses url and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// NewRedisRegistry creates a registry for one job kind.
func NewRedisRegistry[T any](rdb *redis.Client, kind string) *RedisRegistry[T] {
	return &RedisRegistry[T]{rdb: rdb, kind: kind}
}

func (r *RedisRegistry[T]) key(id string) string {
	return keyPrefix + r.kind + ":" + id
}

// Create registers a job with SETNX.
func (r *RedisRegistry[T]) Create(ctx context.Context, id string, initial T) error {
	data, err := json.Marshal(initial)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	ok, err := r.rdb.SetNX(ctx, r.key(id), data, 0).Result()
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	if !ok {
		return ErrDuplicateJob
	}
	return nil
}

// maxUpdateAttempts bounds optimistic retries when writers race on one key.
const maxUpdateAttempts = 5

// Update reads, mutates and writes back the job inside a WATCH
// transaction, keeping any pending expiry. A concurrent write to the same
// key reruns mutate on the fresh snapshot.
func (r *RedisRegistry[T]) Update(ctx context.Context, id string, mutate func(*T)) (T, bool) {
	key := r.key(id)
	var job T

	update := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			return err
		}
		var cur T
		if err := json.Unmarshal(data, &cur); err != nil {
			return fmt.Errorf("decode job: %w", err)
		}
		mutate(&cur)

		out, err := json.Marshal(cur)
		if err != nil {
			return fmt.Errorf("encode job: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, redis.KeepTTL)
			return nil
		})
		if err == nil {
			job = cur
		}
		return err
	}

	for range maxUpdateAttempts {
		err := r.rdb.Watch(ctx, update, key)
		switch {
		case err == nil:
			return job, true
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, redis.Nil):
			slog.Warn("update for unknown job dropped", "kind", r.kind, "job_id", id)
			return job, false
		default:
			slog.Error("failed to update job", "kind", r.kind, "job_id", id, "error", err)
			return job, false
		}
	}

	slog.Error("job update kept conflicting", "kind", r.kind, "job_id", id, "attempts", maxUpdateAttempts)
	return job, false
}

// Get returns the stored snapshot.
func (r *RedisRegistry[T]) Get(ctx context.Context, id string) (T, bool) {
	var job T
	data, err := r.rdb.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Error("failed to read job", "kind", r.kind, "job_id", id, "error", err)
		}
		return job, false
	}
	if err := json.Unmarshal(data, &job); err != nil {
		slog.Error("failed to decode job", "kind", r.kind, "job_id", id, "error", err)
		return job, false
	}
	return job, true
}

// Delete removes the job immediately.
func (r *RedisRegistry[T]) Delete(ctx context.Context, id string) {
	if err := r.rdb.Del(ctx, r.key(id)).Err(); err != nil {
		slog.Warn("failed to delete job", "kind", r.kind, "job_id", id, "error", err)
	}
}

// ScheduleCleanup sets the key to expire after delay.
func (r *RedisRegistry[T]) ScheduleCleanup(ctx context.Context, id string, delay time.Duration) {
	if err := r.rdb.Expire(ctx, r.key(id), delay).Err(); err != nil {
		slog.Warn("failed to schedule job expiry", "kind", r.kind, "job_id", id, "error", err)
	}
}
