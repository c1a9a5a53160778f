package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atomiq/atomiq/core/infra/logging"
)

const (
	jobStateKeyPrefix  = "job:state:"
	jobRecordKeyPrefix = "job:record:"
	jobEventsKeyPrefix = "job:events:"
	recentJobsKey      = "job:recent"
	recentJobsMax      = 1000

	mirrorTimeout = 2 * time.Second
)

// RedisMirror persists registry mutations to Redis so job state and
// history survive a restart and can be inspected by external tooling.
// The in-memory registry stays the source of truth; mirror failures are
// logged and never propagate to the pipeline.
type RedisMirror struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisMirror dials Redis at a redis:// URL.
func NewRedisMirror(url string, ttl time.Duration) (*RedisMirror, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisMirror{client: client, ttl: ttl}, nil
}

// Close closes the underlying Redis client.
func (m *RedisMirror) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Close()
}

// RecordUpdated implements Mirror.
func (m *RedisMirror) RecordUpdated(rec Record, logged *LogEntry) {
	if m == nil || m.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()

	payload, err := json.Marshal(rec)
	if err != nil {
		logging.Error("jobmirror", "marshal record", "job", rec.ID, "error", err)
		return
	}
	now := rec.UpdatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	pipe := m.client.TxPipeline()
	pipe.Set(ctx, jobRecordKey(rec.ID), payload, m.ttl)
	pipe.Set(ctx, jobStateKey(rec.ID), string(rec.Status), m.ttl)
	if logged != nil {
		if data, err := json.Marshal(logged); err == nil {
			pipe.RPush(ctx, jobEventsKey(rec.ID), data)
			if m.ttl > 0 {
				pipe.Expire(ctx, jobEventsKey(rec.ID), m.ttl)
			}
		}
	}
	pipe.ZAdd(ctx, recentJobsKey, redis.Z{Score: float64(now.UnixMilli()), Member: rec.ID})
	pipe.ZRemRangeByRank(ctx, recentJobsKey, 0, -recentJobsMax-1)
	if _, err := pipe.Exec(ctx); err != nil {
		logging.Error("jobmirror", "mirror update failed", "job", rec.ID, "error", err)
	}
}

// LoadRecord fetches a mirrored record, e.g. after a restart.
func (m *RedisMirror) LoadRecord(ctx context.Context, id string) (Record, error) {
	if m == nil || m.client == nil {
		return Record{}, fmt.Errorf("mirror unavailable")
	}
	data, err := m.client.Get(ctx, jobRecordKey(id)).Bytes()
	if err == redis.Nil {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode mirrored record: %w", err)
	}
	return rec, nil
}

// ListRecent returns the ids of the most recently updated jobs, newest
// first.
func (m *RedisMirror) ListRecent(ctx context.Context, limit int64) ([]string, error) {
	if m == nil || m.client == nil {
		return nil, fmt.Errorf("mirror unavailable")
	}
	if limit <= 0 {
		limit = 50
	}
	return m.client.ZRevRange(ctx, recentJobsKey, 0, limit-1).Result()
}

func jobStateKey(id string) string  { return jobStateKeyPrefix + id }
func jobRecordKey(id string) string { return jobRecordKeyPrefix + id }
func jobEventsKey(id string) string { return jobEventsKeyPrefix + id }
