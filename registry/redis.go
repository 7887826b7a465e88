package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"reviewbot/types"
)

const redisKeyPrefix = "reviewbot:pending:"

// Redis is a Registry backed by a Redis hash per group, so the sweep
// state survives process restarts. DEL is the atomic claim: of any
// number of racing callers, exactly one sees a removed key.
type Redis struct {
	client *redis.Client
	now    func() time.Time
}

// RedisConfig configures the registry connection.
type RedisConfig struct {
	Addr     string // e.g. localhost:6379
	Password string
	DB       int
}

// NewRedis connects to Redis and verifies connectivity.
func NewRedis(cfg RedisConfig, now func() time.Time) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	if now == nil {
		now = time.Now
	}
	return &Redis{client: client, now: now}, nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

func redisKey(query string) string {
	return redisKeyPrefix + query
}

// Touch implements Registry. HSetNX keeps the original first_seen while
// last_update is always bumped.
func (r *Redis) Touch(ctx context.Context, query string) (types.PendingEntry, error) {
	now := r.now().UTC()
	stamp := now.Format(time.RFC3339Nano)
	key := redisKey(query)

	pipe := r.client.TxPipeline()
	pipe.HSetNX(ctx, key, "first_seen", stamp)
	pipe.HSet(ctx, key, "last_update", stamp)
	if _, err := pipe.Exec(ctx); err != nil {
		return types.PendingEntry{}, fmt.Errorf("touch %q: %w", query, err)
	}

	entry, ok, err := r.Get(ctx, query)
	if err != nil {
		return types.PendingEntry{}, err
	}
	if !ok {
		// Claimed between the write and the read; report what we wrote.
		return types.PendingEntry{SearchQuery: query, FirstSeen: now, LastUpdate: now}, nil
	}
	return entry, nil
}

// Get implements Registry.
func (r *Redis) Get(ctx context.Context, query string) (types.PendingEntry, bool, error) {
	fields, err := r.client.HGetAll(ctx, redisKey(query)).Result()
	if err != nil {
		return types.PendingEntry{}, false, fmt.Errorf("get %q: %w", query, err)
	}
	if len(fields) == 0 {
		return types.PendingEntry{}, false, nil
	}
	return parseEntry(query, fields), true, nil
}

// Claim implements Registry. The DEL return value decides the winner.
func (r *Redis) Claim(ctx context.Context, query string) (types.PendingEntry, bool, error) {
	entry, ok, err := r.Get(ctx, query)
	if err != nil {
		return types.PendingEntry{}, false, err
	}
	if !ok {
		return types.PendingEntry{}, false, nil
	}

	removed, err := r.client.Del(ctx, redisKey(query)).Result()
	if err != nil {
		return types.PendingEntry{}, false, fmt.Errorf("claim %q: %w", query, err)
	}
	return entry, removed == 1, nil
}

// Snapshot implements Registry via SCAN over the key prefix.
func (r *Redis) Snapshot(ctx context.Context) ([]types.PendingEntry, error) {
	var entries []types.PendingEntry

	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		fields, err := r.client.HGetAll(ctx, key).Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		query := strings.TrimPrefix(key, redisKeyPrefix)
		entries = append(entries, parseEntry(query, fields))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("snapshot scan: %w", err)
	}
	return entries, nil
}

// Len implements Registry.
func (r *Redis) Len(ctx context.Context) (int, error) {
	count := 0
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("len scan: %w", err)
	}
	return count, nil
}

func parseEntry(query string, fields map[string]string) types.PendingEntry {
	entry := types.PendingEntry{SearchQuery: query}
	if t, err := time.Parse(time.RFC3339Nano, fields["first_seen"]); err == nil {
		entry.FirstSeen = t
	}
	if t, err := time.Parse(time.RFC3339Nano, fields["last_update"]); err == nil {
		entry.LastUpdate = t
	}
	return entry
}
