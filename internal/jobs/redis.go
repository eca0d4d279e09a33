package jobs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis-backed queue.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Key is the list holding waiting track IDs. Companion keys use it as a prefix.
	Key string
}

// Redis queues track IDs in a list so workers on several hosts can share
// one backlog. A set mirrors the list for idempotent enqueue and a sorted set
// scored by expiry tracks worker presence.
type Redis struct {
	client     *redis.Client
	listKey    string
	membersKey string
	workersKey string
	now        func() time.Time
}

// OpenRedis connects to Redis and verifies the connection with PING.
func OpenRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	return newRedis(client, opts.Key), nil
}

func newRedis(client *redis.Client, key string) *Redis {
	if key == "" {
		key = "trackline:jobs"
	}
	return &Redis{
		client:     client,
		listKey:    key,
		membersKey: key + ":members",
		workersKey: key + ":workers",
		now:        time.Now,
	}
}

func (q *Redis) Enqueue(ctx context.Context, trackID int64) error {
	member := strconv.FormatInt(trackID, 10)
	added, err := q.client.SAdd(ctx, q.membersKey, member).Result()
	if err != nil {
		return fmt.Errorf("enqueue track %d: %w", trackID, err)
	}
	if added == 0 {
		return nil
	}
	if err := q.client.LPush(ctx, q.listKey, member).Err(); err != nil {
		_ = q.client.SRem(ctx, q.membersKey, member).Err()
		return fmt.Errorf("enqueue track %d: %w", trackID, err)
	}
	return nil
}

func (q *Redis) Dequeue(ctx context.Context, wait time.Duration) (int64, bool, error) {
	var member string
	if wait <= 0 {
		value, err := q.client.RPop(ctx, q.listKey).Result()
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, fmt.Errorf("dequeue: %w", err)
		}
		member = value
	} else {
		// BRPOP treats 0 as "block forever", so sub-second waits round up.
		if wait < time.Second {
			wait = time.Second
		}
		values, err := q.client.BRPop(ctx, wait, q.listKey).Result()
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return 0, false, ctx.Err()
			}
			return 0, false, fmt.Errorf("dequeue: %w", err)
		}
		if len(values) != 2 {
			return 0, false, fmt.Errorf("dequeue: unexpected reply %v", values)
		}
		member = values[1]
	}

	_ = q.client.SRem(ctx, q.membersKey, member).Err()
	id, err := strconv.ParseInt(member, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("dequeue: malformed job %q: %w", member, err)
	}
	return id, true, nil
}

func (q *Redis) Depth(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.listKey).Result()
	if err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return int(n), nil
}

func (q *Redis) Beat(ctx context.Context, workerID string, ttl time.Duration) error {
	expires := q.now().Add(ttl).UnixMilli()
	if err := q.client.ZAdd(ctx, q.workersKey, redis.Z{Score: float64(expires), Member: workerID}).Err(); err != nil {
		return fmt.Errorf("worker beat: %w", err)
	}
	return nil
}

func (q *Redis) Workers(ctx context.Context) (int, error) {
	now := strconv.FormatInt(q.now().UnixMilli(), 10)
	if err := q.client.ZRemRangeByScore(ctx, q.workersKey, "-inf", now).Err(); err != nil {
		return 0, fmt.Errorf("prune workers: %w", err)
	}
	n, err := q.client.ZCard(ctx, q.workersKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count workers: %w", err)
	}
	return int(n), nil
}

func (q *Redis) Close() error {
	return q.client.Close()
}
