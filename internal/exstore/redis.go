package exstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abhisek/lingua/internal/clock"
	"github.com/abhisek/lingua/internal/exercise"
)

// Redis is an exercise.Store backed by Redis. Each exercise is a JSON value
// whose key TTL matches its expiry; a per-owner sorted set scored by
// creation time serves ListRecent.
type Redis struct {
	client *redis.Client
	ttls   TTLs
	clock  clock.Clock
	prefix string
}

// NewRedis creates a Redis-backed store. Keys are namespaced by prefix.
func NewRedis(client *redis.Client, prefix string, ttls TTLs, clk clock.Clock) *Redis {
	if prefix == "" {
		prefix = "lingua"
	}
	if ttls == nil {
		ttls = DefaultTTLs()
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Redis{client: client, ttls: ttls, clock: clk, prefix: prefix}
}

func (r *Redis) exerciseKey(id string) string {
	return fmt.Sprintf("%s:exercise:%s", r.prefix, id)
}

func (r *Redis) ownerKey(owner string) string {
	return fmt.Sprintf("%s:owner:%s:exercises", r.prefix, owner)
}

func (r *Redis) Put(ctx context.Context, ex *exercise.Exercise) (string, error) {
	now := r.clock.Now()
	stamp(ex, now, r.ttls)

	data, err := json.Marshal(ex)
	if err != nil {
		return "", fmt.Errorf("marshal exercise: %w", err)
	}

	ttl := ex.ExpiresAt.Sub(now)
	idx := r.ownerKey(ex.Owner)
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.exerciseKey(ex.ID), data, ttl)
		p.ZAdd(ctx, idx, redis.Z{Score: float64(ex.CreatedAt.UnixMilli()), Member: ex.ID})
		p.Expire(ctx, idx, r.ttls.Max())
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("store exercise %s: %w", ex.ID, err)
	}
	return ex.ID, nil
}

func (r *Redis) Get(ctx context.Context, id string) (*exercise.Exercise, bool, error) {
	data, err := r.client.Get(ctx, r.exerciseKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get exercise %s: %w", id, err)
	}
	ex, err := decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("decode exercise %s: %w", id, err)
	}
	// Key TTLs have second granularity; the stamped expiry is authoritative.
	if ex.Expired(r.clock.Now()) {
		return nil, false, nil
	}
	return ex, true, nil
}

func (r *Redis) MarkGraded(ctx context.Context, id string) error {
	ex, found, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return exercise.ErrNotFound
	}
	ex.Graded = true
	data, err := json.Marshal(ex)
	if err != nil {
		return fmt.Errorf("marshal exercise: %w", err)
	}
	ok, err := r.client.SetXX(ctx, r.exerciseKey(id), data, redis.KeepTTL).Result()
	if err != nil {
		return fmt.Errorf("mark exercise %s graded: %w", id, err)
	}
	if !ok {
		return exercise.ErrNotFound
	}
	return nil
}

func (r *Redis) ListRecent(ctx context.Context, owner string, limit int) ([]*exercise.Exercise, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	idx := r.ownerKey(owner)
	ids, err := r.client.ZRevRange(ctx, idx, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list exercises of %s: %w", owner, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.exerciseKey(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load exercises of %s: %w", owner, err)
	}

	now := r.clock.Now()
	var (
		out   []*exercise.Exercise
		stale []any
	)
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		ex, err := decode([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("decode exercise %s: %w", ids[i], err)
		}
		if ex.Expired(now) {
			continue
		}
		if len(out) < limit {
			out = append(out, ex)
		}
	}
	if len(stale) > 0 {
		if err := r.client.ZRem(ctx, idx, stale...).Err(); err != nil {
			return nil, fmt.Errorf("prune index of %s: %w", owner, err)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// Sweep prunes owner indexes of exercises whose keys Redis has already
// expired. The exercises themselves are evicted by Redis.
func (r *Redis) Sweep(ctx context.Context, _ time.Time) (int, error) {
	removed := 0
	iter := r.client.Scan(ctx, 0, r.prefix+":owner:*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := r.pruneIndex(ctx, iter.Val())
		if err != nil {
			return removed, err
		}
		removed += n
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan owner indexes: %w", err)
	}
	return removed, nil
}

func (r *Redis) pruneIndex(ctx context.Context, idx string) (int, error) {
	ids, err := r.client.ZRange(ctx, idx, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("read index %s: %w", idx, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	cmds := make([]*redis.IntCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.Exists(ctx, r.exerciseKey(id))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("check index %s: %w", idx, err)
	}

	var gone []any
	for i, c := range cmds {
		if c.Val() == 0 {
			gone = append(gone, ids[i])
		}
	}
	if len(gone) == 0 {
		return 0, nil
	}
	if err := r.client.ZRem(ctx, idx, gone...).Err(); err != nil {
		return 0, fmt.Errorf("prune index %s: %w", idx, err)
	}
	return len(gone), nil
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func decode(data []byte) (*exercise.Exercise, error) {
	var ex exercise.Exercise
	if err := json.Unmarshal(data, &ex); err != nil {
		return nil, err
	}
	return &ex, nil
}
