package repository

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var errNoRedis = errors.New("redis client not configured")

const scanBatch = 500

// KeyInfo describes one Redis key for the admin inspector.
type KeyInfo struct {
	Key  string
	Kind string // Redis type: string, list, hash, zset, set
	// Len is the byte length of strings and the element count otherwise.
	Len   int64
	Value string
	// TTL is negative for keys without expiry.
	TTL time.Duration
}

// queueRepository inspects the job queue and portal state kept in Redis.
type queueRepository struct {
	client *redis.Client
}

func NewQueueRepository(client *redis.Client) QueueRepository {
	return &queueRepository{client: client}
}

// Inspect lists the keys matching any of patterns, sorted by name. Keys
// that expire between the scan and the lookup are left out.
func (r *queueRepository) Inspect(ctx context.Context, patterns []string) ([]KeyInfo, error) {
	if r.client == nil {
		return nil, errNoRedis
	}
	keys, err := r.scan(ctx, patterns)
	if err != nil || len(keys) == 0 {
		return nil, err
	}

	pipe := r.client.Pipeline()
	types := make([]*redis.StatusCmd, len(keys))
	ttls := make([]*redis.DurationCmd, len(keys))
	for i, key := range keys {
		types[i] = pipe.Type(ctx, key)
		ttls[i] = pipe.PTTL(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	infos := make([]KeyInfo, 0, len(keys))
	values := make([]redis.Cmder, 0, len(keys))
	pipe = r.client.Pipeline()
	for i, key := range keys {
		kind := types[i].Val()
		if kind == "none" {
			continue
		}
		infos = append(infos, KeyInfo{Key: key, Kind: kind, TTL: ttls[i].Val()})
		switch kind {
		case "string":
			values = append(values, pipe.Get(ctx, key))
		case "list":
			values = append(values, pipe.LLen(ctx, key))
		case "hash":
			values = append(values, pipe.HGetAll(ctx, key))
		case "zset":
			values = append(values, pipe.ZCard(ctx, key))
		default:
			values = append(values, pipe.SCard(ctx, key))
		}
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	for i, cmd := range values {
		switch c := cmd.(type) {
		case *redis.StringCmd:
			infos[i].Value = c.Val()
			infos[i].Len = int64(len(infos[i].Value))
		case *redis.IntCmd:
			infos[i].Len = c.Val()
		case *redis.MapStringStringCmd:
			infos[i].Len = int64(len(c.Val()))
			infos[i].Value = joinHash(c.Val())
		}
	}
	return infos, nil
}

func (r *queueRepository) scan(ctx context.Context, patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		iter := r.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
		for iter.Next(ctx) {
			seen[iter.Val()] = struct{}{}
		}
		if err := iter.Err(); err != nil {
			return nil, err
		}
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func joinHash(h map[string]string) string {
	fields := make([]string, 0, len(h))
	for f := range h {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f + "=" + h[f])
	}
	return b.String()
}

// DeleteKey removes key and reports how many keys were deleted.
func (r *queueRepository) DeleteKey(ctx context.Context, key string) (int64, error) {
	if r.client == nil {
		return 0, errNoRedis
	}
	return r.client.Del(ctx, key).Result()
}

// FormatLen renders Len in the unit of the key's kind.
func (k KeyInfo) FormatLen() string {
	n := strconv.FormatInt(k.Len, 10)
	switch k.Kind {
	case "string":
		return n + " B"
	case "hash":
		return n + " fields"
	}
	return n + " items"
}
