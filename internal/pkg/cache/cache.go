package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/FeeBook/internal/pkg/env"
)

var (
	client *redis.Client
	ctx    = context.Background()
)

// SetupCache initializes the connection to the Redis cache server
func SetupCache() {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnv("CACHE_PORT", "6379")

	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       DBCache,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		log.Warnf("Could not connect to cache at %s: %v", client.Options().Addr, err)
		return
	}
	log.Infof("Connected to cache at %s", client.Options().Addr)
}

// GetClient returns the Redis client instance
func GetClient() *redis.Client {
	if client == nil {
		SetupCache()
	}
	return client
}

// Logical Redis databases. The cache and the job queue share DBCache.
const (
	DBCache      = 0
	DBSessions   = 1
	DBOAuthState = 2
)

// Storage returns fiber storage on logical database db of the cache server,
// for session middleware.
func Storage(db int) fiber.Storage {
	return redisstorage.New(storageConfig(GetClient().Options(), db))
}

func storageConfig(opts *redis.Options, db int) redisstorage.Config {
	cfg := redisstorage.Config{
		Host:     opts.Addr,
		Port:     6379,
		Username: opts.Username,
		Password: opts.Password,
		Database: db,
	}
	if host, port, err := net.SplitHostPort(opts.Addr); err == nil {
		cfg.Host = host
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	return cfg
}

// Store is the typed JSON view of the cache used by services.
type Store interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Update runs a read-modify-write of key that no concurrent Update of
	// the same key can interleave with. fn gets nil for a missing key and
	// returns the new value, or nil to leave the key as it is.
	Update(ctx context.Context, key string, ttl time.Duration, fn func(raw []byte) ([]byte, error)) error
}

const maxUpdateAttempts = 10

var ErrUpdateConflict = errors.New("cache: update kept conflicting with concurrent writers")

// UpdateJSON is Update for a JSON value. fn sees the zero T when key is
// missing and reports whether v should be written back.
func UpdateJSON[T any](ctx context.Context, s Store, key string, ttl time.Duration, fn func(v *T, found bool) (bool, error)) error {
	return s.Update(ctx, key, ttl, func(raw []byte) ([]byte, error) {
		var v T
		if raw != nil {
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, fmt.Errorf("decode %s: %w", key, err)
			}
		}
		write, err := fn(&v, raw != nil)
		if err != nil || !write {
			return nil, err
		}
		return json.Marshal(&v)
	})
}

// RedisStore implements Store on the shared client.
type RedisStore struct{}

// JSON returns the Redis backed Store.
func JSON() Store {
	return RedisStore{}
}

// GetJSON decodes key into dst. A missing key returns false without error.
func (RedisStore) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := GetClient().Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (RedisStore) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return GetClient().Set(ctx, key, raw, ttl).Err()
}

func (RedisStore) Delete(ctx context.Context, key string) error {
	return GetClient().Del(ctx, key).Err()
}

// Update watches key and retries when another client wrote it between the
// read and the write.
func (RedisStore) Update(ctx context.Context, key string, ttl time.Duration, fn func(raw []byte) ([]byte, error)) error {
	rdb := GetClient()
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := rdb.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				raw = nil
			} else if err != nil {
				return err
			}
			out, err := fn(raw)
			if err != nil || out == nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, out, ttl)
				return nil
			})
			return err
		}, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return ErrUpdateConflict
}

// MemoryStore is an in-process Store for tests and single-node development.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
}

type memoryItem struct {
	raw     []byte
	expires time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: map[string]memoryItem{}}
}

func (m *MemoryStore) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok || (!it.expires.IsZero() && time.Now().After(it.expires)) {
		return false, nil
	}
	return true, json.Unmarshal(it.raw, dst)
}

func (m *MemoryStore) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	it := memoryItem{raw: raw}
	if ttl > 0 {
		it.expires = time.Now().Add(ttl)
	}
	m.items[key] = it
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Update holds the store lock while fn runs; fn must not call back into m.
func (m *MemoryStore) Update(ctx context.Context, key string, ttl time.Duration, fn func(raw []byte) ([]byte, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var raw []byte
	if it, ok := m.items[key]; ok && (it.expires.IsZero() || time.Now().Before(it.expires)) {
		raw = it.raw
	}
	out, err := fn(raw)
	if err != nil || out == nil {
		return err
	}
	it := memoryItem{raw: out}
	if ttl > 0 {
		it.expires = time.Now().Add(ttl)
	}
	m.items[key] = it
	return nil
}

// Keys returns the stored keys (tests).
func (m *MemoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.items))
	for k := range m.items {
		out = append(out, k)
	}
	return out
}
