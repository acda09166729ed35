package jobqueue

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/FeeBook/internal/pkg/env"
)

// testRedisDB keeps queue tests away from the database the app uses.
const testRedisDB = 14

// testRedis connects to the Redis named by CACHE_HOST/CACHE_PORT (or the
// compose service "cache") and hands out an empty database. The test is
// skipped when no server answers.
func testRedis(t *testing.T) *redis.Client {
	t.Helper()

	addrs := []string{"cache:6379", "localhost:6379"}
	if host := env.GetEnv("CACHE_HOST", ""); host != "" {
		addrs = append([]string{host + ":" + env.GetEnv("CACHE_PORT", "6379")}, addrs...)
	}

	for _, addr := range addrs {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: env.GetEnv("CACHE_PASSWORD", ""),
			DB:       testRedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		if err != nil {
			_ = client.Close()
			continue
		}
		if err := client.FlushDB(context.Background()).Err(); err != nil {
			_ = client.Close()
			t.Fatalf("flush redis db %d on %s: %v", testRedisDB, addr, err)
		}
		t.Cleanup(func() {
			_ = client.FlushDB(context.Background()).Err()
			_ = client.Close()
		})
		return client
	}

	t.Skip("no reachable Redis server")
	return nil
}
