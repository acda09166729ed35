package counter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const apiKeyRequestsKey = "apikey:counters:requests"

// Counter buffers increments per row id in a Redis hash and applies them to
// one column of a table when flushed.
type Counter struct {
	rdb    redis.Cmdable
	db     *gorm.DB
	key    string
	table  string
	column string
}

func New(rdb redis.Cmdable, db *gorm.DB, key, table, column string) *Counter {
	return &Counter{rdb: rdb, db: db, key: key, table: table, column: column}
}

// NewAPIKeyRequests counts authenticated API requests per user_settings row.
func NewAPIKeyRequests(rdb redis.Cmdable, db *gorm.DB) *Counter {
	return New(rdb, db, apiKeyRequestsKey, "user_settings", "api_request_count")
}

// Add increments the pending counter of id.
func (c *Counter) Add(ctx context.Context, id uint) error {
	field := strconv.FormatUint(uint64(id), 10)
	return c.rdb.HIncrBy(ctx, c.key, field, 1).Err()
}

// Flush drains the hash and applies the increments in one UPDATE. It returns
// the number of rows touched.
// RENAME to a temporary key keeps increments arriving during the drain.
func (c *Counter) Flush(ctx context.Context) (int, error) {
	tmpKey := fmt.Sprintf("%s:tmp:%d", c.key, time.Now().UnixNano())
	if err := c.rdb.Rename(ctx, c.key, tmpKey).Err(); err != nil {
		if err == redis.Nil || strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return 0, nil
		}
		return 0, err
	}
	defer c.rdb.Del(ctx, tmpKey)

	data, err := c.rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return 0, err
	}
	pairs := parsePairs(data)
	if len(pairs) == 0 {
		return 0, nil
	}
	sql, args := buildUpdate(c.table, c.column, pairs)
	if err := c.db.WithContext(ctx).Exec(sql, args...).Error; err != nil {
		return 0, err
	}
	return len(pairs), nil
}

type pair struct {
	id  uint64
	inc int64
}

// parsePairs skips malformed fields and zero increments and sorts by id for
// stable SQL.
func parsePairs(data map[string]string) []pair {
	pairs := make([]pair, 0, len(data))
	for k, v := range data {
		id, perr := strconv.ParseUint(k, 10, 64)
		if perr != nil {
			continue
		}
		inc, ierr := strconv.ParseInt(v, 10, 64)
		if ierr != nil || inc == 0 {
			continue
		}
		pairs = append(pairs, pair{id: id, inc: inc})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].id < pairs[j].id })
	return pairs
}

// buildUpdate composes
// UPDATE <table> SET <column> = <column> + CASE id WHEN ? THEN ? ... END WHERE id IN (...)
func buildUpdate(table, column string, pairs []pair) (string, []interface{}) {
	var builder strings.Builder
	args := make([]interface{}, 0, len(pairs)*3)
	builder.WriteString("UPDATE ")
	builder.WriteString(table)
	builder.WriteString(" SET ")
	builder.WriteString(column)
	builder.WriteString(" = ")
	builder.WriteString(column)
	builder.WriteString(" + CASE id")
	for _, p := range pairs {
		builder.WriteString(" WHEN ? THEN ?")
		args = append(args, p.id, p.inc)
	}
	builder.WriteString(" END WHERE id IN (")
	for i, p := range pairs {
		if i > 0 {
			builder.WriteString(",")
		}
		builder.WriteString("?")
		args = append(args, p.id)
	}
	builder.WriteString(")")
	return builder.String(), args
}
