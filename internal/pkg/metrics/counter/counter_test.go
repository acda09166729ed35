package counter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePairs(t *testing.T) {
	pairs := parsePairs(map[string]string{
		"9":   "2",
		"3":   "5",
		"x":   "1",
		"4":   "0",
		"12":  "nope",
		"100": "-1",
	})
	assert.Equal(t, []pair{{id: 3, inc: 5}, {id: 9, inc: 2}, {id: 100, inc: -1}}, pairs)
}

func TestBuildUpdate(t *testing.T) {
	sql, args := buildUpdate("user_settings", "api_request_count", []pair{{id: 3, inc: 5}, {id: 9, inc: 2}})
	assert.Equal(t,
		"UPDATE user_settings SET api_request_count = api_request_count + CASE id WHEN ? THEN ? WHEN ? THEN ? END WHERE id IN (?,?)",
		sql)
	assert.Equal(t, []interface{}{uint64(3), int64(5), uint64(9), int64(2), uint64(3), uint64(9)}, args)
}
