package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIKeyLifecycle(t *testing.T) {
	issued := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	used := issued.Add(time.Hour)
	us := &UserSettings{UserID: 1, APIRequestCount: 17, APIKeyLastUsedAt: &used}

	first, err := us.IssueAPIKey(issued)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first, "fbk_"))
	assert.Len(t, first, len("fbk_")+52)
	assert.Equal(t, first[:16], us.APIKeyPrefix)
	assert.Equal(t, HashAPIKey(first), us.APIKeyHash)
	assert.Equal(t, HashAPIKey(" "+first+"\n"), us.APIKeyHash, "presented keys are trimmed")
	assert.Equal(t, issued, *us.APIKeyCreatedAt)
	assert.Nil(t, us.APIKeyLastUsedAt)
	assert.Zero(t, us.APIRequestCount)
	assert.True(t, us.HasActiveAPIKey())

	second, err := us.IssueAPIKey(issued)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.NotEqual(t, HashAPIKey(first), us.APIKeyHash, "rotation invalidates the old key")

	us.RevokeAPIKey(used)
	assert.False(t, us.HasActiveAPIKey())
	assert.Empty(t, us.APIKeyHash)
	assert.Empty(t, us.APIKeyPrefix)
	assert.Equal(t, used, *us.APIKeyRevokedAt)

	var none *UserSettings
	assert.False(t, none.HasActiveAPIKey())
}
