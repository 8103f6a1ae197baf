package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLocal_Allow 每個 key 獨立計數，配額可一次用完
func TestLocal_Allow(t *testing.T) {
	l := NewLocal(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "ip:1.1.1.1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
	}

	ok, err := l.Allow(ctx, "ip:1.1.1.1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Allow(ctx, "ip:2.2.2.2")
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestLocal_Refill 依每分鐘配額回補
func TestLocal_Refill(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewLocal(60)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		ok, _ := l.Allow(ctx, "k")
		require.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "k")
	assert.False(t, ok)

	now = now.Add(time.Second)
	ok, _ = l.Allow(ctx, "k")
	assert.True(t, ok)
}

// TestLocal_Prune 清除閒置的 key
func TestLocal_Prune(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewLocal(10)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = l.Allow(ctx, "old")
	now = now.Add(9 * time.Minute)
	_, _ = l.Allow(ctx, "fresh")
	now = now.Add(2 * time.Minute)

	assert.Equal(t, 1, l.Prune())
	assert.Equal(t, 1, l.Len())
}

// TestNewLocal_NonPositive 非正數視為每分鐘一次
func TestNewLocal_NonPositive(t *testing.T) {
	l := NewLocal(0)
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "k")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "k")
	assert.False(t, ok)
}
