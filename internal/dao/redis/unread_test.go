package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"course_chat_server/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCount(t *testing.T) {
	assert.Equal(t, int64(0), parseCount(nil))
	assert.Equal(t, int64(3), parseCount("3"))
	assert.Equal(t, int64(0), parseCount("x"))
	assert.Equal(t, int64(0), parseCount("-2"))
}

func TestUnreadKey(t *testing.T) {
	assert.Equal(t, "unread:U1", unreadKey("U1"))
}

// 需要本地 Redis，连不上时跳过
func TestUnreadStoreRoundTrip(t *testing.T) {
	client, err := Init(context.Background(), config.GetConfig().RedisConfig)
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	store := NewUnreadStore(client)
	parent := fmt.Sprintf("R%d", time.Now().UnixNano())
	a, b := parent+"-a", parent+"-b"
	defer client.Del(ctx, unreadKey(a), unreadKey(b))

	require.NoError(t, store.Increment(ctx, parent, []string{a, b}))
	require.NoError(t, store.Increment(ctx, parent, []string{a}))

	counts, err := store.Counts(ctx, a, []string{parent, "missing"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[parent])
	assert.Equal(t, int64(0), counts["missing"])

	require.NoError(t, store.Clear(ctx, parent, a))
	counts, err = store.Counts(ctx, a, []string{parent})
	require.NoError(t, err)
	assert.Equal(t, int64(0), counts[parent])

	counts, err = store.Counts(ctx, b, []string{parent})
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[parent])
}
