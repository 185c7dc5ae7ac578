package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := IncrWindow(ctx, client, "rl:user", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, time.Minute, mr.TTL("rl:user"))

	mr.FastForward(time.Minute + time.Second)

	got, err := IncrWindow(ctx, client, "rl:user", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}
