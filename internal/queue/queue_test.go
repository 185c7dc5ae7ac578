package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu    sync.Mutex
	fail  bool
	tasks []Task
}

func (h *recordingHandler) Handle(_ context.Context, task Task) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tasks = append(h.tasks, task)
	if h.fail {
		return errors.New("handler down")
	}
	return nil
}

func newTestConsumer(t *testing.T, handler Handler) (*Consumer, *Publisher, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewConsumer(client, "media:tasks", "workers", "w1", time.Millisecond, zerolog.Nop(), handler)
	c.block = 10 * time.Millisecond
	require.NoError(t, c.ensureGroup(context.Background()))
	return c, NewPublisher(client, "media:tasks"), client
}

func pendingCount(t *testing.T, client *redis.Client) int64 {
	t.Helper()
	p, err := client.XPending(context.Background(), "media:tasks", "workers").Result()
	require.NoError(t, err)
	return p.Count
}

func TestPublishAndConsume(t *testing.T) {
	h := &recordingHandler{}
	c, pub, client := newTestConsumer(t, h)
	ctx := context.Background()

	require.NoError(t, pub.EnqueuePurge(ctx, []string{"u/previews/a.webp", "u/full/a.webp"}, "ingest_compensation"))
	require.NoError(t, pub.Publish(ctx, Task{Type: TaskPruneSessions}))
	require.NoError(t, c.read(ctx))

	require.Len(t, h.tasks, 2)
	assert.Equal(t, Task{Type: TaskPurgeObjects, Paths: []string{"u/previews/a.webp", "u/full/a.webp"}, Reason: "ingest_compensation"}, h.tasks[0])
	assert.Equal(t, TaskPruneSessions, h.tasks[1].Type)
	assert.Equal(t, int64(0), pendingCount(t, client))
}

func TestEnqueuePurgeSkipsEmpty(t *testing.T) {
	_, pub, client := newTestConsumer(t, &recordingHandler{})

	require.NoError(t, pub.EnqueuePurge(context.Background(), nil, "x"))
	n, err := client.XLen(context.Background(), "media:tasks").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestMalformedTaskIsAcked(t *testing.T) {
	h := &recordingHandler{}
	c, _, client := newTestConsumer(t, h)
	ctx := context.Background()

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: "media:tasks",
		Values: map[string]any{"type": "purge_objects", "payload": "{not json"},
	}).Err())
	require.NoError(t, c.read(ctx))

	assert.Empty(t, h.tasks)
	assert.Equal(t, int64(0), pendingCount(t, client))
}

func TestFailedTaskIsReclaimed(t *testing.T) {
	h := &recordingHandler{fail: true}
	c, pub, client := newTestConsumer(t, h)
	ctx := context.Background()

	require.NoError(t, pub.EnqueuePurge(ctx, []string{"u/full/a.webp"}, "delete"))
	require.NoError(t, c.read(ctx))
	assert.Equal(t, int64(1), pendingCount(t, client))

	h.mu.Lock()
	h.fail = false
	h.mu.Unlock()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, c.claimStalled(ctx))
	assert.Len(t, h.tasks, 2)
	assert.Equal(t, int64(0), pendingCount(t, client))
}

func TestEnsureGroupIsIdempotent(t *testing.T) {
	c, _, _ := newTestConsumer(t, &recordingHandler{})
	assert.NoError(t, c.ensureGroup(context.Background()))
}

func TestDecodeTask(t *testing.T) {
	_, err := DecodeTask(redis.XMessage{ID: "1-0", Values: map[string]any{"type": "x"}})
	assert.ErrorIs(t, err, ErrMalformedTask)

	_, err = DecodeTask(redis.XMessage{ID: "1-0", Values: map[string]any{"payload": `{"paths":["a"]}`}})
	assert.ErrorIs(t, err, ErrMalformedTask)

	task, err := DecodeTask(redis.XMessage{ID: "1-0", Values: map[string]any{"payload": `{"type":"prune_sessions"}`}})
	require.NoError(t, err)
	assert.Equal(t, TaskPruneSessions, task.Type)
}
