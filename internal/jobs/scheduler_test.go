package jobs

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photovault/internal/queue"
)

type capturePublisher struct {
	tasks []queue.Task
}

func (c *capturePublisher) Publish(_ context.Context, task queue.Task) error {
	c.tasks = append(c.tasks, task)
	return nil
}

func TestSchedulerRegistersPruneJob(t *testing.T) {
	pub := &capturePublisher{}
	s := NewScheduler(pub, zerolog.Nop())

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Len(t, s.cron.Entries(), 1)
}

func TestEnqueuePruneSessions(t *testing.T) {
	pub := &capturePublisher{}
	s := NewScheduler(pub, zerolog.Nop())

	s.enqueuePruneSessions()
	require.Len(t, pub.tasks, 1)
	assert.Equal(t, queue.TaskPruneSessions, pub.tasks[0].Type)
}

func TestSchedulerWithoutQueueIsNoop(t *testing.T) {
	s := NewScheduler(nil, zerolog.Nop())
	require.NoError(t, s.Start())
	assert.Empty(t, s.cron.Entries())
}
