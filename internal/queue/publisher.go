package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	TaskPurgeObjects  = "purge_objects"
	TaskPruneSessions = "prune_sessions"
)

// Task is the payload carried by one stream entry.
type Task struct {
	Type   string   `json:"type"`
	Paths  []string `json:"paths,omitempty"`
	Reason string   `json:"reason,omitempty"`
}

var ErrMalformedTask = errors.New("malformed task")

type Publisher struct {
	client redis.Cmdable
	stream string
}

func NewPublisher(client redis.Cmdable, stream string) *Publisher {
	return &Publisher{client: client, stream: stream}
}

func (p *Publisher) Publish(ctx context.Context, task Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"type":    task.Type,
			"payload": string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

// EnqueuePurge schedules deletion of objects a request could not remove.
func (p *Publisher) EnqueuePurge(ctx context.Context, paths []string, reason string) error {
	if len(paths) == 0 {
		return nil
	}
	return p.Publish(ctx, Task{Type: TaskPurgeObjects, Paths: paths, Reason: reason})
}

func DecodeTask(msg redis.XMessage) (Task, error) {
	raw, ok := msg.Values["payload"].(string)
	if !ok {
		return Task{}, fmt.Errorf("%w: missing payload in %s", ErrMalformedTask, msg.ID)
	}
	var task Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return Task{}, fmt.Errorf("%w: %v", ErrMalformedTask, err)
	}
	if task.Type == "" {
		return Task{}, fmt.Errorf("%w: empty type in %s", ErrMalformedTask, msg.ID)
	}
	return task, nil
}
