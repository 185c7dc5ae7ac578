package tasks

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"photovault/internal/queue"
)

type ObjectDeleter interface {
	Delete(ctx context.Context, objectPaths []string) error
}

type SessionPruner interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Processor executes background tasks pulled off the media stream.
type Processor struct {
	objects  ObjectDeleter
	sessions SessionPruner
	logger   zerolog.Logger
}

func NewProcessor(objects ObjectDeleter, sessions SessionPruner, logger zerolog.Logger) *Processor {
	return &Processor{
		objects:  objects,
		sessions: sessions,
		logger:   logger,
	}
}

func (p *Processor) Handle(ctx context.Context, task queue.Task) error {
	switch task.Type {
	case queue.TaskPurgeObjects:
		return p.handlePurge(ctx, task)
	case queue.TaskPruneSessions:
		return p.handlePrune(ctx)
	default:
		p.logger.Warn().Str("type", task.Type).Msg("unknown task type")
		return nil
	}
}

func (p *Processor) handlePurge(ctx context.Context, task queue.Task) error {
	if len(task.Paths) == 0 {
		return nil
	}
	if err := p.objects.Delete(ctx, task.Paths); err != nil {
		return fmt.Errorf("purge objects: %w", err)
	}
	p.logger.Info().
		Strs("paths", task.Paths).
		Str("reason", task.Reason).
		Msg("orphan objects purged")
	return nil
}

func (p *Processor) handlePrune(ctx context.Context) error {
	n, err := p.sessions.DeleteExpired(ctx)
	if err != nil {
		return fmt.Errorf("prune sessions: %w", err)
	}
	p.logger.Info().Int64("deleted", n).Msg("expired sessions pruned")
	return nil
}
