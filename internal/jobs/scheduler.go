package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"photovault/internal/queue"
)

type TaskPublisher interface {
	Publish(ctx context.Context, task queue.Task) error
}

type Scheduler struct {
	cron  *cron.Cron
	queue TaskPublisher
	log   zerolog.Logger
}

func NewScheduler(publisher TaskPublisher, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:  cron.New(cron.WithSeconds()),
		queue: publisher,
		log:   log,
	}
}

func (s *Scheduler) Start() error {
	if s.queue == nil {
		return nil
	}

	if _, err := s.cron.AddFunc("0 30 3 * * *", s.enqueuePruneSessions); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits up to five seconds for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) enqueuePruneSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.queue.Publish(ctx, queue.Task{Type: queue.TaskPruneSessions}); err != nil {
		s.log.Error().Err(err).Msg("enqueue prune_sessions failed")
	}
}
