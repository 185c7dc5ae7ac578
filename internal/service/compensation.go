package service

import (
	"context"

	"github.com/rs/zerolog"
)

type compensationStep struct {
	name string
	run  func(ctx context.Context) error
}

// compensator is an ordered undo log. Steps run last-in first-out and a
// failing step never stops the rest.
type compensator struct {
	steps []compensationStep
}

func (c *compensator) push(name string, run func(ctx context.Context) error) {
	c.steps = append(c.steps, compensationStep{name: name, run: run})
}

func (c *compensator) run(ctx context.Context, log zerolog.Logger, observer IngestObserver) {
	for i := len(c.steps) - 1; i >= 0; i-- {
		step := c.steps[i]
		err := step.run(ctx)
		observer.RecordCompensation(step.name, err)
		if err != nil {
			log.Warn().Err(err).Str("step", step.name).Msg("compensation step failed")
			continue
		}
		log.Debug().Str("step", step.name).Msg("compensation step done")
	}
	c.steps = nil
}
