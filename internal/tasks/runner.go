package tasks

import (
	"context"
	"errors"

	"github.com/rankforge/crawlpipe/internal/domain"
	"github.com/rankforge/crawlpipe/internal/logger"
)

// Handler executes one stage task. Implementations record their own
// failures on the project row; a returned error is logged, not retried
// by the runner.
type Handler interface {
	Handle(ctx context.Context, task domain.StageTask) error
}

// Runner is the consume loop: read tasks, dispatch to the handler,
// acknowledge. A task is acknowledged once the handler returns, whatever
// the outcome; crash-before-ack is what the pending reclaim covers.
type Runner struct {
	consumer *Consumer
	handler  Handler
	log      logger.Interface
}

// NewRunner creates a new task runner.
func NewRunner(consumer *Consumer, handler Handler, log logger.Interface) *Runner {
	return &Runner{
		consumer: consumer,
		handler:  handler,
		log:      log.WithComponent("tasks"),
	}
}

// Run consumes tasks until the context is canceled.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.consumer.Initialize(ctx); err != nil {
		return err
	}

	r.log.Info("task runner started",
		"group", r.consumer.ConsumerGroup(),
		"consumer", r.consumer.ConsumerID())

	for {
		consumed, err := r.consumer.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			r.log.Error("failed to read tasks", "error", err)
			continue
		}

		for _, task := range consumed {
			r.dispatch(ctx, task)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (r *Runner) dispatch(ctx context.Context, consumed *ConsumedTask) {
	log := r.log.With(
		"task_id", consumed.Task.ID,
		"project_id", consumed.Task.ProjectID,
		"stage", string(consumed.Task.Stage))

	if err := r.handler.Handle(ctx, consumed.Task); err != nil {
		log.Error("stage failed", "error", err)
	}

	if err := r.consumer.Acknowledge(ctx, consumed); err != nil {
		log.Error("failed to acknowledge task", "error", err)
	}
}
