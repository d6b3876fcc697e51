// Package scheduler ticks the publish orchestrator once per minute. The
// minute granularity pairs with the modulo arithmetic of the schedule
// evaluator: each due minute is observed exactly once.
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"

	"autopost-server-go/internal/domain/publish"
	"autopost-server-go/internal/domain/task"
	"autopost-server-go/internal/platform/logging"
)

// Runner drives cycles off a cron clock. Ticks that land while a cycle is
// still running are dropped by the dispatcher.
type Runner struct {
	cron       *cron.Cron
	dispatcher *task.Dispatcher
	orch       *publish.Orchestrator
	logger     *logging.Logger
}

func NewRunner(dispatcher *task.Dispatcher, orch *publish.Orchestrator, logger *logging.Logger) *Runner {
	return &Runner{
		cron:       cron.New(),
		dispatcher: dispatcher,
		orch:       orch,
		logger:     logger,
	}
}

// Start registers the minute tick and launches the cron loop.
func (r *Runner) Start(ctx context.Context) error {
	_, err := r.cron.AddFunc("@every 1m", func() {
		err := r.dispatcher.TryGo(ctx, "publish-cycle", func(ctx context.Context) {
			if _, err := r.orch.RunCycle(ctx); err != nil {
				r.logger.Error("publish cycle failed: %v", err)
			}
		})
		if err != nil {
			r.logger.Debug("tick dropped: %v", err)
		}
	})
	if err != nil {
		return err
	}
	r.cron.Start()
	r.logger.Info("publish scheduler started, ticking every minute")
	return nil
}

// Stop halts the cron loop and waits for an in-flight cycle to finish.
func (r *Runner) Stop() {
	stopCtx := r.cron.Stop()
	<-stopCtx.Done()
	r.dispatcher.Wait()
	r.logger.Info("publish scheduler stopped")
}
