// Package task serializes publish cycles. The cron runner and the manual
// HTTP trigger share one dispatcher so cycles never overlap.
package task

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"autopost-server-go/internal/platform/errors"
	"autopost-server-go/internal/platform/logging"
)

// Dispatcher runs at most one job at a time. A job submitted while another
// is running is rejected rather than queued; the next cron tick will try
// again anyway.
type Dispatcher struct {
	sem    *semaphore.Weighted
	logger *logging.Logger
	wg     sync.WaitGroup
}

func NewDispatcher(logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		sem:    semaphore.NewWeighted(1),
		logger: logger,
	}
}

// TryGo starts the job in a goroutine if no job is running. It reports an
// error when a cycle is already in flight.
func (d *Dispatcher) TryGo(ctx context.Context, name string, job func(context.Context)) error {
	const op errors.Op = "task.TryGo"

	if !d.sem.TryAcquire(1) {
		return errors.New(errors.KindPublish, op, "cycle already running")
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.sem.Release(1)
		d.logger.Debug("job %s started", name)
		job(ctx)
		d.logger.Debug("job %s finished", name)
	}()
	return nil
}

// Wait blocks until the in-flight job, if any, has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
