// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package adapter

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/adapterframework/eacore/internal/metrics"
	"github.com/adapterframework/eacore/internal/transport"
)

// backgroundJob tracks one (endpoint, transport) pair's scheduling state
// across BackgroundExecutor.Serve's lifetime. running is read by the
// scheduling loop and written by the invocation's own goroutine, so it is
// an atomic.Bool rather than a plain bool; lastRun is only ever touched
// from the scheduling loop goroutine.
type backgroundJob struct {
	endpointName  string
	transportName string
	executor      transport.BackgroundExecutor
	minPeriod     time.Duration
	lastRun       time.Time
	running       atomic.Bool
}

func (j *backgroundJob) nextEligible() time.Time {
	if j.lastRun.IsZero() {
		return time.Time{} // never run: eligible immediately
	}
	return j.lastRun.Add(j.minPeriod)
}

// BackgroundExecutor is component I: the single loop per adapter that
// keeps every transport's subscribed data fresh. Built once per Adapter
// and run by EA_MODE writer|reader-writer processes only (spec §4.I).
type BackgroundExecutor struct {
	jobs    []*backgroundJob
	timeout time.Duration // BACKGROUND_EXECUTE_TIMEOUT
	logger  zerolog.Logger
}

// BackgroundExecutorConfig configures a BackgroundExecutor.
type BackgroundExecutorConfig struct {
	Adapter *Adapter
	Timeout time.Duration
	Logger  zerolog.Logger
}

// NewBackgroundExecutor collects every (endpoint, transport) pair whose
// transport implements transport.BackgroundExecutor across the adapter's
// configured endpoints. A transport not implementing MinPeriod runs with
// no enforced minimum spacing.
func NewBackgroundExecutor(cfg BackgroundExecutorConfig) *BackgroundExecutor {
	var jobs []*backgroundJob
	for _, ep := range cfg.Adapter.Endpoints() {
		for _, name := range ep.Router().TransportNames() {
			t := ep.Router().TransportByName(name)
			bg, ok := t.(transport.BackgroundExecutor)
			if !ok {
				continue
			}
			var minPeriod time.Duration
			if mp, ok := t.(transport.MinPeriod); ok {
				minPeriod = mp.MinPeriod()
			}
			jobs = append(jobs, &backgroundJob{
				endpointName:  ep.Name(),
				transportName: name,
				executor:      bg,
				minPeriod:     minPeriod,
			})
		}
	}
	return &BackgroundExecutor{jobs: jobs, timeout: cfg.Timeout, logger: cfg.Logger}
}

// Serve runs the scheduling loop until ctx is canceled, then returns nil
// once every in-flight invocation has drained (spec §4.I shutdown). A job
// already running is never eligible to be scheduled again (spec §5: a
// transport's background execute is never entered concurrently with
// itself) — wake is signaled whenever a run completes so a single slow
// job can't stall jobs that are ready.
func (e *BackgroundExecutor) Serve(ctx context.Context) error {
	if len(e.jobs) == 0 {
		<-ctx.Done()
		return nil
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	wake := make(chan struct{}, 1)

	for {
		job, wait, ok := e.nextRunnableJob()
		if !ok {
			// every job is currently in flight: wait for one to finish.
			select {
			case <-ctx.Done():
				return nil
			case <-wake:
				continue
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-wake:
			timer.Stop()
			continue
		case <-timer.C:
		}

		job.running.Store(true)
		job.lastRun = time.Now()
		wg.Add(1)
		go e.run(ctx, job, &wg, wake)
	}
}

// nextRunnableJob returns the earliest-eligible job that is not already
// running and how long to wait before running it. ok is false when every
// job is currently in flight.
func (e *BackgroundExecutor) nextRunnableJob() (job *backgroundJob, wait time.Duration, ok bool) {
	var bestNext time.Time
	for _, j := range e.jobs {
		if j.running.Load() {
			continue
		}
		next := j.nextEligible()
		if job == nil || next.Before(bestNext) {
			job, bestNext = j, next
		}
	}
	if job == nil {
		return nil, 0, false
	}
	wait = time.Until(bestNext)
	if wait < 0 {
		wait = 0
	}
	return job, wait, true
}

// run invokes one job's BackgroundExecute with the hard per-invocation
// ceiling, recovering a panic into a logged, counted error so a single
// misbehaving transport never stops the loop (spec §4.I). wake is
// signaled on completion so the scheduler re-evaluates promptly instead
// of waiting out this job's full minPeriod before noticing it's free.
func (e *BackgroundExecutor) run(ctx context.Context, job *backgroundJob, wg *sync.WaitGroup, wake chan<- struct{}) {
	defer wg.Done()
	defer func() {
		// Mark the job free before waking the scheduler, so a woken
		// nextRunnableJob call never observes running still true.
		job.running.Store(false)
		select {
		case wake <- struct{}{}:
		default:
		}
	}()

	execCtx := ctx
	var cancel context.CancelFunc
	if e.timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	err := e.safeExecute(execCtx, job.executor)
	duration := time.Since(start)

	metrics.RecordBackgroundExecute(job.endpointName, job.transportName, duration, err)
	if err != nil {
		e.logger.Error().
			Err(err).
			Str("endpoint", job.endpointName).
			Str("transport", job.transportName).
			Dur("duration", duration).
			Msg("background execute failed")
	}
}

func (e *BackgroundExecutor) safeExecute(ctx context.Context, ex transport.BackgroundExecutor) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("background execute panicked: %v", r)
		}
	}()
	return ex.BackgroundExecute(ctx)
}
