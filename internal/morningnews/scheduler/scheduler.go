// Package scheduler runs the daily push at a fixed local time of day.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// Waits longer than LongWait are slept in SliceWait steps, recomputing
	// the remaining time after each step so clock changes and suspend do not
	// make the push late.
	LongWait  = time.Hour
	SliceWait = 5 * time.Minute
	// IdleWait is how long the loop waits before re-checking when the job is
	// not ready (no destinations configured).
	IdleWait = 5 * time.Minute
	// RetryWait is the back-off after the job panics.
	RetryWait = 5 * time.Minute
)

// Clock is a time of day in local time.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM" (24h).
func ParseClock(s string) (Clock, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Clock{}, fmt.Errorf("invalid push time %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}, fmt.Errorf("invalid push time %q: bad hour", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("invalid push time %q: bad minute", s)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// NextRun returns the next occurrence of c strictly after now, in now's location.
func NextRun(now time.Time, c Clock) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), c.Hour, c.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Until is the wait from now to the next run.
func Until(now time.Time, c Clock) time.Duration {
	return NextRun(now, c).Sub(now)
}

// Job represents a scheduled task.
type Job struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Status is a snapshot of the scheduler.
type Status struct {
	Running bool
	Clock   Clock
	Loops   int
	LastRun time.Time
	LastErr error
}

// Daily runs one job every day at a fixed time.
type Daily struct {
	clock  Clock
	job    Job
	ready  func() bool
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	loops    int
	lastRun  time.Time
	lastErr  error
	lastSlot time.Time
	cancel   context.CancelFunc
}

// NewDaily creates a scheduler for job at clock.
func NewDaily(clock Clock, job Job) *Daily {
	return &Daily{
		clock:  clock,
		job:    job,
		ready:  func() bool { return true },
		now:    time.Now,
		sleep:  sleepCtx,
		logger: slog.Default(),
	}
}

// SetReady installs the check that gates each run, typically "are any
// destinations configured".
func (d *Daily) SetReady(fn func() bool) {
	d.ready = fn
}

// Clock returns the configured time of day.
func (d *Daily) Clock() Clock {
	return d.clock
}

// Status returns a snapshot of the loop state.
func (d *Daily) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Status{
		Running: d.running,
		Clock:   d.clock,
		Loops:   d.loops,
		LastRun: d.lastRun,
		LastErr: d.lastErr,
	}
}

// Until is the wait until the next scheduled run.
func (d *Daily) Until() time.Duration {
	return Until(d.now(), d.clock)
}

// Start runs the loop until ctx is cancelled or Stop is called.
func (d *Daily) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.running = true
	d.cancel = cancel
	d.mu.Unlock()
	defer func() {
		cancel()
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	d.logger.Info("scheduler started", "job", d.job.Name, "at", d.clock.String())
	for ctx.Err() == nil {
		d.mu.Lock()
		d.loops++
		d.mu.Unlock()

		if !d.ready() {
			d.logger.Warn("scheduler idle: job not ready", "job", d.job.Name, "retry_in", IdleWait)
			if d.sleep(ctx, IdleWait) != nil {
				break
			}
			continue
		}

		if err := d.waitForSlot(ctx); err != nil {
			break
		}
		if err := d.runGuarded(ctx); err != nil {
			d.logger.Error("scheduler loop error", "job", d.job.Name, "error", err, "retry_in", RetryWait)
			if d.sleep(ctx, RetryWait) != nil {
				break
			}
		}
	}
	d.logger.Info("scheduler stopped", "job", d.job.Name)
}

// Stop cancels a running loop.
func (d *Daily) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
}

// waitForSlot sleeps until the next run time that has not been used yet.
func (d *Daily) waitForSlot(ctx context.Context) error {
	slot := d.nextSlot()
	wait := slot.Sub(d.now())
	d.logger.Info("waiting for next push", "job", d.job.Name, "at", slot.Format(time.DateTime), "wait", wait.Round(time.Second))

	for wait > LongWait {
		if err := d.sleep(ctx, SliceWait); err != nil {
			return err
		}
		wait = slot.Sub(d.now())
	}
	if wait > 0 {
		if err := d.sleep(ctx, wait); err != nil {
			return err
		}
	}

	d.mu.Lock()
	d.lastSlot = slot
	d.mu.Unlock()
	return nil
}

// nextSlot is NextRun, skipping a slot that already ran (a timer firing a
// little early must not run the job twice).
func (d *Daily) nextSlot() time.Time {
	slot := NextRun(d.now(), d.clock)
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.lastSlot.IsZero() && !slot.After(d.lastSlot) {
		slot = NextRun(d.lastSlot, d.clock)
	}
	return slot
}

// runGuarded runs the job once. A job error is recorded and logged; only a
// panic is reported back to the loop.
func (d *Daily) runGuarded(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", d.job.Name, r)
			d.record(err)
		}
	}()

	d.logger.Info("running job", "name", d.job.Name)
	start := d.now()
	jobErr := d.job.Fn(ctx)
	d.record(jobErr)
	if jobErr != nil {
		d.logger.Error("job failed", "name", d.job.Name, "error", jobErr, "duration", d.now().Sub(start))
	} else {
		d.logger.Info("job completed", "name", d.job.Name, "duration", d.now().Sub(start))
	}
	return nil
}

func (d *Daily) record(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastRun = d.now()
	d.lastErr = err
}

func sleepCtx(ctx context.Context, dur time.Duration) error {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
