// Package cron runs order reports on robfig/cron: recurring reports on a cron
// schedule and one-off reports after a delay.
package cron

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// Logger is the subset of the engine logger the scheduler writes to.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Job is the unit of scheduled work.
type Job func(ctx context.Context) error

// Report names a job and bounds each of its runs.
type Report struct {
	Name     string
	Schedule string        // cron expression or descriptor, e.g. "@every 1m"; used by Schedule only
	Timeout  time.Duration // per run; zero leaves the run unbounded
}

func (r Report) name() string {
	if name := strings.TrimSpace(r.Name); name != "" {
		return name
	}
	return "report"
}

// Scheduler owns a robfig/cron instance and the handles it gave out.
type Scheduler struct {
	cron     *rcron.Cron
	location *time.Location
	logger   Logger
	logLevel LogLevel
	onError  func(error)

	mu      sync.Mutex
	handles map[*handle]struct{}
}

// NewScheduler builds a stopped scheduler.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		location: time.Local,
		logLevel: LogLevelError,
		onError:  func(err error) { log.Printf("cron: %v", err) },
		handles:  make(map[*handle]struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	cronOpts := []rcron.Option{rcron.WithLocation(s.location)}
	if s.logger != nil {
		adapter := &loggerAdapter{logger: s.logger, level: s.logLevel}
		cronOpts = append(cronOpts, rcron.WithLogger(adapter), rcron.WithChain(rcron.Recover(adapter)))
	}
	s.cron = rcron.New(cronOpts...)
	return s
}

// Location returns the zone schedules are evaluated in.
func (s *Scheduler) Location() *time.Location {
	return s.cron.Location()
}

// Schedule runs job on r.Schedule until the handle is canceled or the
// scheduler stops. A failed run is reported and the schedule continues.
func (s *Scheduler) Schedule(r Report, job Job) (Handle, error) {
	if strings.TrimSpace(r.Schedule) == "" {
		return nil, fmt.Errorf("%s: schedule cannot be empty", r.name())
	}
	run, err := s.runner(r, job)
	if err != nil {
		return nil, err
	}

	h := s.track()
	entry, err := s.cron.AddFunc(r.Schedule, func() {
		if !h.begin() {
			return
		}
		err := run()
		if err != nil {
			s.onError(err)
		}
		h.settle(err)
	})
	if err != nil {
		s.forget(h)
		return nil, fmt.Errorf("%s: invalid schedule %q: %w", r.name(), r.Schedule, err)
	}
	h.setEntry(entry)
	return h, nil
}

// RunAfter runs job once after delay. It does not need Start.
func (s *Scheduler) RunAfter(delay time.Duration, r Report, job Job) (Handle, error) {
	run, err := s.runner(r, job)
	if err != nil {
		return nil, err
	}
	if delay < 0 {
		delay = 0
	}

	h := s.track()
	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-h.done:
			return
		}
		if !h.begin() {
			return
		}
		err := run()
		if err != nil {
			s.onError(err)
		}
		s.forget(h)
		if err != nil {
			h.finish(StatusFailed, err)
			return
		}
		h.finish(StatusCompleted, nil)
	}()
	return h, nil
}

// Start begins firing recurring reports.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop ends every handle with StatusStopped and waits for running reports or
// ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	stopped := s.cron.Stop()

	s.mu.Lock()
	handles := make([]*handle, 0, len(s.handles))
	for h := range s.handles {
		handles = append(handles, h)
	}
	s.handles = make(map[*handle]struct{})
	s.mu.Unlock()

	for _, h := range handles {
		if id := h.entryID(); id != 0 {
			s.cron.Remove(id)
		}
		h.finish(StatusStopped, nil)
	}

	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) track() *handle {
	h := &handle{scheduler: s, status: StatusScheduled, done: make(chan struct{})}
	s.mu.Lock()
	s.handles[h] = struct{}{}
	s.mu.Unlock()
	return h
}

func (s *Scheduler) forget(h *handle) {
	s.mu.Lock()
	delete(s.handles, h)
	s.mu.Unlock()
	if id := h.entryID(); id != 0 {
		s.cron.Remove(id)
	}
}

// runner binds job to r: a per-run timeout and the report name on errors.
func (s *Scheduler) runner(r Report, job Job) (func() error, error) {
	if job == nil {
		return nil, fmt.Errorf("%s: job cannot be nil", r.name())
	}
	name := r.name()
	return func() error {
		ctx := context.Background()
		if r.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.Timeout)
			defer cancel()
		}
		if s.logger != nil && s.logLevel >= LogLevelDebug {
			s.logger.Info("running %s", name)
		}
		if err := job(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	}, nil
}
