package cron

import (
	"sync"

	rcron "github.com/robfig/cron/v3"
)

// Status is the lifecycle stage of a scheduled report.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusIdle      Status = "idle"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped"
)

// Terminal reports whether no further runs follow this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCanceled, StatusFailed, StatusStopped:
		return true
	}
	return false
}

// Handle controls one scheduled report.
type Handle interface {
	Cancel()
	Status() Status
	// Err is the error of the most recent run, nil after a successful one.
	Err() error
	// Done is closed once the handle reaches a terminal status.
	Done() <-chan struct{}
}

type handle struct {
	scheduler *Scheduler
	done      chan struct{}

	mu     sync.Mutex
	entry  rcron.EntryID
	status Status
	err    error
}

func (h *handle) Cancel() {
	if h.finish(StatusCanceled, nil) {
		h.scheduler.forget(h)
	}
}

func (h *handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

func (h *handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *handle) Done() <-chan struct{} {
	return h.done
}

func (h *handle) setEntry(id rcron.EntryID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entry = id
}

func (h *handle) entryID() rcron.EntryID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entry
}

// begin marks a run as started unless the handle already ended.
func (h *handle) begin() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status.Terminal() {
		return false
	}
	h.status = StatusRunning
	return true
}

// settle records a recurring run and returns the handle to idle.
func (h *handle) settle(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status.Terminal() {
		return
	}
	h.status = StatusIdle
	h.err = err
}

// finish moves the handle to a terminal status once; later calls report false.
func (h *handle) finish(status Status, err error) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status.Terminal() {
		return false
	}
	h.status = status
	h.err = err
	close(h.done)
	return true
}
