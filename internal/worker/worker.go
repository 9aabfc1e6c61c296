// Package worker defines the worker contract and asynchronous dispatch.
//
// Workers are opaque external executors. The coordination core hands one
// a subtask description plus design context and gets back a structured
// result; everything else about how the worker operates is its own
// business.
package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"veriflow/pkg/models"
)

// Default dispatch bounds.
const (
	// DefaultWait bounds how long one worker call may run.
	DefaultWait = 300 * time.Second
	// pollInterval is how often the dispatcher reports on a pending call.
	pollInterval = 2 * time.Second
)

// Worker executes one subtask and reports a structured result.
type Worker interface {
	// Execute runs the subtask. The design context carries whatever prior
	// stages produced that the worker needs to see.
	Execute(ctx context.Context, subtask *models.Subtask, taskID, designContext string) (*models.WorkerResult, error)
}

// TimeoutError reports a worker call that exceeded the dispatch bound.
type TimeoutError struct {
	AgentID   string
	SubtaskID string
	Waited    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("worker %s did not complete subtask %s within %s", e.AgentID, e.SubtaskID, e.Waited)
}

// Handle tracks one in-flight worker call.
type Handle struct {
	agentID   string
	subtaskID string
	started   time.Time
	done      chan struct{}
	result    *models.WorkerResult
	err       error
}

// Done returns a channel closed when the underlying call returns.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Dispatcher runs worker calls asynchronously with a bounded wait.
type Dispatcher struct {
	wait time.Duration
}

// NewDispatcher creates a Dispatcher with the default wait bound.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{wait: DefaultWait}
}

// SetWait overrides the wait bound.
func (d *Dispatcher) SetWait(wait time.Duration) {
	d.wait = wait
}

// Dispatch starts the worker call in the background and returns a handle.
func (d *Dispatcher) Dispatch(ctx context.Context, w Worker, agentID string, subtask *models.Subtask, taskID, designContext string) *Handle {
	h := &Handle{
		agentID:   agentID,
		subtaskID: subtask.ID,
		started:   time.Now(),
		done:      make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		result, err := w.Execute(ctx, subtask, taskID, designContext)
		if result != nil {
			result.AgentID = agentID
			result.SubtaskID = subtask.ID
			result.SubtaskType = subtask.Type
			result.Duration = time.Since(h.started)
		}
		h.result, h.err = result, err
	}()

	log.Printf("[worker] dispatched subtask %s (%s) to %s", subtask.ID, subtask.Type, agentID)
	return h
}

// Await blocks until the call completes, the wait bound elapses, or the
// context is canceled. A timed-out call yields a failed result so gates
// and retry accounting see it like any other failure.
func (d *Dispatcher) Await(ctx context.Context, h *Handle) (*models.WorkerResult, error) {
	deadline := time.NewTimer(d.wait)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return h.result, h.err
		case <-ticker.C:
			log.Printf("[worker] waiting on %s for subtask %s (%s elapsed)", h.agentID, h.subtaskID, time.Since(h.started).Round(time.Second))
		case <-deadline.C:
			err := &TimeoutError{AgentID: h.agentID, SubtaskID: h.subtaskID, Waited: d.wait}
			return failedResult(h, err.Error()), err
		case <-ctx.Done():
			return failedResult(h, ctx.Err().Error()), ctx.Err()
		}
	}
}

// failedResult synthesizes a failed result for a call that never reported.
func failedResult(h *Handle, msg string) *models.WorkerResult {
	return &models.WorkerResult{
		AgentID:   h.agentID,
		SubtaskID: h.subtaskID,
		Success:   false,
		Error:     msg,
		Duration:  time.Since(h.started),
	}
}
