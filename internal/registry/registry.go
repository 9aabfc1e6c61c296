// Package registry manages worker agent profiles and selection.
package registry

import (
	"fmt"
	"sync"
	"time"

	"veriflow/pkg/models"
)

// DefaultDisableThreshold is the consecutive-failure count at which a
// worker is taken out of rotation.
const DefaultDisableThreshold = 3

// Registry provides thread-safe storage and mutation of worker profiles.
// It is an explicit object passed into the coordination loop rather than a
// process-wide singleton, so tests inject a fresh registry each time.
type Registry struct {
	// profiles maps worker IDs to their profiles.
	profiles map[string]*models.AgentProfile
	// disableThreshold is the failure streak that disables a worker.
	disableThreshold int
	// mu protects all fields.
	mu sync.RWMutex
}

// New creates an empty Registry with the default disable threshold.
func New() *Registry {
	return &Registry{
		profiles:         make(map[string]*models.AgentProfile),
		disableThreshold: DefaultDisableThreshold,
	}
}

// SetDisableThreshold overrides the consecutive-failure disable threshold.
// Values below 1 are ignored.
func (r *Registry) SetDisableThreshold(n int) {
	if n < 1 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disableThreshold = n
}

// Register adds a worker profile. New workers start idle.
func (r *Registry) Register(p *models.AgentProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.Status == "" {
		p.Status = models.AgentIdle
	}
	r.profiles[p.ID] = p
}

// Get retrieves a profile by worker ID. Returns nil if not registered.
func (r *Registry) Get(agentID string) *models.AgentProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.profiles[agentID]
}

// All returns the registered profiles in unspecified order.
func (r *Registry) All() []*models.AgentProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.AgentProfile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	return out
}

// Idle returns the idle workers whose capability set permits the type.
func (r *Registry) Idle(t models.SubtaskType) []*models.AgentProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.AgentProfile
	for _, p := range r.profiles {
		if p.Status == models.AgentIdle && p.CanHandle(t) {
			out = append(out, p)
		}
	}
	return out
}

// Acquire marks a worker busy for the duration of a dispatch. It is the
// sole mutual-exclusion mechanism on a worker: the status is checked and
// set under one lock immediately before dispatch.
func (r *Registry) Acquire(agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[agentID]
	if !ok {
		return fmt.Errorf("acquire worker %s: not registered", agentID)
	}
	if p.Status != models.AgentIdle {
		return fmt.Errorf("acquire worker %s: status is %s", agentID, p.Status)
	}
	p.Status = models.AgentBusy
	return nil
}

// Release returns a busy worker to idle. Disabled workers stay disabled.
func (r *Registry) Release(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[agentID]
	if !ok || p.Status == models.AgentDisabled {
		return
	}
	p.Status = models.AgentIdle
}

// RecordSuccess updates a worker's stats after a successful dispatch.
// Any success resets the failure streak.
func (r *Registry) RecordSuccess(agentID string, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[agentID]
	if !ok {
		return
	}
	p.Successes++
	p.ConsecutiveSuccesses++
	p.ConsecutiveFailures = 0
	p.AvgLatency = rollLatency(p.AvgLatency, latency, p.Successes+p.Failures)
}

// RecordFailure updates a worker's stats after a failed dispatch and
// disables the worker once its failure streak exceeds the threshold.
func (r *Registry) RecordFailure(agentID string, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[agentID]
	if !ok {
		return
	}
	p.Failures++
	p.ConsecutiveFailures++
	p.ConsecutiveSuccesses = 0
	p.AvgLatency = rollLatency(p.AvgLatency, latency, p.Successes+p.Failures)

	if p.ConsecutiveFailures >= r.disableThreshold {
		p.Status = models.AgentDisabled
	}
}

// rollLatency folds a new observation into the running average.
func rollLatency(avg, latest time.Duration, count int) time.Duration {
	if count <= 1 {
		return latest
	}
	return avg + (latest-avg)/time.Duration(count)
}
