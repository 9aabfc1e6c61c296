package models

import "time"

// AgentStatus represents the availability of a worker agent.
type AgentStatus string

const (
	// AgentIdle indicates the worker can accept an assignment.
	AgentIdle AgentStatus = "idle"
	// AgentBusy indicates the worker is executing a subtask.
	AgentBusy AgentStatus = "busy"
	// AgentDisabled indicates the worker was taken out of rotation
	// after exceeding its failure-streak threshold.
	AgentDisabled AgentStatus = "disabled"
)

// Valid returns true if the status is a known value.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentIdle, AgentBusy, AgentDisabled:
		return true
	default:
		return false
	}
}

// AgentProfile describes a registered worker agent: its declared capability
// contract and its cumulative execution statistics. Profiles are
// process-scoped and mutated after every dispatch.
type AgentProfile struct {
	// ID is the unique identifier for this worker.
	ID string `json:"id" yaml:"id"`
	// Specialty is free text describing what the worker is good at.
	Specialty string `json:"specialty" yaml:"specialty"`
	// Capabilities is the set of subtask types this worker may be assigned.
	Capabilities []SubtaskType `json:"capabilities" yaml:"capabilities"`
	// PreferredTypes are subtask types this worker is tuned for; selection
	// awards a bonus when the subtask type is preferred.
	PreferredTypes []SubtaskType `json:"preferred_types,omitempty" yaml:"preferred_types"`
	// BlacklistedTypes are subtask types this worker handles poorly;
	// selection applies a penalty but the boundary validator is the
	// authority on hard denials.
	BlacklistedTypes []SubtaskType `json:"blacklisted_types,omitempty" yaml:"blacklisted_types"`
	// DenyKeywords are description keywords this worker must never be
	// assigned, regardless of subtask type.
	DenyKeywords []string `json:"deny_keywords,omitempty" yaml:"deny_keywords"`
	// Status is the current availability of the worker.
	Status AgentStatus `json:"status" yaml:"-"`
	// Successes is the cumulative successful dispatch count.
	Successes int `json:"successes" yaml:"-"`
	// Failures is the cumulative failed dispatch count.
	Failures int `json:"failures" yaml:"-"`
	// ConsecutiveSuccesses is the current success streak.
	ConsecutiveSuccesses int `json:"consecutive_successes" yaml:"-"`
	// ConsecutiveFailures is the current failure streak. It resets on any
	// success and disables the worker once a threshold is exceeded.
	ConsecutiveFailures int `json:"consecutive_failures" yaml:"-"`
	// AvgLatency is the rolling average duration of this worker's calls.
	AvgLatency time.Duration `json:"avg_latency" yaml:"-"`
}

// CanHandle returns true if the worker's capability set permits the type.
func (p *AgentProfile) CanHandle(t SubtaskType) bool {
	for _, c := range p.Capabilities {
		if c == t {
			return true
		}
	}
	return false
}

// Prefers returns true if the subtask type is in the worker's preferred set.
func (p *AgentProfile) Prefers(t SubtaskType) bool {
	for _, c := range p.PreferredTypes {
		if c == t {
			return true
		}
	}
	return false
}

// Blacklists returns true if the subtask type is in the worker's blacklist.
func (p *AgentProfile) Blacklists(t SubtaskType) bool {
	for _, c := range p.BlacklistedTypes {
		if c == t {
			return true
		}
	}
	return false
}

// SuccessRate returns the worker's lifetime success ratio (0.0-1.0).
// Workers with no history score a neutral 0.5.
func (p *AgentProfile) SuccessRate() float64 {
	total := p.Successes + p.Failures
	if total == 0 {
		return 0.5
	}
	return float64(p.Successes) / float64(total)
}
