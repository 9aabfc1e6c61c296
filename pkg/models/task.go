// Package models defines the shared data model for veriflow coordination.
package models

import "time"

// SubtaskType categorizes a unit of work within a coordination session.
type SubtaskType string

const (
	// SubtaskDesign is RTL design work producing a primary design artifact.
	SubtaskDesign SubtaskType = "design"
	// SubtaskVerification is testbench and simulation work against a design.
	SubtaskVerification SubtaskType = "verification"
	// SubtaskAnalysis is read-only inspection of existing artifacts.
	SubtaskAnalysis SubtaskType = "analysis"
	// SubtaskDebug is targeted fixing of a failing design or simulation.
	SubtaskDebug SubtaskType = "debug"
	// SubtaskComposite is a request requiring multiple ordered subtask types.
	SubtaskComposite SubtaskType = "composite"
)

// Valid returns true if the type is a known value.
func (t SubtaskType) Valid() bool {
	switch t {
	case SubtaskDesign, SubtaskVerification, SubtaskAnalysis, SubtaskDebug, SubtaskComposite:
		return true
	default:
		return false
	}
}

// Priority is the urgency level attached to a task request.
type Priority string

const (
	// PriorityHigh marks urgent work scheduled before everything else.
	PriorityHigh Priority = "high"
	// PriorityMedium is the default priority.
	PriorityMedium Priority = "medium"
	// PriorityLow marks background work.
	PriorityLow Priority = "low"
)

// SubtaskStatus represents the current state of a subtask.
type SubtaskStatus string

const (
	// SubtaskStatusPending indicates the subtask has not been dispatched.
	SubtaskStatusPending SubtaskStatus = "pending"
	// SubtaskStatusInProgress indicates a worker is executing the subtask.
	SubtaskStatusInProgress SubtaskStatus = "in_progress"
	// SubtaskStatusDone indicates the subtask completed and passed its gate.
	SubtaskStatusDone SubtaskStatus = "done"
	// SubtaskStatusFailed indicates the subtask failed or its gate rejected it.
	SubtaskStatusFailed SubtaskStatus = "failed"
)

// TaskRequest is a natural-language coordination request with its budgets.
type TaskRequest struct {
	// ID is the unique identifier for this request.
	ID string `json:"id"`
	// Text is the original natural-language request.
	Text string `json:"text"`
	// Priority is the derived or explicit urgency of the request.
	Priority Priority `json:"priority"`
	// MaxIterations bounds the coordination loop.
	MaxIterations int `json:"max_iterations"`
	// MaxRetries bounds gate-failure retries per stage.
	MaxRetries int `json:"max_retries"`
	// Retries counts retries consumed so far.
	Retries int `json:"retries"`
	// CreatedAt is when coordination started.
	CreatedAt time.Time `json:"created_at"`
}

// Subtask is one unit of work within a coordination session, bound to
// exactly one worker whose capability set permits its type.
type Subtask struct {
	// ID is the unique identifier for this subtask.
	ID string `json:"id"`
	// Type is the kind of work this subtask represents.
	Type SubtaskType `json:"type"`
	// Description is the instruction handed to the assigned worker.
	Description string `json:"description"`
	// AssignedTo is the ID of the worker executing this subtask.
	AssignedTo string `json:"assigned_to,omitempty"`
	// Status is the current state of the subtask.
	Status SubtaskStatus `json:"status"`
}

// Plan is an ordered list of subtasks produced by decomposition.
// For composite requests the order is always [design, verification].
type Plan struct {
	// Subtasks are the planned units of work in execution order.
	Subtasks []*Subtask `json:"subtasks"`
	// Rationale explains why the request was decomposed this way.
	Rationale string `json:"rationale"`
}
