// Package boundary enforces worker capability contracts before dispatch.
package boundary

import (
	"fmt"
	"strings"

	"veriflow/pkg/models"
)

// Result is the outcome of a capability boundary check.
type Result struct {
	// Valid is true when the assignment honors the worker's contract.
	Valid bool
	// Reason explains a rejection.
	Reason string
	// SuggestedAction is the corrective step for a rejection, usually
	// re-decomposing and routing the denied portion to the right worker.
	SuggestedAction string
}

// ViolationError is returned when an assignment crosses a capability
// boundary. It is fatal for that specific worker/subtask pairing and is
// never retried with the same pairing.
type ViolationError struct {
	// AgentID is the worker that was rejected.
	AgentID string
	// SubtaskType is the kind of work that was attempted.
	SubtaskType models.SubtaskType
	// Reason explains the violation.
	Reason string
	// SuggestedAction is the corrective step.
	SuggestedAction string
}

// Error implements the error interface.
func (e *ViolationError) Error() string {
	return fmt.Sprintf("capability boundary violation: agent %s cannot take %s work: %s",
		e.AgentID, e.SubtaskType, e.Reason)
}

// Validator checks subtask-to-worker assignments against declared
// capability contracts. Violations are rejected before the worker is
// invoked so no external call is wasted.
type Validator struct{}

// NewValidator creates a Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Verify checks an assignment against the worker's allow list (capability
// set) and deny list (forbidden description keywords). Either check failing
// rejects the assignment with a suggested corrective action.
func (v *Validator) Verify(profile *models.AgentProfile, subtaskType models.SubtaskType, description string) Result {
	if profile == nil {
		return Result{
			Valid:           false,
			Reason:          "unknown worker",
			SuggestedAction: "register the worker before assigning work to it",
		}
	}

	if !profile.CanHandle(subtaskType) {
		return Result{
			Valid: false,
			Reason: fmt.Sprintf("worker %s capability set %v does not permit subtask type %q",
				profile.ID, profile.Capabilities, subtaskType),
			SuggestedAction: fmt.Sprintf("route the %s subtask to a worker whose capability set includes it", subtaskType),
		}
	}

	lower := strings.ToLower(description)
	for _, kw := range profile.DenyKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return Result{
				Valid: false,
				Reason: fmt.Sprintf("description contains %q, which worker %s must never be assigned",
					kw, profile.ID),
				SuggestedAction: "re-decompose the request and route the denied portion to the correct worker",
			}
		}
	}

	return Result{Valid: true}
}

// VerifyOrError is a convenience wrapper returning a ViolationError on
// rejection for callers that branch on the error type.
func (v *Validator) VerifyOrError(profile *models.AgentProfile, subtaskType models.SubtaskType, description string) error {
	res := v.Verify(profile, subtaskType, description)
	if res.Valid {
		return nil
	}
	agentID := ""
	if profile != nil {
		agentID = profile.ID
	}
	return &ViolationError{
		AgentID:         agentID,
		SubtaskType:     subtaskType,
		Reason:          res.Reason,
		SuggestedAction: res.SuggestedAction,
	}
}
