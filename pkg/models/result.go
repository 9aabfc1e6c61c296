package models

import "time"

// VerificationStatus values reported by verification workers.
const (
	// VerificationCompleted means the worker ran the full simulate-and-check
	// workflow to completion.
	VerificationCompleted = "completed"
)

// WorkerResult is the structured result a worker reports after executing a
// subtask. Only this structure and its free-text output are inspected; the
// worker itself is an opaque external call.
type WorkerResult struct {
	// AgentID is the worker that produced this result.
	AgentID string `json:"agent_id"`
	// SubtaskID is the subtask the result belongs to.
	SubtaskID string `json:"subtask_id"`
	// SubtaskType is the kind of work that was dispatched.
	SubtaskType SubtaskType `json:"subtask_type"`
	// Success is the worker's own claim of success. Gates and the
	// hallucination detector decide whether to believe it.
	Success bool `json:"success"`
	// Artifacts are the file names the worker claims to have produced.
	Artifacts []string `json:"artifacts,omitempty"`
	// Output is the worker's free-text report.
	Output string `json:"output,omitempty"`
	// VerificationStatus is set by verification workers; the verification
	// gate requires it to equal "completed".
	VerificationStatus string `json:"verification_status,omitempty"`
	// Error holds the failure message when Success is false.
	Error string `json:"error,omitempty"`
	// Duration is how long the worker call took.
	Duration time.Duration `json:"duration"`
}

// QualityGateResult is the evidence-backed outcome of a stage gate check.
type QualityGateResult struct {
	// Passed indicates whether advancement to the next stage is allowed.
	Passed bool `json:"passed"`
	// Score is the composite quality score [0,100] behind the decision.
	Score float64 `json:"score"`
	// Issues lists the specific predicates that failed, if any.
	Issues []string `json:"issues,omitempty"`
	// Evidence lists the artifacts supporting the decision.
	Evidence []string `json:"evidence,omitempty"`
}

// HallucinationType identifies the category of a fabricated claim.
type HallucinationType string

const (
	// HallucinationCapabilityBoundary means a worker's result references
	// artifacts its capability contract forbids it from producing.
	HallucinationCapabilityBoundary HallucinationType = "capability_boundary_hallucination"
	// HallucinationFileExistence means claimed artifact paths do not exist
	// in any known output location.
	HallucinationFileExistence HallucinationType = "file_existence_hallucination"
	// HallucinationUnsubstantiatedSuccess means the result claims success
	// with zero reference to any produced artifact.
	HallucinationUnsubstantiatedSuccess HallucinationType = "unsubstantiated_success_hallucination"
)

// HallucinationReport describes a fabricated claim detected in a worker result.
type HallucinationReport struct {
	// Type is the category of fabrication.
	Type HallucinationType `json:"type"`
	// Confidence is how certain the detector is (0.0-1.0).
	Confidence float64 `json:"confidence"`
	// Evidence lists the observations backing the report.
	Evidence []string `json:"evidence,omitempty"`
	// Recovery is the suggested corrective action.
	Recovery string `json:"recovery,omitempty"`
}

// CompletionAssessment is the scored judgment of whether a coordination
// session is truly finished.
type CompletionAssessment struct {
	// IsCompleted is true only when every required stage succeeded and
	// every required gate passed. The score alone can never assert this.
	IsCompleted bool `json:"is_completed"`
	// Score is the weighted completion score [0,100].
	Score float64 `json:"score"`
	// Missing lists the requirements not yet satisfied.
	Missing []string `json:"missing,omitempty"`
	// Quality is a coarse label (excellent, good, poor, failed).
	Quality string `json:"quality"`
	// NextSteps lists the recommended follow-up actions.
	NextSteps []string `json:"next_steps,omitempty"`
}
