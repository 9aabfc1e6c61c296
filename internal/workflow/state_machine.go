// Package workflow derives pipeline stages and evaluates quality gates.
//
// The stage is never stored: it is recomputed from the recorded subtask
// results on every iteration, trading storage for recomputation safety.
package workflow

import (
	"fmt"
	"strings"

	"veriflow/pkg/models"
)

// Stage is the derived position in the design -> verification pipeline.
type Stage string

const (
	// StageInitial means no stage has passed its gate yet.
	StageInitial Stage = "INITIAL"
	// StageDesignCompleted means the design gate has passed.
	StageDesignCompleted Stage = "DESIGN_COMPLETED"
	// StageVerificationCompleted means both gates have passed.
	StageVerificationCompleted Stage = "VERIFICATION_COMPLETED"
	// StageDone means the completion scorer confirmed the session finished.
	StageDone Stage = "DONE"
)

// Action is the next step the coordination loop should apply. NextAction
// is side-effect free; the loop owns execution.
type Action string

const (
	// ActionAssignDesign dispatches the design subtask.
	ActionAssignDesign Action = "assign-design"
	// ActionAssignVerification dispatches the verification subtask.
	ActionAssignVerification Action = "assign-verification"
	// ActionRetryDesign re-enters the design stage after a gate failure.
	ActionRetryDesign Action = "retry-design"
	// ActionRetryVerification re-enters the verification stage after a
	// gate failure.
	ActionRetryVerification Action = "retry-verification"
	// ActionComplete ends the session.
	ActionComplete Action = "complete"
)

// Gate thresholds per stage.
const (
	designQualityThreshold       = 60.0
	verificationQualityThreshold = 70.0
)

// Record pairs a worker result with its analysis outcome for one stage.
type Record struct {
	// Result is the worker's reported result.
	Result *models.WorkerResult
	// QualityScore is the analyzer's composite score for the result.
	QualityScore float64
	// Hallucination is non-nil when the detector flagged the result.
	Hallucination *models.HallucinationReport
	// Gate is the evaluated gate outcome, set by the coordination loop
	// after gate evaluation.
	Gate *models.QualityGateResult
}

// Results maps each pipeline role to its most recent record.
type Results map[models.SubtaskType]*Record

// DetermineStage recomputes the pipeline stage from the recorded results.
// It is a pure function: invoking it twice on the same results yields the
// same stage. Verification can never become the active stage before the
// design gate has passed.
func DetermineStage(results Results) Stage {
	if !gatePassed(results, models.SubtaskDesign) {
		return StageInitial
	}
	if !gatePassed(results, models.SubtaskVerification) {
		return StageDesignCompleted
	}
	return StageVerificationCompleted
}

// gatePassed reports whether the role has a recorded result that passed
// its gate.
func gatePassed(results Results, role models.SubtaskType) bool {
	rec, ok := results[role]
	return ok && rec != nil && rec.Gate != nil && rec.Gate.Passed
}

// EvaluateDesignGate checks the design-stage predicates: at least one
// artifact produced, the call reported success, quality score at or above
// the threshold, and no hallucination detected. Any failed predicate is
// listed so the retry carries the specific reasons.
func EvaluateDesignGate(rec *Record) models.QualityGateResult {
	gate := models.QualityGateResult{Score: rec.QualityScore}

	if len(rec.Result.Artifacts) == 0 {
		gate.Issues = append(gate.Issues, "no artifact was produced")
	}
	if !rec.Result.Success {
		gate.Issues = append(gate.Issues, "worker reported failure")
	}
	if rec.QualityScore < designQualityThreshold {
		gate.Issues = append(gate.Issues, fmt.Sprintf("quality score %.1f below threshold %.0f", rec.QualityScore, designQualityThreshold))
	}
	if rec.Hallucination != nil {
		gate.Issues = append(gate.Issues, fmt.Sprintf("hallucination detected: %s", rec.Hallucination.Type))
	}

	gate.Passed = len(gate.Issues) == 0
	gate.Evidence = append(gate.Evidence, rec.Result.Artifacts...)
	return gate
}

// EvaluateVerificationGate checks the verification-stage predicates: at
// least one artifact recognizable as a verification artifact, the call
// reported success, quality score at or above the threshold, and the
// explicit verification-status field equals "completed".
func EvaluateVerificationGate(rec *Record) models.QualityGateResult {
	gate := models.QualityGateResult{Score: rec.QualityScore}

	if !hasVerificationArtifact(rec.Result.Artifacts) {
		gate.Issues = append(gate.Issues, "no recognizable verification artifact was produced")
	}
	if !rec.Result.Success {
		gate.Issues = append(gate.Issues, "worker reported failure")
	}
	if rec.QualityScore < verificationQualityThreshold {
		gate.Issues = append(gate.Issues, fmt.Sprintf("quality score %.1f below threshold %.0f", rec.QualityScore, verificationQualityThreshold))
	}
	if rec.Result.VerificationStatus != models.VerificationCompleted {
		gate.Issues = append(gate.Issues, fmt.Sprintf("verification status is %q, want %q", rec.Result.VerificationStatus, models.VerificationCompleted))
	}

	gate.Passed = len(gate.Issues) == 0
	gate.Evidence = append(gate.Evidence, rec.Result.Artifacts...)
	return gate
}

// EvaluateGenericGate checks the predicates shared by single-stage
// sessions (analysis, debug): the call reported success, quality score at
// or above the design threshold, and no hallucination detected. Artifact
// production is not required; analysis work is read-only.
func EvaluateGenericGate(rec *Record) models.QualityGateResult {
	gate := models.QualityGateResult{Score: rec.QualityScore}

	if !rec.Result.Success {
		gate.Issues = append(gate.Issues, "worker reported failure")
	}
	if rec.QualityScore < designQualityThreshold {
		gate.Issues = append(gate.Issues, fmt.Sprintf("quality score %.1f below threshold %.0f", rec.QualityScore, designQualityThreshold))
	}
	if rec.Hallucination != nil {
		gate.Issues = append(gate.Issues, fmt.Sprintf("hallucination detected: %s", rec.Hallucination.Type))
	}

	gate.Passed = len(gate.Issues) == 0
	gate.Evidence = append(gate.Evidence, rec.Result.Artifacts...)
	return gate
}

// IsVerificationArtifact applies the name heuristic for verification
// artifacts: testbench naming conventions (_tb/tb_) or test prefixes.
func IsVerificationArtifact(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "_tb") ||
		strings.HasPrefix(lower, "tb_") ||
		strings.Contains(lower, "testbench") ||
		strings.HasPrefix(lower, "test_")
}

// hasVerificationArtifact returns true if any artifact name matches the
// verification heuristic.
func hasVerificationArtifact(artifacts []string) bool {
	for _, a := range artifacts {
		if IsVerificationArtifact(a) {
			return true
		}
	}
	return false
}

// NextAction maps the derived stage and the latest gate outcomes to the
// single next step. It is pure; the coordination loop applies the action.
func NextAction(stage Stage, results Results) Action {
	switch stage {
	case StageInitial:
		if rec, ok := results[models.SubtaskDesign]; ok && rec != nil && rec.Gate != nil && !rec.Gate.Passed {
			return ActionRetryDesign
		}
		return ActionAssignDesign
	case StageDesignCompleted:
		if rec, ok := results[models.SubtaskVerification]; ok && rec != nil && rec.Gate != nil && !rec.Gate.Passed {
			return ActionRetryVerification
		}
		return ActionAssignVerification
	default:
		return ActionComplete
	}
}
