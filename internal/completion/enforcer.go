package completion

import (
	"fmt"
	"log"

	"veriflow/internal/workflow"
	"veriflow/pkg/models"
)

// Verdict is the enforcement outcome for a proposed session finish.
type Verdict struct {
	// Allowed is true when the session may finish.
	Allowed bool
	// Reason explains a veto.
	Reason string
	// ForcedStage is the first unmet stage the loop must return to.
	// Set only on veto.
	ForcedStage models.SubtaskType
	// Assessment is the completion assessment behind the verdict.
	Assessment *models.CompletionAssessment
}

// Enforcer vetoes premature finish attempts. The planner may claim the
// work is done; only a completion assessment with every required gate
// passed and an acceptable score can actually end a session.
type Enforcer struct {
	scorer *Scorer
}

// NewEnforcer creates an Enforcer.
func NewEnforcer(scorer *Scorer) *Enforcer {
	return &Enforcer{scorer: scorer}
}

// Review judges a finish attempt against the recorded results. On veto it
// names the first unmet required stage so the loop returns to it.
func (e *Enforcer) Review(results workflow.Results, required []models.SubtaskType) Verdict {
	assessment := e.scorer.Assess(results, required)

	if !assessment.IsCompleted {
		stage := firstUnmetStage(results, required)
		log.Printf("[completion] finish vetoed: %d requirement(s) unmet, forcing %s", len(assessment.Missing), stage)
		return Verdict{
			Reason:      fmt.Sprintf("completion requirements unmet: %v", assessment.Missing),
			ForcedStage: stage,
			Assessment:  assessment,
		}
	}
	if assessment.Score < MinimumScore {
		stage := firstUnmetStage(results, required)
		log.Printf("[completion] finish vetoed: score %.1f below minimum %.0f", assessment.Score, MinimumScore)
		return Verdict{
			Reason:      fmt.Sprintf("completion score %.1f below minimum %.0f", assessment.Score, MinimumScore),
			ForcedStage: stage,
			Assessment:  assessment,
		}
	}

	return Verdict{Allowed: true, Assessment: assessment}
}

// firstUnmetStage returns the first required stage without a passed gate,
// in pipeline order.
func firstUnmetStage(results workflow.Results, required []models.SubtaskType) models.SubtaskType {
	for _, role := range required {
		if !stageGatePassed(results, role) {
			return role
		}
	}
	if len(required) > 0 {
		return required[0]
	}
	return models.SubtaskDesign
}
