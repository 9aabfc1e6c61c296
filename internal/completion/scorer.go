// Package completion scores whether a coordination session truly finished
// and enforces that judgment against optimistic planner output.
package completion

import (
	"fmt"

	"veriflow/internal/workflow"
	"veriflow/pkg/models"
)

// Stage weights in the two-phase pipeline. Design carries more weight
// because nothing downstream can exist without it. Sessions with any
// other stage mix split the weight evenly.
const (
	designWeight       = 0.6
	verificationWeight = 0.4
)

// MinimumScore is the lowest completion score accepted as finished.
const MinimumScore = 60.0

// Scorer derives a completion assessment from the recorded stage results.
// Each stage contributes all of its weight or none of it: partially
// passed gates do not earn partial credit.
type Scorer struct{}

// NewScorer creates a Scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Assess computes the completion assessment for the recorded results
// against the session's required stages. IsCompleted requires every
// required gate to have passed; the numeric score alone can never
// assert completion.
func (s *Scorer) Assess(results workflow.Results, required []models.SubtaskType) *models.CompletionAssessment {
	assessment := &models.CompletionAssessment{IsCompleted: true}

	for _, role := range required {
		weight := stageWeight(role, required)
		if stageGatePassed(results, role) {
			assessment.Score += 100 * weight
			continue
		}
		assessment.IsCompleted = false
		assessment.Missing = append(assessment.Missing, fmt.Sprintf("%s stage has not passed its quality gate", role))
		assessment.NextSteps = append(assessment.NextSteps, stageNextStep(results, role))
	}
	if len(required) == 0 {
		assessment.IsCompleted = false
		assessment.Missing = append(assessment.Missing, "no required stage recorded")
	}

	assessment.Quality = qualityLabel(assessment.Score, results)
	return assessment
}

// stageWeight returns the completion weight for one required stage. The
// design/verification pipeline keeps its fixed split; other stage mixes
// share the weight evenly.
func stageWeight(role models.SubtaskType, required []models.SubtaskType) float64 {
	if len(required) == 2 && containsStage(required, models.SubtaskDesign) && containsStage(required, models.SubtaskVerification) {
		if role == models.SubtaskDesign {
			return designWeight
		}
		return verificationWeight
	}
	return 1.0 / float64(len(required))
}

func containsStage(stages []models.SubtaskType, role models.SubtaskType) bool {
	for _, s := range stages {
		if s == role {
			return true
		}
	}
	return false
}

// stageGatePassed reports whether the stage has a recorded, passed gate.
func stageGatePassed(results workflow.Results, role models.SubtaskType) bool {
	rec, ok := results[role]
	return ok && rec != nil && rec.Gate != nil && rec.Gate.Passed
}

// stageNextStep describes the concrete follow-up for an unmet stage.
func stageNextStep(results workflow.Results, role models.SubtaskType) string {
	rec, ok := results[role]
	if !ok || rec == nil || rec.Gate == nil {
		return fmt.Sprintf("dispatch the %s subtask", role)
	}
	if len(rec.Gate.Issues) > 0 {
		return fmt.Sprintf("retry the %s subtask addressing: %s", role, rec.Gate.Issues[0])
	}
	return fmt.Sprintf("retry the %s subtask", role)
}

// qualityLabel maps the score and gate evidence to a coarse label.
func qualityLabel(score float64, results workflow.Results) string {
	switch {
	case score >= 100:
		if avgGateScore(results) >= 85 {
			return "excellent"
		}
		return "good"
	case score >= MinimumScore:
		return "poor"
	default:
		return "failed"
	}
}

// avgGateScore averages the recorded gate quality scores.
func avgGateScore(results workflow.Results) float64 {
	var sum float64
	var n int
	for _, rec := range results {
		if rec != nil && rec.Gate != nil {
			sum += rec.Gate.Score
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
