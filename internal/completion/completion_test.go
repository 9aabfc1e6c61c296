package completion

import (
	"testing"

	"veriflow/internal/workflow"
	"veriflow/pkg/models"
)

var bothStages = []models.SubtaskType{models.SubtaskDesign, models.SubtaskVerification}

func passedRecord(score float64) *workflow.Record {
	return &workflow.Record{
		Result:       &models.WorkerResult{Success: true, Artifacts: []string{"counter.v"}},
		QualityScore: score,
		Gate:         &models.QualityGateResult{Passed: true, Score: score},
	}
}

func failedRecord() *workflow.Record {
	return &workflow.Record{
		Result:       &models.WorkerResult{Success: false},
		QualityScore: 10,
		Gate:         &models.QualityGateResult{Passed: false, Score: 10, Issues: []string{"worker reported failure"}},
	}
}

func TestScorer_StageWeights(t *testing.T) {
	tests := []struct {
		name          string
		results       workflow.Results
		expectedScore float64
		completed     bool
	}{
		{
			name:          "nothing recorded",
			results:       workflow.Results{},
			expectedScore: 0,
			completed:     false,
		},
		{
			name:          "design only",
			results:       workflow.Results{models.SubtaskDesign: passedRecord(90)},
			expectedScore: 60,
			completed:     false,
		},
		{
			name:          "verification only",
			results:       workflow.Results{models.SubtaskVerification: passedRecord(90)},
			expectedScore: 40,
			completed:     false,
		},
		{
			name: "both passed",
			results: workflow.Results{
				models.SubtaskDesign:       passedRecord(90),
				models.SubtaskVerification: passedRecord(90),
			},
			expectedScore: 100,
			completed:     true,
		},
		{
			name: "verification failed",
			results: workflow.Results{
				models.SubtaskDesign:       passedRecord(90),
				models.SubtaskVerification: failedRecord(),
			},
			expectedScore: 60,
			completed:     false,
		},
	}

	s := NewScorer()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := s.Assess(tc.results, bothStages)
			if got.Score != tc.expectedScore {
				t.Errorf("Score = %.1f, want %.1f", got.Score, tc.expectedScore)
			}
			if got.IsCompleted != tc.completed {
				t.Errorf("IsCompleted = %t, want %t", got.IsCompleted, tc.completed)
			}
		})
	}
}

func TestScorer_NeverCompletedWithUnpassedGate(t *testing.T) {
	s := NewScorer()

	// A high score can coexist with an unmet requirement; completion is a
	// gate property, never a score property.
	results := workflow.Results{models.SubtaskDesign: passedRecord(100)}
	got := s.Assess(results, bothStages)
	if got.IsCompleted {
		t.Error("IsCompleted true with an unpassed verification gate")
	}
	if len(got.Missing) == 0 {
		t.Error("incomplete assessment lists nothing missing")
	}
	if len(got.NextSteps) == 0 {
		t.Error("incomplete assessment suggests no next step")
	}
}

func TestScorer_SingleStageSession(t *testing.T) {
	s := NewScorer()
	single := []models.SubtaskType{models.SubtaskAnalysis}

	got := s.Assess(workflow.Results{models.SubtaskAnalysis: passedRecord(80)}, single)
	if !got.IsCompleted {
		t.Error("single-stage session with passed gate not completed")
	}
	if got.Score != 100 {
		t.Errorf("Score = %.1f, want 100", got.Score)
	}
}

func TestScorer_QualityLabels(t *testing.T) {
	s := NewScorer()

	excellent := workflow.Results{
		models.SubtaskDesign:       passedRecord(95),
		models.SubtaskVerification: passedRecord(90),
	}
	if got := s.Assess(excellent, bothStages); got.Quality != "excellent" {
		t.Errorf("Quality = %s, want excellent", got.Quality)
	}

	good := workflow.Results{
		models.SubtaskDesign:       passedRecord(70),
		models.SubtaskVerification: passedRecord(75),
	}
	if got := s.Assess(good, bothStages); got.Quality != "good" {
		t.Errorf("Quality = %s, want good", got.Quality)
	}

	failed := workflow.Results{models.SubtaskVerification: passedRecord(90)}
	if got := s.Assess(failed, bothStages); got.Quality != "failed" {
		t.Errorf("Quality = %s, want failed", got.Quality)
	}
}

func TestEnforcer_VetoesPrematureFinish(t *testing.T) {
	e := NewEnforcer(NewScorer())

	verdict := e.Review(workflow.Results{models.SubtaskDesign: passedRecord(90)}, bothStages)
	if verdict.Allowed {
		t.Fatal("finish allowed with unmet verification gate")
	}
	if verdict.ForcedStage != models.SubtaskVerification {
		t.Errorf("ForcedStage = %s, want verification", verdict.ForcedStage)
	}
	if verdict.Reason == "" {
		t.Error("veto has no reason")
	}
}

func TestEnforcer_ForcesFirstUnmetStage(t *testing.T) {
	e := NewEnforcer(NewScorer())

	// Both unmet: design comes first in pipeline order.
	verdict := e.Review(workflow.Results{}, bothStages)
	if verdict.Allowed {
		t.Fatal("finish allowed with nothing done")
	}
	if verdict.ForcedStage != models.SubtaskDesign {
		t.Errorf("ForcedStage = %s, want design", verdict.ForcedStage)
	}
}

func TestEnforcer_AllowsRealCompletion(t *testing.T) {
	e := NewEnforcer(NewScorer())

	results := workflow.Results{
		models.SubtaskDesign:       passedRecord(90),
		models.SubtaskVerification: passedRecord(85),
	}
	verdict := e.Review(results, bothStages)
	if !verdict.Allowed {
		t.Errorf("complete session vetoed: %s", verdict.Reason)
	}
	if verdict.Assessment == nil || !verdict.Assessment.IsCompleted {
		t.Error("verdict is missing its completion assessment")
	}
}
