package analysis

import (
	"fmt"
	"strings"

	"veriflow/internal/designctx"
	"veriflow/pkg/models"
)

// Composite score weights. The base sub-metrics cover how the report
// reads; the verification additions cover whether the work actually
// happened. Weights deliberately exceed 100% so a result must do well
// across the board to saturate the clamp.
const (
	weightCodeQuality   = 0.20
	weightDocumentation = 0.10
	weightTestCoverage  = 0.15
	weightErrorHandling = 0.10
	weightPerformance   = 0.05
	weightCompliance    = 0.05

	weightFileVerification      = 0.15
	weightExecutionVerification = 0.15
	weightWorkflowCompleteness  = 0.20
	weightContentVerification   = 0.15
)

// Multiplicative penalties applied to the aggregate when a verification
// predicate fails. A verbose, well-formatted but fabricated report must
// not score well just because its sub-metrics look good.
const (
	penaltyFileFailed      = 0.3
	penaltyExecutionFailed = 0.5
	penaltyContentFailed   = 0.7
)

// hallucinationScoreCap floors the composite score when any fabrication
// is detected, regardless of every other metric.
const hallucinationScoreCap = 30.0

// DefaultThreshold is the quality score a result must reach to be
// considered complete without reservations.
const DefaultThreshold = 80.0

// substantiveReportLen is the minimum output length accepted as a real
// report from read-only work.
const substantiveReportLen = 80

// Assessment is the analyzer's judgment of one worker result.
type Assessment struct {
	// AgentID is the worker that produced the result.
	AgentID string
	// Score is the composite quality score [0,100].
	Score float64
	// SubScores holds the individual metric scores [0,100] by name.
	SubScores map[string]float64
	// FailedChecks lists the verification predicates that failed.
	FailedChecks []string
	// Completeness is "complete", "partial", or "failed".
	Completeness string
	// Hallucination is non-nil when the detector flagged the result.
	Hallucination *models.HallucinationReport
	// MeetsThreshold reports whether Score reached the threshold.
	MeetsThreshold bool
}

// Analyzer scores worker results against real evidence.
type Analyzer struct {
	store     designctx.Store
	detector  *Detector
	threshold float64
}

// New creates an Analyzer over the artifact context store with the
// default quality threshold.
func New(store designctx.Store) *Analyzer {
	return &Analyzer{
		store:     store,
		detector:  NewDetector(store),
		threshold: DefaultThreshold,
	}
}

// SetThreshold overrides the quality threshold.
func (a *Analyzer) SetThreshold(t float64) {
	a.threshold = t
}

// Analyze scores a worker result. Three verification predicates are
// checked independently of the textual sub-metrics:
//
//   - file verification: artifacts were actually produced, not described
//   - execution verification: the expected operation really ran
//   - content verification: claimed names match the real design content
//
// Each failed predicate both zeroes its weighted contribution and applies
// a multiplicative penalty to the aggregate. A positive hallucination
// report caps the score at 30 and marks completeness failed.
func (a *Analyzer) Analyze(profile *models.AgentProfile, taskID string, result *models.WorkerResult) *Assessment {
	sub := map[string]float64{
		"code_quality":   scoreCodeQuality(result),
		"documentation":  scoreDocumentation(result),
		"test_coverage":  scoreTestCoverage(result),
		"error_handling": scoreErrorHandling(result),
		"performance":    scorePerformance(result),
		"compliance":     scoreCompliance(result),
	}

	fileOK := a.verifyFiles(taskID, result)
	execOK := verifyExecution(result)
	contentOK := a.verifyContent(taskID, result)
	sub["file_verification"] = boolScore(fileOK)
	sub["execution_verification"] = boolScore(execOK)
	sub["workflow_completeness"] = scoreWorkflowCompleteness(result)
	sub["content_verification"] = boolScore(contentOK)

	score := sub["code_quality"]*weightCodeQuality +
		sub["documentation"]*weightDocumentation +
		sub["test_coverage"]*weightTestCoverage +
		sub["error_handling"]*weightErrorHandling +
		sub["performance"]*weightPerformance +
		sub["compliance"]*weightCompliance +
		sub["file_verification"]*weightFileVerification +
		sub["execution_verification"]*weightExecutionVerification +
		sub["workflow_completeness"]*weightWorkflowCompleteness +
		sub["content_verification"]*weightContentVerification
	if score > 100 {
		score = 100
	}

	var failed []string
	if !fileOK {
		failed = append(failed, "file verification: claimed artifacts were not actually produced")
		score *= penaltyFileFailed
	}
	if !execOK {
		failed = append(failed, "execution verification: no evidence the expected operation ran")
		score *= penaltyExecutionFailed
	}
	if !contentOK {
		failed = append(failed, "content verification: claimed names do not match the real design content")
		score *= penaltyContentFailed
	}

	assessment := &Assessment{
		AgentID:      result.AgentID,
		SubScores:    sub,
		FailedChecks: failed,
	}

	assessment.Hallucination = a.detector.Detect(profile, taskID, result)
	if assessment.Hallucination != nil {
		if score > hallucinationScoreCap {
			score = hallucinationScoreCap
		}
		assessment.Completeness = "failed"
	} else if len(failed) > 0 {
		assessment.Completeness = "partial"
	} else {
		assessment.Completeness = "complete"
	}

	assessment.Score = score
	assessment.MeetsThreshold = score >= a.threshold && assessment.Hallucination == nil
	return assessment
}

// readOnlySubtask reports whether the subtask type inspects existing work
// rather than producing artifacts.
func readOnlySubtask(t models.SubtaskType) bool {
	return t == models.SubtaskAnalysis || t == models.SubtaskDebug
}

// verifyFiles checks that every claimed artifact exists on disk. A
// producing stage claiming no artifacts fails file verification outright:
// describing work is not producing it. Read-only stages legitimately
// produce nothing, so only their positive claims are checked.
func (a *Analyzer) verifyFiles(taskID string, result *models.WorkerResult) bool {
	if len(result.Artifacts) == 0 {
		return readOnlySubtask(result.SubtaskType)
	}
	for _, art := range result.Artifacts {
		if !a.store.Exists(taskID, art) {
			return false
		}
	}
	return true
}

// executionMarkers are traces a real tool invocation leaves in output.
var executionMarkers = []string{
	"$ ",
	"iverilog",
	"vvp",
	"verilator",
	"compiled",
	"compilation finished",
	"simulation finished",
	"exit code",
	"$finish",
}

// narrationMarkers are phrases that describe work without doing it.
var narrationMarkers = []string{
	"would run",
	"you can run",
	"should be run",
	"can be simulated",
}

// verifyExecution checks whether the worker actually invoked the
// expected operation versus merely narrating it.
func verifyExecution(result *models.WorkerResult) bool {
	lower := strings.ToLower(result.Output)
	for _, m := range narrationMarkers {
		if strings.Contains(lower, m) {
			return false
		}
	}
	for _, m := range executionMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	// Design subtasks produce files rather than run tools; artifacts on
	// their own are acceptable execution evidence for them.
	if result.SubtaskType == models.SubtaskDesign {
		return len(result.Artifacts) > 0
	}
	// Read-only work runs no tools; a substantive successful report is the
	// evidence that the inspection happened.
	return readOnlySubtask(result.SubtaskType) && result.Success && len(result.Output) >= substantiveReportLen
}

// verifyContent checks claimed artifact and signal names against the real
// underlying design content for the task id. With no design on disk yet
// there is nothing to contradict, so only positive mismatches fail.
func (a *Analyzer) verifyContent(taskID string, result *models.WorkerResult) bool {
	identity := a.store.ModuleIdentity(taskID)
	if identity == "" {
		return true
	}

	lower := strings.ToLower(result.Output)
	if !strings.Contains(lower, "module") {
		return true
	}
	// The output names a module; it must be the real one.
	return strings.Contains(lower, strings.ToLower(identity))
}

// scoreWorkflowCompleteness measures whether the full expected workflow
// ran: for verification work, compile then simulate then check; for
// design work, artifact production.
func scoreWorkflowCompleteness(result *models.WorkerResult) float64 {
	lower := strings.ToLower(result.Output)

	if result.SubtaskType == models.SubtaskVerification {
		score := 0.0
		if strings.Contains(lower, "compil") {
			score += 35
		}
		if strings.Contains(lower, "simulat") || strings.Contains(lower, "vvp") {
			score += 35
		}
		if strings.Contains(lower, "pass") || strings.Contains(lower, "all tests") || strings.Contains(lower, "$finish") {
			score += 30
		}
		return score
	}

	if readOnlySubtask(result.SubtaskType) {
		if result.Success && len(result.Output) >= substantiveReportLen {
			return 100
		}
		if result.Success {
			return 50
		}
		return 0
	}

	if len(result.Artifacts) > 0 && result.Success {
		return 100
	}
	if result.Success {
		return 50
	}
	return 0
}

// scoreCodeQuality estimates code quality from the report: structured
// output referencing concrete HDL constructs scores higher.
func scoreCodeQuality(result *models.WorkerResult) float64 {
	lower := strings.ToLower(result.Output)
	score := 40.0
	for _, kw := range []string{"module", "always", "assign", "posedge", "parameter"} {
		if strings.Contains(lower, kw) {
			score += 12
		}
	}
	if score > 100 {
		score = 100
	}
	return score
}

// scoreDocumentation checks for explanatory content in the report.
func scoreDocumentation(result *models.WorkerResult) float64 {
	out := result.Output
	if len(out) < 80 {
		return 20
	}
	score := 50.0
	if strings.Contains(out, "//") || strings.Contains(strings.ToLower(out), "description") {
		score += 25
	}
	if len(out) > 400 {
		score += 25
	}
	return score
}

// scoreTestCoverage checks for test-related evidence in the report.
func scoreTestCoverage(result *models.WorkerResult) float64 {
	lower := strings.ToLower(result.Output)
	score := 0.0
	for _, kw := range []string{"test", "stimulus", "assert", "coverage", "edge case"} {
		if strings.Contains(lower, kw) {
			score += 20
		}
	}
	if score > 100 {
		score = 100
	}
	return score
}

// scoreErrorHandling checks for reset and boundary handling mentions.
func scoreErrorHandling(result *models.WorkerResult) float64 {
	lower := strings.ToLower(result.Output)
	score := 30.0
	for _, kw := range []string{"reset", "overflow", "boundary", "invalid", "x state"} {
		if strings.Contains(lower, kw) {
			score += 14
		}
	}
	if score > 100 {
		score = 100
	}
	return score
}

// scorePerformance checks for timing and resource discussion.
func scorePerformance(result *models.WorkerResult) float64 {
	lower := strings.ToLower(result.Output)
	score := 40.0
	for _, kw := range []string{"timing", "clock", "critical path", "throughput"} {
		if strings.Contains(lower, kw) {
			score += 15
		}
	}
	if score > 100 {
		score = 100
	}
	return score
}

// scoreCompliance checks for synthesizability and style compliance cues.
func scoreCompliance(result *models.WorkerResult) float64 {
	lower := strings.ToLower(result.Output)
	score := 50.0
	for _, kw := range []string{"synthesizable", "lint", "ieee", "style"} {
		if strings.Contains(lower, kw) {
			score += 12.5
		}
	}
	if score > 100 {
		score = 100
	}
	return score
}

// boolScore maps a predicate outcome to a 0/100 sub-score.
func boolScore(ok bool) float64 {
	if ok {
		return 100
	}
	return 0
}

// Describe renders a one-line summary of the assessment for logs.
func (as *Assessment) Describe() string {
	if as.Hallucination != nil {
		return fmt.Sprintf("score %.1f (%s, hallucination: %s)", as.Score, as.Completeness, as.Hallucination.Type)
	}
	if !as.MeetsThreshold {
		return fmt.Sprintf("score %.1f (%s, below quality threshold)", as.Score, as.Completeness)
	}
	return fmt.Sprintf("score %.1f (%s)", as.Score, as.Completeness)
}
