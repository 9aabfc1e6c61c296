// Package analysis inspects worker results for real evidence of work and
// for fabricated claims.
package analysis

import (
	"fmt"
	"strings"

	"veriflow/internal/designctx"
	"veriflow/internal/workflow"
	"veriflow/pkg/models"
)

// Detector confidence per rule. The rules are ordered most severe first,
// so the first match is also the highest-severity match.
const (
	confidenceCapabilityBoundary     = 0.95
	confidenceFileExistence          = 0.80
	confidenceUnsubstantiatedSuccess = 0.60
)

// Detector flags fabricated claims in worker results. Checks run in
// priority order and the first match wins; types are never aggregated.
type Detector struct {
	store designctx.Store
}

// NewDetector creates a Detector backed by the artifact context store.
func NewDetector(store designctx.Store) *Detector {
	return &Detector{store: store}
}

// Detect inspects a result against the worker's capability contract and
// the real artifact index. Returns nil when no fabrication is found.
func (d *Detector) Detect(profile *models.AgentProfile, taskID string, result *models.WorkerResult) *models.HallucinationReport {
	if rep := d.detectCapabilityBoundary(profile, result); rep != nil {
		return rep
	}
	if rep := d.detectFileExistence(taskID, result); rep != nil {
		return rep
	}
	return d.detectUnsubstantiatedSuccess(result)
}

// detectCapabilityBoundary flags a design-only worker whose result lists
// or references verification-only artifacts. A worker that cannot be
// assigned verification work cannot have produced a testbench.
func (d *Detector) detectCapabilityBoundary(profile *models.AgentProfile, result *models.WorkerResult) *models.HallucinationReport {
	if profile == nil || profile.CanHandle(models.SubtaskVerification) {
		return nil
	}

	var evidence []string
	for _, a := range result.Artifacts {
		if workflow.IsVerificationArtifact(a) {
			evidence = append(evidence, fmt.Sprintf("claimed verification artifact %q", a))
		}
	}
	lower := strings.ToLower(result.Output)
	for _, phrase := range []string{"wrote a testbench", "created a testbench", "ran the simulation", "simulation passed"} {
		if strings.Contains(lower, phrase) {
			evidence = append(evidence, fmt.Sprintf("output claims %q", phrase))
		}
	}
	if len(evidence) == 0 {
		return nil
	}

	return &models.HallucinationReport{
		Type:       models.HallucinationCapabilityBoundary,
		Confidence: confidenceCapabilityBoundary,
		Evidence:   evidence,
		Recovery:   "discard the verification claims and route verification work to a verification-capable worker",
	}
}

// detectFileExistence flags claimed artifact paths that do not exist in
// any known output location for the task.
func (d *Detector) detectFileExistence(taskID string, result *models.WorkerResult) *models.HallucinationReport {
	if len(result.Artifacts) == 0 {
		return nil
	}

	var missing []string
	for _, a := range result.Artifacts {
		if !d.store.Exists(taskID, a) {
			missing = append(missing, fmt.Sprintf("claimed artifact %q not found in task output", a))
		}
	}
	if len(missing) == 0 {
		return nil
	}

	return &models.HallucinationReport{
		Type:       models.HallucinationFileExistence,
		Confidence: confidenceFileExistence,
		Evidence:   missing,
		Recovery:   "re-dispatch the subtask and require the worker to actually write its artifacts",
	}
}

// detectUnsubstantiatedSuccess flags a success claim with zero reference
// to any produced artifact, in the artifact list or the free-text output.
func (d *Detector) detectUnsubstantiatedSuccess(result *models.WorkerResult) *models.HallucinationReport {
	if !result.Success || len(result.Artifacts) > 0 {
		return nil
	}
	if mentionsArtifact(result.Output) {
		return nil
	}

	return &models.HallucinationReport{
		Type:       models.HallucinationUnsubstantiatedSuccess,
		Confidence: confidenceUnsubstantiatedSuccess,
		Evidence:   []string{"result claims success but references no produced artifact"},
		Recovery:   "treat the stage as incomplete and retry with explicit artifact requirements",
	}
}

// mentionsArtifact reports whether the free text references a concrete
// HDL file name.
func mentionsArtifact(output string) bool {
	lower := strings.ToLower(output)
	for _, ext := range []string{".v", ".sv", ".vh"} {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	return false
}
