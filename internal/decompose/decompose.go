// Package decompose detects multi-phase requests and emits ordered plans.
package decompose

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"veriflow/pkg/models"
)

// designIndicators signal that a request contains design work.
var designIndicators = []string{
	"design",
	"implement",
	"create",
	"build",
	"module",
	"code",
}

// verificationIndicators signal that a request contains verification work.
var verificationIndicators = []string{
	"testbench",
	"verify",
	"simulate",
	"test",
}

// multiPhasePatterns are explicit phrasings of a combined design and
// verification request. Any one of them marks the request composite even
// when the indicator pairs would not.
var multiPhasePatterns = []string{
	"with testbench",
	"and test it",
	"and verify",
	"then verify",
	"then simulate",
	"design and verification",
}

// boundaryRationale records why combined requests are split: the design
// worker's capability contract forbids producing verification artifacts,
// so no single worker can execute both phases.
const boundaryRationale = "design-capable workers are contractually forbidden " +
	"from producing verification artifacts; the combined request is split so " +
	"each phase routes to a worker whose capability set permits it"

// Decomposer splits composite requests into ordered subtask plans.
type Decomposer struct {
	design       []string
	verification []string
	patterns     []string
}

// New creates a Decomposer with the default indicator sets.
func New() *Decomposer {
	return &Decomposer{
		design:       designIndicators,
		verification: verificationIndicators,
		patterns:     multiPhasePatterns,
	}
}

// Decompose returns whether the request is composite and, if so, the plan.
// A request is composite when it contains both a design indicator and a
// verification indicator, or matches an explicit multi-phase pattern.
// The plan always orders subtasks [design, verification]; the order is
// fixed because verification is causally dependent on the design output.
func (d *Decomposer) Decompose(request string) (bool, *models.Plan) {
	lower := strings.ToLower(request)

	composite := (containsAny(lower, d.design) && containsAny(lower, d.verification)) ||
		containsAny(lower, d.patterns)
	if !composite {
		return false, nil
	}

	plan := &models.Plan{
		Subtasks: []*models.Subtask{
			{
				ID:          uuid.New().String()[:8],
				Type:        models.SubtaskDesign,
				Description: fmt.Sprintf("Design phase: %s. Produce the synthesizable RTL source only; a separate phase handles everything downstream.", d.designScope(request)),
				Status:      models.SubtaskStatusPending,
			},
			{
				ID:          uuid.New().String()[:8],
				Type:        models.SubtaskVerification,
				Description: fmt.Sprintf("Verification phase: %s. Write a testbench for the produced design and simulate it to completion.", request),
				Status:      models.SubtaskStatusPending,
			},
		},
		Rationale: boundaryRationale,
	}
	return true, plan
}

// designScope trims the verification portion off a combined request so the
// design-phase description never carries verification vocabulary. The
// design worker's deny list would otherwise reject its own assignment.
func (d *Decomposer) designScope(request string) string {
	lower := strings.ToLower(request)
	cut := len(request)
	for _, kw := range d.verification {
		if i := strings.Index(lower, kw); i >= 0 && i < cut {
			cut = i
		}
	}
	if cut == len(request) {
		return request
	}

	scope := strings.TrimRight(request[:cut], " ,.;")
	for _, conn := range []string{" and", " then", " with"} {
		scope = strings.TrimSuffix(scope, conn)
	}
	if scope == "" {
		return request
	}
	return scope
}

// containsAny returns true if any keyword occurs in the text.
func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
