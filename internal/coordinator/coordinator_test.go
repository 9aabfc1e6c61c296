package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"veriflow/internal/designctx"
	"veriflow/internal/planner"
	"veriflow/internal/registry"
	"veriflow/internal/telemetry"
	"veriflow/internal/worker"
	"veriflow/internal/workflow"
	"veriflow/pkg/models"
)

// failingWorker reports failure on every call without erroring.
type failingWorker struct{}

func (failingWorker) Execute(ctx context.Context, subtask *models.Subtask, taskID, designContext string) (*models.WorkerResult, error) {
	return &models.WorkerResult{
		Success: false,
		Error:   "synthesis failed",
		Output:  "could not produce a design",
	}, nil
}

// stallingWorker blocks until the test lets it proceed.
type stallingWorker struct {
	proceed chan struct{}
}

func (w *stallingWorker) Execute(ctx context.Context, subtask *models.Subtask, taskID, designContext string) (*models.WorkerResult, error) {
	select {
	case <-w.proceed:
	case <-ctx.Done():
	}
	return &models.WorkerResult{Success: false, Error: "stalled"}, nil
}

// erroringPlanner always fails, exercising the forced-assignment fallback.
type erroringPlanner struct{}

func (erroringPlanner) NextAction(ctx context.Context, req *models.TaskRequest, stage workflow.Stage, results workflow.Results) (*planner.Action, error) {
	return nil, fmt.Errorf("model unavailable")
}

// eagerPlanner proposes finishing on every consultation.
type eagerPlanner struct{}

func (eagerPlanner) NextAction(ctx context.Context, req *models.TaskRequest, stage workflow.Stage, results workflow.Results) (*planner.Action, error) {
	return &planner.Action{Type: planner.ActionFinal, Summary: "all done"}, nil
}

func newStubbedOptions(t *testing.T) Options {
	t.Helper()

	out := t.TempDir()
	store, err := designctx.NewFSStore(out)
	if err != nil {
		t.Fatal(err)
	}

	reg := registry.New()
	reg.DefaultRoster()

	stub := worker.NewStub(out, "counter")
	return Options{
		Registry: reg,
		Store:    store,
		Workers: map[string]worker.Worker{
			"design-worker":       stub,
			"verification-worker": stub,
			"analysis-worker":     stub,
		},
	}
}

func drainEvents(c *Coordinator) map[telemetry.EventType]int {
	counts := make(map[telemetry.EventType]int)
	for ev := range c.Events() {
		counts[ev.Type]++
	}
	return counts
}

func collectEvents(c *Coordinator) []telemetry.Event {
	var out []telemetry.Event
	for ev := range c.Events() {
		out = append(out, ev)
	}
	return out
}

func TestRun_CompositeHappyPath(t *testing.T) {
	c, err := New(newStubbedOptions(t))
	if err != nil {
		t.Fatal(err)
	}

	res, err := c.Run(context.Background(), "design an 8-bit counter and verify it")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Fatalf("session failed: %s", res.Failure)
	}
	if res.Stage != workflow.StageVerificationCompleted {
		t.Errorf("Stage = %s, want %s", res.Stage, workflow.StageVerificationCompleted)
	}
	if res.Assessment == nil || !res.Assessment.IsCompleted {
		t.Fatal("assessment does not confirm completion")
	}
	if res.Assessment.Score != 100 {
		t.Errorf("Score = %.1f, want 100", res.Assessment.Score)
	}
	if len(res.Plan.Subtasks) != 2 {
		t.Fatalf("plan has %d subtasks, want 2", len(res.Plan.Subtasks))
	}
	if res.Plan.Subtasks[0].Type != models.SubtaskDesign || res.Plan.Subtasks[1].Type != models.SubtaskVerification {
		t.Errorf("plan order wrong: %s then %s", res.Plan.Subtasks[0].Type, res.Plan.Subtasks[1].Type)
	}
	for _, st := range res.Plan.Subtasks {
		if st.Status != models.SubtaskStatusDone {
			t.Errorf("subtask %s status = %s, want done", st.Type, st.Status)
		}
	}

	counts := drainEvents(c)
	if counts[telemetry.EventSessionStarted] != 1 || counts[telemetry.EventSessionDone] != 1 {
		t.Errorf("session lifecycle events = %v", counts)
	}
	if counts[telemetry.EventStageCompleted] != 2 {
		t.Errorf("stage completions = %d, want 2", counts[telemetry.EventStageCompleted])
	}
	if counts[telemetry.EventHallucinationFlagged] != 0 {
		t.Errorf("clean session flagged hallucinations: %v", counts)
	}
}

func TestRun_SingleStageAnalysisSession(t *testing.T) {
	c, err := New(newStubbedOptions(t))
	if err != nil {
		t.Fatal(err)
	}

	res, err := c.Run(context.Background(), "analyze and summarize the timing report for the counter")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Fatalf("read-only session failed: %s", res.Failure)
	}
	if res.Assessment.Score != 100 {
		t.Errorf("Score = %.1f, want 100 for the single required stage", res.Assessment.Score)
	}
	if len(res.Plan.Subtasks) != 1 || res.Plan.Subtasks[0].Type != models.SubtaskAnalysis {
		t.Fatalf("plan = %+v, want one analysis subtask", res.Plan.Subtasks)
	}
	if res.Plan.Subtasks[0].Status != models.SubtaskStatusDone {
		t.Errorf("subtask status = %s, want done", res.Plan.Subtasks[0].Status)
	}

	counts := drainEvents(c)
	if counts[telemetry.EventHallucinationFlagged] != 0 {
		t.Errorf("artifact-free report flagged: %v", counts)
	}
}

func TestRun_QualityThresholdReachesStageDetails(t *testing.T) {
	opts := newStubbedOptions(t)
	opts.QualityThreshold = 99.5

	c, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}

	res, err := c.Run(context.Background(), "design an 8-bit counter and verify it")
	if err != nil {
		t.Fatal(err)
	}
	// The threshold qualifies stage reporting; gates keep their own bars.
	if !res.Success {
		t.Fatalf("session failed: %s", res.Failure)
	}

	completed := 0
	for _, ev := range collectEvents(c) {
		if ev.Type != telemetry.EventStageCompleted {
			continue
		}
		completed++
		if !strings.Contains(ev.Detail, "below quality threshold") {
			t.Errorf("stage detail %q does not report the threshold shortfall", ev.Detail)
		}
	}
	if completed != 2 {
		t.Errorf("stage completions = %d, want 2", completed)
	}
}

func TestRun_RetryBudgetExhausted(t *testing.T) {
	out := t.TempDir()
	store, err := designctx.NewFSStore(out)
	if err != nil {
		t.Fatal(err)
	}

	reg := registry.New()
	reg.Register(&models.AgentProfile{
		ID:           "design-worker",
		Capabilities: []models.SubtaskType{models.SubtaskDesign},
	})
	// Keep the failing worker in rotation so the retry budget, not the
	// failure-streak disable, ends the session.
	reg.SetDisableThreshold(10)

	c, err := New(Options{
		Registry: reg,
		Store:    store,
		Workers:  map[string]worker.Worker{"design-worker": failingWorker{}},
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := c.Run(context.Background(), "implement a FIFO module")
	var budgetErr *BudgetExceededError
	if !errors.As(err, &budgetErr) {
		t.Fatalf("err = %v, want *BudgetExceededError", err)
	}
	if budgetErr.Retries != DefaultMaxRetries {
		t.Errorf("Retries = %d, want %d", budgetErr.Retries, DefaultMaxRetries)
	}
	if budgetErr.Stage != models.SubtaskDesign {
		t.Errorf("Stage = %s, want design", budgetErr.Stage)
	}
	if res.Success {
		t.Error("exhausted session reported success")
	}
	if res.Failure == "" {
		t.Error("exhausted session has no failure explanation")
	}
}

func TestRun_ForcedAssignmentWhenPlannerFails(t *testing.T) {
	opts := newStubbedOptions(t)
	opts.Planner = erroringPlanner{}

	c, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}

	res, err := c.Run(context.Background(), "design an 8-bit counter and verify it")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Fatalf("session failed despite forced assignment: %s", res.Failure)
	}

	counts := drainEvents(c)
	if counts[telemetry.EventForcedAssignment] != 2 {
		t.Errorf("forced assignments = %d, want one per stage", counts[telemetry.EventForcedAssignment])
	}
}

func TestRun_PrematureFinalIsVetoed(t *testing.T) {
	opts := newStubbedOptions(t)
	opts.Planner = eagerPlanner{}

	c, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}

	res, err := c.Run(context.Background(), "design an 8-bit counter and verify it")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Fatalf("session failed: %s", res.Failure)
	}
	// The planner never earned a final answer; both proposals were vetoed
	// and the pipeline finished on its own evidence.
	if res.Summary != "" {
		t.Errorf("Summary = %q, want empty after vetoed finals", res.Summary)
	}

	counts := drainEvents(c)
	if counts[telemetry.EventCompletionVetoed] != 2 {
		t.Errorf("vetoes = %d, want 2", counts[telemetry.EventCompletionVetoed])
	}
}

func TestRun_NoCompatibleWorker(t *testing.T) {
	out := t.TempDir()
	store, err := designctx.NewFSStore(out)
	if err != nil {
		t.Fatal(err)
	}

	reg := registry.New()
	reg.Register(&models.AgentProfile{
		ID:           "verification-worker",
		Capabilities: []models.SubtaskType{models.SubtaskVerification},
	})

	c, err := New(Options{
		Registry: reg,
		Store:    store,
		Workers:  map[string]worker.Worker{"verification-worker": worker.NewStub(out, "counter")},
	})
	if err != nil {
		t.Fatal(err)
	}

	res, runErr := c.Run(context.Background(), "implement a FIFO module")
	if runErr == nil {
		t.Fatal("expected a selection error")
	}
	if res.Success {
		t.Error("session without a capable worker reported success")
	}
}

func TestRun_TimedOutWorkerStaysBusyUntilReturn(t *testing.T) {
	store, err := designctx.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	reg := registry.New()
	reg.Register(&models.AgentProfile{
		ID:           "design-worker",
		Capabilities: []models.SubtaskType{models.SubtaskDesign},
	})

	w := &stallingWorker{proceed: make(chan struct{})}
	c, err := New(Options{
		Registry:   reg,
		Store:      store,
		Workers:    map[string]worker.Worker{"design-worker": w},
		WorkerWait: 30 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	// The first iteration times out while the call is still running; the
	// retry then finds no idle worker instead of double-dispatching.
	res, runErr := c.Run(context.Background(), "implement a FIFO module")
	if runErr == nil {
		t.Fatal("expected an error once the only worker was unavailable")
	}
	if res.Success {
		t.Error("stalled session reported success")
	}
	if len(reg.Idle(models.SubtaskDesign)) != 0 {
		t.Fatal("worker returned to idle while its call was still running")
	}

	close(w.proceed)
	deadline := time.After(2 * time.Second)
	for len(reg.Idle(models.SubtaskDesign)) == 0 {
		select {
		case <-deadline:
			t.Fatal("worker never returned to idle after its call finished")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestNew_RequiresCoreCollaborators(t *testing.T) {
	store, err := designctx.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	reg := registry.New()
	workers := map[string]worker.Worker{"w": failingWorker{}}

	tests := []struct {
		name string
		opts Options
	}{
		{name: "no registry", opts: Options{Store: store, Workers: workers}},
		{name: "no workers", opts: Options{Registry: reg, Store: store}},
		{name: "no store", opts: Options{Registry: reg, Workers: workers}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.opts); err == nil {
				t.Error("expected a construction error")
			}
		})
	}
}
