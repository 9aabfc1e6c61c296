// Package coordinator runs the coordination loop: classify, decompose,
// validate, select, dispatch, analyze, gate, and advance until the
// completion scorer confirms the session is done or a budget runs out.
package coordinator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"veriflow/internal/analysis"
	"veriflow/internal/boundary"
	"veriflow/internal/classify"
	"veriflow/internal/completion"
	"veriflow/internal/decompose"
	"veriflow/internal/designctx"
	"veriflow/internal/planner"
	"veriflow/internal/registry"
	"veriflow/internal/state"
	"veriflow/internal/telemetry"
	"veriflow/internal/worker"
	"veriflow/internal/workflow"
	"veriflow/pkg/models"
)

// Default loop budgets.
const (
	DefaultMaxIterations = 10
	DefaultMaxRetries    = 3
)

// eventBuffer sizes the observer channel. Emission never blocks; events
// beyond the buffer are dropped for slow observers.
const eventBuffer = 64

// Options configures a Coordinator. Registry, Workers, and Store are
// required; everything else has a working default.
type Options struct {
	// Registry holds the worker profiles.
	Registry *registry.Registry
	// Workers binds worker IDs to their executors.
	Workers map[string]worker.Worker
	// Store is the artifact context store.
	Store *designctx.FSStore
	// Planner proposes next moves. Nil disables planner consultation and
	// the loop advances stages directly.
	Planner planner.Planner
	// Opinion is the optional classification second opinion.
	Opinion classify.SecondOpinion
	// Sink receives telemetry events.
	Sink telemetry.Sink
	// DB persists sessions when non-nil.
	DB *state.DB
	// MaxIterations bounds the loop.
	MaxIterations int
	// MaxRetries bounds gate-failure retries per session.
	MaxRetries int
	// WorkerWait bounds one worker call.
	WorkerWait time.Duration
	// QualityThreshold overrides the analyzer's completeness threshold.
	QualityThreshold float64
}

// Result is the structured outcome of one coordination session.
type Result struct {
	// SessionID identifies the session.
	SessionID string
	// Success is true only when the completion assessment confirmed the
	// session finished.
	Success bool
	// Stage is the final derived pipeline stage.
	Stage workflow.Stage
	// Assessment is the final completion assessment.
	Assessment *models.CompletionAssessment
	// Iterations is how many loop iterations ran.
	Iterations int
	// Summary is the planner's accepted final answer, when one exists.
	Summary string
	// Classification is the request classification.
	Classification classify.Classification
	// Plan is the executed subtask plan.
	Plan *models.Plan
	// Records holds the per-stage results and gate outcomes.
	Records workflow.Results
	// Failure explains an unsuccessful session.
	Failure string
}

// BudgetExceededError reports a session that exhausted its retry budget.
type BudgetExceededError struct {
	// SessionID is the exhausted session.
	SessionID string
	// Stage is the stage that kept failing.
	Stage models.SubtaskType
	// Retries is the number of retries consumed.
	Retries int
	// Diagnostics carries the last gate issues for the failing stage.
	Diagnostics []string
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("session %s exhausted its retry budget (%d) on the %s stage: %v",
		e.SessionID, e.Retries, e.Stage, e.Diagnostics)
}

// Coordinator drives coordination sessions.
type Coordinator struct {
	classifier *classify.Classifier
	decomposer *decompose.Decomposer
	validator  *boundary.Validator
	registry   *registry.Registry
	selector   *registry.Selector
	analyzer   *analysis.Analyzer
	scorer     *completion.Scorer
	enforcer   *completion.Enforcer
	dispatcher *worker.Dispatcher
	workers    map[string]worker.Worker
	store      *designctx.FSStore
	planner    planner.Planner
	sink       telemetry.Sink
	db         *state.DB

	maxIterations int
	maxRetries    int

	events chan telemetry.Event
}

// New creates a Coordinator.
func New(opts Options) (*Coordinator, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("coordinator requires a worker registry")
	}
	if len(opts.Workers) == 0 {
		return nil, fmt.Errorf("coordinator requires at least one bound worker executor")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("coordinator requires an artifact context store")
	}
	if opts.Sink == nil {
		opts.Sink = telemetry.Nop{}
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}

	dispatcher := worker.NewDispatcher()
	if opts.WorkerWait > 0 {
		dispatcher.SetWait(opts.WorkerWait)
	}

	analyzer := analysis.New(opts.Store)
	if opts.QualityThreshold > 0 {
		analyzer.SetThreshold(opts.QualityThreshold)
	}

	scorer := completion.NewScorer()
	return &Coordinator{
		classifier:    classify.New(opts.Opinion),
		decomposer:    decompose.New(),
		validator:     boundary.NewValidator(),
		registry:      opts.Registry,
		selector:      registry.NewSelector(opts.Registry),
		analyzer:      analyzer,
		scorer:        scorer,
		enforcer:      completion.NewEnforcer(scorer),
		dispatcher:    dispatcher,
		workers:       opts.Workers,
		store:         opts.Store,
		planner:       opts.Planner,
		sink:          opts.Sink,
		db:            opts.DB,
		maxIterations: opts.MaxIterations,
		maxRetries:    opts.MaxRetries,
		events:        make(chan telemetry.Event, eventBuffer),
	}, nil
}

// Events returns the observer channel. It is closed when Run finishes.
func (c *Coordinator) Events() <-chan telemetry.Event {
	return c.events
}

// Run coordinates one request to completion or failure. A Coordinator
// runs exactly one session; the event channel closes when Run returns.
func (c *Coordinator) Run(ctx context.Context, text string) (*Result, error) {
	defer close(c.events)

	req := &models.TaskRequest{
		ID:            uuid.New().String()[:8],
		Text:          text,
		MaxIterations: c.maxIterations,
		MaxRetries:    c.maxRetries,
		CreatedAt:     time.Now(),
	}

	cls := c.classifier.Classify(ctx, text)
	req.Priority = cls.Priority

	composite, plan := c.decomposer.Decompose(text)
	taskType := cls.Type
	if composite {
		taskType = models.SubtaskComposite
	} else {
		plan = singlePlan(cls.Type, text)
	}

	res := &Result{
		SessionID:      req.ID,
		Classification: cls,
		Plan:           plan,
		Records:        workflow.Results{},
	}

	c.emit(telemetry.Event{
		SessionID: req.ID,
		Type:      telemetry.EventSessionStarted,
		Detail:    fmt.Sprintf("classified as %s (priority %s), %d subtask(s) planned", taskType, req.Priority, len(plan.Subtasks)),
		At:        time.Now(),
	})
	if c.db != nil {
		if err := c.db.CreateSession(req, taskType); err != nil {
			log.Printf("[coordinator] persist session: %v", err)
		}
	}

	required := requiredStages(plan)
	forcedUsed := make(map[models.SubtaskType]bool)

	var runErr error
	for iter := 1; iter <= req.MaxIterations; iter++ {
		res.Iterations = iter

		target := nextPending(plan, res.Records)
		if target == nil {
			verdict := c.enforcer.Review(res.Records, required)
			res.Assessment = verdict.Assessment
			res.Success = verdict.Allowed
			break
		}

		target, guidance, done := c.consultPlanner(ctx, req, plan, res, required, target, forcedUsed)
		if done {
			break
		}

		if retryErr := c.chargeRetry(req, target, res.Records); retryErr != nil {
			runErr = retryErr
			res.Failure = retryErr.Error()
			break
		}

		if err := c.dispatchStage(ctx, req, target, guidance, res.Records); err != nil {
			runErr = err
			res.Failure = err.Error()
			break
		}
	}

	res.Stage = workflow.DetermineStage(res.Records)
	if res.Assessment == nil {
		res.Assessment = c.scorer.Assess(res.Records, required)
		res.Success = res.Assessment.IsCompleted && res.Assessment.Score >= completion.MinimumScore
	}
	if runErr == nil && !res.Success && res.Failure == "" {
		res.Failure = fmt.Sprintf("iteration budget (%d) exhausted before completion", req.MaxIterations)
	}

	status := "failed"
	if res.Success {
		status = "completed"
	}
	c.emit(telemetry.Event{
		SessionID: req.ID,
		Type:      telemetry.EventSessionDone,
		Stage:     string(res.Stage),
		Detail:    fmt.Sprintf("%s with score %.1f after %d iteration(s)", status, res.Assessment.Score, res.Iterations),
		At:        time.Now(),
	})
	if c.db != nil {
		if err := c.db.FinishSession(req.ID, status, res.Assessment); err != nil {
			log.Printf("[coordinator] persist session outcome: %v", err)
		}
	}

	return res, runErr
}

// consultPlanner asks the planner for the next move when one is bound.
// A final-answer proposal goes through completion enforcement; a veto
// forces the loop back to the first unmet stage. A planner failure falls
// back to direct assignment once per stage, then becomes terminal.
func (c *Coordinator) consultPlanner(ctx context.Context, req *models.TaskRequest, plan *models.Plan, res *Result, required []models.SubtaskType, target *models.Subtask, forcedUsed map[models.SubtaskType]bool) (*models.Subtask, string, bool) {
	if c.planner == nil {
		return target, "", false
	}

	stage := workflow.DetermineStage(res.Records)
	action, err := c.planner.NextAction(ctx, req, stage, res.Records)
	if err != nil {
		if forcedUsed[target.Type] {
			res.Failure = fmt.Sprintf("planner failed twice on the %s stage: %v", target.Type, err)
			return target, "", true
		}
		forcedUsed[target.Type] = true
		c.emit(telemetry.Event{
			SessionID: req.ID,
			Type:      telemetry.EventForcedAssignment,
			Stage:     string(target.Type),
			Detail:    fmt.Sprintf("planner unavailable (%v), assigning %s directly", err, target.Type),
			At:        time.Now(),
		})
		return target, "", false
	}

	switch action.Type {
	case planner.ActionFinal:
		verdict := c.enforcer.Review(res.Records, required)
		if verdict.Allowed {
			res.Assessment = verdict.Assessment
			res.Success = true
			res.Summary = action.Summary
			return target, "", true
		}
		c.emit(telemetry.Event{
			SessionID: req.ID,
			Type:      telemetry.EventCompletionVetoed,
			Stage:     string(verdict.ForcedStage),
			Detail:    verdict.Reason,
			At:        time.Now(),
		})
		if st := subtaskForStage(plan, verdict.ForcedStage); st != nil {
			return st, "", false
		}
		return target, "", false
	default:
		if st := subtaskForStage(plan, action.Stage); st != nil && !stagePassed(res.Records, action.Stage) {
			return st, action.Guidance, false
		}
		return target, action.Guidance, false
	}
}

// chargeRetry counts a retry when the stage already has a failed gate and
// returns a budget error once the session cap is exceeded.
func (c *Coordinator) chargeRetry(req *models.TaskRequest, target *models.Subtask, results workflow.Results) error {
	rec, ok := results[target.Type]
	if !ok || rec == nil || rec.Gate == nil || rec.Gate.Passed {
		return nil
	}

	req.Retries++
	if req.Retries > req.MaxRetries {
		return &BudgetExceededError{
			SessionID:   req.ID,
			Stage:       target.Type,
			Retries:     req.Retries - 1,
			Diagnostics: rec.Gate.Issues,
		}
	}
	log.Printf("[coordinator] retrying %s stage (%d/%d): %v", target.Type, req.Retries, req.MaxRetries, rec.Gate.Issues)
	return nil
}

// dispatchStage selects a worker, validates the assignment, runs the
// call, analyzes the result, and evaluates the stage gate. A failed gate
// is not an error; the loop sees it on the next iteration.
func (c *Coordinator) dispatchStage(ctx context.Context, req *models.TaskRequest, st *models.Subtask, guidance string, results workflow.Results) error {
	sel, err := c.selector.Select(st.Type, req.Priority)
	if err != nil {
		return fmt.Errorf("select worker for %s: %w", st.Type, err)
	}

	chosen := c.pickValidCandidate(req, sel, st)
	if chosen == nil {
		return fmt.Errorf("every candidate for the %s subtask failed capability validation", st.Type)
	}
	profile := chosen.Profile

	w, ok := c.workers[profile.ID]
	if !ok {
		return fmt.Errorf("worker %s has no bound executor", profile.ID)
	}
	if err := c.registry.Acquire(profile.ID); err != nil {
		return fmt.Errorf("acquire worker: %w", err)
	}
	// The worker stays busy until its call actually returns. An abandoned
	// call may still be executing after a timeout; releasing it early would
	// open a double-dispatch window on the same worker.
	var handle *worker.Handle
	defer func() {
		if handle == nil {
			c.registry.Release(profile.ID)
			return
		}
		select {
		case <-handle.Done():
			c.registry.Release(profile.ID)
		default:
			go func(id string, h *worker.Handle) {
				<-h.Done()
				c.registry.Release(id)
			}(profile.ID, handle)
		}
	}()

	st.AssignedTo = profile.ID
	st.Status = models.SubtaskStatusInProgress
	log.Printf("[coordinator] %s", chosen.FormatReasoning())
	c.emit(telemetry.Event{
		SessionID: req.ID,
		Type:      telemetry.EventStageStarted,
		Stage:     string(st.Type),
		AgentID:   profile.ID,
		Detail:    fmt.Sprintf("dispatching %q", st.Description),
		At:        time.Now(),
	})

	dispatched := *st
	if guidance != "" {
		dispatched.Description = st.Description + "\nGuidance: " + guidance
	}
	handle = c.dispatcher.Dispatch(ctx, w, profile.ID, &dispatched, req.ID, c.designContext(req.ID))
	result, err := c.dispatcher.Await(ctx, handle)
	if err != nil && result == nil {
		return fmt.Errorf("worker call: %w", err)
	}

	if err := c.store.Rescan(); err != nil {
		log.Printf("[coordinator] rescan artifacts: %v", err)
	}

	assessment := c.analyzer.Analyze(profile, req.ID, result)
	c.emit(telemetry.Event{
		SessionID: req.ID,
		Type:      telemetry.EventStageCompleted,
		Stage:     string(st.Type),
		AgentID:   profile.ID,
		Detail:    assessment.Describe(),
		At:        time.Now(),
	})
	if assessment.Hallucination != nil {
		c.emit(telemetry.Event{
			SessionID: req.ID,
			Type:      telemetry.EventHallucinationFlagged,
			Stage:     string(st.Type),
			AgentID:   profile.ID,
			Detail:    fmt.Sprintf("%s (confidence %.2f): %v", assessment.Hallucination.Type, assessment.Hallucination.Confidence, assessment.Hallucination.Evidence),
			At:        time.Now(),
		})
	}

	rec := &workflow.Record{
		Result:        result,
		QualityScore:  assessment.Score,
		Hallucination: assessment.Hallucination,
	}
	gate := c.evaluateGate(st.Type, rec)
	rec.Gate = &gate
	results[st.Type] = rec

	if gate.Passed {
		st.Status = models.SubtaskStatusDone
		c.registry.RecordSuccess(profile.ID, result.Duration)
	} else {
		st.Status = models.SubtaskStatusFailed
		c.registry.RecordFailure(profile.ID, result.Duration)
	}
	c.emit(telemetry.Event{
		SessionID: req.ID,
		Type:      telemetry.EventGateResult,
		Stage:     string(st.Type),
		AgentID:   profile.ID,
		Detail:    formatGate(gate),
		At:        time.Now(),
	})
	if c.db != nil {
		if err := c.db.SaveSubtask(req.ID, st, assessment.Score, gate.Passed, result.Artifacts); err != nil {
			log.Printf("[coordinator] persist subtask: %v", err)
		}
	}

	return nil
}

// pickValidCandidate walks the selection best-first and returns the first
// candidate whose capability contract permits the assignment. Violations
// are fatal for that pairing only.
func (c *Coordinator) pickValidCandidate(req *models.TaskRequest, sel *registry.Selection, st *models.Subtask) *registry.ScoredAgent {
	candidates := append([]*registry.ScoredAgent{sel.Best}, sel.Alternates...)
	for _, cand := range candidates {
		if err := c.validator.VerifyOrError(cand.Profile, st.Type, st.Description); err != nil {
			log.Printf("[coordinator] %v", err)
			c.emit(telemetry.Event{
				SessionID: req.ID,
				Type:      telemetry.EventGateResult,
				Stage:     string(st.Type),
				AgentID:   cand.Profile.ID,
				Detail:    err.Error(),
				At:        time.Now(),
			})
			continue
		}
		return cand
	}
	return nil
}

// evaluateGate applies the gate matching the stage role.
func (c *Coordinator) evaluateGate(role models.SubtaskType, rec *workflow.Record) models.QualityGateResult {
	switch role {
	case models.SubtaskDesign:
		return workflow.EvaluateDesignGate(rec)
	case models.SubtaskVerification:
		return workflow.EvaluateVerificationGate(rec)
	default:
		return workflow.EvaluateGenericGate(rec)
	}
}

// designContext summarizes the known design state for the next worker.
func (c *Coordinator) designContext(taskID string) string {
	identity := c.store.ModuleIdentity(taskID)
	artifacts := c.store.KnownArtifacts(taskID)
	if identity == "" && len(artifacts) == 0 {
		return "No design artifacts exist yet."
	}
	return fmt.Sprintf("Existing design module: %s. Artifacts on disk: %v.", identity, artifacts)
}

// emit records an event on the sink and forwards it to observers without
// blocking.
func (c *Coordinator) emit(ev telemetry.Event) {
	c.sink.Record(ev)
	select {
	case c.events <- ev:
	default:
	}
}

// singlePlan wraps a non-composite request into a one-subtask plan.
func singlePlan(t models.SubtaskType, text string) *models.Plan {
	return &models.Plan{
		Subtasks: []*models.Subtask{
			{
				ID:          uuid.New().String()[:8],
				Type:        t,
				Description: text,
				Status:      models.SubtaskStatusPending,
			},
		},
		Rationale: "single-phase request, no decomposition required",
	}
}

// requiredStages lists the stage roles the plan must pass.
func requiredStages(plan *models.Plan) []models.SubtaskType {
	out := make([]models.SubtaskType, 0, len(plan.Subtasks))
	for _, st := range plan.Subtasks {
		out = append(out, st.Type)
	}
	return out
}

// nextPending returns the first subtask in plan order without a passed
// gate, or nil when every gate has passed.
func nextPending(plan *models.Plan, results workflow.Results) *models.Subtask {
	for _, st := range plan.Subtasks {
		if !stagePassed(results, st.Type) {
			return st
		}
	}
	return nil
}

// stagePassed reports whether the stage role has a passed gate.
func stagePassed(results workflow.Results, role models.SubtaskType) bool {
	rec, ok := results[role]
	return ok && rec != nil && rec.Gate != nil && rec.Gate.Passed
}

// subtaskForStage finds the plan subtask for a stage role.
func subtaskForStage(plan *models.Plan, role models.SubtaskType) *models.Subtask {
	for _, st := range plan.Subtasks {
		if st.Type == role {
			return st
		}
	}
	return nil
}

// formatGate renders a gate outcome for the event feed.
func formatGate(gate models.QualityGateResult) string {
	if gate.Passed {
		return fmt.Sprintf("gate passed with score %.1f", gate.Score)
	}
	return fmt.Sprintf("gate failed with score %.1f: %v", gate.Score, gate.Issues)
}
