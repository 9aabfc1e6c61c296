package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"veriflow/internal/workflow"
	"veriflow/pkg/models"
)

// ActionType is the planner's proposed next move.
type ActionType string

const (
	// ActionContinue proposes dispatching or retrying a stage.
	ActionContinue ActionType = "continue"
	// ActionFinal proposes finishing the session with a summary. Subject
	// to completion enforcement; the planner cannot end a session alone.
	ActionFinal ActionType = "final"
)

// Action is one planner decision.
type Action struct {
	// Type selects continue or final.
	Type ActionType `json:"action"`
	// Stage is the stage to work on when continuing.
	Stage models.SubtaskType `json:"stage,omitempty"`
	// Guidance refines the subtask instruction on a retry.
	Guidance string `json:"guidance,omitempty"`
	// Summary is the final answer text when finishing.
	Summary string `json:"summary,omitempty"`
}

// Planner proposes the next coordination move from the session state.
type Planner interface {
	NextAction(ctx context.Context, req *models.TaskRequest, stage workflow.Stage, results workflow.Results) (*Action, error)
}

// FormatError reports planner output that could not be coerced into a
// valid action even after the constrained re-prompt.
type FormatError struct {
	Raw string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("planner returned unparseable output: %s", truncate(e.Raw, 200))
}

const plannerSystemPrompt = `You are the coordination planner for a hardware design workflow.
Each session runs a design stage and then a verification stage, each guarded by a quality gate.
Given the current stage and gate outcomes, respond with ONLY a JSON object:
{"action":"continue","stage":"design"|"verification","guidance":"<instruction refinement>"}
or
{"action":"final","summary":"<what was accomplished>"}
Never propose "final" while any gate is unpassed.`

const reformatPrompt = `Your previous reply was not valid JSON. Respond with ONLY the JSON object, no prose, no code fences.`

// LLMPlanner asks the model for the next move. Output is coerced from
// free text; one constrained re-prompt is allowed before giving up.
type LLMPlanner struct {
	client *Client
}

// NewLLMPlanner creates a model-backed planner.
func NewLLMPlanner(client *Client) *LLMPlanner {
	return &LLMPlanner{client: client}
}

// NextAction asks the model for the next move.
func (p *LLMPlanner) NextAction(ctx context.Context, req *models.TaskRequest, stage workflow.Stage, results workflow.Results) (*Action, error) {
	prompt := buildStatePrompt(req, stage, results)

	raw, err := p.client.complete(ctx, plannerSystemPrompt, prompt, 1024)
	if err != nil {
		return nil, err
	}

	action, perr := parseAction(raw)
	if perr == nil {
		return action, nil
	}

	log.Printf("[planner] coercion failed, re-prompting: %v", perr)
	raw, err = p.client.complete(ctx, plannerSystemPrompt, prompt+"\n\n"+reformatPrompt, 1024)
	if err != nil {
		return nil, err
	}
	action, perr = parseAction(raw)
	if perr != nil {
		return nil, &FormatError{Raw: raw}
	}
	return action, nil
}

// buildStatePrompt renders the session state for the model.
func buildStatePrompt(req *models.TaskRequest, stage workflow.Stage, results workflow.Results) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Request: %s\n", req.Text)
	fmt.Fprintf(&b, "Current stage: %s\n", stage)
	fmt.Fprintf(&b, "Retries used: %d/%d\n", req.Retries, req.MaxRetries)

	for _, role := range []models.SubtaskType{models.SubtaskDesign, models.SubtaskVerification} {
		rec, ok := results[role]
		if !ok || rec == nil || rec.Gate == nil {
			fmt.Fprintf(&b, "%s gate: not evaluated\n", role)
			continue
		}
		fmt.Fprintf(&b, "%s gate: passed=%t score=%.1f", role, rec.Gate.Passed, rec.Gate.Score)
		if len(rec.Gate.Issues) > 0 {
			fmt.Fprintf(&b, " issues=%v", rec.Gate.Issues)
		}
		b.WriteString("\n")
	}
	b.WriteString("What is the next move?")
	return b.String()
}

// parseAction coerces free text into an Action. The model may wrap the
// JSON in prose or code fences; the first balanced object is extracted.
func parseAction(raw string) (*Action, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return nil, fmt.Errorf("no JSON object found")
	}

	var action Action
	if err := json.Unmarshal([]byte(payload), &action); err != nil {
		return nil, fmt.Errorf("unmarshal action: %w", err)
	}

	switch action.Type {
	case ActionContinue:
		if action.Stage != models.SubtaskDesign && action.Stage != models.SubtaskVerification {
			return nil, fmt.Errorf("continue action names invalid stage %q", action.Stage)
		}
	case ActionFinal:
	default:
		return nil, fmt.Errorf("unknown action type %q", action.Type)
	}
	return &action, nil
}

// extractJSON returns the first balanced top-level JSON object in s.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
