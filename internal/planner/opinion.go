package planner

import (
	"context"
	"encoding/json"
	"fmt"

	"veriflow/internal/classify"
	"veriflow/pkg/models"
)

const opinionSystemPrompt = `You classify hardware design requests into exactly one category:
"design", "verification", "analysis", or "debug".
Respond with ONLY a JSON object: {"type":"<category>","confidence":<0.0-1.0>}`

// Opinion is a model-backed second opinion on request classification.
// The keyword classifier consults it whenever one is bound and adopts its
// judgment with the model's own confidence.
type Opinion struct {
	client *Client
}

// NewOpinion creates the second-opinion classifier.
func NewOpinion(client *Client) *Opinion {
	return &Opinion{client: client}
}

// Classify asks the model for a category judgment.
func (o *Opinion) Classify(ctx context.Context, request string) (*classify.Opinion, error) {
	raw, err := o.client.complete(ctx, opinionSystemPrompt, request, 256)
	if err != nil {
		return nil, err
	}

	payload := extractJSON(raw)
	if payload == "" {
		return nil, fmt.Errorf("no JSON object in opinion response")
	}

	var parsed struct {
		Type       models.SubtaskType `json:"type"`
		Confidence float64            `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal opinion: %w", err)
	}
	if !parsed.Type.Valid() || parsed.Type == models.SubtaskComposite {
		return nil, fmt.Errorf("opinion named invalid category %q", parsed.Type)
	}

	return &classify.Opinion{Type: parsed.Type, Confidence: parsed.Confidence}, nil
}
