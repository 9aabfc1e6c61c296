package main

import (
	"github.com/anthropics/anthropic-sdk-go"

	"veriflow/internal/classify"
	"veriflow/internal/config"
	"veriflow/internal/planner"
)

// buildClient creates the model client from loaded configuration,
// selecting Bedrock when enabled.
func buildClient(cfg *config.Config) (*planner.Client, error) {
	return planner.NewClient(planner.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        cfg.Anthropic.APIKey,
		UseAWSBedrock: cfg.Bedrock.Enabled,
		AWSRegion:     cfg.Bedrock.Region,
		AWSProfile:    cfg.Bedrock.Profile,
	})
}

// plannerBackend creates the model-backed planner.
func plannerBackend(client *planner.Client) planner.Planner {
	return planner.NewLLMPlanner(client)
}

// plannerOpinion creates the classification second opinion.
func plannerOpinion(client *planner.Client) classify.SecondOpinion {
	return planner.NewOpinion(client)
}
