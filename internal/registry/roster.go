package registry

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"veriflow/pkg/models"
)

// rosterFile represents the agents.yaml roster file structure.
type rosterFile struct {
	Agents []*models.AgentProfile `yaml:"agents"`
}

// LoadRoster reads worker profiles from a YAML roster file and registers
// them. The roster declares each worker's capability contract; runtime
// stats always start fresh.
func (r *Registry) LoadRoster(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read roster: %w", err)
	}

	var roster rosterFile
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return fmt.Errorf("parse roster: %w", err)
	}

	for _, p := range roster.Agents {
		if p.ID == "" {
			return fmt.Errorf("roster entry missing id")
		}
		for _, c := range p.Capabilities {
			if !c.Valid() {
				return fmt.Errorf("roster entry %s: unknown capability %q", p.ID, c)
			}
		}
		p.Status = models.AgentIdle
		r.Register(p)
	}

	return nil
}

// DefaultRoster registers the built-in design and verification workers
// used when no roster file is configured. The deny lists encode the
// capability boundary: the design worker must never see verification
// vocabulary and vice versa.
func (r *Registry) DefaultRoster() {
	r.Register(&models.AgentProfile{
		ID:             "design-worker",
		Specialty:      "RTL module design and synthesis-ready Verilog",
		Capabilities:   []models.SubtaskType{models.SubtaskDesign, models.SubtaskDebug},
		PreferredTypes: []models.SubtaskType{models.SubtaskDesign},
		DenyKeywords:   []string{"testbench", "simulate", "verify", "simulation"},
		Status:         models.AgentIdle,
	})
	r.Register(&models.AgentProfile{
		ID:             "verification-worker",
		Specialty:      "testbench authoring and simulation",
		Capabilities:   []models.SubtaskType{models.SubtaskVerification, models.SubtaskAnalysis},
		PreferredTypes: []models.SubtaskType{models.SubtaskVerification},
		DenyKeywords:   []string{"synthesize"},
		Status:         models.AgentIdle,
	})
	r.Register(&models.AgentProfile{
		ID:               "analysis-worker",
		Specialty:        "design inspection and reporting",
		Capabilities:     []models.SubtaskType{models.SubtaskAnalysis, models.SubtaskDebug},
		PreferredTypes:   []models.SubtaskType{models.SubtaskAnalysis},
		BlacklistedTypes: []models.SubtaskType{models.SubtaskDebug},
		Status:           models.AgentIdle,
	})
}
