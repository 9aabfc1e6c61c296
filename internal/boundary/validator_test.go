package boundary

import (
	"errors"
	"testing"

	"veriflow/pkg/models"
)

func designOnlyProfile() *models.AgentProfile {
	return &models.AgentProfile{
		ID:           "design-worker",
		Capabilities: []models.SubtaskType{models.SubtaskDesign, models.SubtaskDebug},
		DenyKeywords: []string{"testbench", "simulate", "verify"},
	}
}

func TestValidator_Verify(t *testing.T) {
	tests := []struct {
		name        string
		profile     *models.AgentProfile
		subtaskType models.SubtaskType
		description string
		valid       bool
	}{
		{
			name:        "design work on design worker",
			profile:     designOnlyProfile(),
			subtaskType: models.SubtaskDesign,
			description: "implement an 8-bit counter",
			valid:       true,
		},
		{
			name:        "verification type rejected by capability set",
			profile:     designOnlyProfile(),
			subtaskType: models.SubtaskVerification,
			description: "write a testbench",
			valid:       false,
		},
		{
			name:        "deny keyword rejected even for permitted type",
			profile:     designOnlyProfile(),
			subtaskType: models.SubtaskDesign,
			description: "implement a counter and simulate it",
			valid:       false,
		},
		{
			name:        "deny keyword match is case-insensitive",
			profile:     designOnlyProfile(),
			subtaskType: models.SubtaskDesign,
			description: "design a module, then SIMULATE",
			valid:       false,
		},
		{
			name:        "nil profile rejected",
			profile:     nil,
			subtaskType: models.SubtaskDesign,
			description: "anything",
			valid:       false,
		},
	}

	v := NewValidator()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := v.Verify(tc.profile, tc.subtaskType, tc.description)
			if res.Valid != tc.valid {
				t.Errorf("Verify valid = %t, want %t (reason: %s)", res.Valid, tc.valid, res.Reason)
			}
			if !res.Valid && res.SuggestedAction == "" {
				t.Error("rejection is missing a suggested action")
			}
		})
	}
}

func TestValidator_VerifyOrError(t *testing.T) {
	v := NewValidator()

	err := v.VerifyOrError(designOnlyProfile(), models.SubtaskVerification, "write a testbench")
	if err == nil {
		t.Fatal("expected a violation error")
	}

	var verr *ViolationError
	if !errors.As(err, &verr) {
		t.Fatalf("error is %T, want *ViolationError", err)
	}
	if verr.AgentID != "design-worker" {
		t.Errorf("AgentID = %s, want design-worker", verr.AgentID)
	}
	if verr.SubtaskType != models.SubtaskVerification {
		t.Errorf("SubtaskType = %s, want verification", verr.SubtaskType)
	}

	if err := v.VerifyOrError(designOnlyProfile(), models.SubtaskDesign, "implement a counter"); err != nil {
		t.Errorf("valid assignment returned error: %v", err)
	}
}
