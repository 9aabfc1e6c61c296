package registry

import (
	"os"
	"path/filepath"
	"testing"

	"veriflow/pkg/models"
)

func TestLoadRoster(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	content := `
agents:
  - id: rtl-specialist
    specialty: pipelined datapath design
    capabilities: [design, debug]
    preferred_types: [design]
    deny_keywords: [testbench, simulate]
  - id: sim-runner
    specialty: simulation
    capabilities: [verification]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	r := New()
	if err := r.LoadRoster(path); err != nil {
		t.Fatal(err)
	}

	p := r.Get("rtl-specialist")
	if p == nil {
		t.Fatal("rtl-specialist not registered")
	}
	if !p.CanHandle(models.SubtaskDesign) || p.CanHandle(models.SubtaskVerification) {
		t.Errorf("capabilities = %v", p.Capabilities)
	}
	if len(p.DenyKeywords) != 2 {
		t.Errorf("DenyKeywords = %v", p.DenyKeywords)
	}
	if p.Status != models.AgentIdle {
		t.Errorf("Status = %s, want idle", p.Status)
	}

	if r.Get("sim-runner") == nil {
		t.Error("sim-runner not registered")
	}
}

func TestLoadRoster_RejectsUnknownCapability(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	content := "agents:\n  - id: bad\n    capabilities: [deployment]\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	r := New()
	if err := r.LoadRoster(path); err == nil {
		t.Error("expected an error for an unknown capability")
	}
}

func TestLoadRoster_RejectsMissingID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	content := "agents:\n  - specialty: nameless\n    capabilities: [design]\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	r := New()
	if err := r.LoadRoster(path); err == nil {
		t.Error("expected an error for a roster entry without an id")
	}
}

func TestDefaultRoster(t *testing.T) {
	r := New()
	r.DefaultRoster()

	design := r.Get("design-worker")
	if design == nil {
		t.Fatal("design-worker missing")
	}
	if design.CanHandle(models.SubtaskVerification) {
		t.Error("design worker can take verification work")
	}
	if len(design.DenyKeywords) == 0 {
		t.Error("design worker has no deny list")
	}

	verification := r.Get("verification-worker")
	if verification == nil {
		t.Fatal("verification-worker missing")
	}
	if verification.CanHandle(models.SubtaskDesign) {
		t.Error("verification worker can take design work")
	}

	// Every pipeline stage has at least one capable worker.
	for _, st := range []models.SubtaskType{models.SubtaskDesign, models.SubtaskVerification, models.SubtaskAnalysis, models.SubtaskDebug} {
		if len(r.Idle(st)) == 0 {
			t.Errorf("no idle worker for %s", st)
		}
	}
}
