package registry

import (
	"testing"
	"time"

	"veriflow/pkg/models"
)

func newWorker(id string, caps ...models.SubtaskType) *models.AgentProfile {
	return &models.AgentProfile{
		ID:           id,
		Capabilities: caps,
		Status:       models.AgentIdle,
	}
}

func TestRegistry_AcquireRelease(t *testing.T) {
	r := New()
	r.Register(newWorker("w1", models.SubtaskDesign))

	if err := r.Acquire("w1"); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if err := r.Acquire("w1"); err == nil {
		t.Error("second acquire of a busy worker succeeded")
	}
	if err := r.Acquire("ghost"); err == nil {
		t.Error("acquire of unregistered worker succeeded")
	}

	r.Release("w1")
	if err := r.Acquire("w1"); err != nil {
		t.Errorf("acquire after release failed: %v", err)
	}
}

func TestRegistry_IdleFiltersByCapability(t *testing.T) {
	r := New()
	r.Register(newWorker("design", models.SubtaskDesign))
	r.Register(newWorker("verify", models.SubtaskVerification))

	idle := r.Idle(models.SubtaskVerification)
	if len(idle) != 1 || idle[0].ID != "verify" {
		t.Fatalf("Idle(verification) = %v, want only verify", idle)
	}

	if err := r.Acquire("verify"); err != nil {
		t.Fatal(err)
	}
	if got := r.Idle(models.SubtaskVerification); len(got) != 0 {
		t.Errorf("busy worker still listed idle: %v", got)
	}
}

func TestRegistry_DisableAfterFailureStreak(t *testing.T) {
	r := New()
	r.Register(newWorker("w1", models.SubtaskDesign))

	for i := 0; i < DefaultDisableThreshold-1; i++ {
		r.RecordFailure("w1", time.Second)
	}
	if got := r.Get("w1").Status; got != models.AgentIdle {
		t.Fatalf("worker disabled early: status %s after %d failures", got, DefaultDisableThreshold-1)
	}

	r.RecordFailure("w1", time.Second)
	if got := r.Get("w1").Status; got != models.AgentDisabled {
		t.Errorf("status = %s after %d failures, want disabled", got, DefaultDisableThreshold)
	}

	// A disabled worker never returns via Release.
	r.Release("w1")
	if got := r.Get("w1").Status; got != models.AgentDisabled {
		t.Errorf("release revived a disabled worker: %s", got)
	}
}

func TestRegistry_SuccessResetsFailureStreak(t *testing.T) {
	r := New()
	r.Register(newWorker("w1", models.SubtaskDesign))

	r.RecordFailure("w1", time.Second)
	r.RecordFailure("w1", time.Second)
	r.RecordSuccess("w1", time.Second)

	p := r.Get("w1")
	if p.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d after success, want 0", p.ConsecutiveFailures)
	}
	if p.ConsecutiveSuccesses != 1 {
		t.Errorf("ConsecutiveSuccesses = %d, want 1", p.ConsecutiveSuccesses)
	}

	r.RecordFailure("w1", time.Second)
	if p.ConsecutiveSuccesses != 0 {
		t.Errorf("failure did not reset success streak: %d", p.ConsecutiveSuccesses)
	}
}
