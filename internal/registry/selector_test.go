package registry

import (
	"testing"
	"time"

	"veriflow/pkg/models"
)

func TestSelector_NoCandidateIsError(t *testing.T) {
	r := New()
	r.Register(newWorker("design", models.SubtaskDesign))

	s := NewSelector(r)
	if _, err := s.Select(models.SubtaskVerification, models.PriorityMedium); err == nil {
		t.Error("expected an error when no worker is capability-compatible")
	}
}

func TestSelector_PrefersTrackRecord(t *testing.T) {
	r := New()

	strong := newWorker("strong", models.SubtaskDesign)
	strong.Successes = 9
	strong.Failures = 1
	strong.ConsecutiveSuccesses = 4
	strong.AvgLatency = time.Minute
	r.Register(strong)

	weak := newWorker("weak", models.SubtaskDesign)
	weak.Successes = 2
	weak.Failures = 8
	weak.AvgLatency = 10 * time.Minute
	r.Register(weak)

	sel, err := NewSelector(r).Select(models.SubtaskDesign, models.PriorityMedium)
	if err != nil {
		t.Fatal(err)
	}
	if sel.Best.Profile.ID != "strong" {
		t.Errorf("best = %s, want strong", sel.Best.Profile.ID)
	}
	if len(sel.Best.Reasoning) == 0 {
		t.Error("selection has no reasoning")
	}
}

func TestSelector_PreferredAndBlacklistedAdjustments(t *testing.T) {
	preferred := newWorker("w", models.SubtaskDesign)
	preferred.PreferredTypes = []models.SubtaskType{models.SubtaskDesign}
	plain := newWorker("w", models.SubtaskDesign)
	blacklisted := newWorker("w", models.SubtaskDesign)
	blacklisted.BlacklistedTypes = []models.SubtaskType{models.SubtaskDesign}

	ps := scoreAgent(preferred, models.SubtaskDesign).Score
	ns := scoreAgent(plain, models.SubtaskDesign).Score
	bs := scoreAgent(blacklisted, models.SubtaskDesign).Score

	if ps != ns+preferredTypeBonus {
		t.Errorf("preferred bonus: got %.1f, plain %.1f", ps, ns)
	}
	if bs != ns-blacklistedPenalty {
		t.Errorf("blacklist penalty: got %.1f, plain %.1f", bs, ns)
	}
}

func TestSelector_AlternatesWithinEightyPercent(t *testing.T) {
	r := New()

	top := newWorker("top", models.SubtaskDesign)
	top.Successes = 10
	top.ConsecutiveSuccesses = 20
	r.Register(top)

	near := newWorker("near", models.SubtaskDesign)
	near.Successes = 8
	near.Failures = 2
	r.Register(near)

	far := newWorker("far", models.SubtaskDesign)
	far.Failures = 10
	far.BlacklistedTypes = []models.SubtaskType{models.SubtaskDesign}
	far.AvgLatency = 10 * time.Minute
	r.Register(far)

	sel, err := NewSelector(r).Select(models.SubtaskDesign, models.PriorityMedium)
	if err != nil {
		t.Fatal(err)
	}
	if sel.Best.Profile.ID != "top" {
		t.Fatalf("best = %s, want top", sel.Best.Profile.ID)
	}

	for _, alt := range sel.Alternates {
		if alt.Profile.ID == "far" {
			t.Error("alternate list includes a worker below the 80% threshold")
		}
		if alt.Score < sel.Best.Score*alternateScoreFraction {
			t.Errorf("alternate %s scored %.1f, below 80%% of %.1f", alt.Profile.ID, alt.Score, sel.Best.Score)
		}
	}
}

func TestLatencyBonus(t *testing.T) {
	tests := []struct {
		name     string
		latency  time.Duration
		expected float64
	}{
		{name: "no history earns full bonus", latency: 0, expected: latencyBonusMax},
		{name: "reference latency earns nothing", latency: latencyReference, expected: 0},
		{name: "beyond reference earns nothing", latency: 2 * latencyReference, expected: 0},
		{name: "halfway earns half", latency: latencyReference / 2, expected: latencyBonusMax / 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := latencyBonus(tc.latency); got != tc.expected {
				t.Errorf("latencyBonus(%s) = %.2f, want %.2f", tc.latency, got, tc.expected)
			}
		})
	}
}
