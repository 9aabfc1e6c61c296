package registry

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"veriflow/pkg/models"
)

// Scoring weights for worker selection. The base guarantees any compatible
// idle worker is rankable; the bonuses reward track record and speed.
const (
	scoreBase              = 50.0
	successRateWeight      = 30.0
	latencyBonusMax        = 20.0
	consecutiveBonusMax    = 10.0
	preferredTypeBonus     = 10.0
	blacklistedPenalty     = 20.0
	alternateScoreFraction = 0.8
)

// latencyReference is the average latency at which the latency bonus
// reaches zero; instantaneous workers earn the full bonus.
const latencyReference = 5 * time.Minute

// ScoredAgent pairs a candidate worker with its selection score.
type ScoredAgent struct {
	// Profile is the candidate worker.
	Profile *models.AgentProfile
	// Score is the computed selection score.
	Score float64
	// Reasoning lists the contributing stats that drove the score.
	Reasoning []string
}

// Selection is the ranked outcome of worker selection for one subtask.
type Selection struct {
	// Best is the top-scoring candidate.
	Best *ScoredAgent
	// Alternates are candidates scoring within 80% of the top.
	Alternates []*ScoredAgent
}

// Selector scores idle, capability-compatible workers for a subtask.
type Selector struct {
	registry *Registry
}

// NewSelector creates a Selector over the given registry.
func NewSelector(r *Registry) *Selector {
	return &Selector{registry: r}
}

// Select filters the registry to idle workers compatible with the subtask
// type, scores each, and returns the top scorer with alternates within 80%
// of the top. Returns an error when no compatible idle worker exists
// (capability deadlock, terminal for the caller).
func (s *Selector) Select(subtaskType models.SubtaskType, priority models.Priority) (*Selection, error) {
	candidates := s.registry.Idle(subtaskType)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no idle worker is capability-compatible with subtask type %q", subtaskType)
	}

	scored := make([]*ScoredAgent, 0, len(candidates))
	for _, p := range candidates {
		scored = append(scored, scoreAgent(p, subtaskType))
	}

	// Stable order: score descending, then ID for determinism.
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Profile.ID < scored[j].Profile.ID
	})

	best := scored[0]
	sel := &Selection{Best: best}
	for _, sa := range scored[1:] {
		if sa.Score >= best.Score*alternateScoreFraction {
			sel.Alternates = append(sel.Alternates, sa)
		}
	}
	return sel, nil
}

// scoreAgent computes the selection score for one candidate:
// 50 base + success rate x30 + latency bonus (up to 20) + consecutive
// success bonus (capped at 10) + preferred-type bonus (10) minus the
// blacklisted-type penalty (20).
func scoreAgent(p *models.AgentProfile, t models.SubtaskType) *ScoredAgent {
	var reasons []string
	score := scoreBase

	rate := p.SuccessRate()
	score += rate * successRateWeight
	reasons = append(reasons, fmt.Sprintf("success rate %.0f%% (+%.1f)", rate*100, rate*successRateWeight))

	lb := latencyBonus(p.AvgLatency)
	score += lb
	if p.AvgLatency > 0 {
		reasons = append(reasons, fmt.Sprintf("avg latency %s (+%.1f)", p.AvgLatency.Round(time.Second), lb))
	}

	cb := float64(p.ConsecutiveSuccesses)
	if cb > consecutiveBonusMax {
		cb = consecutiveBonusMax
	}
	if cb > 0 {
		score += cb
		reasons = append(reasons, fmt.Sprintf("%d consecutive successes (+%.0f)", p.ConsecutiveSuccesses, cb))
	}

	if p.Prefers(t) {
		score += preferredTypeBonus
		reasons = append(reasons, fmt.Sprintf("prefers %s work (+%.0f)", t, preferredTypeBonus))
	}
	if p.Blacklists(t) {
		score -= blacklistedPenalty
		reasons = append(reasons, fmt.Sprintf("blacklists %s work (-%.0f)", t, blacklistedPenalty))
	}

	return &ScoredAgent{Profile: p, Score: score, Reasoning: reasons}
}

// latencyBonus maps average latency to a bonus: shorter is better, scaled
// linearly from the full bonus at zero down to zero at the reference
// latency. Workers with no history earn the full bonus.
func latencyBonus(avg time.Duration) float64 {
	if avg <= 0 {
		return latencyBonusMax
	}
	if avg >= latencyReference {
		return 0
	}
	return latencyBonusMax * (1 - float64(avg)/float64(latencyReference))
}

// FormatReasoning renders a scored agent's reasoning as one line.
func (sa *ScoredAgent) FormatReasoning() string {
	return fmt.Sprintf("%s scored %.1f: %s", sa.Profile.ID, sa.Score, strings.Join(sa.Reasoning, ", "))
}
