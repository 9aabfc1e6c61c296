// Package classify maps natural-language requests to subtask types.
package classify

import (
	"context"
	"strings"

	"veriflow/pkg/models"
)

// defaultConfidence is used when no second opinion overrides the rule-based
// category.
const defaultConfidence = 0.7

// CategoryKeywords is the single source of truth for classification keywords.
// These keywords are used by both the classifier and the decomposer to ensure
// consistent request routing.
type CategoryKeywords struct {
	// Design keywords indicate RTL design and implementation work.
	Design []string
	// Verification keywords indicate testbench and simulation work.
	Verification []string
	// Analysis keywords indicate read-only inspection work.
	Analysis []string
	// Debug keywords indicate targeted fixing of failing designs.
	Debug []string
}

// DefaultCategoryKeywords returns the authoritative keyword mappings.
var DefaultCategoryKeywords = CategoryKeywords{
	Design: []string{
		"design",
		"implement",
		"create",
		"build",
		"module",
		"code",
		"rtl",
		"counter",
		"alu",
		"fsm",
	},
	Verification: []string{
		"testbench",
		"verify",
		"verification",
		"simulate",
		"simulation",
		"test",
		"waveform",
		"assert",
		"coverage",
	},
	Analysis: []string{
		"analyze",
		"analysis",
		"review",
		"inspect",
		"explain",
		"report",
		"summarize",
	},
	Debug: []string{
		"debug",
		"fix",
		"broken",
		"failing",
		"error",
		"bug",
		"incorrect",
	},
}

// categoryPrecedence breaks ties when two categories match equally often.
// The order is fixed and deterministic: the more specific vocabularies win
// over generic design words.
var categoryPrecedence = []models.SubtaskType{
	models.SubtaskDebug,
	models.SubtaskVerification,
	models.SubtaskDesign,
	models.SubtaskAnalysis,
}

// urgentKeywords raise the request priority to high.
var urgentKeywords = []string{
	"urgent",
	"asap",
	"immediately",
	"critical",
	"right away",
	"blocking",
}

// relaxedKeywords lower the request priority to low.
var relaxedKeywords = []string{
	"low priority",
	"no rush",
	"whenever",
	"eventually",
	"nice to have",
}

// Classification is the outcome of classifying a request.
type Classification struct {
	// Type is the selected subtask type.
	Type models.SubtaskType
	// Confidence is how confident the classification is (0.0-1.0).
	Confidence float64
	// Priority is the derived urgency of the request.
	Priority models.Priority
	// Reason explains why this type was selected.
	Reason string
	// Matches is the per-category match count behind the decision.
	Matches map[models.SubtaskType]int
}

// SecondOpinion is an optional delegate that may override the rule-based
// category. The planner backend provides an LLM-backed implementation;
// tests swap in deterministic fakes.
type SecondOpinion interface {
	// Classify returns an overriding type and confidence for the request.
	// A nil opinion means no override.
	Classify(ctx context.Context, request string) (*Opinion, error)
}

// Opinion is a second-opinion classification result.
type Opinion struct {
	// Type is the overriding subtask type.
	Type models.SubtaskType
	// Confidence is the delegate's own confidence (0.0-1.0).
	Confidence float64
}

// Classifier applies ordered keyword rule sets per category, with an
// optional second-opinion delegate.
type Classifier struct {
	keywords CategoryKeywords
	opinion  SecondOpinion
}

// New creates a Classifier with the default keyword rule sets.
// The opinion delegate may be nil to disable second opinions.
func New(opinion SecondOpinion) *Classifier {
	return &Classifier{
		keywords: DefaultCategoryKeywords,
		opinion:  opinion,
	}
}

// Classify maps a request to a subtask type, confidence, and priority.
// The category with the most keyword matches wins; ties break by the fixed
// category precedence. A second opinion, when available, overrides the
// rule-based category and supplies its own confidence.
func (c *Classifier) Classify(ctx context.Context, request string) Classification {
	lower := strings.ToLower(request)

	matches := map[models.SubtaskType]int{
		models.SubtaskDesign:       countMatches(lower, c.keywords.Design),
		models.SubtaskVerification: countMatches(lower, c.keywords.Verification),
		models.SubtaskAnalysis:     countMatches(lower, c.keywords.Analysis),
		models.SubtaskDebug:        countMatches(lower, c.keywords.Debug),
	}

	best := models.SubtaskDesign
	bestCount := -1
	for _, cat := range categoryPrecedence {
		if matches[cat] > bestCount {
			best = cat
			bestCount = matches[cat]
		}
	}

	result := Classification{
		Type:       best,
		Confidence: defaultConfidence,
		Reason:     "keyword rule match",
		Matches:    matches,
	}
	if bestCount == 0 {
		result.Type = models.SubtaskDesign
		result.Reason = "no keyword match, defaulting to design"
	}

	// A second opinion may override the rule-based category.
	if c.opinion != nil {
		if op, err := c.opinion.Classify(ctx, request); err == nil && op != nil && op.Type.Valid() {
			result.Type = op.Type
			result.Confidence = op.Confidence
			result.Reason = "second opinion override"
		}
	}

	result.Priority = derivePriority(lower, result.Type)
	return result
}

// derivePriority applies explicit urgency keywords first, then falls back
// to the type-based default (debug is high, analysis is low, else medium).
func derivePriority(lower string, t models.SubtaskType) models.Priority {
	for _, kw := range urgentKeywords {
		if strings.Contains(lower, kw) {
			return models.PriorityHigh
		}
	}
	for _, kw := range relaxedKeywords {
		if strings.Contains(lower, kw) {
			return models.PriorityLow
		}
	}

	switch t {
	case models.SubtaskDebug:
		return models.PriorityHigh
	case models.SubtaskAnalysis:
		return models.PriorityLow
	default:
		return models.PriorityMedium
	}
}

// countMatches counts how many keywords from the rule set occur in the text.
func countMatches(lower string, keywords []string) int {
	count := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			count++
		}
	}
	return count
}
