package classify

import (
	"context"
	"errors"
	"testing"

	"veriflow/pkg/models"
)

func TestClassifier_Categories(t *testing.T) {
	tests := []struct {
		name     string
		request  string
		expected models.SubtaskType
	}{
		{
			name:     "design request",
			request:  "implement an 8-bit counter module",
			expected: models.SubtaskDesign,
		},
		{
			name:     "verification request",
			request:  "write a testbench and simulate the waveform",
			expected: models.SubtaskVerification,
		},
		{
			name:     "analysis request",
			request:  "review and summarize the existing RTL, then report findings",
			expected: models.SubtaskAnalysis,
		},
		{
			name:     "debug request",
			request:  "fix the failing counter, the output is incorrect",
			expected: models.SubtaskDebug,
		},
		{
			name:     "no match defaults to design",
			request:  "do the usual thing",
			expected: models.SubtaskDesign,
		},
	}

	c := New(nil)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Classify(context.Background(), tc.request)
			if got.Type != tc.expected {
				t.Errorf("Classify(%q).Type = %s, want %s", tc.request, got.Type, tc.expected)
			}
		})
	}
}

func TestClassifier_TieBreakIsDeterministic(t *testing.T) {
	c := New(nil)

	// One debug keyword and one analysis keyword: debug precedes analysis
	// in the precedence order.
	got := c.Classify(context.Background(), "inspect the bug")
	if got.Type != models.SubtaskDebug {
		t.Errorf("tie broke to %s, want %s", got.Type, models.SubtaskDebug)
	}

	// Repeated classification yields the same answer.
	for i := 0; i < 10; i++ {
		if again := c.Classify(context.Background(), "inspect the bug"); again.Type != got.Type {
			t.Fatalf("classification flapped: %s then %s", got.Type, again.Type)
		}
	}
}

func TestClassifier_Priority(t *testing.T) {
	tests := []struct {
		name     string
		request  string
		expected models.Priority
	}{
		{
			name:     "urgent keyword wins",
			request:  "urgent: implement a counter",
			expected: models.PriorityHigh,
		},
		{
			name:     "relaxed keyword wins",
			request:  "implement a counter, no rush",
			expected: models.PriorityLow,
		},
		{
			name:     "debug defaults high",
			request:  "fix the broken output",
			expected: models.PriorityHigh,
		},
		{
			name:     "analysis defaults low",
			request:  "summarize the architecture with a report",
			expected: models.PriorityLow,
		},
		{
			name:     "design defaults medium",
			request:  "implement a counter",
			expected: models.PriorityMedium,
		},
	}

	c := New(nil)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Classify(context.Background(), tc.request)
			if got.Priority != tc.expected {
				t.Errorf("priority = %s, want %s", got.Priority, tc.expected)
			}
		})
	}
}

type fakeOpinion struct {
	op  *Opinion
	err error
}

func (f *fakeOpinion) Classify(ctx context.Context, request string) (*Opinion, error) {
	return f.op, f.err
}

func TestClassifier_SecondOpinionOverride(t *testing.T) {
	c := New(&fakeOpinion{op: &Opinion{Type: models.SubtaskVerification, Confidence: 0.9}})

	got := c.Classify(context.Background(), "implement a counter")
	if got.Type != models.SubtaskVerification {
		t.Errorf("override ignored: got %s", got.Type)
	}
	if got.Confidence != 0.9 {
		t.Errorf("confidence = %.2f, want 0.9", got.Confidence)
	}
}

func TestClassifier_SecondOpinionErrorFallsBack(t *testing.T) {
	c := New(&fakeOpinion{err: errors.New("backend down")})

	got := c.Classify(context.Background(), "implement a counter")
	if got.Type != models.SubtaskDesign {
		t.Errorf("fallback ignored rule-based result: got %s", got.Type)
	}
}
