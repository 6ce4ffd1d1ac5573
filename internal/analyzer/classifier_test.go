package analyzer

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/chhaya/internal/model"
)

// fakeGenerator answers every prompt with a fixed response.
type fakeGenerator struct {
	mu      sync.Mutex
	answer  string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.answer, f.err
}

const sampleAnswer = `{
  "title": "Card Shop",
  "url": "http://shop.onion",
  "summary": "Sells stolen cards",
  "risk_assessment": {"score": 85, "level": "high", "category": "fraud"},
  "keywords": ["cards", "cvv"],
  "pii": {"names": ["J. Doe"], "emails": ["sales@shop.example"], "websites": [], "contact_numbers": []},
  "action_plan": "Report to authorities"
}`

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	p := BuildPrompt("PAGE TEXT", "http://x.onion")
	textAt := strings.Index(p, "PAGE TEXT")
	urlAt := strings.Index(p, "http://x.onion")
	if textAt < 0 || urlAt < 0 || textAt > urlAt {
		t.Errorf("prompt must contain the text before the URL:\n%s", p)
	}
	if !strings.Contains(p, "return only valid JSON") {
		t.Error("prompt lacks the JSON-only instruction")
	}
}

func TestClassifierAnalyze(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("plain JSON answer", func(t *testing.T) {
		t.Parallel()

		gen := &fakeGenerator{answer: sampleAnswer}
		c := NewClassifier(gen, WithClassifierClock(func() time.Time { return fixed }))

		got, err := c.Analyze(context.Background(), "http://shop.onion", "contact sales@shop.example now")
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if got.Title != "Card Shop" || got.URL != "http://shop.onion" || got.Summary != "Sells stolen cards" {
			t.Errorf("record = %+v", got)
		}
		if got.Risk != (model.RiskAssessment{Score: 85, Level: model.RiskHigh, Category: "fraud"}) {
			t.Errorf("Risk = %+v", got.Risk)
		}
		// Already reported by the model, so not duplicated.
		if !reflect.DeepEqual(got.PII.Emails, []string{"sales@shop.example"}) {
			t.Errorf("Emails = %v", got.PII.Emails)
		}
		if !got.AnalyzedAt.Equal(fixed) {
			t.Errorf("AnalyzedAt = %v", got.AnalyzedAt)
		}
		if len(gen.prompts) != 1 || !strings.Contains(gen.prompts[0], "contact sales@shop.example now") {
			t.Errorf("prompts = %v", gen.prompts)
		}
	})

	t.Run("fenced answer", func(t *testing.T) {
		t.Parallel()

		gen := &fakeGenerator{answer: "```json\n" + sampleAnswer + "\n```"}
		got, err := NewClassifier(gen).Analyze(context.Background(), "http://shop.onion", "")
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if got.Risk.Score != 85 {
			t.Errorf("Score = %d", got.Risk.Score)
		}
	})

	t.Run("score clamped and level derived", func(t *testing.T) {
		t.Parallel()

		gen := &fakeGenerator{answer: `{"summary": "s", "risk_assessment": {"score": 140, "level": "extreme"}}`}
		got, err := NewClassifier(gen).Analyze(context.Background(), "http://a.onion", "")
		if err != nil {
			t.Fatal(err)
		}
		if got.Risk.Score != 100 || got.Risk.Level != model.RiskCritical {
			t.Errorf("Risk = %+v", got.Risk)
		}
	})

	t.Run("missing fields are filled", func(t *testing.T) {
		t.Parallel()

		onion := "aaaqeayeaudaocajbifqydiob4ibceqtcqkrmfyydenbwha5dyp3kead.onion"
		gen := &fakeGenerator{answer: `{"risk_assessment": {"score": "45"}}`}
		got, err := NewClassifier(gen).Analyze(context.Background(), "http://a.onion", "mirror at "+onion+" mail x@y.org")
		if err != nil {
			t.Fatal(err)
		}
		if got.URL != "http://a.onion" || got.Title != "http://a.onion" {
			t.Errorf("URL/Title = %q/%q", got.URL, got.Title)
		}
		if got.Risk.Level != model.RiskMedium {
			t.Errorf("Level = %v", got.Risk.Level)
		}
		if !reflect.DeepEqual(got.PII.Websites, []string{onion}) {
			t.Errorf("Websites = %v", got.PII.Websites)
		}
		if !reflect.DeepEqual(got.PII.Emails, []string{"x@y.org"}) {
			t.Errorf("Emails = %v", got.PII.Emails)
		}
		if got.Keywords == nil || got.PII.Names == nil || got.PII.ContactNumbers == nil {
			t.Errorf("lists must be empty, not nil: %+v", got)
		}
	})

	t.Run("failures", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name string
			gen  *fakeGenerator
		}{
			{"generator error", &fakeGenerator{err: errors.New("connection reset")}},
			{"not JSON", &fakeGenerator{answer: "I cannot help with that."}},
			{"no risk assessment", &fakeGenerator{answer: `{"title": "x"}`}},
			{"no score", &fakeGenerator{answer: `{"risk_assessment": {"level": "low"}}`}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				_, err := NewClassifier(tt.gen).Analyze(context.Background(), "http://a.onion", "")
				if !errors.Is(err, ErrAnalyzerFailure) {
					t.Errorf("Analyze() error = %v, want ErrAnalyzerFailure", err)
				}
			})
		}
	})
}

func TestMergeUnique(t *testing.T) {
	t.Parallel()

	got := mergeUnique([]string{"a", "b", "a"}, []string{"b", "c"})
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("mergeUnique() = %v", got)
	}
}
