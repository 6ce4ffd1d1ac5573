package pipeline

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/chhaya/internal/model"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, run *Run) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, run *Run) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, run)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

// recorder collects progress in memory.
type recorder struct {
	mu       sync.Mutex
	total    int
	pages    []model.Page
	failures []string
}

func (r *recorder) SetTotalLinks(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total = n
}

func (r *recorder) AddPage(p model.Page) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages = append(r.pages, p)
}

func (r *recorder) AddFailure(url string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, url)
}

func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("runs steps in order", func(t *testing.T) {
		t.Parallel()

		var order []string
		step := func(name string) *mockStep {
			return &mockStep{name: name, doFunc: func(context.Context, *Run) error {
				order = append(order, name)
				return nil
			}}
		}
		p := New([]Step{step("a"), step("b"), step("c")})

		if err := p.Execute(context.Background(), &Run{}); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if !reflect.DeepEqual(order, []string{"a", "b", "c"}) {
			t.Errorf("order = %v", order)
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		first := &mockStep{name: "first", doFunc: func(context.Context, *Run) error { return boom }}
		second := &mockStep{name: "second"}

		err := New([]Step{first, second}).Execute(context.Background(), &Run{})
		if !errors.Is(err, boom) {
			t.Fatalf("Execute() error = %v, want boom", err)
		}
		if !strings.HasPrefix(err.Error(), "first: ") {
			t.Errorf("error should name the step: %v", err)
		}
		if second.callCount != 0 {
			t.Error("second step should not run")
		}
	})

	t.Run("checks cancellation between steps", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		first := &mockStep{name: "first", doFunc: func(context.Context, *Run) error {
			cancel()
			return nil
		}}
		second := &mockStep{name: "second"}

		err := New([]Step{first, second}).Execute(ctx, &Run{})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Execute() error = %v, want context.Canceled", err)
		}
		if second.callCount != 0 {
			t.Error("second step should not run after cancellation")
		}
	})
}

func TestPipelineStepNames(t *testing.T) {
	t.Parallel()

	p := New(DefaultSteps(nil, nil, nil, nil, "", nil, nil))
	want := []string{"discover", "extract", "limit", "fetch"}
	if got := p.StepNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("StepNames() = %v, want %v", got, want)
	}
}
