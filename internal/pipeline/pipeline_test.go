package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/nao1215/harvester/internal/model"
)

type recordingStep struct {
	name   string
	err    error
	calls  *[]string
	cancel context.CancelFunc
}

func (s *recordingStep) Do(_ context.Context, _ *Result) error {
	*s.calls = append(*s.calls, s.name)
	if s.cancel != nil {
		s.cancel()
	}
	return s.err
}

func (s *recordingStep) Name() string { return s.name }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testResult() *Result {
	task := model.NewTask("session-1", "https://example.com/", model.PriorityNormal)
	return &Result{
		Task: task,
		Page: &model.Page{URL: task.URL},
	}
}

func TestExecuteRunsStepsInOrder(t *testing.T) {
	t.Parallel()

	var calls []string
	p := New(WithLogger(discardLogger()))
	p.AddSteps(
		&recordingStep{name: "extract", calls: &calls},
		&recordingStep{name: "classify", calls: &calls},
		&recordingStep{name: "store", calls: &calls},
	)

	if err := p.Execute(context.Background(), testResult()); err != nil {
		t.Fatalf("Execute() = %v, want nil", err)
	}

	want := []string{"extract", "classify", "store"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("calls[%d] = %q, want %q", i, calls[i], want[i])
		}
	}
}

func TestExecuteStopsOnFirstErrorByDefault(t *testing.T) {
	t.Parallel()

	var calls []string
	stepErr := errors.New("extraction failed")
	p := New(WithLogger(discardLogger()))
	p.AddSteps(
		&recordingStep{name: "extract", calls: &calls, err: stepErr},
		&recordingStep{name: "store", calls: &calls},
	)

	if err := p.Execute(context.Background(), testResult()); !errors.Is(err, stepErr) {
		t.Fatalf("Execute() = %v, want %v", err, stepErr)
	}
	if len(calls) != 1 {
		t.Errorf("calls = %v, want only the failing step", calls)
	}
}

func TestExecuteContinueOnError(t *testing.T) {
	t.Parallel()

	var calls []string
	stepErr := errors.New("extraction failed")
	p := New(WithLogger(discardLogger()), WithContinueOnError(true))
	p.AddSteps(
		&recordingStep{name: "extract", calls: &calls, err: stepErr},
		&recordingStep{name: "store", calls: &calls},
	)

	if err := p.Execute(context.Background(), testResult()); !errors.Is(err, stepErr) {
		t.Fatalf("Execute() = %v, want first error %v", err, stepErr)
	}
	if len(calls) != 2 {
		t.Errorf("calls = %v, want both steps to run", calls)
	}
}

func TestExecuteStopsOnContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var calls []string
	p := New(WithLogger(discardLogger()))
	p.AddSteps(
		&recordingStep{name: "extract", calls: &calls, cancel: cancel},
		&recordingStep{name: "store", calls: &calls},
	)

	if err := p.Execute(ctx, testResult()); !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() = %v, want context.Canceled", err)
	}
	if len(calls) != 1 {
		t.Errorf("calls = %v, want execution to stop after cancellation", calls)
	}
}

func TestStepNames(t *testing.T) {
	t.Parallel()

	var calls []string
	p := New(WithLogger(discardLogger()))
	p.AddSteps(
		&recordingStep{name: "extract", calls: &calls},
		&recordingStep{name: "store", calls: &calls},
	)

	names := p.StepNames()
	if len(names) != 2 || names[0] != "extract" || names[1] != "store" {
		t.Errorf("StepNames() = %v, want [extract store]", names)
	}
}
