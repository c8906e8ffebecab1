package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/harvester/internal/model"
)

// Result is the unit of work flowing through the pipeline: one fetched
// page together with the task that produced it. Steps enrich the page in
// place.
type Result struct {
	// Task is a snapshot of the task that produced the fetch.
	Task *model.Task

	// Page is the fetched page, mutated by steps (title, links,
	// language, snapshot).
	Page *model.Page
}

// Step is one post-fetch processing stage.
type Step interface {
	// Do executes the step, enriching the result in place. A returned
	// error fails the step; whether the pipeline continues depends on
	// its configuration.
	Do(ctx context.Context, result *Result) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline executes an ordered list of steps for each fetched page.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger

	// continueOnError determines whether later steps still run after one
	// fails. Extraction hiccups should not prevent storage, so the
	// crawler turns this on; the default is to stop on first error.
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to keep executing steps
// after one fails. Failed steps are logged; the first error is still
// returned after the remaining steps ran.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a Pipeline. Steps are added with AddSteps after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddSteps appends steps in execution order.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence for one result. It checks the
// context between steps; steps handle their own timeouts internally.
func (p *Pipeline) Execute(ctx context.Context, result *Result) error {
	var firstErr error
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := step.Do(ctx, result); err != nil {
			p.logger.Warn("pipeline step failed",
				"step", step.Name(),
				"url", result.Page.URL,
				"error", err,
			)
			if !p.continueOnError {
				return err
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		p.logger.Debug("pipeline step completed",
			"step", step.Name(),
			"url", result.Page.URL,
		)
	}
	return firstErr
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
