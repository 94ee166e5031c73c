package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/gemirror/internal/log"
	"github.com/nao1215/gemirror/internal/model"
)

// Step is one pass of a mirror run.
// The pipeline advances the run's state after every step that returns.
type Step interface {
	// Do runs the pass over run. A non-nil error means the run cannot
	// go on; problems with single pages or assets are recorded in the
	// run instead.
	Do(ctx context.Context, run *model.Run) error

	// Name identifies the step in logs.
	Name() string
}

// Pipeline runs steps in order over one run.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps running the remaining steps after a step
// fails.
//
// Design decision: The default is to stop, since a conversion pass over a
// half-built registry would write dangling links.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:  make([]Step, 0, 2),
		logger: log.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = log.Discard()
	}
	return p
}

// AddStep appends step. Steps run in the order they were added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends steps in order.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs every step over run and advances run after each one.
// After the last step run is in StateDone with a final summary.
//
// The context is checked before each step, and steps check it between
// pages. A cancelled run keeps its current state, is flagged Cancelled and
// its summary covers the work done so far.
func (p *Pipeline) Execute(ctx context.Context, run *model.Run) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.cancel(run, step, err)
			return err
		}

		if err := p.run(ctx, step, run); err != nil {
			if ctx.Err() != nil {
				p.cancel(run, step, err)
				return err
			}
			if !p.continueOnError {
				run.Summarize()
				return err
			}
		}

		run.Advance()
	}
	return nil
}

// run executes a single step and logs its outcome.
func (p *Pipeline) run(ctx context.Context, step Step, run *model.Run) error {
	p.logger.Info("executing step", "step", step.Name(), "state", run.State, "site", run.Site)

	err := step.Do(ctx, run)
	switch {
	case err == nil:
		p.logger.Debug("step completed", "step", step.Name())
	case ctx.Err() == nil:
		p.logger.Error("step failed", "step", step.Name(), "site", run.Site, "error", err)
	}
	return err
}

func (p *Pipeline) cancel(run *model.Run, step Step, reason error) {
	p.logger.Warn("pipeline cancelled", "step", step.Name(), "state", run.State, "reason", reason)
	run.Cancelled = true
	run.Summarize()
}

// StepCount returns the number of steps.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, len(p.steps))
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	return names
}
