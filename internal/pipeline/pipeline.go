// Package pipeline runs the deployment as an ordered list of steps. The
// first failing step stops the run, and the failure hooks run after it.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"eks-cloudforge/internal/status"
)

type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// StepError reports which step failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// FailureHook runs after a step fails, for example to tear down what the
// earlier steps created.
type FailureHook func(ctx context.Context, failed *StepError) error

type Pipeline struct {
	out   *status.Printer
	steps []Step
	hooks []FailureHook
}

func New(out *status.Printer) *Pipeline {
	return &Pipeline{out: out}
}

func (p *Pipeline) Add(name string, run func(ctx context.Context) error) *Pipeline {
	p.steps = append(p.steps, Step{Name: name, Run: run})
	return p
}

func (p *Pipeline) OnFailure(hook FailureHook) *Pipeline {
	p.hooks = append(p.hooks, hook)
	return p
}

func (p *Pipeline) Steps() []Step {
	return p.steps
}

// Run executes the steps in order and returns the first failure as a
// *StepError.
func (p *Pipeline) Run(ctx context.Context) error {
	total := len(p.steps)
	for i, step := range p.steps {
		p.out.Step(i+1, total, step.Name)

		err := ctx.Err()
		if err == nil {
			start := time.Now()
			err = step.Run(ctx)
			if err == nil {
				p.out.Success("%s (%s)", step.Name, time.Since(start).Round(time.Second))
				continue
			}
		}

		failed := &StepError{Step: step.Name, Err: err}
		p.out.Error("%s failed: %v", step.Name, err)
		p.runHooks(failed)
		return failed
	}
	return nil
}

// runHooks uses a fresh context so cleanup still runs after the run's
// context is cancelled.
func (p *Pipeline) runHooks(failed *StepError) {
	for _, hook := range p.hooks {
		if err := hook(context.Background(), failed); err != nil {
			p.out.Error("failure hook: %v", err)
		}
	}
}
