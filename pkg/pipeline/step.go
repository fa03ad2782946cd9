package pipeline

import (
	"context"
	"fmt"
	"time"
)

// Step is one stage of the processing pipeline.
//
// Process must not perform its own retries; the Manager drives the retry
// loop using MaxRetries and RetryDelay. Lifecycle hooks are invoked by the
// Manager around Process.
type Step interface {
	// Name is the stable identifier for this step
	Name() string

	// MaxRetries is the maximum number of attempts for transient errors
	MaxRetries() int

	// RetryDelay is the base delay for exponential backoff between attempts
	RetryDelay() time.Duration

	// ShouldSkip decides whether this step runs for the given context
	ShouldSkip(c *Context) bool

	// SkipReason explains why ShouldSkip returned true
	SkipReason(c *Context) string

	// Process executes the step's core logic
	Process(ctx context.Context, c *Context) StepResult

	// Lifecycle hooks
	OnStart(c *Context)
	OnComplete(c *Context, result StepResult)
	OnError(c *Context, err *StepError)
	OnSkip(c *Context, reason string)
}

// BaseStep provides default retry parameters and no-op hooks. Concrete
// steps embed it and override what they need.
type BaseStep struct{}

func (BaseStep) MaxRetries() int                 { return 3 }
func (BaseStep) RetryDelay() time.Duration       { return time.Second }
func (BaseStep) ShouldSkip(*Context) bool        { return false }
func (BaseStep) SkipReason(*Context) string      { return "condition not met" }
func (BaseStep) OnStart(*Context)                {}
func (BaseStep) OnComplete(*Context, StepResult) {}
func (BaseStep) OnError(*Context, *StepError)    {}
func (BaseStep) OnSkip(*Context, string)         {}

// ConditionalStep skips itself when its enabling option is falsy in the
// context options.
type ConditionalStep struct {
	BaseStep

	// EnabledOption is the context option controlling this step
	EnabledOption string

	// DefaultEnabled applies when the option is absent
	DefaultEnabled bool
}

func (s ConditionalStep) ShouldSkip(c *Context) bool {
	return !c.OptionBool(s.EnabledOption, s.DefaultEnabled)
}

func (s ConditionalStep) SkipReason(*Context) string {
	return fmt.Sprintf("%s is disabled", s.EnabledOption)
}
