package pipeline

import (
	"fmt"
	"time"
)

// StepStatus represents the execution state of a pipeline step
type StepStatus string

const (
	StatusPending   StepStatus = "pending"
	StatusRunning   StepStatus = "running"
	StatusSuccess   StepStatus = "success"
	StatusFailed    StepStatus = "failed"
	StatusSkipped   StepStatus = "skipped"
	StatusCancelled StepStatus = "cancelled"
)

// ErrorCategory classifies a step error for retry and escalation decisions
type ErrorCategory string

const (
	// CategoryTransient errors (network, rate limit) are retried with backoff
	CategoryTransient ErrorCategory = "transient"

	// CategoryPermanent errors (invalid input, auth) fail the step
	CategoryPermanent ErrorCategory = "permanent"

	// CategoryFatal errors (missing config, broken invariant) stop the pipeline
	CategoryFatal ErrorCategory = "fatal"

	// CategoryUnknown is the default: not retried, not pipeline-stopping
	CategoryUnknown ErrorCategory = "unknown"
)

// StepError is detailed error information from a failed step
type StepError struct {
	Code      string
	Message   string
	Category  ErrorCategory
	Retryable bool
	Details   map[string]any
}

// Error implements the error interface
func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Transient creates a retryable error
func Transient(code, message string) *StepError {
	return &StepError{Code: code, Message: message, Category: CategoryTransient, Retryable: true}
}

// Permanent creates a non-retryable error
func Permanent(code, message string) *StepError {
	return &StepError{Code: code, Message: message, Category: CategoryPermanent}
}

// Fatal creates an error that stops the whole pipeline
func Fatal(code, message string) *StepError {
	return &StepError{Code: code, Message: message, Category: CategoryFatal}
}

// Errorf creates a StepError in the given category from a wrapped error
func Errorf(category ErrorCategory, code string, err error) *StepError {
	return &StepError{
		Code:      code,
		Message:   err.Error(),
		Category:  category,
		Retryable: category == CategoryTransient,
	}
}

// FromPanic converts a recovered panic value into an unknown-category error
func FromPanic(code string, recovered any) *StepError {
	return &StepError{
		Code:     code,
		Message:  fmt.Sprintf("panic: %v", recovered),
		Category: CategoryUnknown,
		Details:  map[string]any{"panic": fmt.Sprintf("%v", recovered)},
	}
}

// WithDetails attaches structured details and returns the error
func (e *StepError) WithDetails(details map[string]any) *StepError {
	e.Details = details
	return e
}

// StepResult is the outcome of one step execution
type StepResult struct {
	Status      StepStatus
	StepName    string
	Data        map[string]any
	Error       *StepError
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Attempts    int
}

// OK creates a successful result with optional output data
func OK(stepName string, data map[string]any) StepResult {
	if data == nil {
		data = map[string]any{}
	}
	return StepResult{
		Status:   StatusSuccess,
		StepName: stepName,
		Data:     data,
		Attempts: 1,
	}
}

// Fail creates a failed result
func Fail(stepName string, err *StepError) StepResult {
	return StepResult{
		Status:   StatusFailed,
		StepName: stepName,
		Data:     map[string]any{},
		Error:    err,
		Attempts: 1,
	}
}

// Skip creates a skipped result
func Skip(stepName, reason string) StepResult {
	return StepResult{
		Status:   StatusSkipped,
		StepName: stepName,
		Data:     map[string]any{"skip_reason": reason},
		Attempts: 0,
	}
}

// Success reports whether the step completed successfully
func (r StepResult) Success() bool { return r.Status == StatusSuccess }

// Failed reports whether the step failed
func (r StepResult) Failed() bool { return r.Status == StatusFailed }

// Skipped reports whether the step was skipped
func (r StepResult) Skipped() bool { return r.Status == StatusSkipped }

// ContentID returns the content identifier carried by this result, if any
func (r StepResult) ContentID() string {
	for _, key := range []string{"cid", "root_cid"} {
		if v, ok := r.Data[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func (r StepResult) withTiming(startedAt time.Time) StepResult {
	now := time.Now().UTC()
	r.StartedAt = startedAt
	r.CompletedAt = now
	r.Duration = now.Sub(startedAt)
	return r
}

// Result is the aggregate outcome of one pipeline execution
type Result struct {
	Success        bool
	StepResults    []StepResult
	TotalDuration  time.Duration
	StartedAt      time.Time
	CompletedAt    time.Time
	SourcePath     string
	FinalContentID string
	Error          string
}

// StepResult returns the result for a specific step, if present
func (r *Result) StepResult(stepName string) (StepResult, bool) {
	for _, sr := range r.StepResults {
		if sr.StepName == stepName {
			return sr, true
		}
	}
	return StepResult{}, false
}

// FailedSteps returns all failed step results
func (r *Result) FailedSteps() []StepResult {
	var failed []StepResult
	for _, sr := range r.StepResults {
		if sr.Failed() {
			failed = append(failed, sr)
		}
	}
	return failed
}

// resultFromSteps aggregates step results: the pipeline succeeded iff every
// step ended in success or skipped. The final content ID comes from the most
// recent step result that carries one.
func resultFromSteps(stepResults []StepResult, sourcePath string, startedAt time.Time) *Result {
	now := time.Now().UTC()

	success := true
	for _, sr := range stepResults {
		if sr.Status != StatusSuccess && sr.Status != StatusSkipped {
			success = false
			break
		}
	}

	var finalContentID string
	for i := len(stepResults) - 1; i >= 0; i-- {
		if cid := stepResults[i].ContentID(); cid != "" {
			finalContentID = cid
			break
		}
	}

	var errMsg string
	for _, sr := range stepResults {
		if sr.Error != nil {
			errMsg = sr.Error.Message
			break
		}
	}

	return &Result{
		Success:        success,
		StepResults:    stepResults,
		TotalDuration:  now.Sub(startedAt),
		StartedAt:      startedAt,
		CompletedAt:    now,
		SourcePath:     sourcePath,
		FinalContentID: finalContentID,
		Error:          errMsg,
	}
}
