package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying why a judgment could not be obtained.
// EvaluationError wraps one of these as its Kind so callers can branch
// with errors.Is without inspecting provider-specific detail.
var (
	// ErrExhaustedRetries indicates that every attempt failed with a
	// transient error and the retry budget ran out.
	ErrExhaustedRetries = errors.New("retries exhausted")

	// ErrProviderRejected indicates a non-transient provider failure such
	// as an authentication or validation error; the request was not retried.
	ErrProviderRejected = errors.New("provider rejected request")

	// ErrEmptyPrompt indicates that Judge was called with an empty prompt.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")

	// ErrInvalidConfiguration indicates that client construction received
	// invalid or incomplete configuration.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// EvaluationError describes a judge call that produced no Judgment.
// It carries the classification sentinel, the provider/model pair, and
// the number of attempts that were made before giving up.
type EvaluationError struct {
	// Kind is one of the sentinel errors above.
	Kind error

	// Provider is the provider identifier the call was routed to.
	Provider string

	// Model is the model the call targeted.
	Model string

	// Attempts is the number of provider calls made, including retries.
	Attempts int

	// Err is the last underlying error observed.
	Err error
}

// Error implements the error interface.
func (e *EvaluationError) Error() string {
	return fmt.Sprintf("judgment failed (%v): provider=%s model=%s attempts=%d: %v",
		e.Kind, e.Provider, e.Model, e.Attempts, e.Err)
}

// Unwrap returns the underlying provider error.
func (e *EvaluationError) Unwrap() error { return e.Err }

// Is reports whether target matches this error's classification sentinel,
// enabling errors.Is(err, domain.ErrExhaustedRetries) style checks.
func (e *EvaluationError) Is(target error) bool { return target == e.Kind }

// NewEvaluationError creates an EvaluationError with the given classification.
func NewEvaluationError(kind error, provider, model string, attempts int, err error) *EvaluationError {
	return &EvaluationError{
		Kind:     kind,
		Provider: provider,
		Model:    model,
		Attempts: attempts,
		Err:      err,
	}
}

// BudgetExceededError indicates that an optional session budget limit
// blocked a judge call before it reached the provider.
type BudgetExceededError struct {
	// LimitType names the exceeded dimension: "cost", "tokens", or "judgments".
	LimitType string

	// Limit is the configured ceiling for the dimension.
	Limit float64

	// Used is the ledger value observed at admission time.
	Used float64
}

// Error implements the error interface.
func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget exceeded: %s limit %.4f reached (used %.4f)",
		e.LimitType, e.Limit, e.Used)
}

// NewBudgetExceededError creates a BudgetExceededError for the given dimension.
func NewBudgetExceededError(limitType string, limit, used float64) *BudgetExceededError {
	return &BudgetExceededError{LimitType: limitType, Limit: limit, Used: used}
}
