package shipeval

import (
	"context"
	"fmt"
)

// Provider is the uniform call surface every LLM adapter implements (§4.1).
//
// Implementations must not retry non-idempotent server-side errors beyond
// what Generate itself performs internally, and must never fabricate or
// return partial content on failure — see ProviderFatal and
// ProviderRateLimit.
type Provider interface {
	// Name returns the provider's identifier, e.g. "anthropic" or "fake".
	Name() string
	// Generate runs one generation synchronously against the conversation so
	// far. msgs must be validated by the caller; Generate re-validates
	// defensively.
	Generate(ctx context.Context, msgs Messages, opts Options) (ModelResponse, error)
}

// ProviderFatal wraps a non-transient provider failure: authentication,
// model-not-found, or a malformed request. The orchestrator aborts the
// current trial on this error without retrying.
type ProviderFatal struct {
	Provider string
	Err      error
}

func (e *ProviderFatal) Error() string {
	return fmt.Sprintf("%s: fatal: %v", e.Provider, e.Err)
}

func (e *ProviderFatal) Unwrap() error { return e.Err }

// ProviderRateLimit is returned when the retry budget (§4.1: the initial
// attempt plus 3 retries at 1s/2s/4s backoff) is exhausted while the provider keeps reporting a rate
// limit or transient connection failure.
type ProviderRateLimit struct {
	Provider string
	Attempts int
	Err      error
}

func (e *ProviderRateLimit) Error() string {
	return fmt.Sprintf("%s: rate limited after %d attempts: %v", e.Provider, e.Attempts, e.Err)
}

func (e *ProviderRateLimit) Unwrap() error { return e.Err }

// ErrAPIKeyRequired is returned by a provider constructor when no credential
// was found in the environment.
type ErrAPIKeyRequired struct {
	EnvVar string
}

func (e *ErrAPIKeyRequired) Error() string {
	return fmt.Sprintf("api key is required; set environment variable %s", e.EnvVar)
}
