package domain

import "context"

// APICall performs one HTTP request against the remote API using the given
// token. It returns the raw response or a transport error. This is the unit
// the refresh orchestrator wraps and retries.
type APICall func(ctx context.Context, token Token) (CallResult, error)

// TokenStore provides durable persistence for the current token
type TokenStore interface {
	// Load returns the stored token. A missing or corrupt store file
	// yields common.ErrNoToken rather than a hard failure.
	Load(ctx context.Context) (Token, error)

	// Save atomically replaces the stored token
	Save(ctx context.Context, token Token) error

	// Clear removes the stored token
	Clear(ctx context.Context) error
}

// LoginExtractor drives a browser login and harvests the resulting token
type LoginExtractor interface {
	// Extract logs in with the given credentials and returns the
	// harvested token. Failures carry an ExtractionError.
	Extract(ctx context.Context, creds Credentials) (Token, error)
}

// OutcomeClassifier classifies one API call result
type OutcomeClassifier interface {
	// Classify inspects the raw result and transport error and returns
	// the outcome classification. It must be pure and side-effect free.
	Classify(result CallResult, callErr error) Outcome
}

// RefreshProvider wraps API calls with automatic token recovery
type RefreshProvider interface {
	// Do executes the call with the current token, recovering from an
	// auth failure at most once via browser extraction.
	Do(ctx context.Context, call APICall) (CallResult, error)

	// CurrentToken returns the token the orchestrator would use for the
	// next call without issuing a request.
	CurrentToken(ctx context.Context) (Token, error)
}
