package domain

import "time"

// TokenSource identifies how a token entered the store
type TokenSource string

// Token sources
const (
	SourceManual        TokenSource = "manual"
	SourceAutoExtracted TokenSource = "auto-extracted"
)

// Token contains the credential material required by the remote API.
// The API expects both the X-Token header and the session cookie, so
// both travel together.
type Token struct {
	Value    string      `json:"token"`
	Cookie   string      `json:"cookie,omitempty"`
	IssuedAt time.Time   `json:"issued_at"`
	Source   TokenSource `json:"source"`
}

// IsZero reports whether the token carries no credential material
func (t Token) IsZero() bool {
	return t.Value == ""
}

// Credentials holds a username/password pair for one extraction attempt.
// Held in memory only; never persisted or logged.
type Credentials struct {
	Username string
	Password string
}

// Outcome is the classification of one API call result
type Outcome string

// Outcome classifications
const (
	OutcomeSuccess      Outcome = "Success"
	OutcomeAuthFailure  Outcome = "AuthFailure"
	OutcomeOtherFailure Outcome = "OtherFailure"
)

// CallResult is the raw result of one API request: status code and body as
// returned by the transport. A transport-level failure travels separately
// as an error alongside a zero CallResult.
type CallResult struct {
	StatusCode int
	Body       []byte
}

// State represents the refresh orchestration state for one wrapped call
type State string

// Refresh orchestration states
const (
	StateIdle                State = "Idle"
	StateCallInFlight        State = "CallInFlight"
	StateClassifyingFailure  State = "ClassifyingFailure"
	StateExtracting          State = "Extracting"
	StateRetryingCall        State = "RetryingCall"
	StateDoneSuccess         State = "DoneSuccess"
	StateDoneFailed          State = "DoneFailed"
)

// Event represents events that drive refresh state transitions
type Event string

// Refresh orchestration events
const (
	EventCallIssued       Event = "CallIssued"
	EventCallSucceeded    Event = "CallSucceeded"
	EventCallFailed       Event = "CallFailed"
	EventAuthRejected     Event = "AuthRejected"
	EventNonAuthFailure   Event = "NonAuthFailure"
	EventRefreshSkipped   Event = "RefreshSkipped"
	EventTokenRefreshed   Event = "TokenRefreshed"
	EventExtractionFailed Event = "ExtractionFailed"
	EventRetrySucceeded   Event = "RetrySucceeded"
	EventRetryRejected    Event = "RetryRejected"
)

// RefreshAttempt records one recovery cycle. It exists only for the
// duration of a single orchestrated call and is never persisted.
type RefreshAttempt struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Recovered  bool
	Retried    bool
	Cause      error
}
