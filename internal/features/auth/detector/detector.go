package detector

import (
	"encoding/json"
	"net/http"
	"strings"

	"clockout-watcher/internal/features/auth/domain"
)

// DefaultFailureTerms is the token-failure vocabulary checked against
// response bodies when no explicit list is configured. The remote API mixes
// English and Chinese messages, so both are represented. The list is
// deliberately conservative; widening it risks misclassifying ordinary
// errors as auth failures.
var DefaultFailureTerms = []string{
	"token",
	"unauthorized",
	"expired",
	"invalid",
	"登录",
	"失效",
	"过期",
	"未授权",
}

// DefaultAuthCodes are application-level response codes treated as auth
// failures when they appear in a parsed response envelope.
var DefaultAuthCodes = []int{-1, 401, 403}

// envelope mirrors the structured response the API returns on every
// successful request: {"code": 0, "msg": "...", "data": {...}}
type envelope struct {
	Code *int            `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// Detector implements domain.OutcomeClassifier. It is pure: classification
// depends only on the inputs, never on network or store state.
type Detector struct {
	failureTerms []string
	authCodes    map[int]bool
}

// Option configures a Detector
type Option func(*Detector)

// WithFailureTerms overrides the token-failure vocabulary
func WithFailureTerms(terms []string) Option {
	return func(d *Detector) {
		if len(terms) > 0 {
			d.failureTerms = terms
		}
	}
}

// WithAuthCodes overrides the application codes treated as auth failures
func WithAuthCodes(codes []int) Option {
	return func(d *Detector) {
		if len(codes) == 0 {
			return
		}
		d.authCodes = make(map[int]bool, len(codes))
		for _, code := range codes {
			d.authCodes[code] = true
		}
	}
}

// New creates a new detector
func New(options ...Option) *Detector {
	d := &Detector{
		failureTerms: DefaultFailureTerms,
	}

	WithAuthCodes(DefaultAuthCodes)(d)

	for _, option := range options {
		option(d)
	}

	return d
}

// Classify inspects the raw call result and transport error and returns the
// outcome classification.
//
// Precedence follows the API contract: an HTTP 401/403 is always an auth
// failure no matter what the body says, a transport error is never one, and
// a parseable success envelope wins over any status oddity below 400.
func (d *Detector) Classify(result domain.CallResult, callErr error) domain.Outcome {
	if result.StatusCode == http.StatusUnauthorized || result.StatusCode == http.StatusForbidden {
		return domain.OutcomeAuthFailure
	}

	// Network errors, timeouts and the like are not recoverable by a
	// token refresh.
	if callErr != nil {
		return domain.OutcomeOtherFailure
	}

	if result.StatusCode >= http.StatusBadRequest {
		if d.containsFailureTerm(result.Body) {
			return domain.OutcomeAuthFailure
		}
		return domain.OutcomeOtherFailure
	}

	var env envelope
	if err := json.Unmarshal(result.Body, &env); err != nil || env.Code == nil {
		// A structured success envelope is guaranteed on 2xx. An empty
		// or undecodable body here means the API served the login page
		// or an error blob instead of data.
		return domain.OutcomeAuthFailure
	}

	if *env.Code == 0 {
		return domain.OutcomeSuccess
	}

	if d.authCodes[*env.Code] {
		return domain.OutcomeAuthFailure
	}

	if d.containsFailureTerm([]byte(env.Msg)) || d.containsFailureTerm(result.Body) {
		return domain.OutcomeAuthFailure
	}

	return domain.OutcomeOtherFailure
}

// containsFailureTerm checks the body against the failure vocabulary,
// case-insensitively
func (d *Detector) containsFailureTerm(body []byte) bool {
	if len(body) == 0 {
		return false
	}

	lowered := strings.ToLower(string(body))
	for _, term := range d.failureTerms {
		if strings.Contains(lowered, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
