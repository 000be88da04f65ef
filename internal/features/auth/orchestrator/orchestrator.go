package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"clockout-watcher/internal/common"
	"clockout-watcher/internal/features/auth/domain"
	"clockout-watcher/internal/metrics"
)

// Config holds configuration for the refresh orchestrator
type Config struct {
	// AutoRefresh enables browser-driven recovery on auth failures.
	// When disabled, auth failures surface to the caller untouched.
	AutoRefresh bool

	// RefreshKey scopes extraction coalescing. Callers sharing the same
	// credential/base-URL pair must share the same key.
	RefreshKey string
}

// Orchestrator implements domain.RefreshProvider. It wraps API calls,
// classifies failures, recovers expired tokens through the login extractor
// and re-issues the original call exactly once.
type Orchestrator struct {
	config     Config
	store      domain.TokenStore
	extractor  domain.LoginExtractor
	classifier domain.OutcomeClassifier
	creds      domain.Credentials

	// group coalesces concurrent extractions for the same refresh key
	group singleflight.Group

	// cached is the last known-good token. It survives store persist
	// failures so an immediate retry can still proceed.
	cached      domain.Token
	lastAttempt *domain.RefreshAttempt
	mu          sync.RWMutex
}

// New creates a new refresh orchestrator
func New(
	config Config,
	store domain.TokenStore,
	extractor domain.LoginExtractor,
	classifier domain.OutcomeClassifier,
	creds domain.Credentials,
) (*Orchestrator, error) {
	if store == nil {
		return nil, common.InvalidInputError("token store cannot be nil")
	}
	if extractor == nil {
		return nil, common.InvalidInputError("login extractor cannot be nil")
	}
	if classifier == nil {
		return nil, common.InvalidInputError("outcome classifier cannot be nil")
	}
	if config.RefreshKey == "" {
		return nil, common.InvalidInputError("refresh key cannot be empty")
	}

	return &Orchestrator{
		config:     config,
		store:      store,
		extractor:  extractor,
		classifier: classifier,
		creds:      creds,
	}, nil
}

// CurrentToken returns the token the next call would use
func (o *Orchestrator) CurrentToken(ctx context.Context) (domain.Token, error) {
	o.mu.RLock()
	cached := o.cached
	o.mu.RUnlock()

	if !cached.IsZero() {
		return cached, nil
	}

	token, err := o.store.Load(ctx)
	if err != nil {
		return domain.Token{}, err
	}

	o.mu.Lock()
	o.cached = token
	o.mu.Unlock()
	return token, nil
}

// LastAttempt returns the most recent refresh attempt record, if any
func (o *Orchestrator) LastAttempt() *domain.RefreshAttempt {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.lastAttempt == nil {
		return nil
	}
	attempt := *o.lastAttempt
	return &attempt
}

// Do executes the wrapped call, recovering from an auth failure at most
// once. A missing or corrupt stored token is not fatal: the first call goes
// out without one, the API rejects it, and the normal recovery path runs.
func (o *Orchestrator) Do(ctx context.Context, call domain.APICall) (domain.CallResult, error) {
	if call == nil {
		return domain.CallResult{}, common.InvalidInputError("call cannot be nil")
	}

	state := newCallState()
	if err := state.transition(domain.EventCallIssued); err != nil {
		return domain.CallResult{}, err
	}

	token, err := o.CurrentToken(ctx)
	if err != nil && !common.IsNoToken(err) {
		return domain.CallResult{}, fmt.Errorf("failed to load token: %w", err)
	}

	result, callErr := call(ctx, token)
	if err := common.CheckContext(ctx); err != nil {
		return result, err
	}

	outcome := o.classifier.Classify(result, callErr)
	metrics.APICallsTotal.WithLabelValues(string(outcome)).Inc()

	switch outcome {
	case domain.OutcomeSuccess:
		if err := state.transition(domain.EventCallSucceeded); err != nil {
			return result, err
		}
		return result, nil

	case domain.OutcomeOtherFailure:
		// Not recoverable by this subsystem: surface verbatim
		if err := state.transition(domain.EventCallFailed); err != nil {
			return result, err
		}
		if err := state.transition(domain.EventNonAuthFailure); err != nil {
			return result, err
		}
		if callErr != nil {
			return result, callErr
		}
		return result, nil

	case domain.OutcomeAuthFailure:
		if err := state.transition(domain.EventCallFailed); err != nil {
			return result, err
		}
		return o.recover(ctx, state, call, token, result)

	default:
		return result, fmt.Errorf("unknown outcome classification %q", outcome)
	}
}

// recover runs the extraction and single retry after an auth failure
func (o *Orchestrator) recover(
	ctx context.Context,
	state *callState,
	call domain.APICall,
	failedToken domain.Token,
	original domain.CallResult,
) (domain.CallResult, error) {
	authCause := common.NewAuthRejectedError(original.StatusCode, summarizeBody(original.Body))

	if !o.config.AutoRefresh {
		if err := state.transition(domain.EventRefreshSkipped); err != nil {
			return original, err
		}
		return original, authCause
	}

	if err := state.transition(domain.EventAuthRejected); err != nil {
		return original, err
	}

	attempt := domain.RefreshAttempt{StartedAt: time.Now()}
	newToken, refreshErr := o.refresh(ctx, failedToken)
	attempt.FinishedAt = time.Now()

	if refreshErr != nil {
		attempt.Cause = refreshErr
		o.recordAttempt(attempt)
		metrics.RefreshAttemptsTotal.WithLabelValues("failed").Inc()

		if err := state.transition(domain.EventExtractionFailed); err != nil {
			return original, err
		}
		// Composite error: the auth failure that started recovery plus
		// the reason recovery itself failed.
		return original, fmt.Errorf("token refresh failed after %v: %w", authCause, refreshErr)
	}

	attempt.Recovered = true
	attempt.Retried = true
	o.recordAttempt(attempt)
	metrics.RefreshAttemptsTotal.WithLabelValues("recovered").Inc()

	if err := state.transition(domain.EventTokenRefreshed); err != nil {
		return original, err
	}

	retryResult, retryErr := call(ctx, newToken)
	retryOutcome := o.classifier.Classify(retryResult, retryErr)
	metrics.APICallsTotal.WithLabelValues(string(retryOutcome)).Inc()

	switch retryOutcome {
	case domain.OutcomeSuccess:
		if err := state.transition(domain.EventRetrySucceeded); err != nil {
			return retryResult, err
		}
		return retryResult, nil

	case domain.OutcomeAuthFailure:
		// A second rejection is terminal: report, never loop
		if err := state.transition(domain.EventRetryRejected); err != nil {
			return retryResult, err
		}
		return retryResult, fmt.Errorf("token still rejected after refresh: %w",
			common.NewAuthRejectedError(retryResult.StatusCode, summarizeBody(retryResult.Body)))

	default:
		if err := state.transition(domain.EventNonAuthFailure); err != nil {
			return retryResult, err
		}
		if retryErr != nil {
			return retryResult, retryErr
		}
		return retryResult, nil
	}
}

// refresh obtains a fresh token, coalescing concurrent callers onto a
// single extraction per refresh key
func (o *Orchestrator) refresh(ctx context.Context, failedToken domain.Token) (domain.Token, error) {
	result, err, shared := o.group.Do(o.config.RefreshKey, func() (interface{}, error) {
		// Another caller may have refreshed while we waited
		o.mu.RLock()
		cached := o.cached
		o.mu.RUnlock()
		if !cached.IsZero() && cached.Value != failedToken.Value {
			return cached, nil
		}

		token, err := o.extract(ctx)
		if err != nil {
			return domain.Token{}, err
		}

		o.mu.Lock()
		o.cached = token
		o.mu.Unlock()

		// A persist failure does not discard the token just obtained;
		// the retry proceeds with the in-memory copy.
		if saveErr := o.store.Save(ctx, token); saveErr != nil {
			log.Printf("Token obtained but not persisted: %v", saveErr)
			metrics.StorePersistFailuresTotal.Inc()
		}

		return token, nil
	})
	if err != nil {
		return domain.Token{}, err
	}

	if shared {
		log.Printf("Token refresh coalesced with concurrent caller (key=%s)", o.config.RefreshKey)
	}

	return result.(domain.Token), nil
}

// extract runs the browser extraction, re-attempting once on timeout
func (o *Orchestrator) extract(ctx context.Context) (domain.Token, error) {
	log.Printf("Starting browser token extraction (key=%s)", o.config.RefreshKey)

	token, err := o.extractor.Extract(ctx, o.creds)
	if err == nil {
		return token, nil
	}

	if !domain.IsExtractionRetryable(err) {
		return domain.Token{}, err
	}
	if ctxErr := common.CheckContext(ctx); ctxErr != nil {
		return domain.Token{}, ctxErr
	}

	log.Printf("Extraction timed out, re-attempting once: %v", err)
	token, retryErr := o.extractor.Extract(ctx, o.creds)
	if retryErr != nil {
		return domain.Token{}, fmt.Errorf("extraction re-attempt failed: %w", retryErr)
	}
	return token, nil
}

// recordAttempt stores the latest refresh attempt for observability
func (o *Orchestrator) recordAttempt(attempt domain.RefreshAttempt) {
	o.mu.Lock()
	o.lastAttempt = &attempt
	o.mu.Unlock()
}

// summarizeBody trims a response body down to a loggable reason string
func summarizeBody(body []byte) string {
	const maxLen = 200
	if len(body) == 0 {
		return "empty response body"
	}
	if len(body) > maxLen {
		return string(body[:maxLen]) + "..."
	}
	return string(body)
}
