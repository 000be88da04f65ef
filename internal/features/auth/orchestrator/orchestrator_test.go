package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"clockout-watcher/internal/common"
	"clockout-watcher/internal/features/auth/detector"
	"clockout-watcher/internal/features/auth/domain"
	"clockout-watcher/internal/features/auth/domain/mocks"
	"clockout-watcher/internal/features/auth/store"
)

var testCreds = domain.Credentials{Username: "operator", Password: "secret"}

func newTestOrchestrator(t *testing.T, extractor domain.LoginExtractor) (*Orchestrator, *store.FileStore) {
	t.Helper()

	fileStore, err := store.NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, err)

	o, err := New(
		Config{AutoRefresh: true, RefreshKey: "operator@https://robot.example.com"},
		fileStore,
		extractor,
		detector.New(),
		testCreds,
	)
	require.NoError(t, err)
	return o, fileStore
}

func seedToken(t *testing.T, s *store.FileStore, value string) {
	t.Helper()
	require.NoError(t, s.Save(context.Background(), domain.Token{
		Value:    value,
		IssuedAt: time.Now(),
		Source:   domain.SourceManual,
	}))
}

func TestNewValidation(t *testing.T) {
	fileStore, err := store.NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, err)
	extractor := new(mocks.MockLoginExtractor)
	classifier := detector.New()
	cfg := Config{AutoRefresh: true, RefreshKey: "k"}

	_, err = New(cfg, nil, extractor, classifier, testCreds)
	assert.True(t, common.IsInvalidInput(err))

	_, err = New(cfg, fileStore, nil, classifier, testCreds)
	assert.True(t, common.IsInvalidInput(err))

	_, err = New(cfg, fileStore, extractor, nil, testCreds)
	assert.True(t, common.IsInvalidInput(err))

	_, err = New(Config{AutoRefresh: true}, fileStore, extractor, classifier, testCreds)
	assert.True(t, common.IsInvalidInput(err), "refresh key is required")
}

func TestSuccessNeverInvokesExtractor(t *testing.T) {
	extractor := new(mocks.MockLoginExtractor)
	o, fileStore := newTestOrchestrator(t, extractor)
	seedToken(t, fileStore, "valid-token")

	var calls int32
	result, err := o.Do(context.Background(), func(ctx context.Context, token domain.Token) (domain.CallResult, error) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "valid-token", token.Value)
		return domain.CallResult{
			StatusCode: http.StatusOK,
			Body:       []byte(`{"code": 0, "msg": "ok", "data": {"rows": []}}`),
		}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.EqualValues(t, 1, calls, "a successful call is issued exactly once")
	extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
}

func TestScenarioExpiredTokenRecovered(t *testing.T) {
	// 401 token expired, extraction yields "abc123", retry succeeds,
	// store ends up holding "abc123"
	extractor := new(mocks.MockLoginExtractor)
	extractor.On("Extract", mock.Anything, testCreds).Return(domain.Token{
		Value:    "abc123",
		IssuedAt: time.Now(),
		Source:   domain.SourceAutoExtracted,
	}, nil).Once()

	o, fileStore := newTestOrchestrator(t, extractor)
	seedToken(t, fileStore, "stale-token")

	var calls int32
	result, err := o.Do(context.Background(), func(ctx context.Context, token domain.Token) (domain.CallResult, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			assert.Equal(t, "stale-token", token.Value)
			return domain.CallResult{
				StatusCode: http.StatusUnauthorized,
				Body:       []byte(`{"code": 401, "msg": "token expired"}`),
			}, nil
		}
		assert.Equal(t, "abc123", token.Value, "retry must carry the fresh token")
		return domain.CallResult{
			StatusCode: http.StatusOK,
			Body:       []byte(`{"code": 0, "data": [1, 2]}`),
		}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.EqualValues(t, 2, calls)
	extractor.AssertExpectations(t)

	stored, err := fileStore.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc123", stored.Value)
	assert.Equal(t, domain.SourceAutoExtracted, stored.Source)

	attempt := o.LastAttempt()
	require.NotNil(t, attempt)
	assert.True(t, attempt.Recovered)
	assert.True(t, attempt.Retried)
}

func TestAtMostOneRetry(t *testing.T) {
	extractor := new(mocks.MockLoginExtractor)
	extractor.On("Extract", mock.Anything, testCreds).Return(domain.Token{
		Value:    "fresh-but-useless",
		IssuedAt: time.Now(),
		Source:   domain.SourceAutoExtracted,
	}, nil).Once()

	o, fileStore := newTestOrchestrator(t, extractor)
	seedToken(t, fileStore, "stale-token")

	var calls int32
	_, err := o.Do(context.Background(), func(ctx context.Context, token domain.Token) (domain.CallResult, error) {
		atomic.AddInt32(&calls, 1)
		return domain.CallResult{
			StatusCode: http.StatusUnauthorized,
			Body:       []byte(`{"code": 401, "msg": "token expired"}`),
		}, nil
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "still rejected after refresh")
	assert.EqualValues(t, 2, calls, "exactly two API calls: original plus one retry")
	extractor.AssertNumberOfCalls(t, "Extract", 1)
}

func TestOtherFailureSurfacedVerbatim(t *testing.T) {
	extractor := new(mocks.MockLoginExtractor)
	o, _ := newTestOrchestrator(t, extractor)

	transportErr := errors.New("dial tcp: connection refused")
	_, err := o.Do(context.Background(), func(ctx context.Context, token domain.Token) (domain.CallResult, error) {
		return domain.CallResult{}, transportErr
	})

	assert.Same(t, transportErr, err, "non-auth failures surface unchanged")
	extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
}

func TestExtractionFailureYieldsCompositeError(t *testing.T) {
	extractor := new(mocks.MockLoginExtractor)
	extractor.On("Extract", mock.Anything, testCreds).Return(domain.Token{},
		domain.NewExtractionError(domain.FailureLoginRejected, errors.New("bad credentials"))).Once()

	o, fileStore := newTestOrchestrator(t, extractor)
	seedToken(t, fileStore, "stale-token")

	var calls int32
	_, err := o.Do(context.Background(), func(ctx context.Context, token domain.Token) (domain.CallResult, error) {
		atomic.AddInt32(&calls, 1)
		return domain.CallResult{StatusCode: http.StatusUnauthorized}, nil
	})

	require.Error(t, err)
	extractionErr, ok := domain.AsExtractionError(err)
	require.True(t, ok, "the extraction cause must survive wrapping")
	assert.Equal(t, domain.FailureLoginRejected, extractionErr.Kind)
	assert.Contains(t, err.Error(), "authentication rejected", "the original auth failure is part of the message")
	assert.EqualValues(t, 1, calls, "no retry without a fresh token")

	// LoginRejected is not retried within the cycle
	extractor.AssertNumberOfCalls(t, "Extract", 1)

	attempt := o.LastAttempt()
	require.NotNil(t, attempt)
	assert.False(t, attempt.Recovered)
}

func TestTimeoutExtractionRetriedOnce(t *testing.T) {
	extractor := new(mocks.MockLoginExtractor)
	extractor.On("Extract", mock.Anything, testCreds).Return(domain.Token{},
		domain.NewExtractionError(domain.FailureTimeout, errors.New("login page slow"))).Once()
	extractor.On("Extract", mock.Anything, testCreds).Return(domain.Token{
		Value:    "second-try",
		IssuedAt: time.Now(),
		Source:   domain.SourceAutoExtracted,
	}, nil).Once()

	o, fileStore := newTestOrchestrator(t, extractor)
	seedToken(t, fileStore, "stale-token")

	var calls int32
	result, err := o.Do(context.Background(), func(ctx context.Context, token domain.Token) (domain.CallResult, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return domain.CallResult{StatusCode: http.StatusUnauthorized}, nil
		}
		return domain.CallResult{StatusCode: http.StatusOK, Body: []byte(`{"code": 0}`)}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	extractor.AssertNumberOfCalls(t, "Extract", 2)
}

func TestAutoRefreshDisabled(t *testing.T) {
	extractor := new(mocks.MockLoginExtractor)
	fileStore, err := store.NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, err)

	o, err := New(Config{AutoRefresh: false, RefreshKey: "k"}, fileStore, extractor, detector.New(), testCreds)
	require.NoError(t, err)

	_, err = o.Do(context.Background(), func(ctx context.Context, token domain.Token) (domain.CallResult, error) {
		return domain.CallResult{StatusCode: http.StatusUnauthorized, Body: []byte(`{"code": 401}`)}, nil
	})

	assert.True(t, common.IsAuthRejectedError(err))
	extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
}

func TestMissingTokenTriggersExtractionOnFirstUse(t *testing.T) {
	extractor := new(mocks.MockLoginExtractor)
	extractor.On("Extract", mock.Anything, testCreds).Return(domain.Token{
		Value:    "first-token",
		IssuedAt: time.Now(),
		Source:   domain.SourceAutoExtracted,
	}, nil).Once()

	// Store is empty: the first call goes out without a token
	o, fileStore := newTestOrchestrator(t, extractor)

	result, err := o.Do(context.Background(), func(ctx context.Context, token domain.Token) (domain.CallResult, error) {
		if token.IsZero() {
			return domain.CallResult{StatusCode: http.StatusUnauthorized, Body: []byte(`{"code": 401}`)}, nil
		}
		return domain.CallResult{StatusCode: http.StatusOK, Body: []byte(`{"code": 0}`)}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)

	stored, err := fileStore.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first-token", stored.Value)
}

func TestStorePersistFailureDoesNotDiscardToken(t *testing.T) {
	mockStore := new(mocks.MockTokenStore)
	mockStore.On("Load", mock.Anything).Return(domain.Token{Value: "stale", IssuedAt: time.Now(), Source: domain.SourceManual}, nil)
	mockStore.On("Save", mock.Anything, mock.Anything).
		Return(common.NewStorePersistError("/data/tokens.json", errors.New("disk full")))

	extractor := new(mocks.MockLoginExtractor)
	extractor.On("Extract", mock.Anything, testCreds).Return(domain.Token{
		Value:    "fresh",
		IssuedAt: time.Now(),
		Source:   domain.SourceAutoExtracted,
	}, nil).Once()

	o, err := New(Config{AutoRefresh: true, RefreshKey: "k"}, mockStore, extractor, detector.New(), testCreds)
	require.NoError(t, err)

	result, err := o.Do(context.Background(), func(ctx context.Context, token domain.Token) (domain.CallResult, error) {
		if token.Value == "stale" {
			return domain.CallResult{StatusCode: http.StatusUnauthorized, Body: []byte(`{"code": 401}`)}, nil
		}
		assert.Equal(t, "fresh", token.Value, "retry uses the in-memory token despite the persist failure")
		return domain.CallResult{StatusCode: http.StatusOK, Body: []byte(`{"code": 0}`)}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	mockStore.AssertExpectations(t)
}

func TestConcurrentCallsCoalesceExtraction(t *testing.T) {
	const concurrency = 8

	var extractions int32
	extractor := new(mocks.MockLoginExtractor)
	extractor.On("Extract", mock.Anything, testCreds).
		Run(func(args mock.Arguments) {
			atomic.AddInt32(&extractions, 1)
			// Hold the extraction open long enough for every caller
			// to pile up behind it
			time.Sleep(150 * time.Millisecond)
		}).
		Return(domain.Token{
			Value:    "shared-token",
			IssuedAt: time.Now(),
			Source:   domain.SourceAutoExtracted,
		}, nil)

	o, fileStore := newTestOrchestrator(t, extractor)
	seedToken(t, fileStore, "expired-shared")

	var wg sync.WaitGroup
	var successes int32
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := o.Do(context.Background(), func(ctx context.Context, token domain.Token) (domain.CallResult, error) {
				if token.Value == "expired-shared" || token.IsZero() {
					return domain.CallResult{StatusCode: http.StatusUnauthorized, Body: []byte(`{"code": 401}`)}, nil
				}
				return domain.CallResult{StatusCode: http.StatusOK, Body: []byte(`{"code": 0}`)}, nil
			})
			if err == nil && result.StatusCode == http.StatusOK {
				atomic.AddInt32(&successes, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&extractions),
		"concurrent callers observing the same expired token must share one extraction")
	assert.EqualValues(t, concurrency, successes, "every caller recovers once extraction completes")
}
