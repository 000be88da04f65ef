package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"clockout-watcher/internal/features/auth/domain"
)

// MockTokenStore is a mock implementation of domain.TokenStore
type MockTokenStore struct {
	mock.Mock
}

// Load mocks the Load method
func (m *MockTokenStore) Load(ctx context.Context) (domain.Token, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.Token), args.Error(1)
}

// Save mocks the Save method
func (m *MockTokenStore) Save(ctx context.Context, token domain.Token) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

// Clear mocks the Clear method
func (m *MockTokenStore) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockLoginExtractor is a mock implementation of domain.LoginExtractor
type MockLoginExtractor struct {
	mock.Mock
}

// Extract mocks the Extract method
func (m *MockLoginExtractor) Extract(ctx context.Context, creds domain.Credentials) (domain.Token, error) {
	args := m.Called(ctx, creds)
	return args.Get(0).(domain.Token), args.Error(1)
}

// MockOutcomeClassifier is a mock implementation of domain.OutcomeClassifier
type MockOutcomeClassifier struct {
	mock.Mock
}

// Classify mocks the Classify method
func (m *MockOutcomeClassifier) Classify(result domain.CallResult, callErr error) domain.Outcome {
	args := m.Called(result, callErr)
	return args.Get(0).(domain.Outcome)
}

// MockRefreshProvider is a mock implementation of domain.RefreshProvider
type MockRefreshProvider struct {
	mock.Mock
}

// Do mocks the Do method
func (m *MockRefreshProvider) Do(ctx context.Context, call domain.APICall) (domain.CallResult, error) {
	args := m.Called(ctx, call)
	return args.Get(0).(domain.CallResult), args.Error(1)
}

// CurrentToken mocks the CurrentToken method
func (m *MockRefreshProvider) CurrentToken(ctx context.Context) (domain.Token, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.Token), args.Error(1)
}
