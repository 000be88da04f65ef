package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clockout-watcher/internal/common"
	authdomain "clockout-watcher/internal/features/auth/domain"
	clockoutdomain "clockout-watcher/internal/features/clockout/domain"
)

type stubWatcher struct {
	status clockoutdomain.WatcherStatus
}

func (s *stubWatcher) Status() clockoutdomain.WatcherStatus {
	return s.status
}

type stubRefresher struct {
	token authdomain.Token
	err   error
}

func (s *stubRefresher) Do(ctx context.Context, call authdomain.APICall) (authdomain.CallResult, error) {
	return call(ctx, s.token)
}

func (s *stubRefresher) CurrentToken(ctx context.Context) (authdomain.Token, error) {
	return s.token, s.err
}

func setupRouter(watcher WatcherStatusProvider, refresher authdomain.RefreshProvider) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewStatusHandler(watcher, refresher).SetupRoutes(router)
	return router
}

func TestStatusHandler_WatcherStatus(t *testing.T) {
	watcher := &stubWatcher{status: clockoutdomain.WatcherStatus{
		Running:     true,
		LastPollAt:  time.Now(),
		CurrentHour: 3,
		Accumulated: 12,
	}}
	router := setupRouter(watcher, &stubRefresher{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status/watcher", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var got clockoutdomain.WatcherStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, got.Running)
	assert.Equal(t, 3, got.CurrentHour)
	assert.Equal(t, 12, got.Accumulated)
}

func TestStatusHandler_TokenStatusNeverExposesValue(t *testing.T) {
	refresher := &stubRefresher{token: authdomain.Token{
		Value:    "super-secret-token",
		Cookie:   "sid=secret",
		IssuedAt: time.Date(2025, 1, 14, 9, 0, 0, 0, time.UTC),
		Source:   authdomain.SourceAutoExtracted,
	}}
	router := setupRouter(&stubWatcher{}, refresher)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status/token", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.NotContains(t, body, "super-secret-token")
	assert.NotContains(t, body, "sid=secret")

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, true, got["present"])
	assert.Equal(t, string(authdomain.SourceAutoExtracted), got["source"])
}

func TestStatusHandler_TokenStatusMissingToken(t *testing.T) {
	refresher := &stubRefresher{err: common.NoTokenError("store is empty")}
	router := setupRouter(&stubWatcher{}, refresher)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status/token", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, false, got["present"])
}
