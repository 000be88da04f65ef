package service

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/http2"

	"clockout-watcher/cmd/app"
	"clockout-watcher/internal/common"
	authdomain "clockout-watcher/internal/features/auth/domain"
	"clockout-watcher/internal/features/clockout/domain"
)

// timeLayout is the format the API expects for time range parameters
const timeLayout = "2006-01-02 15:04:05"

// Client implements domain.Provider with retry and a circuit breaker.
// Every request goes through the refresh orchestrator, which owns auth
// failure recovery; the client only retries transient transport errors.
type Client struct {
	config           *app.APIConfig
	refresher        authdomain.RefreshProvider
	httpClient       *http.Client
	circuitOpen      bool
	failureCount     int
	failureThreshold int
	lastFailure      time.Time
	resetTimeout     time.Duration
	mu               sync.RWMutex
}

// ClientOption defines functional options for Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithCircuitBreaker configures circuit breaker parameters
func WithCircuitBreaker(threshold int, resetTimeout time.Duration) ClientOption {
	return func(c *Client) {
		c.failureThreshold = threshold
		c.resetTimeout = resetTimeout
	}
}

// NewClient creates a new clock-out API client
func NewClient(config *app.APIConfig, refresher authdomain.RefreshProvider, options ...ClientOption) (*Client, error) {
	if config == nil {
		return nil, common.InvalidInputError("API config cannot be nil")
	}
	if refresher == nil {
		return nil, common.InvalidInputError("refresh provider cannot be nil")
	}

	client := &Client{
		config:           config,
		refresher:        refresher,
		failureThreshold: 5,
		resetTimeout:     1 * time.Minute,
	}

	// Apply options
	for _, option := range options {
		option(client)
	}

	if client.httpClient == nil {
		httpClient, err := newHTTPClient(config.Timeout)
		if err != nil {
			return nil, err
		}
		client.httpClient = httpClient
	}

	return client, nil
}

// newHTTPClient builds an HTTP client with HTTP/2 enabled
func newHTTPClient(timeout time.Duration) (*http.Client, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{},
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, fmt.Errorf("failed to configure HTTP/2 transport: %w", err)
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}, nil
}

// GetClockOutList fetches one page of clock-out records
func (c *Client) GetClockOutList(ctx context.Context, query domain.ListQuery) (*domain.ClockOutPage, error) {
	if c.isCircuitOpen() {
		return nil, common.UnavailableError("circuit breaker is open")
	}

	if query.PageNo <= 0 {
		query.PageNo = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = c.config.PageSize
	}
	if query.Vin == "" {
		query.Vin = c.config.Vin
	}
	if query.DeptID == 0 {
		query.DeptID = c.config.DeptID
	}
	if query.EndTime.IsZero() {
		query.EndTime = time.Now()
	}
	if query.StartTime.IsZero() {
		query.StartTime = query.EndTime.Add(-24 * time.Hour)
	}

	var page *domain.ClockOutPage
	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}

		result, err := c.refresher.Do(ctx, func(ctx context.Context, token authdomain.Token) (authdomain.CallResult, error) {
			return c.listOnce(ctx, token, query)
		})
		if err != nil {
			if common.IsContextCanceled(err) || common.IsAuthRejectedError(err) {
				// Auth recovery already ran (and failed) inside the
				// orchestrator; a transport-level retry cannot help.
				return backoff.Permanent(err)
			}
			if _, ok := authdomain.AsExtractionError(err); ok {
				return backoff.Permanent(err)
			}
			return fmt.Errorf("request failed: %w", err)
		}

		return c.handleResponse(result, &page)
	}

	if err := c.executeWithRetry(ctx, operation, query.PageNo); err != nil {
		return nil, err
	}
	return page, nil
}

// listOnce issues one clock-out list request with the given token
func (c *Client) listOnce(ctx context.Context, token authdomain.Token, query domain.ListQuery) (authdomain.CallResult, error) {
	listURL := fmt.Sprintf("%s%s", c.config.BaseURL, c.config.ListPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return authdomain.CallResult{}, fmt.Errorf("failed to create request: %w", err)
	}

	params := url.Values{}
	params.Set("pageNo", fmt.Sprintf("%d", query.PageNo))
	params.Set("pageSize", fmt.Sprintf("%d", query.PageSize))
	params.Set("startTime", query.StartTime.Format(timeLayout))
	params.Set("endTime", query.EndTime.Format(timeLayout))
	params.Set("vin", query.Vin)
	params.Set("deptId", fmt.Sprintf("%d", query.DeptID))
	req.URL.RawQuery = params.Encode()

	c.setHeaders(req, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return authdomain.CallResult{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return authdomain.CallResult{}, fmt.Errorf("failed to read response body: %w", err)
	}

	return authdomain.CallResult{StatusCode: resp.StatusCode, Body: body}, nil
}

// setHeaders applies the browser-mimicking headers the API expects along
// with the credential material
func (c *Client) setHeaders(req *http.Request, token authdomain.Token) {
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Referer", fmt.Sprintf("%s%s", c.config.BaseURL, c.config.RefererPath))
	req.Header.Set("User-Agent",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/141.0.0.0 Safari/537.36")
	if c.config.Lang != "" {
		req.Header.Set("lang", c.config.Lang)
	}
	if token.Value != "" {
		req.Header.Set("X-Token", token.Value)
	}
	if token.Cookie != "" {
		req.Header.Set("Cookie", token.Cookie)
	}
}

// handleResponse parses a successful call result into a page
func (c *Client) handleResponse(result authdomain.CallResult, page **domain.ClockOutPage) error {
	switch result.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		var envelope domain.ListEnvelope
		if err := json.Unmarshal(result.Body, &envelope); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to parse response: %w", err))
		}
		if envelope.Code != 0 {
			return backoff.Permanent(fmt.Errorf("API returned code %d: %s", envelope.Code, envelope.Msg))
		}
		*page = &envelope.Data
		return nil

	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		// Retry these errors
		return fmt.Errorf("API returned status %d: %s", result.StatusCode, string(result.Body))

	default:
		// Don't retry other errors
		return backoff.Permanent(fmt.Errorf("API returned status %d: %s", result.StatusCode, string(result.Body)))
	}
}

// executeWithRetry executes an operation with retry logic
func (c *Client) executeWithRetry(ctx context.Context, operation backoff.Operation, pageNo int) error {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = 30 * time.Second

	err := backoff.RetryNotify(
		operation,
		backoff.WithContext(expBackoff, ctx),
		func(err error, duration time.Duration) {
			if common.IsContextCanceled(err) {
				return
			}
			log.Printf("GetClockOutList page %d failed: %v, retrying in %.2f seconds",
				pageNo, err, duration.Seconds())
		},
	)

	if err != nil {
		if common.IsContextCanceled(err) {
			return err
		}
		c.recordFailure()
	} else {
		c.recordSuccess()
	}

	return err
}

// isCircuitOpen checks if the circuit breaker is open
func (c *Client) isCircuitOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Allow retry if enough time has passed (half-open state)
	if c.circuitOpen && time.Since(c.lastFailure) > c.resetTimeout {
		return false
	}

	return c.circuitOpen
}

// recordSuccess resets failure count on successful call
func (c *Client) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failureCount = 0
	c.circuitOpen = false
}

// recordFailure increments failure count and potentially opens circuit
func (c *Client) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failureCount++
	c.lastFailure = time.Now()

	if c.failureCount >= c.failureThreshold {
		if !c.circuitOpen {
			log.Printf("Circuit breaker opened after %d consecutive failures", c.failureCount)
		}
		c.circuitOpen = true
	}
}
