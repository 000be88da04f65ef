package extractor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"clockout-watcher/internal/features/auth/domain"
)

// Config holds configuration for the Chrome login extractor
type Config struct {
	// LoginURL is the login page address
	LoginURL string

	// PostLoginURL is the page visited after login to trigger the API
	// calls whose headers carry the token
	PostLoginURL string

	// Headless controls whether Chrome runs without a display
	Headless bool

	// FormTimeout bounds the wait for the login form to appear
	FormTimeout time.Duration

	// LoginTimeout bounds the wait for authenticated state after submit
	LoginTimeout time.Duration

	// HarvestTimeout bounds the wait for the token to surface
	HarvestTimeout time.Duration

	// UsernameSelectors, PasswordSelectors and SubmitSelectors override
	// the built-in candidate lists when set
	UsernameSelectors []string
	PasswordSelectors []string
	SubmitSelectors   []string

	// TokenHeaders are the request header names to sniff for the token
	TokenHeaders []string

	// StorageKeys are the local/session storage keys to probe
	StorageKeys []string
}

// applyDefaults fills unset fields with the built-in candidates
func (c *Config) applyDefaults() {
	if c.FormTimeout <= 0 {
		c.FormTimeout = 10 * time.Second
	}
	if c.LoginTimeout <= 0 {
		c.LoginTimeout = 15 * time.Second
	}
	if c.HarvestTimeout <= 0 {
		c.HarvestTimeout = 20 * time.Second
	}
	if len(c.UsernameSelectors) == 0 {
		c.UsernameSelectors = defaultUsernameSelectors
	}
	if len(c.PasswordSelectors) == 0 {
		c.PasswordSelectors = defaultPasswordSelectors
	}
	if len(c.SubmitSelectors) == 0 {
		c.SubmitSelectors = defaultSubmitSelectors
	}
	if len(c.TokenHeaders) == 0 {
		c.TokenHeaders = defaultTokenHeaders
	}
	if len(c.StorageKeys) == 0 {
		c.StorageKeys = defaultStorageKeys
	}
}

// ChromeExtractor implements domain.LoginExtractor by driving a headless
// Chrome session through the login form and harvesting the token from the
// page's outgoing request headers, web storage or cookie jar.
type ChromeExtractor struct {
	config Config
}

// NewChromeExtractor creates a new Chrome-backed login extractor
func NewChromeExtractor(config Config) (*ChromeExtractor, error) {
	if config.LoginURL == "" {
		return nil, fmt.Errorf("login URL cannot be empty")
	}
	config.applyDefaults()
	if config.PostLoginURL == "" {
		config.PostLoginURL = config.LoginURL
	}

	return &ChromeExtractor{config: config}, nil
}

// Extract logs in with the given credentials and returns the harvested
// token. The browser session is torn down on every exit path.
func (e *ChromeExtractor) Extract(ctx context.Context, creds domain.Credentials) (domain.Token, error) {
	if creds.Username == "" || creds.Password == "" {
		return domain.Token{}, domain.NewExtractionError(domain.FailureLoginRejected,
			errors.New("username and password are required"))
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", e.config.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	// Sniff outgoing requests for the token header before any navigation
	// so the first authenticated API call is not missed.
	sniffer := newHeaderSniffer(browserCtx, e.config.TokenHeaders)

	if err := chromedp.Run(browserCtx, network.Enable()); err != nil {
		return domain.Token{}, e.classifyRunError(err, "starting browser")
	}

	if err := e.navigate(browserCtx, e.config.LoginURL); err != nil {
		return domain.Token{}, err
	}

	if err := e.submitLoginForm(browserCtx, creds); err != nil {
		return domain.Token{}, err
	}

	if err := e.awaitLogin(browserCtx); err != nil {
		return domain.Token{}, err
	}

	if e.config.PostLoginURL != e.config.LoginURL {
		if err := e.navigate(browserCtx, e.config.PostLoginURL); err != nil {
			return domain.Token{}, err
		}
	}

	token, err := e.harvest(browserCtx, sniffer)
	if err != nil {
		return domain.Token{}, err
	}

	token.IssuedAt = time.Now()
	token.Source = domain.SourceAutoExtracted
	log.Printf("Token extracted successfully (source=%s, cookie=%t)", token.Source, token.Cookie != "")
	return token, nil
}

// navigate loads a page within the form discovery timeout
func (e *ChromeExtractor) navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, e.config.FormTimeout)
	defer cancel()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		return e.classifyRunError(err, fmt.Sprintf("navigating to %s", url))
	}
	return nil
}

// submitLoginForm locates the form fields via the candidate selector lists
// and submits the credentials
func (e *ChromeExtractor) submitLoginForm(ctx context.Context, creds domain.Credentials) error {
	formCtx, cancel := context.WithTimeout(ctx, e.config.FormTimeout)
	defer cancel()

	usernameSel, err := e.firstVisible(formCtx, e.config.UsernameSelectors)
	if err != nil {
		return domain.NewExtractionError(domain.FailureFormNotFound,
			fmt.Errorf("username field: %w", err))
	}

	passwordSel, err := e.firstVisible(formCtx, e.config.PasswordSelectors)
	if err != nil {
		return domain.NewExtractionError(domain.FailureFormNotFound,
			fmt.Errorf("password field: %w", err))
	}

	submitSel, err := e.firstVisible(formCtx, e.config.SubmitSelectors)
	if err != nil {
		return domain.NewExtractionError(domain.FailureFormNotFound,
			fmt.Errorf("submit button: %w", err))
	}

	err = chromedp.Run(formCtx,
		chromedp.SendKeys(usernameSel, creds.Username, chromedp.ByQuery),
		chromedp.SendKeys(passwordSel, creds.Password, chromedp.ByQuery),
		chromedp.Click(submitSel, chromedp.ByQuery),
	)
	if err != nil {
		return e.classifyRunError(err, "submitting login form")
	}
	return nil
}

// firstVisible returns the first selector in candidates that matches a
// visible element. Each candidate gets a slice of the remaining budget.
func (e *ChromeExtractor) firstVisible(ctx context.Context, candidates []string) (string, error) {
	perCandidate := e.config.FormTimeout / time.Duration(len(candidates)+1)
	if perCandidate < 500*time.Millisecond {
		perCandidate = 500 * time.Millisecond
	}

	for _, sel := range candidates {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		tryCtx, cancel := context.WithTimeout(ctx, perCandidate)
		err := chromedp.Run(tryCtx, chromedp.WaitVisible(sel, chromedp.ByQuery))
		cancel()
		if err == nil {
			return sel, nil
		}
	}

	return "", fmt.Errorf("no candidate selector matched out of %d", len(candidates))
}

// awaitLogin waits for navigation or DOM change signaling authenticated
// state. Leaving the login URL counts as success; a visible error marker
// means the credentials were rejected.
func (e *ChromeExtractor) awaitLogin(ctx context.Context) error {
	deadline := time.Now().Add(e.config.LoginTimeout)

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return e.classifyRunError(err, "waiting for login")
		}

		var location string
		pollCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := chromedp.Run(pollCtx, chromedp.Location(&location))
		cancel()
		if err == nil && location != "" && !strings.HasPrefix(location, e.config.LoginURL) {
			return nil
		}

		if e.loginErrorVisible(ctx) {
			return domain.NewExtractionError(domain.FailureLoginRejected,
				errors.New("login form reported an error"))
		}

		time.Sleep(500 * time.Millisecond)
	}

	return domain.NewExtractionError(domain.FailureTimeout,
		fmt.Errorf("no authenticated navigation within %v", e.config.LoginTimeout))
}

// loginErrorVisible checks whether any known error marker is on screen
func (e *ChromeExtractor) loginErrorVisible(ctx context.Context) bool {
	for _, sel := range defaultErrorSelectors {
		tryCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
		err := chromedp.Run(tryCtx, chromedp.WaitVisible(sel, chromedp.ByQuery))
		cancel()
		if err == nil {
			return true
		}
	}
	return false
}

// harvest collects the token: sniffed request headers first, then web
// storage, then the cookie jar. The session cookie is captured regardless
// of which strategy yields the token.
func (e *ChromeExtractor) harvest(ctx context.Context, sniffer *headerSniffer) (domain.Token, error) {
	deadline := time.Now().Add(e.config.HarvestTimeout)

	var value string
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return domain.Token{}, e.classifyRunError(err, "harvesting token")
		}

		if v := sniffer.tokenValue(); v != "" {
			value = v
			break
		}

		if v := e.readWebStorage(ctx); v != "" {
			value = v
			break
		}

		time.Sleep(time.Second)
	}

	cookie := e.readCookies(ctx)

	if value == "" {
		return domain.Token{}, domain.NewExtractionError(domain.FailureTokenNotFound,
			fmt.Errorf("no token in request headers, web storage or cookies within %v", e.config.HarvestTimeout))
	}

	return domain.Token{Value: value, Cookie: cookie}, nil
}

// readWebStorage probes the configured local/session storage keys
func (e *ChromeExtractor) readWebStorage(ctx context.Context) string {
	for _, key := range e.config.StorageKeys {
		expr := fmt.Sprintf(
			`window.localStorage.getItem(%q) || window.sessionStorage.getItem(%q) || ""`,
			key, key)

		var value string
		tryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := chromedp.Run(tryCtx, chromedp.Evaluate(expr, &value))
		cancel()
		if err == nil && value != "" {
			return value
		}
	}
	return ""
}

// readCookies serializes the browser cookie jar into a Cookie header value
func (e *ChromeExtractor) readCookies(ctx context.Context) string {
	var cookies []*network.Cookie

	tryCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	err := chromedp.Run(tryCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		log.Printf("Could not read browser cookies: %v", err)
		return ""
	}

	pairs := make([]string, 0, len(cookies))
	for _, c := range cookies {
		pairs = append(pairs, fmt.Sprintf("%s=%s", c.Name, c.Value))
	}
	return strings.Join(pairs, "; ")
}

// classifyRunError maps chromedp/context failures onto the extraction
// failure taxonomy
func (e *ChromeExtractor) classifyRunError(err error, operation string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewExtractionError(domain.FailureTimeout,
			fmt.Errorf("%s: %w", operation, err))
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return domain.NewExtractionError(domain.FailureTimeout,
		fmt.Errorf("%s: %w", operation, err))
}

// headerSniffer records the first token observed in outgoing request headers
type headerSniffer struct {
	headerNames []string
	mu          sync.RWMutex
	value       string
}

// newHeaderSniffer attaches a network event listener to the browser context
func newHeaderSniffer(ctx context.Context, headerNames []string) *headerSniffer {
	s := &headerSniffer{headerNames: headerNames}

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		req, ok := ev.(*network.EventRequestWillBeSent)
		if !ok {
			return
		}
		if v := tokenFromHeaders(req.Request.Headers, s.headerNames); v != "" {
			s.mu.Lock()
			if s.value == "" {
				s.value = v
			}
			s.mu.Unlock()
		}
	})

	return s
}

// tokenValue returns the sniffed token, if any
func (s *headerSniffer) tokenValue() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// tokenFromHeaders pulls the first matching header value out of a request
// header map, ignoring case
func tokenFromHeaders(headers network.Headers, names []string) string {
	for key, raw := range headers {
		value, ok := raw.(string)
		if !ok || value == "" {
			continue
		}
		for _, name := range names {
			if strings.EqualFold(key, name) {
				return value
			}
		}
	}
	return ""
}
