package extractor

// Ordered selector candidates for locating the login form. Each list is
// tried top to bottom until one matches; the login page is an Element UI
// app, so its selectors come last as the most specific fallbacks.
var (
	defaultUsernameSelectors = []string{
		"input[name='username']",
		"#username",
		"input[placeholder*='user' i]",
		"input[type='text']",
	}

	defaultPasswordSelectors = []string{
		"input[name='password']",
		"#password",
		"input[type='password']",
	}

	defaultSubmitSelectors = []string{
		"button[type='submit']",
		"input[type='submit']",
		"button.login-button",
		"button.btn-login",
		".el-button--primary",
		"button.el-button",
	}

	// Error markers that indicate the login form rejected the
	// credentials rather than the page being slow.
	defaultErrorSelectors = []string{
		".el-message--error",
		".el-form-item__error",
		".login-error",
	}
)

// Request header names the application is known to carry the token in
var defaultTokenHeaders = []string{"X-Token", "x-token"}

// Web storage keys the application is known to park the token under
var defaultStorageKeys = []string{
	"token",
	"x-token",
	"X-Token",
	"authToken",
	"auth_token",
	"accessToken",
}
