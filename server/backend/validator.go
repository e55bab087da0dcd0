package backend

import (
	"fmt"
	"net/url"
	"strings"
)

// ConfigError reports a rejected backend URL. The previous configuration stays active.
type ConfigError struct {
	URL    string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("invalid backend url: %s", e.Reason)
	}
	return fmt.Sprintf("invalid backend url %q: %s", e.URL, e.Reason)
}

// ValidateURL checks that rawURL is an absolute http(s) URL with a host.
// The returned string is trimmed and has no trailing slash.
func ValidateURL(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", &ConfigError{Reason: "url cannot be empty"}
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", &ConfigError{URL: trimmed, Reason: fmt.Sprintf("invalid url format: %v", err)}
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", &ConfigError{URL: trimmed, Reason: fmt.Sprintf("url must use http or https (got %q)", parsed.Scheme)}
	}

	if parsed.Host == "" {
		return "", &ConfigError{URL: trimmed, Reason: "url must include a hostname"}
	}

	if parsed.RawQuery != "" || parsed.Fragment != "" {
		return "", &ConfigError{URL: trimmed, Reason: "url must not carry a query or fragment"}
	}

	return strings.TrimRight(trimmed, "/"), nil
}

// StreamURL derives the websocket endpoint from an http(s) base URL.
func StreamURL(baseURL string) (string, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}

	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}

	parsed.Path = strings.TrimRight(parsed.Path, "/") + AlertsPath
	return parsed.String(), nil
}
