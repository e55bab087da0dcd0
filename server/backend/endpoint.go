package backend

import "sync"

// Endpoint holds the analysis backend base URL shared by the streaming and the
// one-shot request paths. It is created once and passed to every component that
// talks to the backend; Set is the only way to change it.
type Endpoint struct {
	// setMu orders concurrent Set calls so listeners see changes in the
	// order they were applied.
	setMu sync.Mutex

	mu        sync.RWMutex
	baseURL   string
	listeners []func(baseURL string)
}

// NewEndpoint creates an endpoint for baseURL, falling back to DefaultURL when empty.
func NewEndpoint(baseURL string) (*Endpoint, error) {
	if baseURL == "" {
		baseURL = DefaultURL
	}

	validated, err := ValidateURL(baseURL)
	if err != nil {
		return nil, err
	}

	return &Endpoint{baseURL: validated}, nil
}

// URL returns the current base URL.
func (e *Endpoint) URL() string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.baseURL
}

// StreamURL returns the websocket endpoint for the current base URL.
func (e *Endpoint) StreamURL() string {
	// The base URL is validated on every Set, so derivation cannot fail here.
	streamURL, _ := StreamURL(e.URL())
	return streamURL
}

// AnalyzeURL returns the one-shot analysis endpoint for the current base URL.
func (e *Endpoint) AnalyzeURL() string {
	return e.URL() + AnalyzePath
}

// ResourcesURL returns the resource registry endpoint for the current base URL.
func (e *Endpoint) ResourcesURL() string {
	return e.URL() + ResourcesPath
}

// Set validates and applies a new base URL. An invalid URL is rejected and the
// current one retained. Listeners run after the change and only when the URL
// actually changed. They may read the endpoint but must not call Set.
func (e *Endpoint) Set(baseURL string) error {
	validated, err := ValidateURL(baseURL)
	if err != nil {
		return err
	}

	e.setMu.Lock()
	defer e.setMu.Unlock()

	e.mu.Lock()
	if validated == e.baseURL {
		e.mu.Unlock()
		return nil
	}
	e.baseURL = validated
	listeners := make([]func(string), len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.Unlock()

	for _, listener := range listeners {
		listener(validated)
	}

	return nil
}

// OnChange registers fn to be called with the new base URL after every change.
func (e *Endpoint) OnChange(fn func(baseURL string)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.listeners = append(e.listeners, fn)
}
