package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/crisisdesk/alertdeck/server/backend"
)

// maxResponseSize caps how much of a response body is read
const maxResponseSize = 1 << 20

// RequestError reports a failed one-shot request. StatusCode is zero when the
// backend could not be reached at all.
type RequestError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("backend unreachable: %s", e.Message)
	}
	return fmt.Sprintf("backend error (HTTP %d): %s", e.StatusCode, e.Message)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// APIClient handles the request/response side of the analysis backend.
// The base URL is read from the shared endpoint on every request, so a
// configuration change applies to the next call.
type APIClient struct {
	endpoint   *backend.Endpoint
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

// NewAPIClient creates a new API client
func NewAPIClient(endpoint *backend.Endpoint, logger *zap.SugaredLogger) *APIClient {
	return &APIClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: backend.RequestTimeout,
		},
		logger: logger,
	}
}

// Analyze submits text for one-shot analysis and returns the normalized result.
// The caller supplies the alert identity and receipt time.
func (c *APIClient) Analyze(ctx context.Context, text string) (backend.Alert, error) {
	body, err := json.Marshal(AnalyzeRequest{Text: text})
	if err != nil {
		return backend.Alert{}, fmt.Errorf("failed to encode analyze request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.AnalyzeURL(), bytes.NewReader(body))
	if err != nil {
		return backend.Alert{}, fmt.Errorf("failed to create analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	data, err := c.do(req)
	if err != nil {
		return backend.Alert{}, err
	}

	wire, err := DecodeAnalysis(data)
	if err != nil {
		return backend.Alert{}, &RequestError{
			StatusCode: http.StatusOK,
			Message:    "unexpected analysis response",
			Err:        err,
		}
	}

	alert := NormalizeAlert(*wire, time.Time{})
	c.logger.Debugw("Analysis completed",
		"urgencyScore", alert.UrgencyScore,
		"matchedResources", len(alert.MatchedResources))

	return alert, nil
}

// Resources fetches the backend's resource registry. Entries without a name
// are skipped.
func (c *APIClient) Resources(ctx context.Context) ([]backend.Resource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint.ResourcesURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create resources request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	data, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var wire []Resource
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, &RequestError{
			StatusCode: http.StatusOK,
			Message:    "unexpected resources response",
			Err:        &DecodeError{Reason: ReasonMalformed, Err: err},
		}
	}

	resources := make([]backend.Resource, 0, len(wire))
	for _, resource := range wire {
		if err := validate.Struct(&resource); err != nil {
			c.logger.Warnw("Skipping invalid resource", "error", err.Error())
			continue
		}
		resources = append(resources, NormalizeResource(resource))
	}

	return resources, nil
}

// do executes req and returns the body of a 2xx response
func (c *APIClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RequestError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &RequestError{StatusCode: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return data, nil
	}

	message := http.StatusText(resp.StatusCode)
	var errResp ErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil {
		if detail := errResp.Message(); detail != "" {
			message = detail
		}
	}

	c.logger.Warnw("Backend request failed",
		"method", req.Method,
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"error", message)

	return nil, &RequestError{StatusCode: resp.StatusCode, Message: message}
}
