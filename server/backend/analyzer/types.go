package analyzer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Decode failure reasons, also used as metric labels
const (
	ReasonMalformed = "malformed"
	ReasonInvalid   = "invalid"
)

// validate is safe for concurrent use and caches struct metadata.
var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeError reports a frame or response body that could not be turned into an alert.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s alert payload: %v", e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// AnalyzeRequest is the body of a one-shot analysis request
type AnalyzeRequest struct {
	Text string `json:"text"`
}

// Resource is a matched resource as sent by the analysis backend
type Resource struct {
	Name   string `json:"name" validate:"required"`
	Type   string `json:"type"`
	ETA    string `json:"eta"`
	Status string `json:"status"`
}

// UnmarshalJSON accepts eta as either a string or a number (minutes in some registries).
func (r *Resource) UnmarshalJSON(data []byte) error {
	type Alias Resource
	aux := &struct {
		ETA json.RawMessage `json:"eta"`
		*Alias
	}{
		Alias: (*Alias)(r),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	eta, err := flexibleText(aux.ETA, ", ")
	if err != nil {
		return fmt.Errorf("eta: %w", err)
	}
	r.ETA = eta
	return nil
}

// Alert is an alert-shaped record as sent by the analysis backend, on the
// stream and in /analyze responses. Fields the dashboard does not use
// (alert flag, explanations, backend timestamp) are ignored.
type Alert struct {
	ID                 string     `json:"id"`
	Message            string     `json:"message"`
	UrgencyScore       *int       `json:"urgency_score" validate:"required,gte=0"`
	UrgencyReasons     []string   `json:"urgency_reasons"`
	Location           []string   `json:"location"`
	LocationConfidence string     `json:"location_confidence" validate:"omitempty,oneof=high low unknown"`
	Needs              []string   `json:"needs"`
	PeopleAffected     *int       `json:"people_affected" validate:"omitempty,gte=0"`
	MatchedResources   []Resource `json:"matched_resources" validate:"dive"`
	ResourceLog        string     `json:"-"` // Parsed from resource_log string or list
}

// UnmarshalJSON implements custom JSON unmarshaling for Alert.
// resource_log arrives either as one string or as a list of explanation lines.
func (a *Alert) UnmarshalJSON(data []byte) error {
	// Type alias avoids recursing into this method
	type Alias Alert
	aux := &struct {
		ResourceLog json.RawMessage `json:"resource_log"`
		*Alias
	}{
		Alias: (*Alias)(a),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	resourceLog, err := flexibleText(aux.ResourceLog, "\n")
	if err != nil {
		return fmt.Errorf("resource_log: %w", err)
	}
	a.ResourceLog = resourceLog
	return nil
}

// flexibleText reads a JSON string, number, list of strings or null as text.
func flexibleText(raw json.RawMessage, sep string) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}

	var lines []string
	if err := json.Unmarshal(raw, &lines); err == nil {
		return strings.Join(lines, sep), nil
	}

	var number json.Number
	if err := json.Unmarshal(raw, &number); err == nil {
		return number.String(), nil
	}

	return "", errors.New("expected a string or a list of strings")
}

// decodeAlert parses and validates one alert-shaped JSON document.
// requireMessage is set for stream frames, which carry no client-side text.
func decodeAlert(data []byte, requireMessage bool) (*Alert, error) {
	var wire Alert
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, &DecodeError{Reason: ReasonMalformed, Err: err}
	}

	if err := validate.Struct(&wire); err != nil {
		return nil, &DecodeError{Reason: ReasonInvalid, Err: err}
	}

	if requireMessage && strings.TrimSpace(wire.Message) == "" {
		return nil, &DecodeError{Reason: ReasonInvalid, Err: errors.New("message is required")}
	}

	return &wire, nil
}

// DecodeFrame parses one streamed frame.
func DecodeFrame(data []byte) (*Alert, error) {
	return decodeAlert(data, true)
}

// DecodeAnalysis parses a one-shot analysis response body.
func DecodeAnalysis(data []byte) (*Alert, error) {
	return decodeAlert(data, false)
}

// ErrorResponse is the error body returned by the analysis backend.
// Format: {"detail": "..."} or {"detail": [{"msg": "...", ...}]}
type ErrorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// Message extracts a human-readable message from the detail field.
func (e *ErrorResponse) Message() string {
	if len(e.Detail) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(e.Detail, &text); err == nil {
		return text
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(e.Detail, &items); err == nil {
		messages := make([]string, 0, len(items))
		for _, item := range items {
			if item.Msg != "" {
				messages = append(messages, item.Msg)
			}
		}
		return strings.Join(messages, "; ")
	}

	return ""
}
