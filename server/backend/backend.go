package backend

import "time"

// ConnState is a state of the streaming connection lifecycle.
type ConnState string

const (
	StateIdle       ConnState = "idle"
	StateConnecting ConnState = "connecting"
	StateOpen       ConnState = "open"
	StateClosed     ConnState = "closed"
)

// Status represents the current operational status of the streaming connection.
type Status struct {
	// State is the current lifecycle state
	State ConnState `json:"state"`

	// Connected is true only while the stream is open
	Connected bool `json:"connected"`

	// Final is true once the connection was torn down and will not reconnect
	Final bool `json:"final"`

	// URL is the streaming endpoint currently targeted
	URL string `json:"url"`

	// LastConnected is when the stream last opened
	LastConnected time.Time `json:"lastConnected"`

	// LastClosed is when the stream last closed or failed to open
	LastClosed time.Time `json:"lastClosed"`

	// ConsecutiveFailures counts closes and failed attempts since the last successful open
	ConsecutiveFailures int `json:"consecutiveFailures"`

	// ReconnectAttempts counts every reconnect scheduled since start
	ReconnectAttempts int `json:"reconnectAttempts"`

	// LastError contains the most recent transport error (empty once reconnected)
	LastError string `json:"lastError"`
}
