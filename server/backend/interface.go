package backend

// Ingester is the single mutation entry point for alerts.
// Streamed frames and submitted analyses both end up here.
type Ingester interface {
	// Ingest adds the alert, or replaces the stored alert with the same ID,
	// and returns the record as stored.
	Ingest(alert Alert) Alert
}

// StatusReporter exposes the connectivity of a live alert source.
type StatusReporter interface {
	// Connected reports whether the stream is currently open.
	Connected() bool

	// Status returns a snapshot of the connection lifecycle.
	Status() Status
}
