package analyzer

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/crisisdesk/alertdeck/server/backend"
	"github.com/crisisdesk/alertdeck/server/metrics"
)

const (
	// dropLogInterval limits how often a dropped frame is logged at warn level
	dropLogInterval = 5 * time.Second

	// dropLogBurst allows a few warnings in a row before throttling kicks in
	dropLogBurst = 3
)

// FrameProcessor decodes stream frames and hands valid alerts to the ingester.
type FrameProcessor struct {
	logger   *zap.SugaredLogger
	ingester backend.Ingester
	now      func() time.Time
	dropLog  *rate.Limiter
}

// NewFrameProcessor creates a new frame processor
func NewFrameProcessor(logger *zap.SugaredLogger, ingester backend.Ingester) *FrameProcessor {
	return &FrameProcessor{
		logger:   logger,
		ingester: ingester,
		now:      time.Now,
		dropLog:  rate.NewLimiter(rate.Every(dropLogInterval), dropLogBurst),
	}
}

// ProcessFrame decodes one frame and ingests it. A frame that fails to decode
// is logged and dropped; the error is returned for callers that count drops,
// but it never affects the connection.
func (p *FrameProcessor) ProcessFrame(data []byte) (backend.Alert, error) {
	metrics.FramesReceived.Inc()

	wire, err := DecodeFrame(data)
	if err != nil {
		reason := ReasonMalformed
		var decodeErr *DecodeError
		if errors.As(err, &decodeErr) {
			reason = decodeErr.Reason
		}
		metrics.FramesDropped.WithLabelValues(reason).Inc()

		if p.dropLog.Allow() {
			p.logger.Warnw("Dropping alert frame", "reason", reason, "error", err.Error(), "size", len(data))
		} else {
			p.logger.Debugw("Dropping alert frame", "reason", reason, "error", err.Error())
		}
		return backend.Alert{}, err
	}

	// Backend timestamps are not trusted for ordering; stamp on receipt
	stored := p.ingester.Ingest(NormalizeAlert(*wire, p.now()))

	p.logger.Debugw("Ingested streamed alert",
		"alertId", stored.ID,
		"urgencyScore", stored.UrgencyScore,
		"tier", stored.Tier())

	return stored, nil
}
