package main

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crisisdesk/alertdeck/server/backend"
	"github.com/crisisdesk/alertdeck/server/metrics"
	"github.com/crisisdesk/alertdeck/server/poster"
	"github.com/crisisdesk/alertdeck/server/store"
)

const (
	notifyQueueSize   = 64
	notifyPostTimeout = 15 * time.Second
)

// AlertPoster delivers one alert to the chat channel
type AlertPoster interface {
	PostAlert(ctx context.Context, alert backend.Alert) error
}

// Notifier posts alerts at or above the configured tier to a chat webhook,
// once per alert ID. It subscribes to the store and hands matching alerts to a
// single worker, so a slow webhook never holds up ingestion.
type Notifier struct {
	logger       *zap.SugaredLogger
	deduplicator *Deduplicator
	newPoster    func(webhookURL, channel, username string) AlertPoster

	mu      sync.RWMutex
	poster  AlertPoster
	minTier backend.Tier

	queue    chan backend.Alert
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewNotifier creates a disabled notifier; Configure enables it
func NewNotifier(logger *zap.SugaredLogger, deduplicator *Deduplicator) *Notifier {
	return &Notifier{
		logger:       logger,
		deduplicator: deduplicator,
		newPoster: func(webhookURL, channel, username string) AlertPoster {
			return poster.New(webhookURL, channel, username)
		},
		minTier: backend.TierCritical,
		queue:   make(chan backend.Alert, notifyQueueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Configure applies notification settings. An empty webhook URL disables posting.
func (n *Notifier) Configure(config notifyConfiguration) {
	minTier, ok := backend.ParseTier(config.MinTier)
	if !ok {
		minTier = backend.TierCritical
	}

	var p AlertPoster
	if config.WebhookURL != "" {
		p = n.newPoster(config.WebhookURL, config.Channel, config.Username)
	}

	n.mu.Lock()
	n.poster = p
	n.minTier = minTier
	n.mu.Unlock()

	n.logger.Infow("Notification settings applied", "enabled", p != nil, "minTier", minTier)
}

// HandleChange is the store subscriber. It must not block.
func (n *Notifier) HandleChange(change store.Change) {
	if change.Kind == store.ChangeCleared {
		n.deduplicator.Forget()
		return
	}

	n.mu.RLock()
	enabled := n.poster != nil
	minTier := n.minTier
	n.mu.RUnlock()

	if !enabled || change.Alert.Tier().Rank() < minTier.Rank() {
		return
	}

	if !n.deduplicator.RecordAlert(change.Alert.ID) {
		return
	}

	select {
	case n.queue <- change.Alert:
	default:
		metrics.NotificationsSent.WithLabelValues("dropped").Inc()
		n.logger.Warnw("Notification queue full, dropping alert", "alertID", change.Alert.ID)
	}
}

// Run posts queued alerts until Stop is called
func (n *Notifier) Run() {
	defer close(n.stopped)

	for {
		select {
		case alert := <-n.queue:
			n.post(alert)
		case <-n.done:
			return
		}
	}
}

// Stop ends Run. Queued alerts that were not posted yet are discarded.
func (n *Notifier) Stop() {
	n.stopOnce.Do(func() {
		close(n.done)
	})
	<-n.stopped
}

func (n *Notifier) post(alert backend.Alert) {
	n.mu.RLock()
	p := n.poster
	n.mu.RUnlock()

	// Disabled after the alert was queued
	if p == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifyPostTimeout)
	defer cancel()

	go func() {
		select {
		case <-n.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := p.PostAlert(ctx, alert); err != nil {
		metrics.NotificationsSent.WithLabelValues("failed").Inc()
		n.logger.Errorw("Failed to post alert notification", "alertID", alert.ID, "error", err.Error())
		return
	}

	metrics.NotificationsSent.WithLabelValues("posted").Inc()
	n.logger.Infow("Posted alert notification", "alertID", alert.ID, "tier", alert.Tier())
}
