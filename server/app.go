package main

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/crisisdesk/alertdeck/server/backend"
	"github.com/crisisdesk/alertdeck/server/backend/analyzer"
	"github.com/crisisdesk/alertdeck/server/hub"
	"github.com/crisisdesk/alertdeck/server/metrics"
	"github.com/crisisdesk/alertdeck/server/store"
	"github.com/crisisdesk/alertdeck/server/view"
)

const shutdownTimeout = 10 * time.Second

var (
	// ErrEmptyText is returned by Submit for blank input
	ErrEmptyText = errors.New("text must not be empty")

	// ErrStopping is returned by Submit when a result arrives during shutdown
	ErrStopping = errors.New("service is shutting down")
)

// App owns every long-lived component and the wiring between them.
type App struct {
	logger *zap.SugaredLogger
	level  zap.AtomicLevel

	// configurationLock synchronizes access to the configuration.
	configurationLock sync.RWMutex

	// configuration is the active configuration. Consult getConfiguration and
	// setConfiguration for usage.
	configuration *configuration

	endpoint     *backend.Endpoint
	store        *store.Store
	manager      *analyzer.Manager
	status       backend.StatusReporter
	client       *analyzer.APIClient
	hub          *hub.Hub
	notifier     *Notifier
	deduplicator *Deduplicator
	cors         *cors.Cors

	server      *http.Server
	serveErrors chan error
	unsubscribe []func()

	started  atomic.Bool
	stopping atomic.Bool
	now      func() time.Time
	newID    func() string
}

// NewApp builds the component graph from config without starting anything
func NewApp(logger *zap.SugaredLogger, level zap.AtomicLevel, config *configuration) (*App, error) {
	endpoint, err := backend.NewEndpoint(config.BackendURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid backend url")
	}

	a := &App{
		logger:      logger,
		level:       level,
		endpoint:    endpoint,
		store:       store.New(),
		client:      analyzer.NewAPIClient(endpoint, logger.With("component", "client")),
		serveErrors: make(chan error, 1),
		now:         time.Now,
		newID:       uuid.NewString,
	}

	config = config.Clone()
	config.BackendURL = endpoint.URL()
	a.setConfiguration(config)

	processor := analyzer.NewFrameProcessor(logger.With("component", "processor"), a.store)
	a.manager = analyzer.NewManager(
		logger.With("component", "stream"),
		endpoint,
		analyzer.NewWebsocketDialer(config.PingInterval),
		processor,
		config.ReconnectDelay,
	)
	a.status = a.manager

	a.cors = cors.New(cors.Options{
		AllowedOrigins: config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	})
	a.hub = hub.NewHub(logger.With("component", "hub"), a.snapshot, a.originAllowed)

	a.deduplicator = NewDeduplicator(logger.With("component", "deduplicator"))
	a.notifier = NewNotifier(logger.With("component", "notifier"), a.deduplicator)
	a.notifier.Configure(config.Notify)

	// Stream and one-shot paths follow the same endpoint
	endpoint.OnChange(func(string) {
		baseURL := a.endpoint.URL()
		a.logger.Infow("Backend URL changed", "url", baseURL)
		if err := a.manager.Reconfigure(baseURL); err != nil {
			a.logger.Warnw("Failed to reconfigure alert stream", "url", baseURL, "error", err.Error())
		}
	})

	a.manager.OnStatusChange(a.hub.PublishStatus)
	a.unsubscribe = append(a.unsubscribe,
		a.store.Subscribe(func(change store.Change) {
			a.hub.PublishChange(change, a.store.Stats())
		}),
		a.store.Subscribe(a.notifier.HandleChange),
	)

	a.server = &http.Server{
		Addr:              config.ListenAddr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// Start launches the background workers, opens the alert stream and starts
// serving the dashboard API.
func (a *App) Start() error {
	if !a.started.CompareAndSwap(false, true) {
		return errors.New("app already started")
	}

	go a.hub.Run()
	go a.notifier.Run()

	if err := a.manager.Start(); err != nil {
		return errors.Wrap(err, "failed to start alert stream")
	}

	listener, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", a.server.Addr)
	}

	go func() {
		if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.serveErrors <- err
		}
	}()

	a.logger.Infow("AlertDeck started",
		"listen", listener.Addr().String(),
		"backendURL", a.endpoint.URL(),
		"version", version)

	return nil
}

// ServeErrors reports a fatal HTTP server error
func (a *App) ServeErrors() <-chan error {
	return a.serveErrors
}

// Stop shuts every component down. It is safe to call after a failed Start.
func (a *App) Stop() error {
	a.stopping.Store(true)

	var result *multierror.Error

	if a.started.Load() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := a.server.Shutdown(ctx); err != nil {
			result = multierror.Append(result, errors.Wrap(err, "failed to shut down http server"))
		}
	}

	if err := a.manager.Stop(); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "failed to stop alert stream"))
	}

	for _, unsubscribe := range a.unsubscribe {
		unsubscribe()
	}

	if a.started.Load() {
		a.hub.Stop()
		a.notifier.Stop()
	}
	a.deduplicator.Stop()

	a.logger.Infow("AlertDeck stopped")
	return result.ErrorOrNil()
}

// Submit sends text for one-shot analysis and adds the result to the store.
// The result is dropped if ctx is done or the app is stopping when it arrives.
func (a *App) Submit(ctx context.Context, text string) (backend.Alert, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		metrics.AnalyzeRequests.WithLabelValues("rejected").Inc()
		return backend.Alert{}, ErrEmptyText
	}

	result, err := a.client.Analyze(ctx, text)
	if err != nil && ctx.Err() != nil {
		metrics.AnalyzeRequests.WithLabelValues("discarded").Inc()
		return backend.Alert{}, errors.Wrap(ctx.Err(), "analysis request abandoned")
	}
	if err != nil {
		metrics.AnalyzeRequests.WithLabelValues("failed").Inc()
		a.logger.Warnw("Analysis request failed", "error", err.Error())
		return backend.Alert{}, err
	}

	if err := ctx.Err(); err != nil {
		metrics.AnalyzeRequests.WithLabelValues("discarded").Inc()
		return backend.Alert{}, errors.Wrap(err, "analysis result discarded")
	}
	if a.stopping.Load() {
		metrics.AnalyzeRequests.WithLabelValues("discarded").Inc()
		return backend.Alert{}, ErrStopping
	}

	result.ID = a.newID()
	if result.Message == "" {
		result.Message = text
	}
	result.ReceivedAt = a.now()

	stored := a.store.Ingest(result)
	metrics.AnalyzeRequests.WithLabelValues("ok").Inc()
	a.logger.Infow("Analysis stored", "alertID", stored.ID, "urgencyScore", stored.UrgencyScore, "tier", stored.Tier())

	return stored, nil
}

// snapshot is the initial state sent to every live client
func (a *App) snapshot() hub.Snapshot {
	alerts := a.store.Read()
	return hub.Snapshot{
		Alerts: alerts,
		Stats:  view.ComputeStats(alerts),
		Status: a.status.Status(),
	}
}

// originAllowed applies the CORS origin list to live feed upgrades. Clients
// that send no Origin header are not browsers and are always accepted.
func (a *App) originAllowed(r *http.Request) bool {
	if r.Header.Get("Origin") == "" {
		return true
	}
	return a.cors.OriginAllowed(r)
}
