package analyzer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crisisdesk/alertdeck/server/backend"
	"github.com/crisisdesk/alertdeck/server/metrics"
)

type eventKind int

const (
	eventDialed eventKind = iota
	eventFrame
	eventReadFailed
	eventRetry
	eventReconfigure
	eventStop
)

// event is the single input type of the manager loop. gen ties socket and
// timer events to the connection attempt that produced them, so events from
// a superseded attempt are discarded.
type event struct {
	kind  eventKind
	gen   uint64
	conn  Conn
	data  []byte
	err   error
	url   string
	reply chan struct{}
}

// Manager keeps one live connection to the alert stream. All connection state
// is owned by a single loop goroutine; the dial, read and timer goroutines only
// post events to it.
type Manager struct {
	logger    *zap.SugaredLogger
	endpoint  *backend.Endpoint
	dialer    Dialer
	processor *FrameProcessor
	clock     Clock
	delay     time.Duration
	status    *StatusTracker
	now       func() time.Time

	statusHandler func(backend.Status)

	mu      sync.Mutex
	running bool
	stopped bool

	events chan event
	done   chan struct{}
	wg     sync.WaitGroup

	// owned by the loop goroutine
	state      backend.ConnState
	gen        uint64
	url        string
	conn       Conn
	cancelDial context.CancelFunc
	timer      Timer
}

// NewManager creates a connection manager. Frames are handed to processor;
// reconnects are scheduled delay after every close or failed dial.
func NewManager(
	logger *zap.SugaredLogger,
	endpoint *backend.Endpoint,
	dialer Dialer,
	processor *FrameProcessor,
	delay time.Duration,
) *Manager {
	if delay <= 0 {
		delay = backend.DefaultReconnectDelay
	}

	return &Manager{
		logger:    logger,
		endpoint:  endpoint,
		dialer:    dialer,
		processor: processor,
		clock:     SystemClock{},
		delay:     delay,
		status:    NewStatusTracker(),
		now:       time.Now,
		events:    make(chan event),
		done:      make(chan struct{}),
		state:     backend.StateIdle,
	}
}

// SetClock sets a custom clock (useful for testing)
func (m *Manager) SetClock(clock Clock) {
	m.clock = clock
}

// OnStatusChange registers fn to receive every status transition. It is called
// from the loop goroutine and must not block. Register before Start.
func (m *Manager) OnStatusChange(fn func(backend.Status)) {
	m.statusHandler = fn
}

// Start opens the first connection. A manager runs at most once.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("connection manager already running")
	}
	if m.stopped {
		return fmt.Errorf("connection manager has been stopped")
	}

	m.url = m.endpoint.StreamURL()
	m.running = true

	go m.loop()
	return nil
}

// Stop tears the connection down. When Stop returns, the reconnect timer is
// cancelled, any pending dial has been abandoned and every socket the manager
// opened is closed.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.stopped = true
	m.mu.Unlock()

	reply := make(chan struct{})
	m.events <- event{kind: eventStop, reply: reply}
	<-reply
	<-m.done

	m.wg.Wait()
	m.logger.Infow("Alert stream stopped")
	return nil
}

// Reconfigure points the manager at a new backend base URL. The current
// connection is closed and a new attempt begins before Reconfigure returns.
// It is a no-op when the manager is not running.
func (m *Manager) Reconfigure(baseURL string) error {
	validated, err := backend.ValidateURL(baseURL)
	if err != nil {
		return err
	}
	streamURL, err := backend.StreamURL(validated)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	reply := make(chan struct{})
	m.events <- event{kind: eventReconfigure, url: streamURL, reply: reply}
	<-reply
	return nil
}

// Connected reports whether the stream is currently open
func (m *Manager) Connected() bool {
	return m.status.Connected()
}

// Status returns a snapshot of the connection lifecycle
func (m *Manager) Status() backend.Status {
	return m.status.Snapshot()
}

// post delivers an event to the loop. It returns false once the loop has exited.
func (m *Manager) post(ev event) bool {
	select {
	case m.events <- ev:
		return true
	case <-m.done:
		return false
	}
}

func (m *Manager) loop() {
	defer close(m.done)

	m.status.SaveURL(m.url)
	m.connect()

	for ev := range m.events {
		switch ev.kind {
		case eventDialed:
			m.handleDialed(ev)
		case eventFrame:
			m.handleFrame(ev)
		case eventReadFailed:
			m.handleReadFailed(ev)
		case eventRetry:
			m.handleRetry(ev)
		case eventReconfigure:
			m.handleReconfigure(ev)
			close(ev.reply)
		case eventStop:
			m.teardown()
			close(ev.reply)
			return
		}
	}
}

// connect starts a new attempt; it supersedes everything from earlier attempts
func (m *Manager) connect() {
	m.gen++
	gen := m.gen
	url := m.url

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelDial = cancel
	m.setState(backend.StateConnecting)

	m.logger.Infow("Connecting to alert stream", "url", url)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		conn, err := m.dialer.Dial(ctx, url)
		if !m.post(event{kind: eventDialed, gen: gen, conn: conn, err: err}) && conn != nil {
			_ = conn.Close()
		}
	}()
}

func (m *Manager) handleDialed(ev event) {
	if ev.gen != m.gen || m.state != backend.StateConnecting {
		if ev.conn != nil {
			_ = ev.conn.Close()
		}
		return
	}

	m.cancelDial()
	m.cancelDial = nil

	if ev.err != nil {
		m.handleClosed(ev.err)
		return
	}

	m.conn = ev.conn
	m.state = backend.StateOpen
	m.status.SaveConnected(m.now())
	metrics.Connected.Set(1)
	m.notifyStatus()

	m.logger.Infow("Alert stream connected", "url", m.url)

	gen := m.gen
	conn := m.conn
	m.wg.Add(1)
	go m.readPump(gen, conn)
}

// readPump forwards frames until the connection fails or is closed
func (m *Manager) readPump(gen uint64, conn Conn) {
	defer m.wg.Done()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.post(event{kind: eventReadFailed, gen: gen, err: err})
			return
		}
		if !m.post(event{kind: eventFrame, gen: gen, data: data}) {
			return
		}
	}
}

func (m *Manager) handleFrame(ev event) {
	if ev.gen != m.gen || m.state != backend.StateOpen {
		return
	}

	// Decode failures are logged by the processor; the connection stays up
	_, _ = m.processor.ProcessFrame(ev.data)
}

func (m *Manager) handleReadFailed(ev event) {
	if ev.gen != m.gen || m.state != backend.StateOpen {
		return
	}

	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.handleClosed(ev.err)
}

// handleClosed moves to Closed and schedules exactly one reconnect
func (m *Manager) handleClosed(cause error) {
	reason := "connection closed"
	if cause != nil {
		reason = cause.Error()
	}

	m.state = backend.StateClosed
	failures := m.status.SaveClosed(m.now(), reason)
	metrics.Connected.Set(0)
	m.notifyStatus()

	m.logger.Warnw("Alert stream closed",
		"url", m.url,
		"error", reason,
		"consecutiveFailures", failures,
		"retryIn", m.delay.String())

	m.scheduleReconnect()
}

func (m *Manager) scheduleReconnect() {
	if m.timer != nil {
		m.timer.Stop()
	}

	gen := m.gen
	m.timer = m.clock.AfterFunc(m.delay, func() {
		m.post(event{kind: eventRetry, gen: gen})
	})

	attempts := m.status.IncrementReconnects()
	metrics.Reconnects.Inc()
	m.logger.Debugw("Reconnect scheduled", "attempt", attempts, "delay", m.delay.String())
}

func (m *Manager) handleRetry(ev event) {
	if ev.gen != m.gen || m.state != backend.StateClosed {
		return
	}

	m.timer = nil
	m.connect()
}

func (m *Manager) handleReconfigure(ev event) {
	if ev.url == m.url {
		return
	}

	m.logger.Infow("Backend URL changed, restarting alert stream", "from", m.url, "to", ev.url)

	m.disconnect()
	m.url = ev.url
	m.status.SaveURL(ev.url)
	m.status.ResetFailures()
	m.connect()
}

// disconnect cancels the timer, abandons any dial and closes the socket
func (m *Manager) disconnect() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	metrics.Connected.Set(0)
}

func (m *Manager) teardown() {
	m.disconnect()

	// Stale events from the last attempt must not match any generation
	m.gen++
	m.state = backend.StateClosed
	m.status.SaveFinal(m.now())
	m.notifyStatus()
}

func (m *Manager) setState(state backend.ConnState) {
	m.state = state
	if state == backend.StateConnecting {
		m.status.SaveConnecting()
	}
	m.notifyStatus()
}

func (m *Manager) notifyStatus() {
	if m.statusHandler != nil {
		m.statusHandler(m.status.Snapshot())
	}
}
