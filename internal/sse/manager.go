package sse

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	queueSize       = 1000
	clientQueueSize = 100
)

// ErrClosed is returned by Connect once Shutdown has started.
var ErrClosed = errors.New("sse: manager closed")

// Client is one open event stream.
type Client struct {
	ID      string
	Subject string
	Since   time.Time
	// Events is closed when the manager drops the client.
	Events chan Event
}

// Manager routes list change events to the streams of the list owner.
type Manager struct {
	logger    *slog.Logger
	heartbeat time.Duration

	queue   chan Event
	closing sync.RWMutex // Emit sends under RLock, Shutdown closes queue under Lock
	closed  bool
	loop    sync.WaitGroup

	mu        sync.RWMutex
	bySubject map[string]map[string]*Client
}

// NewManager creates a manager. Call Start to begin delivery.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		logger:    logger.With("component", "sse"),
		heartbeat: 30 * time.Second,
		queue:     make(chan Event, queueSize),
		bySubject: make(map[string]map[string]*Client),
	}
}

// Start delivers queued events until ctx is cancelled or Shutdown closes the
// queue. It also sends a heartbeat to every client on each interval.
func (m *Manager) Start(ctx context.Context) {
	m.loop.Add(1)
	defer m.loop.Done()

	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	m.logger.Info("SSE manager started")
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("SSE manager stopped")
			m.dropAll()
			return
		case <-ticker.C:
			m.route(NewHeartbeatEvent())
		case evt, ok := <-m.queue:
			if !ok {
				return
			}
			m.route(evt)
		}
	}
}

// Shutdown stops accepting events, delivers what is still queued (bounded by
// ctx) and drops every client. Calling it again is a no-op.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.closing.Lock()
	if m.closed {
		m.closing.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.closing.Unlock()

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for evt := range m.queue {
			m.route(evt)
		}
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		m.logger.Warn("SSE drain timed out, pending events discarded")
	}

	m.loop.Wait()
	m.dropAll()
	return nil
}

// route hands evt to the owner's clients, or to everyone for ownerless
// events. A client whose queue is full misses the event.
func (m *Manager) route(evt Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sent, missed int
	deliver := func(c *Client) {
		select {
		case c.Events <- evt:
			sent++
		default:
			missed++
			m.logger.Warn("SSE client queue full, event dropped",
				"client_id", c.ID,
				"event_type", string(evt.Type))
		}
	}

	if evt.Owner == "" {
		for _, clients := range m.bySubject {
			for _, c := range clients {
				deliver(c)
			}
		}
	} else {
		for _, c := range m.bySubject[evt.Owner] {
			deliver(c)
		}
	}

	if evt.Type != EventHeartbeat {
		m.logger.Debug("SSE event routed",
			"event_type", string(evt.Type),
			"owner", evt.Owner,
			"sent", sent,
			"missed", missed)
	}
}

// Connect opens a stream for subject.
func (m *Manager) Connect(subject string) (*Client, error) {
	m.closing.RLock()
	defer m.closing.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	c := &Client{
		ID:      uuid.NewString(),
		Subject: subject,
		Since:   time.Now(),
		Events:  make(chan Event, clientQueueSize),
	}

	m.mu.Lock()
	if m.bySubject[subject] == nil {
		m.bySubject[subject] = make(map[string]*Client)
	}
	m.bySubject[subject][c.ID] = c
	m.mu.Unlock()

	m.logger.Info("SSE client connected", "client_id", c.ID, "subject", subject)
	return c, nil
}

// Disconnect closes the client's stream. Unknown ids are ignored.
func (m *Manager) Disconnect(c *Client) {
	m.mu.Lock()
	clients, ok := m.bySubject[c.Subject]
	if _, registered := clients[c.ID]; !ok || !registered {
		m.mu.Unlock()
		return
	}
	delete(clients, c.ID)
	if len(clients) == 0 {
		delete(m.bySubject, c.Subject)
	}
	close(c.Events)
	m.mu.Unlock()

	m.logger.Info("SSE client disconnected",
		"client_id", c.ID,
		"connected_for", time.Since(c.Since))
}

// Emit queues an event for delivery. Anything that is not an Event, and
// anything emitted after Shutdown, is discarded.
func (m *Manager) Emit(event any) {
	evt, ok := event.(Event)
	if !ok {
		m.logger.Error("SSE emit called with a non-event value")
		return
	}

	m.closing.RLock()
	defer m.closing.RUnlock()
	if m.closed {
		return
	}

	select {
	case m.queue <- evt:
	default:
		m.logger.Error("SSE queue full, event dropped", "event_type", string(evt.Type))
	}
}

// ClientCount returns the number of open streams.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, clients := range m.bySubject {
		n += len(clients)
	}
	return n
}

func (m *Manager) dropAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, clients := range m.bySubject {
		for _, c := range clients {
			close(c.Events)
		}
	}
	clear(m.bySubject)
}
