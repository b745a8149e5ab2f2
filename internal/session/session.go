// Package session implements the Session Manager (C10): one
// Session per active realtime shooting session, holding its own
// Realtime Analyzer (C9) and Advice Engine (C5) instance, a fan-out set of
// connected clients (a phone can drop and reconnect without losing
// analysis state), heartbeat tracking and exponential-backoff reconnect
// gating, plus a background sweep that evicts stale clients and sessions.
package session

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"shootcoach/internal/advice"
	"shootcoach/internal/config"
	"shootcoach/internal/logging"
	"shootcoach/internal/realtime"
)

// Client is one connected viewer/phone attached to a Session. A session
// can have more than one client (e.g. the shooting phone plus a paired
// viewfinder), all receiving the same advice fan-out.
type Client struct {
	ID            string
	ConnectedAt   time.Time
	LastHeartbeat time.Time

	reconnectAttempts int
	currentDelay      time.Duration
}

// IsStale reports whether the client has missed its heartbeat deadline.
func (c *Client) IsStale(timeout time.Duration) bool {
	return time.Since(c.LastHeartbeat) > timeout
}

// Stats is a point-in-time snapshot of one session's activity, mirroring
// the original manager's get_session_stats.
type Stats struct {
	SessionID      string
	CreatedAt      time.Time
	LastActivity   time.Time
	TotalClients   int
	ActiveClients  int
	TotalAnalyses  int
	AvgLatencyMs   float64
	MotionState    string
}

// Session is one shooting session's full analysis state: one Analyzer,
// one Advice Engine, and the set of clients currently attached to it.
type Session struct {
	ID        string
	Analyzer  *realtime.Analyzer
	Advice    *advice.Engine
	CreatedAt time.Time

	mu            sync.RWMutex
	clients       map[string]*Client
	lastActivity  time.Time
	totalAnalyses int
	latencyEMA    float64
	motionState   string
}

func newSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		Analyzer:     realtime.New(realtime.DefaultConfig()),
		Advice:       advice.New(advice.DefaultConfig()),
		CreatedAt:    now,
		clients:      make(map[string]*Client),
		lastActivity: now,
		motionState:  "unknown",
	}
}

// AddClient registers a client under clientID (auto-generated if empty),
// returning the resulting Client. Re-adding an existing client ID refreshes
// its heartbeat rather than replacing its reconnect state, matching the
// idempotent behavior of add_client on reconnect.
func (s *Session) AddClient(clientID string) *Client {
	if clientID == "" {
		clientID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.clients[clientID]; ok {
		existing.LastHeartbeat = time.Now()
		return existing
	}
	now := time.Now()
	c := &Client{ID: clientID, ConnectedAt: now, LastHeartbeat: now}
	s.clients[clientID] = c
	s.lastActivity = now
	return c
}

// RemoveClient detaches a client from the session.
func (s *Session) RemoveClient(clientID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[clientID]; !ok {
		return false
	}
	delete(s.clients, clientID)
	s.lastActivity = time.Now()
	return true
}

// UpdateHeartbeat refreshes a client's last-seen timestamp.
func (s *Session) UpdateHeartbeat(clientID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[clientID]
	if !ok {
		return false
	}
	c.LastHeartbeat = time.Now()
	s.lastActivity = time.Now()
	return true
}

// Clients returns a snapshot of currently attached clients, used for both
// cleanup sweeps and advice fan-out.
func (s *Session) Clients() []*Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	return out
}

// ClientCount returns the number of attached clients.
func (s *Session) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Touch marks the session as recently active without a client event (e.g.
// a successful analysis cycle with no heartbeat traffic).
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// RecordAnalysis folds one analysis cycle's latency and motion state into
// the session's running stats. The latency tracker is an exponential
// moving average rather than a full history, matching the lightweight
// per-session stats the original manager keeps in memory.
func (s *Session) RecordAnalysis(latencyMs float64, motionState string) {
	const emaAlpha = 0.2
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalAnalyses++
	if s.totalAnalyses == 1 {
		s.latencyEMA = latencyMs
	} else {
		s.latencyEMA = emaAlpha*latencyMs + (1-emaAlpha)*s.latencyEMA
	}
	if motionState != "" {
		s.motionState = motionState
	}
	s.lastActivity = time.Now()
}

// Stats snapshots the session's activity for a status query.
func (s *Session) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		SessionID:     s.ID,
		CreatedAt:     s.CreatedAt,
		LastActivity:  s.lastActivity,
		TotalClients:  len(s.clients),
		ActiveClients: len(s.clients),
		TotalAnalyses: s.totalAnalyses,
		AvgLatencyMs:  s.latencyEMA,
		MotionState:   s.motionState,
	}
}

func (s *Session) removeStaleClients(timeout time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, c := range s.clients {
		if c.IsStale(timeout) {
			delete(s.clients, id)
			removed++
		}
	}
	return removed
}

func (s *Session) isStale(timeout time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.lastActivity) > timeout && len(s.clients) == 0
}

// ExpiredFunc is called whenever the cleanup sweep evicts a session.
type ExpiredFunc func(sessionID string)

// Manager owns every active Session, keyed by ID, plus the heartbeat and
// reconnect-backoff bookkeeping shared across them.
type Manager struct {
	cfg    config.RealtimeSettings
	logger logging.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	onExpired ExpiredFunc

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewManager builds a Manager tuned by cfg. onExpired may be nil.
func NewManager(cfg config.RealtimeSettings, logger logging.Logger, onExpired ExpiredFunc) *Manager {
	if logger == nil {
		logger = logging.NewLoggerWithComponent("session-manager")
	}
	return &Manager{
		cfg:       cfg,
		logger:    logger,
		sessions:  make(map[string]*Session),
		onExpired: onExpired,
		stopCh:    make(chan struct{}),
	}
}

// CreateSession returns the session for sessionID, creating it if absent.
// Idempotent: a caller that races another create (or reconnects to an
// already-open session) always gets back the same live Session.
func (m *Manager) CreateSession(sessionID string) *Session {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		return s
	}
	s := newSession(sessionID)
	m.sessions[sessionID] = s
	m.logger.WithFields(logging.Fields{"session_id": sessionID}).Info("session created")
	return s
}

// GetSession returns the session for sessionID, if any.
func (m *Manager) GetSession(sessionID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// DeleteSession removes a session outright (explicit client-initiated end,
// not a timeout eviction).
func (m *Manager) DeleteSession(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return false
	}
	delete(m.sessions, sessionID)
	m.logger.WithFields(logging.Fields{"session_id": sessionID}).Info("session deleted")
	return true
}

// SessionCount returns the number of currently tracked sessions.
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// AllStats returns a Stats snapshot for every tracked session.
func (m *Manager) AllStats() []Stats {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	out := make([]Stats, len(sessions))
	for i, s := range sessions {
		out[i] = s.Stats()
	}
	return out
}

// RecordReconnectAttempt computes the next reconnect delay for a client
// using exponential backoff capped at MaxReconnectDelay, then jittered by
// +/-20% of the capped value. Returns ok=false once the client has
// exhausted MaxReconnectAttempts, signaling the caller to give up.
func (m *Manager) RecordReconnectAttempt(sessionID, clientID string) (time.Duration, bool) {
	s, ok := m.GetSession(sessionID)
	if !ok {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[clientID]
	if !ok {
		return 0, false
	}
	if c.reconnectAttempts >= m.cfg.MaxReconnectAttempts {
		return 0, false
	}

	base := c.currentDelay
	if base <= 0 {
		base = m.cfg.InitialReconnectDelay
	}
	next := time.Duration(float64(base) * m.cfg.ReconnectBackoffFactor)
	if next > m.cfg.MaxReconnectDelay {
		next = m.cfg.MaxReconnectDelay
	}

	jitterRange := float64(next) * 0.2
	jitter := jitterRange * (rand.Float64()*2 - 1)
	delay := time.Duration(math.Max(0, float64(next)+jitter))

	c.currentDelay = next
	c.reconnectAttempts++

	return delay, true
}

// ResetReconnectState clears a client's backoff state after a clean
// reconnect, matching reset_reconnect_state.
func (m *Manager) ResetReconnectState(sessionID, clientID string) {
	s, ok := m.GetSession(sessionID)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[clientID]; ok {
		c.reconnectAttempts = 0
		c.currentDelay = 0
	}
}

// StartCleanupLoop runs the background stale-session sweep until ctx is
// canceled or Stop is called. Intended to be launched as its own
// goroutine by the process entrypoint.
func (m *Manager) StartCleanupLoop(ctx context.Context) {
	interval := m.cfg.CleanupInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.cleanupStale()
		}
	}
}

// Stop ends a running cleanup loop.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// cleanupStale evicts stale clients from every session, then evicts
// sessions that are themselves stale (no recent activity and no clients
// left), in that order, matching _cleanup_stale's two-phase sweep.
func (m *Manager) cleanupStale() {
	m.mu.RLock()
	sessions := make(map[string]*Session, len(m.sessions))
	for id, s := range m.sessions {
		sessions[id] = s
	}
	m.mu.RUnlock()

	var expired []string
	for id, s := range sessions {
		if n := s.removeStaleClients(m.cfg.HeartbeatTimeout); n > 0 {
			m.logger.WithFields(logging.Fields{"session_id": id, "removed_clients": n}).Info("removed stale clients")
		}
		if s.isStale(m.cfg.SessionTimeout) {
			expired = append(expired, id)
		}
	}

	if len(expired) == 0 {
		return
	}
	m.mu.Lock()
	for _, id := range expired {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, id := range expired {
		m.logger.WithFields(logging.Fields{"session_id": id}).Info("session expired")
		if m.onExpired != nil {
			m.onExpired(id)
		}
	}
}
