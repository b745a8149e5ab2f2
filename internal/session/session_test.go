package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shootcoach/internal/config"
)

func testSettings() config.RealtimeSettings {
	return config.RealtimeSettings{
		HeartbeatInterval:      50 * time.Millisecond,
		HeartbeatTimeout:       100 * time.Millisecond,
		SessionTimeout:         150 * time.Millisecond,
		CleanupInterval:        20 * time.Millisecond,
		MaxReconnectAttempts:   3,
		InitialReconnectDelay:  10 * time.Millisecond,
		MaxReconnectDelay:      100 * time.Millisecond,
		ReconnectBackoffFactor: 2.0,
		FrameBufferCapacity:    8,
	}
}

func TestCreateSession_IsIdempotent(t *testing.T) {
	m := NewManager(testSettings(), nil, nil)
	s1 := m.CreateSession("sess-1")
	s2 := m.CreateSession("sess-1")
	assert.Same(t, s1, s2)
	assert.Equal(t, 1, m.SessionCount())
}

func TestAddClient_ReconnectRefreshesHeartbeatInsteadOfReplacing(t *testing.T) {
	m := NewManager(testSettings(), nil, nil)
	s := m.CreateSession("sess-1")
	c1 := s.AddClient("client-1")
	time.Sleep(5 * time.Millisecond)
	c2 := s.AddClient("client-1")
	assert.Same(t, c1, c2)
	assert.True(t, c2.LastHeartbeat.After(c1.ConnectedAt) || c2.LastHeartbeat.Equal(c1.ConnectedAt))
	assert.Equal(t, 1, s.ClientCount())
}

func TestRemoveClient_ReturnsFalseForUnknownClient(t *testing.T) {
	m := NewManager(testSettings(), nil, nil)
	s := m.CreateSession("sess-1")
	assert.False(t, s.RemoveClient("ghost"))
	s.AddClient("client-1")
	assert.True(t, s.RemoveClient("client-1"))
	assert.Equal(t, 0, s.ClientCount())
}

func TestRecordReconnectAttempt_BacksOffAndCapsAtMax(t *testing.T) {
	m := NewManager(testSettings(), nil, nil)
	s := m.CreateSession("sess-1")
	s.AddClient("client-1")

	delay1, ok := m.RecordReconnectAttempt("sess-1", "client-1")
	require.True(t, ok)
	// jittered around InitialReconnectDelay*factor = 20ms, +/-20%
	assert.InDelta(t, 20*time.Millisecond, delay1, float64(4*time.Millisecond))

	delay2, ok := m.RecordReconnectAttempt("sess-1", "client-1")
	require.True(t, ok)
	assert.InDelta(t, 40*time.Millisecond, delay2, float64(8*time.Millisecond))

	delay3, ok := m.RecordReconnectAttempt("sess-1", "client-1")
	require.True(t, ok)
	// capped at MaxReconnectDelay (100ms), jittered +/-20%
	assert.LessOrEqual(t, delay3, 120*time.Millisecond)

	_, ok = m.RecordReconnectAttempt("sess-1", "client-1")
	assert.False(t, ok, "a fourth attempt should exceed MaxReconnectAttempts")
}

func TestResetReconnectState_ClearsAttemptCounter(t *testing.T) {
	m := NewManager(testSettings(), nil, nil)
	s := m.CreateSession("sess-1")
	s.AddClient("client-1")
	m.RecordReconnectAttempt("sess-1", "client-1")
	m.RecordReconnectAttempt("sess-1", "client-1")

	m.ResetReconnectState("sess-1", "client-1")

	delay, ok := m.RecordReconnectAttempt("sess-1", "client-1")
	require.True(t, ok)
	assert.InDelta(t, 20*time.Millisecond, delay, float64(4*time.Millisecond))
}

func TestRecordAnalysis_TracksEMAAndCount(t *testing.T) {
	m := NewManager(testSettings(), nil, nil)
	s := m.CreateSession("sess-1")

	s.RecordAnalysis(100, "panning")
	s.RecordAnalysis(200, "panning")

	stats := s.Stats()
	assert.Equal(t, 2, stats.TotalAnalyses)
	assert.Equal(t, "panning", stats.MotionState)
	assert.Greater(t, stats.AvgLatencyMs, 100.0)
	assert.Less(t, stats.AvgLatencyMs, 200.0)
}

func TestCleanupStale_RemovesStaleClientsThenExpiresEmptySessions(t *testing.T) {
	var expired []string
	m := NewManager(testSettings(), nil, func(id string) { expired = append(expired, id) })

	s := m.CreateSession("sess-1")
	s.AddClient("client-1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.StartCleanupLoop(ctx)

	require.Eventually(t, func() bool {
		return s.ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond, "stale client should be swept")

	require.Eventually(t, func() bool {
		return m.SessionCount() == 0
	}, 2*time.Second, 10*time.Millisecond, "empty stale session should be swept")

	assert.Contains(t, expired, "sess-1")
}

func TestGetSession_UnknownReturnsFalse(t *testing.T) {
	m := NewManager(testSettings(), nil, nil)
	_, ok := m.GetSession("nope")
	assert.False(t, ok)
}
