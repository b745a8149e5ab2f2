package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	return h, cancel
}

func TestBroadcastToSession_OnlyReachesMatchingSubscribers(t *testing.T) {
	h, cancel := startHub(t)
	defer cancel()

	a := NewSubscriber("client-a", "sess-1", 4)
	b := NewSubscriber("client-b", "sess-2", 4)
	h.Register(a)
	h.Register(b)

	require.Eventually(t, func() bool { return h.SubscriberCount("sess-1") == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.BroadcastToSession("sess-1", map[string]string{"msg": "slow_down"}))

	select {
	case payload := <-a.Send:
		var decoded map[string]string
		require.NoError(t, json.Unmarshal(payload, &decoded))
		assert.Equal(t, "slow_down", decoded["msg"])
	case <-time.After(time.Second):
		t.Fatal("expected subscriber a to receive the broadcast")
	}

	select {
	case <-b.Send:
		t.Fatal("subscriber b should not receive a sess-1 broadcast")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnregister_StopsFurtherDelivery(t *testing.T) {
	h, cancel := startHub(t)
	defer cancel()

	sub := NewSubscriber("client-a", "sess-1", 4)
	h.Register(sub)
	require.Eventually(t, func() bool { return h.SubscriberCount("sess-1") == 1 }, time.Second, 5*time.Millisecond)

	h.Unregister(sub)
	require.Eventually(t, func() bool { return h.SubscriberCount("sess-1") == 0 }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.BroadcastToSession("sess-1", map[string]string{"msg": "ignored"}))
	select {
	case _, ok := <-sub.Send:
		assert.False(t, ok, "channel should be closed, not delivered to")
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected Send channel to be closed after unregister")
	}
}

func TestDeliver_DropsSlowSubscriberInsteadOfBlocking(t *testing.T) {
	h, cancel := startHub(t)
	defer cancel()

	slow := NewSubscriber("slow", "sess-1", 1)
	h.Register(slow)
	require.Eventually(t, func() bool { return h.SubscriberCount("sess-1") == 1 }, time.Second, 5*time.Millisecond)

	// Fill the buffer, then broadcast once more without draining it.
	require.NoError(t, h.BroadcastToSession("sess-1", map[string]int{"n": 1}))
	require.NoError(t, h.BroadcastToSession("sess-1", map[string]int{"n": 2}))

	require.Eventually(t, func() bool { return h.SubscriberCount("sess-1") == 0 }, time.Second, 5*time.Millisecond,
		"subscriber with a full buffer should be dropped rather than block the hub")
}

func TestStats_CountsPerSession(t *testing.T) {
	h, cancel := startHub(t)
	defer cancel()

	h.Register(NewSubscriber("a", "sess-1", 2))
	h.Register(NewSubscriber("b", "sess-1", 2))
	h.Register(NewSubscriber("c", "sess-2", 2))

	require.Eventually(t, func() bool {
		stats := h.Stats()
		return stats["sess-1"] == 2 && stats["sess-2"] == 1
	}, time.Second, 5*time.Millisecond)
}
