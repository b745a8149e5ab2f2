package realtime

import (
	"context"
	"image/color"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readyAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	a := New(DefaultConfig())
	valid := encodeBase64JPEG(t, solidFrame(32, color.RGBA{90, 90, 90, 255}))
	frames := make([]string, 6)
	for i := range frames {
		frames[i] = valid
	}
	a.Submit(frames, 10, 0)
	require.True(t, a.Ready())
	return a
}

func TestRunCycle_ProcessesOnlyReadyTasksConcurrently(t *testing.T) {
	ready := readyAnalyzer(t)
	notReady := New(DefaultConfig())

	var mu sync.Mutex
	handled := map[string]bool{}

	tasks := []Task{
		{SessionID: "sess-ready", Analyzer: ready, Handle: func(r AnalysisResult) {
			mu.Lock()
			handled["sess-ready"] = true
			mu.Unlock()
		}},
		{SessionID: "sess-not-ready", Analyzer: notReady, Handle: func(r AnalysisResult) {
			mu.Lock()
			handled["sess-not-ready"] = true
			mu.Unlock()
		}},
	}

	err := RunCycle(context.Background(), tasks, 4)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, handled["sess-ready"])
	assert.False(t, handled["sess-not-ready"], "an analyzer without enough buffered frames should be skipped")
}

func TestRunCycle_EmptyTaskListReturnsNil(t *testing.T) {
	assert.NoError(t, RunCycle(context.Background(), nil, 2))
}
