package realtime

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Task is one session's pending analysis work: run one AnalyzeBuffer cycle
// over the session's buffered frames, then hand the result
// off (to the Advice Engine, a hub broadcast, telemetry, whatever the
// caller needs).
type Task struct {
	SessionID string
	Analyzer  *Analyzer
	Handle    func(AnalysisResult)
}

// RunCycle runs one analysis cycle for every ready task concurrently,
// bounded by maxConcurrent, so a burst of sessions hitting their buffer
// threshold in the same tick doesn't serialize behind a single worker. A
// single session's analysis failing (via Handle panicking is not
// recovered here — callers shouldn't panic) never blocks the others,
// matching the offline pipeline's per-job isolation in RunBatch.
func RunCycle(ctx context.Context, tasks []Task, maxConcurrent int) error {
	g, ctx := errgroup.WithContext(ctx)
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	g.SetLimit(maxConcurrent)

	for _, task := range tasks {
		task := task
		if !task.Analyzer.Ready() {
			continue
		}
		g.Go(func() error {
			result := task.Analyzer.AnalyzeBuffer()
			if task.Handle != nil {
				task.Handle(result)
			}
			return ctx.Err()
		})
	}

	return g.Wait()
}
