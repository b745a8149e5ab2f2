package realtime

import "shootcoach/internal/model"

// SubjectTrackerConfig tunes the lost-state debounce.
type SubjectTrackerConfig struct {
	LostThresholdFrames int
}

// DefaultSubjectTrackerConfig mirrors the original's 3-frame debounce.
func DefaultSubjectTrackerConfig() SubjectTrackerConfig {
	return SubjectTrackerConfig{LostThresholdFrames: 3}
}

// SubjectTracker holds per-session detection state across analysis cycles.
type SubjectTracker struct {
	cfg SubjectTrackerConfig

	lastBBox         *model.BBox
	framesWithoutHit int
	lost             bool
}

// NewSubjectTracker builds a tracker with the given config (zero value
// uses DefaultSubjectTrackerConfig).
func NewSubjectTracker(cfg SubjectTrackerConfig) *SubjectTracker {
	if cfg.LostThresholdFrames <= 0 {
		cfg = DefaultSubjectTrackerConfig()
	}
	return &SubjectTracker{cfg: cfg}
}

// detectSubject finds the 3x3 grid cell with the highest center-weighted
// edge density, the same lightweight placeholder heuristic the original
// uses ahead of a real detector integration.
func detectSubject(g *grayFrame) *model.BBox {
	const gridH, gridW = 3, 3
	cellH, cellW := g.H/gridH, g.W/gridW
	if cellH == 0 || cellW == 0 {
		return nil
	}

	maxDensity := 0.0
	bestI, bestJ := 1, 1
	for i := 0; i < gridH; i++ {
		for j := 0; j < gridW; j++ {
			density := edgeDensity(g, j*cellW, i*cellH, cellW, cellH)
			centerWeight := 1.0 + 0.5*(1.0-absInt(i-1)/1.5)*(1.0-absInt(j-1)/1.5)
			weighted := density * centerWeight
			if weighted > maxDensity {
				maxDensity = weighted
				bestI, bestJ = i, j
			}
		}
	}

	if maxDensity < 10 {
		return nil
	}

	return &model.BBox{
		X: float64(bestJ*cellW) / float64(g.W),
		Y: float64(bestI*cellH) / float64(g.H),
		W: float64(cellW) / float64(g.W),
		H: float64(cellH) / float64(g.H),
	}
}

func absInt(n int) float64 {
	if n < 0 {
		return float64(-n)
	}
	return float64(n)
}

// edgeDensity returns the percentage of a cell's pixels whose gradient
// magnitude exceeds 30, standing in for the original's Canny-edge pixel
// count.
func edgeDensity(g *grayFrame, x0, y0, w, h int) float64 {
	sum := 0.0
	n := 0
	for y := y0; y < y0+h && y < g.H; y++ {
		for x := x0; x < x0+w && x < g.W; x++ {
			mag := gradientMagnitude(g, x, y)
			if mag > 30 { // threshold approximating a Canny edge pixel
				sum++
			}
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n) * 100
}

// Update folds in the latest frame's detection, returning the current
// bbox (possibly the last known one), subject occupancy, and lost state.
func (t *SubjectTracker) Update(latest *grayFrame) (*model.BBox, float64, bool) {
	if latest == nil {
		return t.lastBBox, t.occupancy(), t.lost
	}

	detected := detectSubject(latest)
	if detected != nil {
		t.lastBBox = detected
		t.framesWithoutHit = 0
		t.lost = false
		return detected, detected.Area(), false
	}

	t.framesWithoutHit++
	if t.framesWithoutHit >= t.cfg.LostThresholdFrames {
		t.lost = true
	}
	return nil, t.occupancy(), t.lost
}

func (t *SubjectTracker) occupancy() float64 {
	if t.lastBBox == nil {
		return 0
	}
	return t.lastBBox.Area()
}

// Reset clears all tracking state.
func (t *SubjectTracker) Reset() {
	t.lastBBox = nil
	t.framesWithoutHit = 0
	t.lost = false
}
