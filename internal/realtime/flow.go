package realtime

import (
	"math"

	"shootcoach/internal/indicators"
)

// Algorithm selects between the two flow-estimation tiers, mirroring the
// original's Farneback (dense, accurate) / Lucas-Kanade (sparse, fast)
// adaptive pair. Both are reimplemented here as block-matching motion
// estimation over a point grid — dense uses a fine, regular grid; sparse
// uses a coarse grid filtered down to the highest-gradient points, the
// same "fewer, cheaper points under latency pressure" shape as the
// original without binding to a CV library.
type Algorithm string

const (
	AlgorithmDense  Algorithm = "farneback"
	AlgorithmSparse Algorithm = "lucas_kanade"
)

// FlowConfig tunes the block-matching search.
type FlowConfig struct {
	GridStep      int // dense grid spacing in pixels
	SearchRadius  int // +/- pixels searched around each point
	BlockHalf     int // half-width of the SAD comparison block
	SparseMaxPts  int // cap on sparse-mode tracked points
}

// DefaultFlowConfig mirrors the original's grid density and search window
// scaled to the 320x240 target resolution.
func DefaultFlowConfig() FlowConfig {
	return FlowConfig{GridStep: 16, SearchRadius: 6, BlockHalf: 3, SparseMaxPts: 40}
}

// FlowResult is the aggregated motion signal for one analysis cycle.
type FlowResult struct {
	AvgSpeedPxFrame     float64
	PrimaryDirectionDeg float64
	FlowVectors         []indicators.FlowVector
}

type point struct{ X, Y int }

// computeFlow estimates motion between consecutive frames using the
// selected algorithm, averaging per-pair results across the whole buffer
// the same way the original averages magnitude/angle across frame pairs.
func computeFlow(frames []*grayFrame, cfg FlowConfig, algo Algorithm) FlowResult {
	if len(frames) < 2 {
		return FlowResult{}
	}

	var magnitudes, angles []float64
	var sampled []indicators.FlowVector

	for i := 0; i < len(frames)-1; i++ {
		prev, next := frames[i], frames[i+1]
		points := samplePoints(prev, cfg, algo)
		vectors := matchPoints(prev, next, points, cfg)
		if len(vectors) == 0 {
			continue
		}

		sumSin, sumCos, sumMag := 0.0, 0.0, 0.0
		for _, v := range vectors {
			mag := math.Hypot(v.VX, v.VY)
			ang := math.Atan2(v.VY, v.VX)
			sumMag += mag
			sumSin += math.Sin(ang) * mag
			sumCos += math.Cos(ang) * mag
		}
		magnitudes = append(magnitudes, sumMag/float64(len(vectors)))
		if sumMag > 0 {
			angles = append(angles, math.Atan2(sumSin, sumCos))
		} else {
			angles = append(angles, 0)
		}

		if mid := len(vectors) / 2; len(sampled) < 8 {
			sampled = append(sampled, vectors[mid])
		}
	}

	if len(magnitudes) == 0 {
		return FlowResult{}
	}

	avgMag := mean(magnitudes)
	direction := circularMeanDeg(angles)
	return FlowResult{AvgSpeedPxFrame: avgMag, PrimaryDirectionDeg: direction, FlowVectors: sampled}
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func circularMeanDeg(anglesRad []float64) float64 {
	sumSin, sumCos := 0.0, 0.0
	for _, a := range anglesRad {
		sumSin += math.Sin(a)
		sumCos += math.Cos(a)
	}
	deg := math.Atan2(sumSin, sumCos) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}

// samplePoints builds the grid (dense) or gradient-filtered point set
// (sparse) that the block matcher tracks.
func samplePoints(g *grayFrame, cfg FlowConfig, algo Algorithm) []point {
	var candidates []point
	step := cfg.GridStep
	if step < 1 {
		step = 16
	}
	margin := cfg.SearchRadius + cfg.BlockHalf + 1
	for y := margin; y < g.H-margin; y += step {
		for x := margin; x < g.W-margin; x += step {
			candidates = append(candidates, point{X: x, Y: y})
		}
	}

	if algo != AlgorithmSparse {
		return candidates
	}

	// Sparse mode: keep only the highest-gradient ("corner-like") points,
	// capped at SparseMaxPts, reusing the same search/comparison machinery
	// with a cheaper point set.
	type scored struct {
		p point
		s float64
	}
	scoredPts := make([]scored, 0, len(candidates))
	for _, p := range candidates {
		scoredPts = append(scoredPts, scored{p: p, s: gradientMagnitude(g, p.X, p.Y)})
	}
	// simple selection sort for the top SparseMaxPts; point counts here are
	// small (grid-sampled), so O(n*k) is fine.
	max := cfg.SparseMaxPts
	if max <= 0 || max > len(scoredPts) {
		max = len(scoredPts)
	}
	result := make([]point, 0, max)
	for i := 0; i < max; i++ {
		bestIdx := -1
		bestScore := -1.0
		for j, sp := range scoredPts {
			if sp.s > bestScore {
				bestScore = sp.s
				bestIdx = j
			}
		}
		if bestIdx < 0 {
			break
		}
		result = append(result, scoredPts[bestIdx].p)
		scoredPts[bestIdx].s = -1
	}
	return result
}

func gradientMagnitude(g *grayFrame, x, y int) float64 {
	gx := g.at(x+1, y) - g.at(x-1, y)
	gy := g.at(x, y+1) - g.at(x, y-1)
	return math.Hypot(gx, gy)
}

func matchPoints(prev, next *grayFrame, points []point, cfg FlowConfig) []indicators.FlowVector {
	vectors := make([]indicators.FlowVector, 0, len(points))
	for _, p := range points {
		bestDX, bestDY := 0, 0
		bestSAD := math.Inf(1)
		for dy := -cfg.SearchRadius; dy <= cfg.SearchRadius; dy++ {
			for dx := -cfg.SearchRadius; dx <= cfg.SearchRadius; dx++ {
				sad := blockSAD(prev, next, p.X, p.Y, dx, dy, cfg.BlockHalf)
				if sad < bestSAD {
					bestSAD = sad
					bestDX, bestDY = dx, dy
				}
			}
		}
		if math.IsInf(bestSAD, 1) {
			continue
		}
		vectors = append(vectors, indicators.FlowVector{VX: float64(bestDX), VY: float64(bestDY)})
	}
	return vectors
}

func blockSAD(prev, next *grayFrame, cx, cy, dx, dy, half int) float64 {
	sad := 0.0
	for by := -half; by <= half; by++ {
		for bx := -half; bx <= half; bx++ {
			pv := prev.at(cx+bx, cy+by)
			nv := next.at(cx+bx+dx, cy+by+dy)
			if pv < 0 || nv < 0 {
				return math.Inf(1)
			}
			sad += math.Abs(pv - nv)
		}
	}
	return sad
}
