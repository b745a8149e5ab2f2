package realtime

import (
	"image"
	"math"
)

// EnvironmentFeatures are per-frame lighting/composition signals computed
// from the single most recent frame in a buffer, matching the original's
// best-effort-with-neutral-fallback contract.
type EnvironmentFeatures struct {
	Brightness      float64
	Contrast        float64
	Sharpness       float64
	Saturation      float64
	DominantLight   string // "warm" | "cool" | "neutral"
	CompositionScore float64
}

func neutralEnvironment() EnvironmentFeatures {
	return EnvironmentFeatures{Brightness: 0.5, Contrast: 0.5, Sharpness: 0.5, Saturation: 0.5, DominantLight: "neutral", CompositionScore: 0.5}
}

// computeEnvironment derives lighting and composition signals from one
// frame. Errors never propagate here (there are none to have, decoding
// already happened) — an empty frame just falls back to neutral values,
// mirroring the original's try/except-neutral pattern.
func computeEnvironment(img image.Image) EnvironmentFeatures {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return neutralEnvironment()
	}

	gray := toGray(img)

	var sumGray, sumR, sumG, sumB, sumS float64
	n := float64(w * h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			r8, g8, b8 := float64(r>>8), float64(g>>8), float64(bl>>8)
			sumR += r8
			sumG += g8
			sumB += b8
			sumGray += gray.at(x, y)
			sumS += saturationOf(r8, g8, b8)
		}
	}
	meanGray := sumGray / n

	var varGray float64
	for _, v := range gray.Pix {
		d := v - meanGray
		varGray += d * d
	}
	varGray /= n
	stdGray := math.Sqrt(varGray)
	contrast := math.Min(stdGray/(meanGray+1e-6)*2.0, 1.0)

	sharpness := math.Min(laplacianVariance(gray)/500.0, 1.0)

	brightness := meanGray / 255.0
	saturation := sumS / n / 255.0

	tempRatio := (sumR/n + 0.5*sumG/n) / (sumB/n + 1e-6)
	dominantLight := "neutral"
	switch {
	case tempRatio > 1.3:
		dominantLight = "warm"
	case tempRatio < 0.8:
		dominantLight = "cool"
	}

	return EnvironmentFeatures{
		Brightness:       clamp01(brightness),
		Contrast:         clamp01(contrast),
		Sharpness:        clamp01(sharpness),
		Saturation:       clamp01(saturation),
		DominantLight:    dominantLight,
		CompositionScore: compositionScore(gray),
	}
}

func saturationOf(r, g, b float64) float64 {
	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	if max == 0 {
		return 0
	}
	return (max - min) / max * 255
}

func laplacianVariance(g *grayFrame) float64 {
	var values []float64
	for y := 1; y < g.H-1; y++ {
		for x := 1; x < g.W-1; x++ {
			lap := -4*g.at(x, y) + g.at(x-1, y) + g.at(x+1, y) + g.at(x, y-1) + g.at(x, y+1)
			values = append(values, lap)
		}
	}
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var variance float64
	for _, v := range values {
		d := v - m
		variance += d * d
	}
	return variance / float64(len(values))
}

// compositionScore approximates rule-of-thirds visual interest via local
// histogram entropy at the four intersection points, matching the
// original's entropy-at-thirds-points heuristic.
func compositionScore(g *grayFrame) float64 {
	thirdH, thirdW := g.H/3, g.W/3
	if thirdH == 0 || thirdW == 0 {
		return 0.5
	}
	points := []point{
		{X: thirdW, Y: thirdH},
		{X: 2 * thirdW, Y: thirdH},
		{X: thirdW, Y: 2 * thirdH},
		{X: 2 * thirdW, Y: 2 * thirdH},
	}
	windowSize := minInt(32, minInt(thirdH/2, thirdW/2))
	if windowSize <= 0 {
		return 0.5
	}

	var entropies []float64
	for _, p := range points {
		if p.Y < windowSize || p.X < windowSize || p.Y >= g.H-windowSize || p.X >= g.W-windowSize {
			continue
		}
		entropies = append(entropies, localEntropy(g, p.X, p.Y, windowSize))
	}
	if len(entropies) == 0 {
		return 0.5
	}
	return math.Min(mean(entropies)/4.0, 1.0)
}

func localEntropy(g *grayFrame, cx, cy, half int) float64 {
	var hist [32]float64
	n := 0.0
	for y := cy - half; y < cy+half; y++ {
		for x := cx - half; x < cx+half; x++ {
			v := g.at(x, y)
			if v < 0 {
				continue
			}
			bucket := int(v) * 32 / 256
			if bucket >= 32 {
				bucket = 31
			}
			hist[bucket]++
			n++
		}
	}
	if n == 0 {
		return 0
	}
	entropy := 0.0
	for _, c := range hist {
		p := c / n
		if p > 0 {
			entropy -= p * math.Log2(p+1e-6)
		}
	}
	return entropy
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
