// Package smoothing implements the Smoothing Filter (C3): a per-indicator
// Kalman filter (with a sliding-window-average fallback) plus anomaly
// detection used to suppress advice for a few cycles after a sudden
// lighting change or detector glitch.
package smoothing

import "math"

// Config holds the filter's tunable parameters. Defaults match the
// original realtime smoothing implementation.
type Config struct {
	WindowSize             int
	UseKalman              bool
	AnomalyThreshold       float64 // std devs from history mean to flag an anomaly
	AnomalySuppressCycles  int
	ProcessNoise           float64 // Q
	MeasurementNoise       float64 // R
	InitialEstimateError   float64 // P0
}

// DefaultConfig returns the filter's stock tuning.
func DefaultConfig() Config {
	return Config{
		WindowSize:            3,
		UseKalman:             true,
		AnomalyThreshold:      2.0,
		AnomalySuppressCycles: 2,
		ProcessNoise:          0.01,
		MeasurementNoise:      0.1,
		InitialEstimateError:  1.0,
	}
}

// Indicators is the subset of realtime metrics the filter smooths.
type Indicators struct {
	MotionSmoothness   float64
	AvgSpeed           float64
	SpeedVariance      float64
	PrimaryDirectionDeg float64
	SubjectOccupancy   float64
	Confidence         float64
}

type kalmanState struct {
	estimate        float64
	errorCovariance float64
}

// Filter is a stateful per-session smoother. It is not safe for concurrent
// use; callers (one per realtime session) should own their own instance.
type Filter struct {
	cfg Config

	history  []Indicators
	kalman   map[string]*kalmanState
	countdown int
	initialized bool
}

// New builds a Filter. The zero Config uses DefaultConfig.
func New(cfg Config) *Filter {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	f := &Filter{
		cfg:    cfg,
		kalman: make(map[string]*kalmanState, 6),
	}
	for _, name := range kalmanFields {
		f.kalman[name] = &kalmanState{errorCovariance: cfg.InitialEstimateError}
	}
	return f
}

var kalmanFields = []string{
	"motion_smoothness", "avg_speed", "speed_variance",
	"primary_direction_deg", "subject_occupancy", "confidence",
}

// IsSuppressed reports whether advice generation should be withheld this
// cycle because an anomaly was recently detected.
func (f *Filter) IsSuppressed() bool {
	return f.countdown > 0
}

// Update applies smoothing to a new raw sample and returns the smoothed
// values. It must be called once per analysis cycle, in order.
func (f *Filter) Update(in Indicators) Indicators {
	if f.countdown > 0 {
		f.countdown--
	}
	if f.initialized && f.DetectAnomaly(in) {
		f.countdown = f.cfg.AnomalySuppressCycles
	}

	f.history = append(f.history, in)
	if len(f.history) > f.cfg.WindowSize {
		f.history = f.history[len(f.history)-f.cfg.WindowSize:]
	}

	var out Indicators
	if f.cfg.UseKalman {
		out = f.applyKalman(in)
	} else {
		out = f.applySlidingWindowAverage()
	}
	f.initialized = true
	return out
}

func (f *Filter) applyKalman(in Indicators) Indicators {
	q := f.cfg.ProcessNoise
	r := f.cfg.MeasurementNoise

	measurements := map[string]float64{
		"motion_smoothness":     in.MotionSmoothness,
		"avg_speed":             in.AvgSpeed,
		"speed_variance":        in.SpeedVariance,
		"primary_direction_deg": in.PrimaryDirectionDeg,
		"subject_occupancy":     in.SubjectOccupancy,
		"confidence":            in.Confidence,
	}

	smoothed := make(map[string]float64, 6)
	for _, name := range kalmanFields {
		state := f.kalman[name]
		measurement := measurements[name]

		if !f.initialized {
			state.estimate = measurement
			state.errorCovariance = f.cfg.InitialEstimateError
			smoothed[name] = measurement
			continue
		}

		xPred := state.estimate
		pPred := state.errorCovariance + q

		k := pPred / (pPred + r)
		state.estimate = xPred + k*(measurement-xPred)
		state.errorCovariance = (1 - k) * pPred

		smoothed[name] = state.estimate
	}

	return Indicators{
		MotionSmoothness:    smoothed["motion_smoothness"],
		AvgSpeed:            smoothed["avg_speed"],
		SpeedVariance:       smoothed["speed_variance"],
		PrimaryDirectionDeg: smoothed["primary_direction_deg"],
		SubjectOccupancy:    smoothed["subject_occupancy"],
		Confidence:          smoothed["confidence"],
	}
}

func (f *Filter) applySlidingWindowAverage() Indicators {
	n := float64(len(f.history))
	if n == 0 {
		return Indicators{}
	}

	var sumSmooth, sumSpeed, sumVar, sumOcc, sumConf, sumSin, sumCos float64
	for _, h := range f.history {
		sumSmooth += h.MotionSmoothness
		sumSpeed += h.AvgSpeed
		sumVar += h.SpeedVariance
		sumOcc += h.SubjectOccupancy
		sumConf += h.Confidence
		rad := h.PrimaryDirectionDeg * math.Pi / 180
		sumSin += math.Sin(rad)
		sumCos += math.Cos(rad)
	}

	avgDirection := math.Atan2(sumSin/n, sumCos/n) * 180 / math.Pi
	if avgDirection < 0 {
		avgDirection += 360
	}

	return Indicators{
		MotionSmoothness:    sumSmooth / n,
		AvgSpeed:            sumSpeed / n,
		SpeedVariance:       sumVar / n,
		PrimaryDirectionDeg: avgDirection,
		SubjectOccupancy:    sumOcc / n,
		Confidence:          sumConf / n,
	}
}

// DetectAnomaly flags a sample whose motion_smoothness or avg_speed
// deviates more than AnomalyThreshold standard deviations from recent
// history — e.g. a sudden lighting change confusing the detector.
func (f *Filter) DetectAnomaly(in Indicators) bool {
	if len(f.history) < 2 {
		return false
	}

	smoothMean, smoothStd := meanStd(extract(f.history, func(h Indicators) float64 { return h.MotionSmoothness }))
	speedMean, speedStd := meanStd(extract(f.history, func(h Indicators) float64 { return h.AvgSpeed }))

	smoothAnomalous := math.Abs(in.MotionSmoothness-smoothMean) > f.cfg.AnomalyThreshold*smoothStd
	speedAnomalous := math.Abs(in.AvgSpeed-speedMean) > f.cfg.AnomalyThreshold*speedStd

	return smoothAnomalous || speedAnomalous
}

func extract(history []Indicators, get func(Indicators) float64) []float64 {
	out := make([]float64, len(history))
	for i, h := range history {
		out[i] = get(h)
	}
	return out
}

// meanStd computes the sample mean and standard deviation (n-1 divisor),
// substituting a floor of 0.001 to avoid division by zero downstream.
func meanStd(values []float64) (float64, float64) {
	n := float64(len(values))
	if n == 0 {
		return 0, 0.001
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / n
	if n <= 1 {
		return mean, 0.001
	}
	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= n - 1
	std := math.Sqrt(variance)
	if std <= 0 {
		std = 0.001
	}
	return mean, std
}

// Reset clears all filter state, including Kalman estimates and history.
func (f *Filter) Reset() {
	f.history = nil
	f.countdown = 0
	f.initialized = false
	for _, name := range kalmanFields {
		f.kalman[name] = &kalmanState{errorCovariance: f.cfg.InitialEstimateError}
	}
}

// VarianceReduction reports the ratio of smoothed to raw variance of
// motion_smoothness (< 1 means the filter is reducing noise). The raw
// variance is taken over the current window; the smoothed variance is the
// Kalman estimate's error covariance, or for the sliding window the raw
// variance divided by the window length. Returns false if there isn't
// enough history yet.
func (f *Filter) VarianceReduction() (float64, bool) {
	if len(f.history) < 3 {
		return 0, false
	}
	values := extract(f.history, func(h Indicators) float64 { return h.MotionSmoothness })
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	inputVariance := 0.0
	for _, v := range values {
		d := v - mean
		inputVariance += d * d
	}
	inputVariance /= float64(len(values))

	if inputVariance == 0 {
		return 1.0, true
	}

	var outputVariance float64
	if f.cfg.UseKalman {
		outputVariance = f.kalman["motion_smoothness"].errorCovariance
	} else {
		outputVariance = inputVariance / float64(len(f.history))
	}

	return outputVariance / inputVariance, true
}
