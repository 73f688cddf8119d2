// Package metrics folds per-frame samples into rolling averages, alerts and a
// composite eye-strain score.
package metrics

import (
	"time"

	"eyemonitor/go-backend/internal/vision"
)

// Sample is the record emitted for every analyzed frame with a face.
type Sample struct {
	Timestamp  time.Time    `json:"timestamp"`
	BlinkRate  float64      `json:"blink_rate"`
	DistanceCm float64      `json:"distance_cm"`
	EyeCenter  vision.Point `json:"eye_center"`
}

type Alerts struct {
	LowBlinkRate     bool `json:"low_blink_rate"`
	TooCloseToScreen bool `json:"too_close_to_screen"`
	PoorPosture      bool `json:"poor_posture"`
}

func (a Alerts) Any() bool {
	return a.LowBlinkRate || a.TooCloseToScreen || a.PoorPosture
}

type DailyStats struct {
	AverageBlinkRate       float64 `json:"average_blink_rate"`
	AverageDistance        float64 `json:"average_distance"`
	TotalScreenTimeMinutes int     `json:"total_screen_time_minutes"`
	EyeStrainScore         int     `json:"eye_strain_score"`
}

type Averages struct {
	BlinkRate float64 `json:"blink_rate"`
	Distance  float64 `json:"distance"`
}

// Baseline averages reported before any sample has been seen.
const (
	BaselineBlinkRate = 16.0
	BaselineDistance  = 50.0
)

// Thresholds configure the aggregator. Zero values are not valid; start from
// DefaultThresholds.
type Thresholds struct {
	HistoryCapacity int
	Window          int

	LowBlinkRate        float64
	TooCloseCm          float64
	PostureDistanceCm   float64
	PostureBlinkRate    float64
	ScoreBlinkRate      float64
	ScoreDistanceCm     float64
	ScreenTimeLimitMins int
	BlinkRatePenalty    int
	DistancePenalty     int
	ScreenTimePenalty   int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		HistoryCapacity:     100,
		Window:              10,
		LowBlinkRate:        12,
		TooCloseCm:          40,
		PostureDistanceCm:   35,
		PostureBlinkRate:    10,
		ScoreBlinkRate:      15,
		ScoreDistanceCm:     40,
		ScreenTimeLimitMins: 480,
		BlinkRatePenalty:    30,
		DistancePenalty:     25,
		ScreenTimePenalty:   20,
	}
}

// Average computes the mean blink rate and distance of samples. An empty slice
// yields the baseline.
func Average(samples []Sample) Averages {
	if len(samples) == 0 {
		return Averages{BlinkRate: BaselineBlinkRate, Distance: BaselineDistance}
	}
	var a Averages
	for _, s := range samples {
		a.BlinkRate += s.BlinkRate
		a.Distance += s.DistanceCm
	}
	n := float64(len(samples))
	a.BlinkRate /= n
	a.Distance /= n
	return a
}

func DeriveAlerts(t Thresholds, avg Averages) Alerts {
	return Alerts{
		LowBlinkRate:     avg.BlinkRate < t.LowBlinkRate,
		TooCloseToScreen: avg.Distance < t.TooCloseCm,
		PoorPosture:      avg.Distance < t.PostureDistanceCm || avg.BlinkRate < t.PostureBlinkRate,
	}
}

// StrainScore is 100 minus penalties for low blinking, sitting close and long
// screen time, floored at 0 and capped at 100.
func StrainScore(t Thresholds, avg Averages, screenMinutes int) int {
	score := 100
	if avg.BlinkRate < t.ScoreBlinkRate {
		score -= t.BlinkRatePenalty
	}
	if avg.Distance < t.ScoreDistanceCm {
		score -= t.DistancePenalty
	}
	if screenMinutes > t.ScreenTimeLimitMins {
		score -= t.ScreenTimePenalty
	}
	return max(0, min(100, score))
}

// Aggregator owns the sample history. It is not safe for concurrent use; the
// session tracker serializes access.
type Aggregator struct {
	th      Thresholds
	history *History
}

func NewAggregator(t Thresholds) *Aggregator {
	return &Aggregator{th: t, history: NewHistory(t.HistoryCapacity)}
}

func (a *Aggregator) Thresholds() Thresholds { return a.th }

func (a *Aggregator) Add(s Sample) {
	a.history.Add(s)
}

func (a *Aggregator) Reset() {
	a.history.Clear()
}

func (a *Aggregator) Len() int { return a.history.Len() }

// History returns a copy of the retained samples, oldest first.
func (a *Aggregator) History() []Sample {
	return a.history.All()
}

func (a *Aggregator) Averages() Averages {
	return Average(a.history.Last(a.th.Window))
}

func (a *Aggregator) Alerts() Alerts {
	return DeriveAlerts(a.th, a.Averages())
}

func (a *Aggregator) Stats(screenMinutes int) DailyStats {
	avg := a.Averages()
	return DailyStats{
		AverageBlinkRate:       avg.BlinkRate,
		AverageDistance:        avg.Distance,
		TotalScreenTimeMinutes: screenMinutes,
		EyeStrainScore:         StrainScore(a.th, avg, screenMinutes),
	}
}
