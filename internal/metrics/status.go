package metrics

import (
	"sort"
	"time"
)

type Status string

const (
	StatusGood     Status = "good"
	StatusLow      Status = "low"
	StatusCritical Status = "critical"
	StatusFair     Status = "fair"
	StatusTooClose Status = "too_close"
)

// BlinkRateStatus grades a blinks-per-minute value against the healthy 15-20 band.
func BlinkRateStatus(rate float64) Status {
	switch {
	case rate >= 15 && rate <= 20:
		return StatusGood
	case rate >= 12 && rate < 15:
		return StatusLow
	default:
		return StatusCritical
	}
}

func DistanceStatus(cm float64) Status {
	switch {
	case cm >= 50:
		return StatusGood
	case cm >= 40:
		return StatusFair
	default:
		return StatusTooClose
	}
}

type HourlyRate struct {
	Hour      int     `json:"hour"`
	BlinkRate float64 `json:"blink_rate"`
	Samples   int     `json:"samples"`
}

// HourlyBlinkRates groups samples by hour of day in loc and averages the blink
// rate of each hour, sorted by hour.
func HourlyBlinkRates(samples []Sample, loc *time.Location) []HourlyRate {
	if loc == nil {
		loc = time.Local
	}
	sums := map[int]*HourlyRate{}
	for _, s := range samples {
		h := s.Timestamp.In(loc).Hour()
		r, ok := sums[h]
		if !ok {
			r = &HourlyRate{Hour: h}
			sums[h] = r
		}
		r.BlinkRate += s.BlinkRate
		r.Samples++
	}

	out := make([]HourlyRate, 0, len(sums))
	for _, r := range sums {
		r.BlinkRate /= float64(r.Samples)
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour < out[j].Hour })
	return out
}
