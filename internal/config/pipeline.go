package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"eyemonitor/go-backend/internal/blink"
	"eyemonitor/go-backend/internal/metrics"
	"eyemonitor/go-backend/internal/vision"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Pipeline holds every tunable threshold of the frame analysis and
// aggregation stages.
type Pipeline struct {
	Skin   SkinConfig   `yaml:"skin"`
	Edges  EdgeConfig   `yaml:"edges"`
	Blink  BlinkConfig  `yaml:"blink"`
	Alerts AlertConfig  `yaml:"alerts"`
	Score  ScoreConfig  `yaml:"score"`
	Window WindowConfig `yaml:"window"`
}

type SkinConfig struct {
	MinLuma   float64 `yaml:"min_luma"`
	CbMin     float64 `yaml:"cb_min"`
	CbMax     float64 `yaml:"cb_max"`
	CrMin     float64 `yaml:"cr_min"`
	CrMax     float64 `yaml:"cr_max"`
	MinPixels int     `yaml:"min_pixels"`
	MinAspect float64 `yaml:"min_aspect"`
	MaxAspect float64 `yaml:"max_aspect"`
}

type EdgeConfig struct {
	Enabled      bool    `yaml:"enabled"`
	MinMagnitude float64 `yaml:"min_magnitude"`
	BandFraction float64 `yaml:"band_fraction"`
	MinPixels    int     `yaml:"min_pixels"`
	MergeOverlap float64 `yaml:"merge_overlap"`
}

type BlinkConfig struct {
	Threshold     float64       `yaml:"threshold"`
	ConfirmFrames int           `yaml:"confirm_frames"`
	MinDuration   time.Duration `yaml:"min_duration"`
	MaxDuration   time.Duration `yaml:"max_duration"`
}

type AlertConfig struct {
	LowBlinkRate      float64 `yaml:"low_blink_rate"`
	TooCloseCm        float64 `yaml:"too_close_cm"`
	PostureDistanceCm float64 `yaml:"posture_distance_cm"`
	PostureBlinkRate  float64 `yaml:"posture_blink_rate"`
}

type ScoreConfig struct {
	BlinkRate           float64 `yaml:"blink_rate"`
	DistanceCm          float64 `yaml:"distance_cm"`
	ScreenTimeLimitMins int     `yaml:"screen_time_limit_mins"`
	BlinkRatePenalty    int     `yaml:"blink_rate_penalty"`
	DistancePenalty     int     `yaml:"distance_penalty"`
	ScreenTimePenalty   int     `yaml:"screen_time_penalty"`
}

type WindowConfig struct {
	HistoryCapacity int `yaml:"history_capacity"`
	Averaging       int `yaml:"averaging"`
}

func DefaultPipeline() Pipeline {
	skin := vision.DefaultSkinParams()
	edges := vision.DefaultEdgeParams()
	bp := blink.DefaultParams()
	th := metrics.DefaultThresholds()

	return Pipeline{
		Skin: SkinConfig{
			MinLuma:   skin.MinLuma,
			CbMin:     skin.CbMin,
			CbMax:     skin.CbMax,
			CrMin:     skin.CrMin,
			CrMax:     skin.CrMax,
			MinPixels: skin.MinPixels,
			MinAspect: skin.MinAspect,
			MaxAspect: skin.MaxAspect,
		},
		Edges: EdgeConfig{
			MinMagnitude: edges.MinMagnitude,
			BandFraction: edges.BandFraction,
			MinPixels:    edges.MinPixels,
			MergeOverlap: vision.DefaultMergeOverlap,
		},
		Blink: BlinkConfig{
			Threshold:     bp.Threshold,
			ConfirmFrames: bp.ConfirmFrames,
			MinDuration:   bp.MinDuration,
			MaxDuration:   bp.MaxDuration,
		},
		Alerts: AlertConfig{
			LowBlinkRate:      th.LowBlinkRate,
			TooCloseCm:        th.TooCloseCm,
			PostureDistanceCm: th.PostureDistanceCm,
			PostureBlinkRate:  th.PostureBlinkRate,
		},
		Score: ScoreConfig{
			BlinkRate:           th.ScoreBlinkRate,
			DistanceCm:          th.ScoreDistanceCm,
			ScreenTimeLimitMins: th.ScreenTimeLimitMins,
			BlinkRatePenalty:    th.BlinkRatePenalty,
			DistancePenalty:     th.DistancePenalty,
			ScreenTimePenalty:   th.ScreenTimePenalty,
		},
		Window: WindowConfig{
			HistoryCapacity: th.HistoryCapacity,
			Averaging:       th.Window,
		},
	}
}

// LoadPipelineFile overlays the YAML file at path onto base. Keys missing from
// the file keep their base value.
func LoadPipelineFile(path string, base Pipeline) (Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read pipeline config: %w", err)
	}
	p := base
	if err := yaml.Unmarshal(data, &p); err != nil {
		return base, fmt.Errorf("failed to parse pipeline config: %w", err)
	}
	return p, nil
}

func pipelineFromEnv(p Pipeline) (Pipeline, error) {
	var env pipelineEnv
	p.Edges.Enabled = env.bool("PIPELINE_EDGE_DETECTOR", p.Edges.Enabled)
	p.Blink.Threshold = env.float("PIPELINE_BLINK_THRESHOLD", p.Blink.Threshold)
	p.Blink.ConfirmFrames = env.int("PIPELINE_CONFIRM_FRAMES", p.Blink.ConfirmFrames)
	p.Blink.MinDuration = env.duration("PIPELINE_BLINK_MIN_DURATION", p.Blink.MinDuration)
	p.Blink.MaxDuration = env.duration("PIPELINE_BLINK_MAX_DURATION", p.Blink.MaxDuration)
	p.Alerts.LowBlinkRate = env.float("PIPELINE_LOW_BLINK_RATE", p.Alerts.LowBlinkRate)
	p.Alerts.TooCloseCm = env.float("PIPELINE_TOO_CLOSE_CM", p.Alerts.TooCloseCm)
	p.Score.ScreenTimeLimitMins = env.int("PIPELINE_SCREEN_TIME_LIMIT", p.Score.ScreenTimeLimitMins)
	p.Window.HistoryCapacity = env.int("PIPELINE_HISTORY_CAPACITY", p.Window.HistoryCapacity)
	p.Window.Averaging = env.int("PIPELINE_WINDOW", p.Window.Averaging)
	return p, env.err
}

// pipelineEnv reads PIPELINE_* overrides. Unlike the service settings, a
// malformed value is an error rather than a silent fallback; the first one is
// kept in err.
type pipelineEnv struct {
	err error
}

func (e *pipelineEnv) lookup(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != "" && e.err == nil
}

func (e *pipelineEnv) fail(key, v string, err error) {
	e.err = fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, key, v, err)
}

func (e *pipelineEnv) int(key string, def int) int {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return n
}

func (e *pipelineEnv) float(key string, def float64) float64 {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return f
}

func (e *pipelineEnv) bool(key string, def bool) bool {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return b
}

func (e *pipelineEnv) duration(key string, def time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return d
}

// Validate rejects thresholds the pipeline cannot run with.
func (p Pipeline) Validate() error {
	switch {
	case p.Skin.MinLuma < 0 || p.Skin.MinLuma > 255:
		return invalid("skin.min_luma %v outside [0, 255]", p.Skin.MinLuma)
	case p.Skin.MinPixels < 1:
		return invalid("skin.min_pixels must be at least 1")
	case p.Skin.CbMin > p.Skin.CbMax || p.Skin.CrMin > p.Skin.CrMax:
		return invalid("skin chroma bands are inverted")
	case p.Skin.MinAspect <= 0 || p.Skin.MinAspect > p.Skin.MaxAspect:
		return invalid("skin aspect range [%v, %v]", p.Skin.MinAspect, p.Skin.MaxAspect)
	case p.Edges.MinMagnitude < 0:
		return invalid("edges.min_magnitude %v is negative", p.Edges.MinMagnitude)
	case p.Edges.MinPixels < 1:
		return invalid("edges.min_pixels must be at least 1")
	case p.Edges.BandFraction <= 0 || p.Edges.BandFraction > 1:
		return invalid("edges.band_fraction %v outside (0, 1]", p.Edges.BandFraction)
	case p.Edges.MergeOverlap < 0 || p.Edges.MergeOverlap > 1:
		return invalid("edges.merge_overlap %v outside [0, 1]", p.Edges.MergeOverlap)
	case p.Blink.Threshold <= 0 || p.Blink.Threshold >= 1:
		return invalid("blink.threshold %v outside (0, 1)", p.Blink.Threshold)
	case p.Blink.ConfirmFrames < 1:
		return invalid("blink.confirm_frames must be at least 1")
	case p.Blink.MinDuration < 0 || p.Blink.MinDuration > p.Blink.MaxDuration:
		return invalid("blink duration range [%v, %v]", p.Blink.MinDuration, p.Blink.MaxDuration)
	case p.Alerts.LowBlinkRate < 0 || p.Alerts.PostureBlinkRate < 0:
		return invalid("alert blink rates must not be negative")
	case p.Alerts.TooCloseCm < 0 || p.Alerts.PostureDistanceCm < 0:
		return invalid("alert distances must not be negative")
	case p.Score.BlinkRate < 0 || p.Score.DistanceCm < 0:
		return invalid("score thresholds must not be negative")
	case p.Score.ScreenTimeLimitMins < 0:
		return invalid("score.screen_time_limit_mins %d is negative", p.Score.ScreenTimeLimitMins)
	case p.Score.BlinkRatePenalty < 0 || p.Score.DistancePenalty < 0 || p.Score.ScreenTimePenalty < 0:
		return invalid("score penalties must not be negative")
	case p.Window.HistoryCapacity < 1:
		return invalid("window.history_capacity must be at least 1")
	case p.Window.Averaging < 1 || p.Window.Averaging > p.Window.HistoryCapacity:
		return invalid("window.averaging %d outside [1, %d]", p.Window.Averaging, p.Window.HistoryCapacity)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)
}

func (p Pipeline) SkinParams() vision.SkinParams {
	return vision.SkinParams{
		MinLuma:   p.Skin.MinLuma,
		CbMin:     p.Skin.CbMin,
		CbMax:     p.Skin.CbMax,
		CrMin:     p.Skin.CrMin,
		CrMax:     p.Skin.CrMax,
		MinPixels: p.Skin.MinPixels,
		MinAspect: p.Skin.MinAspect,
		MaxAspect: p.Skin.MaxAspect,
	}
}

// EdgeParams shares the skin aspect gate.
func (p Pipeline) EdgeParams() vision.EdgeParams {
	return vision.EdgeParams{
		MinMagnitude: p.Edges.MinMagnitude,
		BandFraction: p.Edges.BandFraction,
		MinPixels:    p.Edges.MinPixels,
		MinAspect:    p.Skin.MinAspect,
		MaxAspect:    p.Skin.MaxAspect,
	}
}

func (p Pipeline) Locator() vision.Locator {
	l := vision.NewLocator(p.SkinParams(), p.EdgeParams(), p.Edges.Enabled)
	l.MergeOverlap = p.Edges.MergeOverlap
	return l
}

func (p Pipeline) BlinkParams() blink.Params {
	return blink.Params{
		Threshold:     p.Blink.Threshold,
		ConfirmFrames: p.Blink.ConfirmFrames,
		MinDuration:   p.Blink.MinDuration,
		MaxDuration:   p.Blink.MaxDuration,
	}
}

func (p Pipeline) Thresholds() metrics.Thresholds {
	return metrics.Thresholds{
		HistoryCapacity:     p.Window.HistoryCapacity,
		Window:              p.Window.Averaging,
		LowBlinkRate:        p.Alerts.LowBlinkRate,
		TooCloseCm:          p.Alerts.TooCloseCm,
		PostureDistanceCm:   p.Alerts.PostureDistanceCm,
		PostureBlinkRate:    p.Alerts.PostureBlinkRate,
		ScoreBlinkRate:      p.Score.BlinkRate,
		ScoreDistanceCm:     p.Score.DistanceCm,
		ScreenTimeLimitMins: p.Score.ScreenTimeLimitMins,
		BlinkRatePenalty:    p.Score.BlinkRatePenalty,
		DistancePenalty:     p.Score.DistancePenalty,
		ScreenTimePenalty:   p.Score.ScreenTimePenalty,
	}
}
