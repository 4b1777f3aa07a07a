// Package risk scores login sessions against stored baselines and contextual
// signals, and fuses the results into a composite score that drives step-up
// challenge difficulty.
package risk

// Level classifies an audit log entry by severity.
type Level string

const (
	LevelOK   Level = "OK"
	LevelInfo Level = "INFO"
	LevelWarn Level = "WARN"
	LevelRisk Level = "RISK"
)

// LogEntry is one line of the human-readable audit trail returned alongside a
// risk score. Entries never contain raw secrets.
type LogEntry struct {
	Level   Level  `json:"level"`
	Message string `json:"msg"`
}

// BehaviorSample carries the numeric telemetry summaries captured by the
// client during a session. The capture mechanism is external; only the
// resulting numbers enter the engine.
type BehaviorSample struct {
	MouseSpeeds     []float64 `json:"mouse_speeds"`
	PauseDurations  []float64 `json:"pause_durations"`
	ClickCount      int       `json:"click_count"`
	ZoomCount       int       `json:"zoom_count"`
	FractalTimeMs   float64   `json:"fractal_time_ms"`
	ActionIntervals []float64 `json:"action_intervals"`
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
