package risk

import (
	"fmt"
	"math"

	"github.com/fractalauth/fractalauth/internal/credential"
)

// Signal weights. They sum to 1.0 so the total stays on the 0..100 scale.
const (
	weightMouseSpeed  = 0.25
	weightPause       = 0.25
	weightFractalTime = 0.30
	weightClickCount  = 0.20

	// noBaselineRisk is assumed for a signal with no stored reference value.
	noBaselineRisk = 10

	// warnDeviationPct marks the per-signal risk above which the audit entry
	// escalates from OK to WARN.
	warnDeviationPct = 40

	epsilon = 1e-9

	// defaultPauseMs stands in for pause telemetry when no samples arrived:
	// no data, assume typical idle.
	defaultPauseMs = 1000
)

// ScoreBehavior compares live session telemetry against the registration
// baseline and returns a 0..100 risk percentage plus the audit trail. It is a
// pure function; failure bookkeeping belongs to the caller.
func ScoreBehavior(baseline *credential.Baseline, sample BehaviorSample) (int, []LogEntry) {
	var (
		logs  []LogEntry
		total float64
	)

	signal := func(current, reference, weight float64, label string) {
		if reference > 0 {
			deviation := math.Abs(current-reference) / (reference + epsilon)
			pct := math.Min(100, deviation*100)
			total += pct * weight
			level := LevelOK
			if pct > warnDeviationPct {
				level = LevelWarn
			}
			logs = append(logs, LogEntry{
				Level:   level,
				Message: fmt.Sprintf("%s: deviation %.1f%% (now=%.3f | reg=%.3f)", label, pct, current, reference),
			})
			return
		}
		total += noBaselineRisk * weight
		logs = append(logs, LogEntry{
			Level:   LevelInfo,
			Message: fmt.Sprintf("%s: no baseline - assuming low risk", label),
		})
	}

	currentSpeed := mean(sample.MouseSpeeds)
	currentPause := float64(defaultPauseMs)
	if len(sample.PauseDurations) > 0 {
		currentPause = mean(sample.PauseDurations)
	}

	var ref credential.Baseline
	if baseline != nil {
		ref = *baseline
	}

	signal(currentSpeed, ref.AvgMouseSpeed, weightMouseSpeed, "Mouse speed")
	signal(currentPause, ref.AvgPauseMs, weightPause, "Pause duration")
	signal(sample.FractalTimeMs, ref.FractalTimeMs, weightFractalTime, "Fractal time")
	signal(float64(sample.ClickCount), float64(ref.ClickCount), weightClickCount, "Click count")

	return int(math.Min(100, math.Round(total))), logs
}
