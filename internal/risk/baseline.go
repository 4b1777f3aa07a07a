package risk

import "github.com/fractalauth/fractalauth/internal/credential"

// DeriveBaseline reduces registration telemetry to the stored reference
// profile. The same empty-sample defaults apply as in live scoring, so a
// baseline captured without telemetry compares neutrally later.
func DeriveBaseline(sample BehaviorSample) credential.Baseline {
	pause := float64(defaultPauseMs)
	if len(sample.PauseDurations) > 0 {
		pause = mean(sample.PauseDurations)
	}
	return credential.Baseline{
		AvgMouseSpeed: mean(sample.MouseSpeeds),
		AvgPauseMs:    pause,
		FractalTimeMs: sample.FractalTimeMs,
		ClickCount:    sample.ClickCount,
		ZoomCount:     sample.ZoomCount,
	}
}
