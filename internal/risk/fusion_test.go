package risk

import "testing"

func TestFuseCompositeIsRoundedAverage(t *testing.T) {
	cases := []struct {
		behavioral, contextual, want int
	}{
		{0, 0, 0},
		{10, 20, 15},
		{35, 44, 40},
		{100, 100, 100},
		{33, 0, 17},
	}
	for _, tc := range cases {
		composite, _, _ := Fuse(tc.behavioral, tc.contextual)
		if composite != tc.want {
			t.Fatalf("Fuse(%d, %d) composite = %d, want %d", tc.behavioral, tc.contextual, composite, tc.want)
		}
	}
}

func TestFuseTierBoundaries(t *testing.T) {
	cases := []struct {
		composite int
		want      Tier
	}{
		{0, TierLow},
		{29, TierLow},
		{30, TierMedium},
		{59, TierMedium},
		{60, TierHigh},
		{100, TierHigh},
	}
	for _, tc := range cases {
		_, tier, _ := Fuse(tc.composite, tc.composite)
		if tier != tc.want {
			t.Fatalf("composite %d: tier = %s, want %s", tc.composite, tier, tc.want)
		}
	}
}

func TestFuseDifficultyThreshold(t *testing.T) {
	for _, composite := range []int{0, 20, 39} {
		if _, _, d := Fuse(composite, composite); d != DifficultyEasy {
			t.Fatalf("composite %d: expected easy, got %s", composite, d)
		}
	}
	for _, composite := range []int{40, 55, 90} {
		if _, _, d := Fuse(composite, composite); d != DifficultyHard {
			t.Fatalf("composite %d: expected hard, got %s", composite, d)
		}
	}
}

func TestDeriveBaselineDefaults(t *testing.T) {
	baseline := DeriveBaseline(BehaviorSample{FractalTimeMs: 5000, ClickCount: 3, ZoomCount: 1})
	if baseline.AvgMouseSpeed != 0 {
		t.Fatalf("expected 0 speed without samples, got %f", baseline.AvgMouseSpeed)
	}
	if baseline.AvgPauseMs != 1000 {
		t.Fatalf("expected default 1000ms pause, got %f", baseline.AvgPauseMs)
	}
	if baseline.FractalTimeMs != 5000 || baseline.ClickCount != 3 || baseline.ZoomCount != 1 {
		t.Fatalf("unexpected baseline: %+v", baseline)
	}
}

func TestDeriveBaselineMeans(t *testing.T) {
	baseline := DeriveBaseline(BehaviorSample{
		MouseSpeeds:    []float64{0.2, 0.4},
		PauseDurations: []float64{800, 1200},
	})
	if baseline.AvgMouseSpeed != 0.3 {
		t.Fatalf("expected mean speed 0.3, got %f", baseline.AvgMouseSpeed)
	}
	if baseline.AvgPauseMs != 1000 {
		t.Fatalf("expected mean pause 1000, got %f", baseline.AvgPauseMs)
	}
}
