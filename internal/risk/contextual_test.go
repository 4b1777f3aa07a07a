package risk

import (
	"testing"

	"github.com/fractalauth/fractalauth/internal/credential"
)

func quietRecord() credential.Record {
	return credential.Record{
		Identity:         "alice",
		RegisteredOrigin: "10.0.0.5",
		RegisteredAgent:  "browser/1.0",
	}
}

func TestScoreContextAllQuiet(t *testing.T) {
	score, logs := ScoreContext(quietRecord(), "10.0.0.5", "browser/1.0", 12)
	if score != 0 {
		t.Fatalf("expected 0 contextual risk, got %d", score)
	}
	if len(logs) != 5 {
		t.Fatalf("expected 5 signal entries, got %d", len(logs))
	}
	for _, entry := range logs {
		if entry.Level != LevelOK {
			t.Fatalf("expected OK entries, got %s: %s", entry.Level, entry.Message)
		}
	}
}

func TestScoreContextOriginAndSubnetChange(t *testing.T) {
	score, _ := ScoreContext(quietRecord(), "10.0.1.9", "browser/1.0", 12)
	// +15 origin changed, +10 subnet prefix differs.
	if score != 25 {
		t.Fatalf("expected 25 for origin+subnet change, got %d", score)
	}
}

func TestScoreContextOriginChangeSameSubnet(t *testing.T) {
	score, _ := ScoreContext(quietRecord(), "10.0.0.9", "browser/1.0", 12)
	if score != 15 {
		t.Fatalf("expected 15 for origin change within subnet, got %d", score)
	}
}

func TestScoreContextFailedAttempts(t *testing.T) {
	rec := quietRecord()

	rec.FailedAttempts = 1
	if score, _ := ScoreContext(rec, "10.0.0.5", "browser/1.0", 12); score != 15 {
		t.Fatalf("expected 15 for a single prior failure, got %d", score)
	}

	rec.FailedAttempts = 3
	score, logs := ScoreContext(rec, "10.0.0.5", "browser/1.0", 12)
	if score != 35 {
		t.Fatalf("expected 35 for three prior failures, got %d", score)
	}
	var sawRisk bool
	for _, entry := range logs {
		if entry.Level == LevelRisk {
			sawRisk = true
		}
	}
	if !sawRisk {
		t.Fatalf("expected a RISK level entry for repeated failures")
	}
}

func TestScoreContextUnusualHour(t *testing.T) {
	for _, hour := range []int{0, 4, 23} {
		if score, _ := ScoreContext(quietRecord(), "10.0.0.5", "browser/1.0", hour); score != 20 {
			t.Fatalf("expected 20 at hour %d, got %d", hour, score)
		}
	}
	for _, hour := range []int{5, 12, 22} {
		if score, _ := ScoreContext(quietRecord(), "10.0.0.5", "browser/1.0", hour); score != 0 {
			t.Fatalf("expected 0 at hour %d, got %d", hour, score)
		}
	}
}

func TestScoreContextAgentSignals(t *testing.T) {
	rec := quietRecord()
	if score, _ := ScoreContext(rec, "10.0.0.5", "browser/2.0", 12); score != 20 {
		t.Fatalf("expected 20 for changed fingerprint, got %d", score)
	}

	rec.RegisteredAgent = ""
	if score, _ := ScoreContext(rec, "10.0.0.5", "browser/1.0", 12); score != 5 {
		t.Fatalf("expected 5 without a stored fingerprint, got %d", score)
	}
}

func TestScoreContextFullAnomalyCapped(t *testing.T) {
	rec := quietRecord()
	rec.FailedAttempts = 5
	score, _ := ScoreContext(rec, "192.168.7.7", "browser/2.0", 3)
	// 20+35+20+15+10 lands exactly on the cap.
	if score != 100 {
		t.Fatalf("expected 100, got %d", score)
	}
}
