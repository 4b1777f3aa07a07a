package authflow

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/fractalauth/fractalauth/internal/credential"
	"github.com/fractalauth/fractalauth/internal/logging"
	"github.com/fractalauth/fractalauth/internal/puzzle"
	"github.com/fractalauth/fractalauth/internal/risk"
	"github.com/fractalauth/fractalauth/internal/session"
)

var registeredMarkers = []credential.Marker{
	{FX: 0, FY: 0},
	{FX: 1, FY: 1},
	{FX: -1, FY: 1},
}

func baselineSample() risk.BehaviorSample {
	return risk.BehaviorSample{
		MouseSpeeds:    []float64{0.3},
		PauseDurations: []float64{900},
		FractalTimeMs:  5000,
		ClickCount:     3,
		ZoomCount:      1,
	}
}

func newTestService(t *testing.T) (*Service, credential.Repository) {
	t.Helper()
	repo := credential.NewMemoryRepository()
	svc := NewService(
		repo,
		puzzle.NewGenerator(rand.NewSource(1)),
		session.NewManager("test-secret", 15*time.Minute),
		nil,
		logging.Discard(),
	)
	return svc, repo
}

func registerAll(t *testing.T, svc *Service, identity string) {
	t.Helper()
	ctx := context.Background()

	err := svc.RegisterIdentity(ctx, RegisterIdentityInput{
		Identity: identity,
		Email:    identity + "@example.com",
		Password: "correct horse",
		Origin:   "10.0.0.5",
		Agent:    "browser/1.0",
	})
	if err != nil {
		t.Fatalf("register identity: %v", err)
	}
	if err := svc.SetFractalKey(ctx, identity, "julia", registeredMarkers); err != nil {
		t.Fatalf("set fractal key: %v", err)
	}
	if _, err := svc.SetBehaviorBaseline(ctx, identity, baselineSample()); err != nil {
		t.Fatalf("set baseline: %v", err)
	}
	if err := svc.GeneratePuzzles(ctx, identity); err != nil {
		t.Fatalf("generate puzzles: %v", err)
	}
}

func failedAttempts(t *testing.T, repo credential.Repository, identity string) int {
	t.Helper()
	rec, err := repo.Find(context.Background(), identity)
	if err != nil {
		t.Fatalf("find record: %v", err)
	}
	return rec.FailedAttempts
}

func TestFullProtocolHappyPath(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	registerAll(t, svc, "alice")

	variant, err := svc.VerifyPassword(ctx, "alice", "correct horse")
	if err != nil {
		t.Fatalf("verify password: %v", err)
	}
	if variant != credential.VariantJulia {
		t.Fatalf("expected julia variant, got %s", variant)
	}

	submitted := []credential.Marker{
		{FX: 0.05, FY: 0.02},
		{FX: 1.03, FY: 0.97},
		{FX: -1.01, FY: 1.04},
	}
	if err := svc.VerifyFractalKey(ctx, "alice", submitted); err != nil {
		t.Fatalf("verify fractal key: %v", err)
	}

	assessment, err := svc.AssessRisk(ctx, AssessInput{
		Identity: "alice",
		Behavior: baselineSample(),
		Origin:   "10.0.0.5",
		Agent:    "browser/1.0",
		Hour:     12,
	})
	if err != nil {
		t.Fatalf("assess risk: %v", err)
	}
	if assessment.BehavioralRisk != 0 || assessment.ContextualRisk != 0 || assessment.CompositeRisk != 0 {
		t.Fatalf("expected zero risk, got %+v", assessment)
	}
	if assessment.Tier != risk.TierLow || assessment.Difficulty != risk.DifficultyEasy {
		t.Fatalf("expected LOW/easy, got %s/%s", assessment.Tier, assessment.Difficulty)
	}
	if len(assessment.Challenge.Options) == 0 || assessment.Challenge.Question == "" {
		t.Fatalf("expected an issued challenge, got %+v", assessment.Challenge)
	}

	rec, err := repo.Find(ctx, "alice")
	if err != nil {
		t.Fatalf("find record: %v", err)
	}
	grant, err := svc.VerifyPuzzle(ctx, "alice", rec.EasyChallenge.Answer)
	if err != nil {
		t.Fatalf("verify puzzle: %v", err)
	}
	if grant.AccessToken == "" || grant.ExpiresIn <= 0 {
		t.Fatalf("expected a session grant, got %+v", grant)
	}
	if n := failedAttempts(t, repo, "alice"); n != 0 {
		t.Fatalf("expected counter reset to 0, got %d", n)
	}
}

func TestRegistrationStageOrdering(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	err := svc.RegisterIdentity(ctx, RegisterIdentityInput{Identity: "bob", Email: "bob@example.com", Password: "long enough"})
	if err != nil {
		t.Fatalf("register identity: %v", err)
	}

	if _, err := svc.SetBehaviorBaseline(ctx, "bob", baselineSample()); !errors.Is(err, ErrStageOrder) {
		t.Fatalf("baseline before fractal key: expected stage order error, got %v", err)
	}
	if err := svc.GeneratePuzzles(ctx, "bob"); !errors.Is(err, ErrStageOrder) {
		t.Fatalf("puzzles before baseline: expected stage order error, got %v", err)
	}

	if err := svc.SetFractalKey(ctx, "bob", "mandelbrot", registeredMarkers); err != nil {
		t.Fatalf("set fractal key: %v", err)
	}
	if _, err := svc.SetBehaviorBaseline(ctx, "bob", baselineSample()); err != nil {
		t.Fatalf("set baseline: %v", err)
	}
	if err := svc.GeneratePuzzles(ctx, "bob"); err != nil {
		t.Fatalf("generate puzzles: %v", err)
	}

	// Completed records are immutable apart from counters.
	if err := svc.SetFractalKey(ctx, "bob", "mandelbrot", registeredMarkers); !errors.Is(err, ErrStageOrder) {
		t.Fatalf("rewriting a complete record: expected stage order error, got %v", err)
	}
	if err := svc.GeneratePuzzles(ctx, "bob"); !errors.Is(err, ErrStageOrder) {
		t.Fatalf("regenerating puzzles: expected stage order error, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	err := svc.RegisterIdentity(ctx, RegisterIdentityInput{Identity: "carol", Email: "carol@example.com", Password: "short"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for short password, got %v", err)
	}

	registerAll(t, svc, "carol")
	err = svc.RegisterIdentity(ctx, RegisterIdentityInput{Identity: "carol", Email: "carol@example.com", Password: "long enough"})
	if !errors.Is(err, credential.ErrIdentityExists) {
		t.Fatalf("expected identity exists error, got %v", err)
	}

	err = svc.SetFractalKey(ctx, "carol", "spiral", registeredMarkers)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for unknown variant, got %v", err)
	}
}

func TestLoginRejectedWhileIncomplete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	err := svc.RegisterIdentity(ctx, RegisterIdentityInput{Identity: "dave", Email: "dave@example.com", Password: "long enough"})
	if err != nil {
		t.Fatalf("register identity: %v", err)
	}

	if _, err := svc.VerifyPassword(ctx, "dave", "long enough"); !errors.Is(err, ErrIncompleteRegistration) {
		t.Fatalf("expected incomplete registration error, got %v", err)
	}
	if _, err := svc.VerifyPassword(ctx, "nobody", "whatever!"); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestPasswordFailureIncrementsCounter(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	registerAll(t, svc, "erin")

	if _, err := svc.VerifyPassword(ctx, "erin", "wrong password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if n := failedAttempts(t, repo, "erin"); n != 1 {
		t.Fatalf("expected counter 1, got %d", n)
	}
}

func TestFractalMismatchIncrementsCounter(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	registerAll(t, svc, "frank")

	// Validation failures must not touch the counter.
	if err := svc.VerifyFractalKey(ctx, "frank", registeredMarkers[:2]); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if n := failedAttempts(t, repo, "frank"); n != 0 {
		t.Fatalf("counter moved on validation failure: %d", n)
	}

	wrong := []credential.Marker{
		{FX: 0.5, FY: 0.5},
		{FX: 1, FY: 1},
		{FX: -1, FY: 1},
	}
	if err := svc.VerifyFractalKey(ctx, "frank", wrong); !errors.Is(err, ErrMarkerMismatch) {
		t.Fatalf("expected marker mismatch, got %v", err)
	}
	if n := failedAttempts(t, repo, "frank"); n != 1 {
		t.Fatalf("expected counter 1, got %d", n)
	}
}

func TestVerifyPuzzleAcceptsEitherStoredAnswer(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	registerAll(t, svc, "grace")

	if _, err := svc.VerifyPuzzle(ctx, "grace", "definitely wrong"); !errors.Is(err, ErrIncorrectAnswer) {
		t.Fatalf("expected incorrect answer, got %v", err)
	}
	if n := failedAttempts(t, repo, "grace"); n != 1 {
		t.Fatalf("expected counter 1, got %d", n)
	}

	rec, err := repo.Find(ctx, "grace")
	if err != nil {
		t.Fatalf("find record: %v", err)
	}

	// The hard answer is accepted even when the easy challenge was issued.
	if _, err := svc.VerifyPuzzle(ctx, "grace", rec.HardChallenge.Answer); err != nil {
		t.Fatalf("hard answer rejected: %v", err)
	}
	if n := failedAttempts(t, repo, "grace"); n != 0 {
		t.Fatalf("expected counter reset, got %d", n)
	}

	if _, err := svc.VerifyPuzzle(ctx, "grace", rec.EasyChallenge.Answer); err != nil {
		t.Fatalf("easy answer rejected: %v", err)
	}
}

func TestRepeatedFailuresRaiseContextualRisk(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	registerAll(t, svc, "heidi")

	for i := 0; i < 3; i++ {
		if _, err := svc.VerifyPuzzle(ctx, "heidi", "still wrong"); !errors.Is(err, ErrIncorrectAnswer) {
			t.Fatalf("attempt %d: expected incorrect answer, got %v", i, err)
		}
	}

	assessment, err := svc.AssessRisk(ctx, AssessInput{
		Identity: "heidi",
		Behavior: baselineSample(),
		Origin:   "10.0.0.5",
		Agent:    "browser/1.0",
		Hour:     12,
	})
	if err != nil {
		t.Fatalf("assess risk: %v", err)
	}
	if assessment.ContextualRisk != 35 {
		t.Fatalf("expected contextual risk 35 after 3 failures, got %d", assessment.ContextualRisk)
	}
}

func TestAssessmentNeverSerializesAnswer(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	registerAll(t, svc, "ivan")

	for _, hour := range []int{3, 12} { // easy and harder paths
		assessment, err := svc.AssessRisk(ctx, AssessInput{
			Identity: "ivan",
			Behavior: baselineSample(),
			Origin:   "10.99.0.1",
			Agent:    "other/2.0",
			Hour:     hour,
		})
		if err != nil {
			t.Fatalf("assess risk: %v", err)
		}

		payload, err := json.Marshal(assessment)
		if err != nil {
			t.Fatalf("marshal assessment: %v", err)
		}
		var decoded map[string]any
		if err := json.Unmarshal(payload, &decoded); err != nil {
			t.Fatalf("unmarshal assessment: %v", err)
		}
		challenge, ok := decoded["puzzle"].(map[string]any)
		if !ok {
			t.Fatalf("assessment payload missing puzzle: %s", payload)
		}
		if _, leaked := challenge["answer"]; leaked {
			t.Fatalf("answer leaked in payload: %s", payload)
		}
	}
}

func TestAssessRiskValidatesHour(t *testing.T) {
	svc, _ := newTestService(t)
	registerAll(t, svc, "judy")

	_, err := svc.AssessRisk(context.Background(), AssessInput{Identity: "judy", Hour: 24})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for hour 24, got %v", err)
	}
}

func TestDeleteIdentity(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	registerAll(t, svc, "mallory")

	if err := svc.DeleteIdentity(ctx, "mallory"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Find(ctx, "mallory"); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("expected record gone, got %v", err)
	}
}
