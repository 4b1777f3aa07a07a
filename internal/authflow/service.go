// Package authflow sequences the registration and login protocols: it owns
// all credential record writes, enforces stage ordering, and guarantees that
// raw coordinates and challenge answers never reach the claimant.
package authflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/fractalauth/fractalauth/internal/credential"
	"github.com/fractalauth/fractalauth/internal/fractal"
	"github.com/fractalauth/fractalauth/internal/notification"
	"github.com/fractalauth/fractalauth/internal/puzzle"
	"github.com/fractalauth/fractalauth/internal/risk"
	"github.com/fractalauth/fractalauth/internal/session"
)

const minPasswordLen = 8

// failureAlertMin is the counter value at which repeated failures trigger a
// security notification.
const failureAlertMin = 3

// Service orchestrates the multi-stage authentication protocols.
type Service struct {
	repo     credential.Repository
	puzzles  *puzzle.Generator
	tokens   *session.Manager
	notifier notification.Notifier
	logger   *slog.Logger
	locks    *identityLocks
}

// NewService wires the orchestrator.
func NewService(repo credential.Repository, puzzles *puzzle.Generator, tokens *session.Manager, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		puzzles:  puzzles,
		tokens:   tokens,
		notifier: notifier,
		logger:   logger,
		locks:    newIdentityLocks(),
	}
}

// RegisterIdentityInput carries the stage-1 knowledge factor. Origin and
// Agent are the transport-captured comparison baselines.
type RegisterIdentityInput struct {
	Identity string
	Email    string
	Password string
	Origin   string
	Agent    string
}

// RegisterIdentity creates the stage-1 record.
func (s *Service) RegisterIdentity(ctx context.Context, in RegisterIdentityInput) error {
	if in.Identity == "" {
		return validationf("identity is required")
	}
	if in.Email == "" {
		return validationf("email is required")
	}
	if len(in.Password) < minPasswordLen {
		return validationf("password must be at least %d characters", minPasswordLen)
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	unlock := s.locks.acquire(in.Identity)
	defer unlock()

	rec := credential.Record{
		Identity:         in.Identity,
		Email:            in.Email,
		PasswordDigest:   digest,
		RegisteredOrigin: in.Origin,
		RegisteredAgent:  in.Agent,
		RegisteredAt:     time.Now().UTC(),
		Variant:          credential.VariantMandelbrot,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return err
	}

	s.logger.Info("registration stage 1 complete", slog.String("identity", in.Identity))
	return nil
}

// SetFractalKey commits the stage-2 spatial factor. The key is set once and
// immutable afterwards.
func (s *Service) SetFractalKey(ctx context.Context, identity, variant string, markers []credential.Marker) error {
	if identity == "" {
		return validationf("identity is required")
	}
	v, err := credential.ParseVariant(variant)
	if err != nil {
		return validationf("%v", err)
	}
	if len(markers) != credential.MarkerCount {
		return validationf("exactly %d markers required", credential.MarkerCount)
	}

	unlock := s.locks.acquire(identity)
	defer unlock()

	rec, err := s.repo.Find(ctx, identity)
	if err != nil {
		return err
	}
	if rec.Complete {
		return fmt.Errorf("%w: registration already complete", ErrStageOrder)
	}

	if err := s.repo.SetFractalKey(ctx, identity, v, markers); err != nil {
		return err
	}

	s.logger.Info("registration stage 2 complete", slog.String("identity", identity), slog.String("variant", string(v)))
	return nil
}

// SetBehaviorBaseline commits the stage-3a behavior reference profile and
// returns the derived baseline.
func (s *Service) SetBehaviorBaseline(ctx context.Context, identity string, sample risk.BehaviorSample) (credential.Baseline, error) {
	if identity == "" {
		return credential.Baseline{}, validationf("identity is required")
	}

	unlock := s.locks.acquire(identity)
	defer unlock()

	rec, err := s.repo.Find(ctx, identity)
	if err != nil {
		return credential.Baseline{}, err
	}
	if rec.Complete {
		return credential.Baseline{}, fmt.Errorf("%w: registration already complete", ErrStageOrder)
	}
	if len(rec.Markers) != credential.MarkerCount {
		return credential.Baseline{}, fmt.Errorf("%w: fractal key not set", ErrStageOrder)
	}

	baseline := risk.DeriveBaseline(sample)
	if err := s.repo.SetBaseline(ctx, identity, baseline); err != nil {
		return credential.Baseline{}, err
	}

	s.logger.Info("registration stage 3a complete", slog.String("identity", identity))
	return baseline, nil
}

// GeneratePuzzles derives both challenges from the registered markers and
// completes the registration. Challenges are generated exactly once.
func (s *Service) GeneratePuzzles(ctx context.Context, identity string) error {
	if identity == "" {
		return validationf("identity is required")
	}

	unlock := s.locks.acquire(identity)
	defer unlock()

	rec, err := s.repo.Find(ctx, identity)
	if err != nil {
		return err
	}
	if rec.Complete {
		return fmt.Errorf("%w: registration already complete", ErrStageOrder)
	}
	if rec.Baseline == nil {
		return fmt.Errorf("%w: behavior baseline not set", ErrStageOrder)
	}

	easy, hard, err := s.puzzles.Generate(rec.Markers)
	if err != nil {
		return err
	}
	if err := s.repo.SetChallenges(ctx, identity, easy, hard); err != nil {
		return err
	}

	s.logger.Info("registration complete", slog.String("identity", identity))
	return nil
}

// VerifyPassword runs login stage 1. On success it returns the fractal
// variant so the client can render the pattern; coordinates are never
// returned.
func (s *Service) VerifyPassword(ctx context.Context, identity, password string) (credential.Variant, error) {
	if identity == "" || password == "" {
		return "", validationf("identity and password are required")
	}

	unlock := s.locks.acquire(identity)
	defer unlock()

	rec, err := s.repo.Find(ctx, identity)
	if err != nil {
		return "", err
	}
	if !rec.Complete {
		return "", ErrIncompleteRegistration
	}

	if bcrypt.CompareHashAndPassword(rec.PasswordDigest, []byte(password)) != nil {
		if err := s.recordFailure(ctx, rec); err != nil {
			return "", err
		}
		return "", ErrInvalidCredentials
	}

	return rec.Variant, nil
}

// VerifyFractalKey runs login stage 2. The response never reveals which
// marker failed.
func (s *Service) VerifyFractalKey(ctx context.Context, identity string, markers []credential.Marker) error {
	if identity == "" {
		return validationf("identity is required")
	}
	if len(markers) != credential.MarkerCount {
		return validationf("exactly %d markers required", credential.MarkerCount)
	}

	unlock := s.locks.acquire(identity)
	defer unlock()

	rec, err := s.repo.Find(ctx, identity)
	if err != nil {
		return err
	}
	if !rec.Complete {
		return ErrIncompleteRegistration
	}

	if !fractal.Match(rec.Markers, markers) {
		if err := s.recordFailure(ctx, rec); err != nil {
			return err
		}
		return ErrMarkerMismatch
	}

	return nil
}

// AssessInput carries the live-session signals for the risk stage. Origin,
// Agent, and Hour are already resolved by the transport layer.
type AssessInput struct {
	Identity string
	Behavior risk.BehaviorSample
	Origin   string
	Agent    string
	Hour     int
}

// Assessment is the claimant-facing risk stage result. The issued challenge
// carries no answer field.
type Assessment struct {
	BehavioralRisk int                        `json:"behavioral_risk"`
	ContextualRisk int                        `json:"contextual_risk"`
	CompositeRisk  int                        `json:"composite_risk"`
	Tier           risk.Tier                  `json:"risk_level"`
	Difficulty     risk.Difficulty            `json:"difficulty"`
	Challenge      credential.PublicChallenge `json:"puzzle"`
	BehavioralLog  []risk.LogEntry            `json:"behavioral_logs"`
	ContextualLog  []risk.LogEntry            `json:"contextual_logs"`
}

// AssessRisk runs login stage 3: behavioral and contextual scoring, fusion,
// and difficulty-based challenge selection.
func (s *Service) AssessRisk(ctx context.Context, in AssessInput) (Assessment, error) {
	if in.Identity == "" {
		return Assessment{}, validationf("identity is required")
	}
	if in.Hour < 0 || in.Hour > 23 {
		return Assessment{}, validationf("login hour must be between 0 and 23")
	}

	rec, err := s.repo.Find(ctx, in.Identity)
	if err != nil {
		return Assessment{}, err
	}
	if !rec.Complete {
		return Assessment{}, ErrIncompleteRegistration
	}

	behavioral, behavioralLog := risk.ScoreBehavior(rec.Baseline, in.Behavior)
	contextual, contextualLog := risk.ScoreContext(rec, in.Origin, in.Agent, in.Hour)
	composite, tier, difficulty := risk.Fuse(behavioral, contextual)

	challenge := rec.EasyChallenge
	if difficulty == risk.DifficultyHard {
		challenge = rec.HardChallenge
	}
	if challenge == nil {
		return Assessment{}, fmt.Errorf("record %s complete but challenge missing", in.Identity)
	}

	s.logger.Info("risk assessed",
		slog.String("identity", in.Identity),
		slog.Int("behavioral", behavioral),
		slog.Int("contextual", contextual),
		slog.Int("composite", composite),
		slog.String("tier", string(tier)),
		slog.String("difficulty", string(difficulty)),
	)

	return Assessment{
		BehavioralRisk: behavioral,
		ContextualRisk: contextual,
		CompositeRisk:  composite,
		Tier:           tier,
		Difficulty:     difficulty,
		Challenge:      challenge.Public(),
		BehavioralLog:  behavioralLog,
		ContextualLog:  contextualLog,
	}, nil
}

// Grant is returned when the final stage succeeds.
type Grant struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// VerifyPuzzle runs the final login stage. Either stored answer is accepted
// regardless of which difficulty was issued; see the dual-answer note in
// DESIGN.md. Success resets the failure counter and mints a session token.
func (s *Service) VerifyPuzzle(ctx context.Context, identity, answer string) (Grant, error) {
	if identity == "" || answer == "" {
		return Grant{}, validationf("identity and answer are required")
	}

	unlock := s.locks.acquire(identity)
	defer unlock()

	rec, err := s.repo.Find(ctx, identity)
	if err != nil {
		return Grant{}, err
	}
	if !rec.Complete {
		return Grant{}, ErrIncompleteRegistration
	}

	if !answerMatches(rec, answer) {
		if err := s.recordFailure(ctx, rec); err != nil {
			return Grant{}, err
		}
		return Grant{}, ErrIncorrectAnswer
	}

	if err := s.repo.ResetFailed(ctx, identity); err != nil {
		return Grant{}, err
	}

	token, expiresIn, err := s.tokens.Issue(identity)
	if err != nil {
		return Grant{}, err
	}

	s.logger.Info("authentication complete", slog.String("identity", identity))
	return Grant{AccessToken: token, ExpiresIn: expiresIn}, nil
}

// Profile is the claimant-facing projection of a record for the session echo
// route. No secret field appears here.
type Profile struct {
	Identity     string    `json:"identity"`
	Email        string    `json:"email"`
	Variant      string    `json:"fractal_type"`
	RegisteredAt time.Time `json:"registered_at"`
	Complete     bool      `json:"is_complete"`
}

// Profile returns the non-secret view of a record.
func (s *Service) Profile(ctx context.Context, identity string) (Profile, error) {
	rec, err := s.repo.Find(ctx, identity)
	if err != nil {
		return Profile{}, err
	}
	return Profile{
		Identity:     rec.Identity,
		Email:        rec.Email,
		Variant:      string(rec.Variant),
		RegisteredAt: rec.RegisteredAt,
		Complete:     rec.Complete,
	}, nil
}

// DeleteIdentity removes a record. Administrative/test affordance only.
func (s *Service) DeleteIdentity(ctx context.Context, identity string) error {
	if identity == "" {
		return validationf("identity is required")
	}
	unlock := s.locks.acquire(identity)
	defer unlock()
	return s.repo.Delete(ctx, identity)
}

func answerMatches(rec credential.Record, answer string) bool {
	if rec.EasyChallenge != nil && answer == rec.EasyChallenge.Answer {
		return true
	}
	if rec.HardChallenge != nil && answer == rec.HardChallenge.Answer {
		return true
	}
	return false
}

// recordFailure increments the counter and raises a notification once the
// count crosses the alert threshold. rec is the state read before the
// increment.
func (s *Service) recordFailure(ctx context.Context, rec credential.Record) error {
	if err := s.repo.IncrementFailed(ctx, rec.Identity); err != nil {
		// A vanished record mid-flow still reads as an auth failure upstream.
		if errors.Is(err, credential.ErrNotFound) {
			return nil
		}
		return err
	}
	if rec.FailedAttempts+1 >= failureAlertMin && s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:     notification.KindRepeatedFailures,
			Identity: rec.Identity,
			Body:     fmt.Sprintf("%d failed authentication attempts", rec.FailedAttempts+1),
		})
	}
	return nil
}
