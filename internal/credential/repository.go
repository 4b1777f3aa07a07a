package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrIdentityExists occurs when creating a record whose identity is taken.
	ErrIdentityExists = errors.New("identity already exists")

	// ErrNotFound indicates no record exists for the requested identity.
	ErrNotFound = errors.New("credential record not found")
)

// Repository persists credential records. All multi-field stage commits are
// atomic: a failed update leaves the record untouched.
type Repository interface {
	Exists(ctx context.Context, identity string) (bool, error)
	Create(ctx context.Context, rec Record) error
	Find(ctx context.Context, identity string) (Record, error)
	SetFractalKey(ctx context.Context, identity string, variant Variant, markers []Marker) error
	SetBaseline(ctx context.Context, identity string, baseline Baseline) error
	// SetChallenges stores both puzzles and marks the record complete.
	SetChallenges(ctx context.Context, identity string, easy, hard Challenge) error
	IncrementFailed(ctx context.Context, identity string) error
	ResetFailed(ctx context.Context, identity string) error
	Delete(ctx context.Context, identity string) error
}

// PostgresRepository implements Repository using PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE credentials (
//	    identity          TEXT PRIMARY KEY,
//	    email             TEXT NOT NULL,
//	    password_digest   BYTEA NOT NULL,
//	    registered_origin TEXT NOT NULL DEFAULT '',
//	    registered_agent  TEXT NOT NULL DEFAULT '',
//	    registered_at     TIMESTAMPTZ NOT NULL,
//	    failed_attempts   INTEGER NOT NULL DEFAULT 0,
//	    fractal_variant   TEXT NOT NULL DEFAULT 'mandelbrot',
//	    fractal_markers   JSONB NOT NULL DEFAULT '[]',
//	    behavior_baseline JSONB,
//	    easy_challenge    JSONB,
//	    hard_challenge    JSONB,
//	    is_complete       BOOLEAN NOT NULL DEFAULT FALSE
//	);
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed credential repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Exists reports whether an identity is already registered.
func (r *PostgresRepository) Exists(ctx context.Context, identity string) (bool, error) {
	var one int
	err := r.db.QueryRow(ctx, `SELECT 1 FROM credentials WHERE identity = $1`, identity).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Create inserts a fresh stage-1 record.
func (r *PostgresRepository) Create(ctx context.Context, rec Record) error {
	cmd, err := r.db.Exec(ctx, `INSERT INTO credentials
        (identity, email, password_digest, registered_origin, registered_agent, registered_at, fractal_variant)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (identity) DO NOTHING`,
		rec.Identity, rec.Email, rec.PasswordDigest, rec.RegisteredOrigin, rec.RegisteredAgent,
		rec.RegisteredAt.UTC(), string(VariantMandelbrot))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrIdentityExists
	}
	return nil
}

// Find fetches a record by identity.
func (r *PostgresRepository) Find(ctx context.Context, identity string) (Record, error) {
	row := r.db.QueryRow(ctx, `SELECT identity, email, password_digest, registered_origin,
        registered_agent, registered_at, failed_attempts, fractal_variant, fractal_markers,
        behavior_baseline, easy_challenge, hard_challenge, is_complete
        FROM credentials WHERE identity = $1`, identity)

	var (
		rec          Record
		registeredAt time.Time
		variant      string
		markersJSON  []byte
		baselineJSON []byte
		easyJSON     []byte
		hardJSON     []byte
	)
	err := row.Scan(&rec.Identity, &rec.Email, &rec.PasswordDigest, &rec.RegisteredOrigin,
		&rec.RegisteredAgent, &registeredAt, &rec.FailedAttempts, &variant, &markersJSON,
		&baselineJSON, &easyJSON, &hardJSON, &rec.Complete)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}

	rec.RegisteredAt = registeredAt.UTC()
	rec.Variant = Variant(variant)
	if err := json.Unmarshal(markersJSON, &rec.Markers); err != nil {
		return Record{}, fmt.Errorf("decode fractal markers: %w", err)
	}
	if rec.Baseline, err = decodeBaseline(baselineJSON); err != nil {
		return Record{}, err
	}
	if rec.EasyChallenge, err = decodeChallenge(easyJSON); err != nil {
		return Record{}, err
	}
	if rec.HardChallenge, err = decodeChallenge(hardJSON); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// SetFractalKey commits the stage-2 fields in a single statement.
func (r *PostgresRepository) SetFractalKey(ctx context.Context, identity string, variant Variant, markers []Marker) error {
	payload, err := json.Marshal(markers)
	if err != nil {
		return fmt.Errorf("encode fractal markers: %w", err)
	}
	cmd, err := r.db.Exec(ctx, `UPDATE credentials SET fractal_variant = $1, fractal_markers = $2
        WHERE identity = $3`, string(variant), payload, identity)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetBaseline commits the stage-3a behavior baseline.
func (r *PostgresRepository) SetBaseline(ctx context.Context, identity string, baseline Baseline) error {
	payload, err := json.Marshal(baseline)
	if err != nil {
		return fmt.Errorf("encode behavior baseline: %w", err)
	}
	cmd, err := r.db.Exec(ctx, `UPDATE credentials SET behavior_baseline = $1
        WHERE identity = $2`, payload, identity)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetChallenges commits both puzzles and flips is_complete in one statement.
func (r *PostgresRepository) SetChallenges(ctx context.Context, identity string, easy, hard Challenge) error {
	easyPayload, err := json.Marshal(easy)
	if err != nil {
		return fmt.Errorf("encode easy challenge: %w", err)
	}
	hardPayload, err := json.Marshal(hard)
	if err != nil {
		return fmt.Errorf("encode hard challenge: %w", err)
	}
	cmd, err := r.db.Exec(ctx, `UPDATE credentials
        SET easy_challenge = $1, hard_challenge = $2, is_complete = TRUE
        WHERE identity = $3`, easyPayload, hardPayload, identity)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementFailed bumps the failure counter atomically.
func (r *PostgresRepository) IncrementFailed(ctx context.Context, identity string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE credentials SET failed_attempts = failed_attempts + 1
        WHERE identity = $1`, identity)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetFailed zeroes the failure counter.
func (r *PostgresRepository) ResetFailed(ctx context.Context, identity string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE credentials SET failed_attempts = 0
        WHERE identity = $1`, identity)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a record. Administrative/test affordance only.
func (r *PostgresRepository) Delete(ctx context.Context, identity string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM credentials WHERE identity = $1`, identity)
	return err
}

func decodeBaseline(payload []byte) (*Baseline, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	var b Baseline
	if err := json.Unmarshal(payload, &b); err != nil {
		return nil, fmt.Errorf("decode behavior baseline: %w", err)
	}
	return &b, nil
}

func decodeChallenge(payload []byte) (*Challenge, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	var c Challenge
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("decode challenge: %w", err)
	}
	return &c, nil
}
