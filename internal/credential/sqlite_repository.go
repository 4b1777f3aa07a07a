package credential

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS credentials (
    identity          TEXT PRIMARY KEY,
    email             TEXT NOT NULL,
    password_digest   BLOB NOT NULL,
    registered_origin TEXT NOT NULL DEFAULT '',
    registered_agent  TEXT NOT NULL DEFAULT '',
    registered_at     INTEGER NOT NULL,
    failed_attempts   INTEGER NOT NULL DEFAULT 0,
    fractal_variant   TEXT NOT NULL DEFAULT 'mandelbrot',
    fractal_markers   TEXT NOT NULL DEFAULT '[]',
    behavior_baseline TEXT,
    easy_challenge    TEXT,
    hard_challenge    TEXT,
    is_complete       INTEGER NOT NULL DEFAULT 0
)`

// SQLiteRepository implements Repository on the embedded SQLite store used
// when no Postgres DSN is configured.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates the schema if needed and returns the repository.
func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("create credentials table: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// Exists reports whether an identity is already registered.
func (r *SQLiteRepository) Exists(ctx context.Context, identity string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM credentials WHERE identity = ?`, identity).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Create inserts a fresh stage-1 record.
func (r *SQLiteRepository) Create(ctx context.Context, rec Record) error {
	res, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO credentials
        (identity, email, password_digest, registered_origin, registered_agent, registered_at, fractal_variant)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Identity, rec.Email, rec.PasswordDigest, rec.RegisteredOrigin, rec.RegisteredAgent,
		rec.RegisteredAt.UTC().Unix(), string(VariantMandelbrot))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrIdentityExists
	}
	return nil
}

// Find fetches a record by identity.
func (r *SQLiteRepository) Find(ctx context.Context, identity string) (Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT identity, email, password_digest, registered_origin,
        registered_agent, registered_at, failed_attempts, fractal_variant, fractal_markers,
        behavior_baseline, easy_challenge, hard_challenge, is_complete
        FROM credentials WHERE identity = ?`, identity)

	var (
		rec          Record
		registeredAt int64
		variant      string
		markersJSON  string
		baselineJSON sql.NullString
		easyJSON     sql.NullString
		hardJSON     sql.NullString
		complete     int
	)
	err := row.Scan(&rec.Identity, &rec.Email, &rec.PasswordDigest, &rec.RegisteredOrigin,
		&rec.RegisteredAgent, &registeredAt, &rec.FailedAttempts, &variant, &markersJSON,
		&baselineJSON, &easyJSON, &hardJSON, &complete)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}

	rec.RegisteredAt = time.Unix(registeredAt, 0).UTC()
	rec.Variant = Variant(variant)
	rec.Complete = complete != 0
	if err := json.Unmarshal([]byte(markersJSON), &rec.Markers); err != nil {
		return Record{}, fmt.Errorf("decode fractal markers: %w", err)
	}
	if rec.Baseline, err = decodeBaseline(nullBytes(baselineJSON)); err != nil {
		return Record{}, err
	}
	if rec.EasyChallenge, err = decodeChallenge(nullBytes(easyJSON)); err != nil {
		return Record{}, err
	}
	if rec.HardChallenge, err = decodeChallenge(nullBytes(hardJSON)); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// SetFractalKey commits the stage-2 fields in a single statement.
func (r *SQLiteRepository) SetFractalKey(ctx context.Context, identity string, variant Variant, markers []Marker) error {
	payload, err := json.Marshal(markers)
	if err != nil {
		return fmt.Errorf("encode fractal markers: %w", err)
	}
	return r.update(ctx, `UPDATE credentials SET fractal_variant = ?, fractal_markers = ?
        WHERE identity = ?`, string(variant), string(payload), identity)
}

// SetBaseline commits the stage-3a behavior baseline.
func (r *SQLiteRepository) SetBaseline(ctx context.Context, identity string, baseline Baseline) error {
	payload, err := json.Marshal(baseline)
	if err != nil {
		return fmt.Errorf("encode behavior baseline: %w", err)
	}
	return r.update(ctx, `UPDATE credentials SET behavior_baseline = ?
        WHERE identity = ?`, string(payload), identity)
}

// SetChallenges commits both puzzles and flips is_complete in one statement.
func (r *SQLiteRepository) SetChallenges(ctx context.Context, identity string, easy, hard Challenge) error {
	easyPayload, err := json.Marshal(easy)
	if err != nil {
		return fmt.Errorf("encode easy challenge: %w", err)
	}
	hardPayload, err := json.Marshal(hard)
	if err != nil {
		return fmt.Errorf("encode hard challenge: %w", err)
	}
	return r.update(ctx, `UPDATE credentials
        SET easy_challenge = ?, hard_challenge = ?, is_complete = 1
        WHERE identity = ?`, string(easyPayload), string(hardPayload), identity)
}

// IncrementFailed bumps the failure counter atomically.
func (r *SQLiteRepository) IncrementFailed(ctx context.Context, identity string) error {
	return r.update(ctx, `UPDATE credentials SET failed_attempts = failed_attempts + 1
        WHERE identity = ?`, identity)
}

// ResetFailed zeroes the failure counter.
func (r *SQLiteRepository) ResetFailed(ctx context.Context, identity string) error {
	return r.update(ctx, `UPDATE credentials SET failed_attempts = 0 WHERE identity = ?`, identity)
}

// Delete removes a record. Administrative/test affordance only.
func (r *SQLiteRepository) Delete(ctx context.Context, identity string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE identity = ?`, identity)
	return err
}

func (r *SQLiteRepository) update(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullBytes(s sql.NullString) []byte {
	if !s.Valid {
		return nil
	}
	return []byte(s.String)
}
