package credential

import (
	"fmt"
	"time"
)

// Variant selects the coordinate-generating function used to render the
// fractal pattern. It never influences marker matching, which is purely
// coordinate based.
type Variant string

const (
	VariantMandelbrot Variant = "mandelbrot"
	VariantJulia      Variant = "julia"
)

// ParseVariant validates a client-supplied fractal variant.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case VariantMandelbrot, VariantJulia:
		return Variant(s), nil
	default:
		return "", fmt.Errorf("unknown fractal variant %q", s)
	}
}

// Marker is one claimant-chosen coordinate pair on the rendered pattern.
type Marker struct {
	FX float64 `json:"fx"`
	FY float64 `json:"fy"`
}

// MarkerCount is the fixed size of the fractal key.
const MarkerCount = 3

// Baseline holds the behavior summary captured once at registration. It is a
// reference only and is never updated by login attempts.
type Baseline struct {
	AvgMouseSpeed float64 `json:"avg_mouse_speed"`
	AvgPauseMs    float64 `json:"avg_pause_ms"`
	FractalTimeMs float64 `json:"fractal_time_ms"`
	ClickCount    int     `json:"click_count"`
	ZoomCount     int     `json:"zoom_count"`
}

// Challenge is a stored step-up puzzle. Answer is server-side only: it must be
// stripped (see Public) before any challenge crosses the trust boundary.
type Challenge struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
	Hint     string   `json:"fractal_hint,omitempty"`
}

// PublicChallenge is the claimant-facing projection of a Challenge. It has no
// answer field, so no code path can serialize one by accident.
type PublicChallenge struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Hint     string   `json:"fractal_hint,omitempty"`
}

// Public strips the answer from a challenge.
func (c Challenge) Public() PublicChallenge {
	return PublicChallenge{Question: c.Question, Options: append([]string(nil), c.Options...), Hint: c.Hint}
}

// Record is the per-identity unit of truth. It is mutated only by the
// authentication flow acting on behalf of its own claimant.
type Record struct {
	Identity         string
	Email            string
	PasswordDigest   []byte
	RegisteredOrigin string
	RegisteredAgent  string
	RegisteredAt     time.Time
	FailedAttempts   int
	Variant          Variant
	Markers          []Marker
	Baseline         *Baseline
	EasyChallenge    *Challenge
	HardChallenge    *Challenge
	Complete         bool
}

// Clone returns a deep copy so repository callers can never alias stored state.
func (r Record) Clone() Record {
	out := r
	out.PasswordDigest = append([]byte(nil), r.PasswordDigest...)
	out.Markers = append([]Marker(nil), r.Markers...)
	if r.Baseline != nil {
		b := *r.Baseline
		out.Baseline = &b
	}
	if r.EasyChallenge != nil {
		c := *r.EasyChallenge
		c.Options = append([]string(nil), r.EasyChallenge.Options...)
		out.EasyChallenge = &c
	}
	if r.HardChallenge != nil {
		c := *r.HardChallenge
		c.Options = append([]string(nil), r.HardChallenge.Options...)
		out.HardChallenge = &c
	}
	return out
}
