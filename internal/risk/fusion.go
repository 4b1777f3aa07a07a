package risk

import "math"

// Tier is the coarse risk classification reported to the claimant.
type Tier string

const (
	TierLow    Tier = "LOW"
	TierMedium Tier = "MEDIUM"
	TierHigh   Tier = "HIGH"
)

// Difficulty selects which stored challenge is issued.
type Difficulty string

const (
	DifficultyEasy Difficulty = "easy"
	DifficultyHard Difficulty = "hard"
)

// Tier and difficulty cutoffs are intentionally independent constants: the
// difficulty threshold sits between the tier boundaries and must not be
// derived from them.
const (
	tierMediumMin = 30
	tierHighMin   = 60
	hardMin       = 40
)

// Fuse combines the behavioral and contextual scores into the composite score
// and maps it to a tier and a challenge difficulty.
func Fuse(behavioral, contextual int) (int, Tier, Difficulty) {
	composite := int(math.Round(float64(behavioral)*0.5 + float64(contextual)*0.5))

	tier := TierLow
	switch {
	case composite >= tierHighMin:
		tier = TierHigh
	case composite >= tierMediumMin:
		tier = TierMedium
	}

	difficulty := DifficultyEasy
	if composite >= hardMin {
		difficulty = DifficultyHard
	}

	return composite, tier, difficulty
}
