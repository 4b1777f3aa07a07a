// Package puzzle derives the step-up challenges from a claimant's registered
// fractal markers. Generation happens exactly once, server-side, at
// registration completion; answers never leave the store unredacted.
package puzzle

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/fractalauth/fractalauth/internal/credential"
)

// easyDeltas perturb the first marker's real component to produce distractor
// options for the easy challenge.
var easyDeltas = []float64{0.25, -0.30, 0.55, -0.60}

const hardShapeCount = 3

// Generator derives challenges with its own random source so tests can pin the
// distractor shuffle and the hard question shape.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator builds a generator from the given source. A nil source falls
// back to a time-seeded one.
func NewGenerator(src rand.Source) *Generator {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Generator{rng: rand.New(src)}
}

// Generate derives the easy and hard challenges from the registered markers.
func (g *Generator) Generate(markers []credential.Marker) (credential.Challenge, credential.Challenge, error) {
	if len(markers) != credential.MarkerCount {
		return credential.Challenge{}, credential.Challenge{}, fmt.Errorf("expected %d markers, got %d", credential.MarkerCount, len(markers))
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	return g.easy(markers), g.hard(markers), nil
}

func (g *Generator) easy(markers []credential.Marker) credential.Challenge {
	fx := markers[0].FX
	answer := fmt.Sprintf("Re: %.3f", fx)

	var distractors []string
	for _, delta := range easyDeltas {
		opt := fmt.Sprintf("Re: %.3f", fx+delta)
		if opt != answer {
			distractors = append(distractors, opt)
		}
	}
	if len(distractors) > 3 {
		distractors = distractors[:3]
	}

	options := append([]string{answer}, distractors...)
	g.rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	return credential.Challenge{
		Question: "Which real coordinate is closest to your registered marker P1?",
		Options:  options,
		Answer:   answer,
		Hint:     fmt.Sprintf("Hint: Your P1 was near Re ≈ %.2f", fx),
	}
}

func (g *Generator) hard(markers []credential.Marker) credential.Challenge {
	m1 := markers[0]

	var (
		value    int
		question string
		hint     string
	)
	switch g.rng.Intn(hardShapeCount) {
	case 0:
		value = int(math.Floor(math.Abs(m1.FX))) + int(math.Floor(math.Abs(m1.FY)))
		question = "What is ⌊|P1.Re|⌋ + ⌊|P1.Im|⌋ for your registered first marker?"
		hint = "Take the floor of the absolute value of each coordinate and add them."
	case 1:
		for _, m := range markers {
			if m.FX < 0 {
				value++
			}
		}
		question = "How many of your 3 registered markers have a NEGATIVE real (Re) coordinate?"
		hint = "Consider which side of the imaginary axis each marker was placed on."
	default:
		value = int(math.Round(m1.FX))
		question = "What is your P1 real coordinate rounded to the nearest integer?"
		hint = fmt.Sprintf("Your P1 real value is close to %.1f", m1.FX)
	}

	answer := fmt.Sprintf("%d", value)
	options := []string{
		answer,
		fmt.Sprintf("%d", value+1),
		fmt.Sprintf("%d", value-1),
		fmt.Sprintf("%d", value+2),
	}
	g.rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	return credential.Challenge{
		Question: question,
		Options:  options,
		Answer:   answer,
		Hint:     hint,
	}
}
