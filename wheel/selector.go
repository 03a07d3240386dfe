package wheel

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/Digital-Creators-Team/spin-rewards/errors"
)

const (
	// WeightTotal is the sum every weight distribution must reach.
	WeightTotal = 100.0
	// WeightTolerance is the allowed distance from WeightTotal.
	WeightTolerance = 0.5
	// MinSegments is the smallest wheel that can be drawn.
	MinSegments = 2
)

// Source is the random source behind a draw.
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	Float64() float64
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }
func (globalSource) IntN(n int) int   { return rand.IntN(n) }

// Selector draws a segment index with probability proportional to its weight.
type Selector struct {
	src Source
}

// NewSelector creates a selector. A nil source uses the package-level generator.
func NewSelector(src Source) *Selector {
	if src == nil {
		src = globalSource{}
	}
	return &Selector{src: src}
}

// ParseWeights validates a weight list against the given segment count.
//
// An empty or length-mismatched weight list means an equal split. Otherwise
// every weight must parse and the sum must be within WeightTolerance of
// WeightTotal; nothing is corrected.
func ParseWeights(segmentCount int, weights []string) ([]float64, error) {
	if segmentCount < MinSegments {
		return nil, errors.NewWithDebug(errors.ErrInvalidWeights, "invalid weight distribution",
			fmt.Sprintf("need at least %d segments, have %d", MinSegments, segmentCount))
	}

	if len(weights) == 0 || len(weights) != segmentCount {
		equal := make([]float64, segmentCount)
		for i := range equal {
			equal[i] = WeightTotal / float64(segmentCount)
		}
		return equal, nil
	}

	parsed := make([]float64, len(weights))
	sum := 0.0
	for i, raw := range weights {
		w, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, errors.NewWithDebug(errors.ErrInvalidWeights, "invalid weight distribution",
				fmt.Sprintf("weight %d (%q) is not a valid number", i, raw))
		}
		parsed[i] = w
		sum += w
	}

	if math.Abs(sum-WeightTotal) > WeightTolerance {
		return nil, errors.NewWithDebug(errors.ErrInvalidWeights, "invalid weight distribution",
			fmt.Sprintf("weights sum to %.2f, expected %.0f±%.1f", sum, WeightTotal, WeightTolerance))
	}

	return parsed, nil
}

// Select validates weights and returns the drawn index.
func (s *Selector) Select(segmentCount int, weights []string) (int, error) {
	parsed, err := ParseWeights(segmentCount, weights)
	if err != nil {
		return -1, err
	}
	return s.pick(parsed), nil
}

// pick scans the cumulative sums for the first one above r. Ties go to the
// lower index. When nothing matches (r landed on or past the final sum) the
// draw falls back to a uniform index.
func (s *Selector) pick(weights []float64) int {
	cumulative := make([]float64, len(weights))
	total := 0.0
	for i, w := range weights {
		total += w
		cumulative[i] = total
	}

	r := s.src.Float64() * total
	for i, c := range cumulative {
		if c > r {
			return i
		}
	}

	return s.src.IntN(len(weights))
}
