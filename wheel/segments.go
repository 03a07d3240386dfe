package wheel

import (
	"fmt"
	"strings"

	"github.com/Digital-Creators-Team/spin-rewards/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Segment is one labeled, weighted outcome on the wheel. The label is the
// prize amount paid to whoever lands on it.
type Segment struct {
	Label  string `json:"label"`
	Weight string `json:"weight"`
}

// PrizeValue parses the segment label as a token amount.
func (s Segment) PrizeValue() (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(s.Label))
	if err != nil {
		return decimal.Zero, errors.NewWithDebug(errors.ErrInvalidRequest, "segment label is not a prize amount",
			fmt.Sprintf("label %q: %v", s.Label, err))
	}
	if v.IsNegative() {
		return decimal.Zero, errors.NewWithDebug(errors.ErrInvalidRequest, "segment label is not a prize amount",
			fmt.Sprintf("label %q is negative", s.Label))
	}
	return v, nil
}

// Segments is the ordered wheel configuration. Operations return a new
// slice so a snapshot handed to a reader never changes under it.
type Segments []Segment

// Labels returns segment labels in wheel order.
func (s Segments) Labels() []string {
	return lo.Map(s, func(seg Segment, _ int) string { return seg.Label })
}

// Weights returns the raw weight strings in wheel order. When every weight
// is blank the result is empty, which selects an equal split.
func (s Segments) Weights() []string {
	if lo.EveryBy(s, func(seg Segment) bool { return strings.TrimSpace(seg.Weight) == "" }) {
		return nil
	}
	return lo.Map(s, func(seg Segment, _ int) string { return seg.Weight })
}

// Validate checks labels and the weight distribution without drawing.
func (s Segments) Validate() error {
	for _, seg := range s {
		if _, err := seg.PrizeValue(); err != nil {
			return err
		}
	}
	_, err := ParseWeights(len(s), s.Weights())
	return err
}

// Add appends a segment.
func (s Segments) Add(seg Segment) (Segments, error) {
	if _, err := seg.PrizeValue(); err != nil {
		return s, err
	}
	out := make(Segments, 0, len(s)+1)
	out = append(out, s...)
	return append(out, seg), nil
}

// Remove drops the segment at index.
func (s Segments) Remove(index int) (Segments, error) {
	if index < 0 || index >= len(s) {
		return s, errors.NewWithDebug(errors.ErrNotFound, "segment not found", fmt.Sprintf("index %d", index))
	}
	out := make(Segments, 0, len(s)-1)
	out = append(out, s[:index]...)
	return append(out, s[index+1:]...), nil
}

// Reweight replaces the weight of the segment at index. The distribution is
// not re-normalized; an invalid sum is reported at draw time.
func (s Segments) Reweight(index int, weight string) (Segments, error) {
	if index < 0 || index >= len(s) {
		return s, errors.NewWithDebug(errors.ErrNotFound, "segment not found", fmt.Sprintf("index %d", index))
	}
	out := make(Segments, len(s))
	copy(out, s)
	out[index].Weight = weight
	return out, nil
}
