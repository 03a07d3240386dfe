package wheel

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSegmentsOperations(t *testing.T) {
	segs := Segments{{Label: "1", Weight: "50"}, {Label: "10", Weight: "50"}}

	added, err := segs.Add(Segment{Label: "100", Weight: "0"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(added) != 3 || len(segs) != 2 {
		t.Fatalf("Add must not mutate the receiver: %v / %v", segs, added)
	}

	if _, err := segs.Add(Segment{Label: "jackpot", Weight: "1"}); err == nil {
		t.Errorf("expected error for non-numeric label")
	}

	reweighted, err := added.Reweight(2, "10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if added[2].Weight != "0" {
		t.Errorf("Reweight must not mutate the receiver")
	}
	// 50 + 50 + 10 = 110: kept as-is, rejected by validation.
	if err := reweighted.Validate(); err == nil {
		t.Errorf("expected invalid distribution after reweight")
	}

	removed, err := reweighted.Remove(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := removed.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := removed.Remove(5); err == nil {
		t.Errorf("expected error for out of range remove")
	}
}

func TestSegmentsBlankWeightsMeanEqualSplit(t *testing.T) {
	segs := Segments{{Label: "1"}, {Label: "2"}, {Label: "3"}}
	if w := segs.Weights(); w != nil {
		t.Errorf("expected nil weights, got %v", w)
	}
	if err := segs.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSegmentPrizeValue(t *testing.T) {
	v, err := Segment{Label: " 17711 "}.PrizeValue()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.Equal(decimal.NewFromInt(17711)) {
		t.Errorf("got %s", v)
	}
	if _, err := (Segment{Label: "-5"}).PrizeValue(); err == nil {
		t.Errorf("expected error for negative prize")
	}
}
