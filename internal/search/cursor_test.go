package search

import (
	"math"
	"testing"
)

func TestCursorRoundTrip(t *testing.T) {
	scores := []float64{0, -0.0, 1.5, -1.5, math.Inf(1), math.Inf(-1), math.NaN(), math.MaxFloat64}
	for _, s := range scores {
		token := EncodeCursor(s, 42)
		c, ok := DecodeCursor(token)
		if !ok {
			t.Fatalf("expected decode to succeed for score %v", s)
		}
		if c.ID != 42 {
			t.Fatalf("expected id 42, got %d", c.ID)
		}
		if math.Float64bits(s) != c.ScoreBits {
			t.Fatalf("bit pattern mismatch for score %v", s)
		}
	}
}

func TestDecodeCursorRejectsMalformedInput(t *testing.T) {
	bad := []string{"", "garbage", "s123:i1", "sAABBCCDDEEFF0011:ix", "i1:s0000000000000000"}
	for _, b := range bad {
		if _, ok := DecodeCursor(b); ok {
			t.Errorf("expected DecodeCursor(%q) to fail", b)
		}
	}
}

func TestDecodeCursorExactWidth(t *testing.T) {
	token := EncodeCursor(3.14, 7)
	c, ok := DecodeCursor(token)
	if !ok {
		t.Fatalf("expected valid decode")
	}
	if c.Score() != 3.14 {
		t.Fatalf("expected score 3.14, got %v", c.Score())
	}
}
