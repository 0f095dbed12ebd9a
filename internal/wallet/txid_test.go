package wallet

import "testing"

func TestCorrelationIDStable(t *testing.T) {
	a := CorrelationID(PurposeSettle, 1, 2, 5, 1001)
	b := CorrelationID(PurposeSettle, 1, 2, 5, 1001)
	if a != b {
		t.Fatalf("correlation id not stable: %s vs %s", a, b)
	}
	if a != "BJL_SETTLE_T1_S2_R5_U1001" {
		t.Fatalf("unexpected format: %s", a)
	}
}

func TestCorrelationIDDistinct(t *testing.T) {
	base := CorrelationID(PurposeSettle, 1, 2, 5, 1001)
	variants := []string{
		CorrelationID(PurposeBet, 1, 2, 5, 1001),
		CorrelationID(PurposeSettle, 2, 2, 5, 1001),
		CorrelationID(PurposeSettle, 1, 3, 5, 1001),
		CorrelationID(PurposeSettle, 1, 2, 6, 1001),
		CorrelationID(PurposeSettle, 1, 2, 5, 1002),
	}
	for _, v := range variants {
		if v == base {
			t.Fatalf("collision: %s", v)
		}
	}
}

func TestBetCorrelationID(t *testing.T) {
	id := BetCorrelationID(3, 1, 9, 7, "BJL20260831001")
	if id != "BJL_BET_T3_S1_R9_U7_BBJL20260831001" {
		t.Fatalf("unexpected format: %s", id)
	}
}
