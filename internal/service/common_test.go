package service

import (
	"testing"

	"bjl-server/internal/state"
)

func TestRoundStateCodeMapping(t *testing.T) {
	states := []string{
		state.RoundReceived,
		state.RoundOutcomeDone,
		state.RoundPayoutApplied,
		state.RoundWalletNotified,
		state.RoundClosed,
		state.RoundVoided,
	}
	for _, s := range states {
		code := roundStateToCode(s)
		if code == 0 {
			t.Fatalf("state %q: no code", s)
		}
		if got := roundCodeToState(code); got != s {
			t.Fatalf("round trip %q: code=%d got=%q", s, code, got)
		}
	}

	if got := roundCodeToState(99); got != "unknown" {
		t.Fatalf("unknown code: got %q", got)
	}
	// 编码从 1 开始且连续
	for want, s := range []string{state.RoundReceived, state.RoundOutcomeDone, state.RoundPayoutApplied,
		state.RoundWalletNotified, state.RoundClosed, state.RoundVoided} {
		if roundStateToCode(s) != int8(want+1) {
			t.Fatalf("state %q: want code %d got %d", s, want+1, roundStateToCode(s))
		}
	}
}

func TestPlacementsFromSlots(t *testing.T) {
	got := placementsFromSlots([]string{"13|r", "6|h", "0|", "4|f", "4|m", "0|"})
	if len(got) != 6 {
		t.Fatalf("len: %d", len(got))
	}
	if got[1] != "13|r" || got[4] != "4|f" || got[6] != "0|" {
		t.Fatalf("slots: %v", got)
	}
}

func TestCardListEncodeDecode(t *testing.T) {
	placements := map[int]string{1: "13|r", 2: "6|h", 4: "4|f", 5: "4|m"}
	encoded := encodeCardList(placements)
	if encoded == "" || encoded == "{}" {
		t.Fatalf("encoded: %q", encoded)
	}

	decoded, err := decodeCardList(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != len(placements) {
		t.Fatalf("len: want %d got %d", len(placements), len(decoded))
	}
	for slot, tok := range placements {
		if decoded[slot] != tok {
			t.Fatalf("slot %d: want %q got %q", slot, tok, decoded[slot])
		}
	}

	if _, err := decodeCardList(`{"x":"1|r"}`); err == nil {
		t.Fatal("non-numeric slot: want error")
	}
	if _, err := decodeCardList("not json"); err == nil {
		t.Fatal("bad json: want error")
	}
}
