package state

import "testing"

func TestNextRoundStateHappyPath(t *testing.T) {
	steps := []struct {
		evt  string
		want string
	}{
		{EvtOutcomeComputed, RoundOutcomeDone},
		{EvtPayoutApplied, RoundPayoutApplied},
		{EvtWalletNotified, RoundWalletNotified},
		{EvtRoundClosed, RoundClosed},
	}
	cur := RoundReceived
	for _, s := range steps {
		next, err := NextRoundState(cur, s.evt)
		if err != nil {
			t.Fatalf("%s --%s-->: %v", cur, s.evt, err)
		}
		if next != s.want {
			t.Fatalf("%s --%s--> %s, want %s", cur, s.evt, next, s.want)
		}
		cur = next
	}
}

func TestNextRoundStateVoid(t *testing.T) {
	// 未关闭状态均可作废
	for _, cur := range []string{RoundReceived, RoundOutcomeDone, RoundPayoutApplied, RoundWalletNotified} {
		next, err := NextRoundState(cur, EvtRoundVoided)
		if err != nil {
			t.Fatalf("void from %s: %v", cur, err)
		}
		if next != RoundVoided {
			t.Fatalf("void from %s: got %s", cur, next)
		}
	}

	// 已关闭/已作废不可再作废
	for _, cur := range []string{RoundClosed, RoundVoided} {
		if _, err := NextRoundState(cur, EvtRoundVoided); err == nil {
			t.Fatalf("void from %s should fail", cur)
		}
	}
}

func TestNextRoundStateInvalid(t *testing.T) {
	if _, err := NextRoundState(RoundReceived, EvtWalletNotified); err == nil {
		t.Fatal("skip transition should fail")
	}
	if _, err := NextRoundState(RoundClosed, EvtOutcomeComputed); err == nil {
		t.Fatal("transition from closed should fail")
	}
}

func TestNextTableState(t *testing.T) {
	next, err := NextTableState(TableBetting, EvtBettingClose)
	if err != nil || next != TableDealing {
		t.Fatalf("betting close: %s %v", next, err)
	}
	next, err = NextTableState(TableDealing, EvtShuffleStart)
	if err != nil || next != TableShuffling {
		t.Fatalf("shuffle start: %s %v", next, err)
	}
	next, err = NextTableState(TableShuffling, EvtBettingOpen)
	if err != nil || next != TableBetting {
		t.Fatalf("betting open: %s %v", next, err)
	}
	if _, err := NextTableState(TableBetting, EvtShuffleDone); err == nil {
		t.Fatal("invalid table transition should fail")
	}
}
