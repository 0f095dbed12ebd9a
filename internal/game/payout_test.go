package game

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func mustOutcome(t *testing.T, placements map[int]string) *Outcome {
	t.Helper()
	out, err := ComputeOutcome(placements)
	if err != nil {
		t.Fatalf("compute outcome: %v", err)
	}
	return out
}

func TestResolvePayoutBankerCommission(t *testing.T) {
	// 庄 6 点胜闲 5 点
	out := mustOutcome(t, map[int]string{
		1: "13|r", 2: "6|h",
		4: "2|f", 5: "3|m",
	})
	stake := decimal.NewFromInt(100)

	// 标准模式：0.95 赔率，100 注赢 95
	r, err := ResolvePayout(out, WagerBanker, stake, false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.Delta.String() != "95" {
		t.Fatalf("standard banker delta: %s, want 95", r.Delta)
	}
	if r.WinAmount.String() != "195" {
		t.Fatalf("standard banker win amount: %s", r.WinAmount)
	}

	// 免佣模式：庄 6 点赢半付，100 注赢 50
	r, err = ResolvePayout(out, WagerBanker, stake, true)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.Delta.String() != "50" {
		t.Fatalf("exempt banker delta on 6: %s, want 50", r.Delta)
	}
}

func TestResolvePayoutBankerExemptNonSix(t *testing.T) {
	// 庄 7 点胜闲 5 点：免佣模式平赔
	out := mustOutcome(t, map[int]string{
		1: "13|r", 2: "7|h",
		4: "2|f", 5: "3|m",
	})
	r, err := ResolvePayout(out, WagerBanker, decimal.NewFromInt(100), true)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.Delta.String() != "100" {
		t.Fatalf("exempt banker delta on 7: %s, want 100", r.Delta)
	}
}

func TestResolvePayoutTieRefund(t *testing.T) {
	// 双方 4 点和局
	out := mustOutcome(t, map[int]string{
		1: "2|r", 2: "2|h",
		4: "13|f", 5: "4|m",
	})
	stake := decimal.NewFromInt(100)

	// 和注中奖，1 赔 8
	r, err := ResolvePayout(out, WagerTie, stake, false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !r.Win || r.Delta.String() != "800" {
		t.Fatalf("tie bet: win=%v delta=%s", r.Win, r.Delta)
	}

	// 庄/闲注退回本金，不算输
	for _, w := range []WagerType{WagerBanker, WagerPlayer} {
		r, err := ResolvePayout(out, w, stake, false)
		if err != nil {
			t.Fatalf("resolve %v: %v", w, err)
		}
		if !r.Refund {
			t.Fatalf("%v on tie: refund flag not set", w)
		}
		if !r.Delta.IsZero() {
			t.Fatalf("%v on tie: delta=%s, want 0", w, r.Delta)
		}
		if r.WinAmount.Cmp(stake) != 0 {
			t.Fatalf("%v on tie: win amount=%s, want stake", w, r.WinAmount)
		}
	}
}

func TestResolvePayoutLucky6(t *testing.T) {
	stake := decimal.NewFromInt(10)

	// 两张牌达成 6 点
	out2 := mustOutcome(t, map[int]string{
		1: "13|r", 2: "6|h",
		4: "2|f", 5: "3|m",
	})
	r2, err := ResolvePayout(out2, WagerLucky6, stake, false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !r2.Win || r2.Odds.Cmp(decimal.NewFromInt(12)) != 0 {
		t.Fatalf("lucky6 two cards: win=%v odds=%s", r2.Win, r2.Odds)
	}

	// 三张牌达成 6 点：赔率必须更高
	out3 := mustOutcome(t, map[int]string{
		1: "2|r", 2: "2|h", 3: "2|f",
		4: "2|m", 5: "3|r",
	})
	r3, err := ResolvePayout(out3, WagerLucky6, stake, false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !r3.Win || r3.Odds.Cmp(decimal.NewFromInt(20)) != 0 {
		t.Fatalf("lucky6 three cards: win=%v odds=%s", r3.Win, r3.Odds)
	}
	if r3.Delta.Cmp(r2.Delta) <= 0 {
		t.Fatalf("three-card lucky6 must pay more: %s vs %s", r3.Delta, r2.Delta)
	}

	// 非 6 点判输
	outMiss := mustOutcome(t, map[int]string{
		1: "13|r", 2: "7|h",
		4: "2|f", 5: "3|m",
	})
	rm, err := ResolvePayout(outMiss, WagerLucky6, stake, false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if rm.Win || rm.Delta.Cmp(stake.Neg()) != 0 {
		t.Fatalf("lucky6 miss: win=%v delta=%s", rm.Win, rm.Delta)
	}
}

func TestResolvePayoutThreeCardSpecials(t *testing.T) {
	stake := decimal.NewFromInt(10)

	// 庄两张 7 点：龙7 不中（必须三张）
	out2 := mustOutcome(t, map[int]string{
		1: "3|r", 2: "4|h",
		4: "2|f", 5: "3|m",
	})
	r, err := ResolvePayout(out2, WagerDragon7, stake, false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.Win {
		t.Fatal("dragon7 must require three cards")
	}

	// 庄三张 7 点：龙7 中，1 赔 40
	out3 := mustOutcome(t, map[int]string{
		1: "2|r", 2: "2|h", 3: "3|f",
		4: "2|m", 5: "3|r",
	})
	r, err = ResolvePayout(out3, WagerDragon7, stake, false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !r.Win || r.Odds.Cmp(decimal.NewFromInt(40)) != 0 {
		t.Fatalf("dragon7: win=%v odds=%s", r.Win, r.Odds)
	}

	// 闲三张 8 点：熊8 中，1 赔 25
	outPanda := mustOutcome(t, map[int]string{
		1: "2|r", 2: "3|h",
		4: "10|m", 5: "4|r", 6: "4|h",
	})
	r, err = ResolvePayout(outPanda, WagerPanda8, stake, false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !r.Win || r.Odds.Cmp(decimal.NewFromInt(25)) != 0 {
		t.Fatalf("panda8: win=%v odds=%s", r.Win, r.Odds)
	}
}

func TestResolvePayoutPairs(t *testing.T) {
	out := mustOutcome(t, map[int]string{
		1: "4|r", 2: "4|h",
		4: "2|f", 5: "9|m",
	})
	stake := decimal.NewFromInt(10)

	r, err := ResolvePayout(out, WagerBankerPair, stake, false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !r.Win || r.Odds.Cmp(decimal.NewFromInt(11)) != 0 {
		t.Fatalf("banker pair: win=%v odds=%s", r.Win, r.Odds)
	}

	r, err = ResolvePayout(out, WagerPlayerPair, stake, false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.Win {
		t.Fatal("player pair should lose")
	}
}

func TestResolvePayoutUnknownWager(t *testing.T) {
	out := mustOutcome(t, map[int]string{
		1: "2|r", 2: "2|h",
		4: "13|f", 5: "4|m",
	})
	_, err := ResolvePayout(out, WagerType(99), decimal.NewFromInt(10), false)
	if !errors.Is(err, ErrUnknownWager) {
		t.Fatalf("want ErrUnknownWager, got %v", err)
	}
}
