package helper

import "testing"

func TestIsCardToken(t *testing.T) {
	valid := []string{"0|", "1|r", "9|h", "10|f", "13|m", " 5|r "}
	for _, s := range valid {
		if !IsCardToken(s) {
			t.Fatalf("token %q: want valid", s)
		}
	}

	invalid := []string{"", "0", "0|r", "14|r", "1|x", "1|", "|r", "1|rr", "a|r", "-1|r"}
	for _, s := range invalid {
		if IsCardToken(s) {
			t.Fatalf("token %q: want invalid", s)
		}
	}
}

func TestIsMoneyFormat(t *testing.T) {
	valid := []string{"0", "1", "100", "0.5", "99.99", "1000000"}
	for _, s := range valid {
		if !IsMoneyFormat(s) {
			t.Fatalf("amount %q: want valid", s)
		}
	}

	invalid := []string{"", "-1", "1.999", "01", ".5", "1.", "abc", "1,000"}
	for _, s := range invalid {
		if IsMoneyFormat(s) {
			t.Fatalf("amount %q: want invalid", s)
		}
	}
}

func TestValidateBet(t *testing.T) {
	base := BetParsed{
		TableId:        1,
		BetAmount:      "100.50",
		WagerType:      8,
		IdempotencyKey: "k-1",
	}
	if ok, msg := ValidateBet(&base); !ok {
		t.Fatalf("base case: %s", msg)
	}

	cases := []struct {
		name   string
		mutate func(*BetParsed)
	}{
		{"missing table", func(p *BetParsed) { p.TableId = 0 }},
		{"missing amount", func(p *BetParsed) { p.BetAmount = "" }},
		{"bad amount", func(p *BetParsed) { p.BetAmount = "12.345" }},
		{"missing idem key", func(p *BetParsed) { p.IdempotencyKey = "" }},
		{"bad wager", func(p *BetParsed) { p.WagerType = 5 }},
		{"wager zero", func(p *BetParsed) { p.WagerType = 0 }},
		{"oversized key", func(p *BetParsed) {
			k := make([]byte, 65)
			for i := range k {
				k[i] = 'a'
			}
			p.IdempotencyKey = string(k)
		}},
	}
	for _, tc := range cases {
		p := base
		tc.mutate(&p)
		if ok, _ := ValidateBet(&p); ok {
			t.Fatalf("%s: want invalid", tc.name)
		}
	}

	// 全部玩法编码有效
	for _, wt := range []int{2, 3, 4, 6, 7, 8, 9, 10} {
		p := base
		p.WagerType = wt
		if ok, msg := ValidateBet(&p); !ok {
			t.Fatalf("wager %d: %s", wt, msg)
		}
	}
}

func TestValidateDeal(t *testing.T) {
	base := DealParsed{
		TableId:     1,
		ShoeNumber:  3,
		RoundNumber: 12,
		CardList:    []string{"13|r", "6|h", "0|", "4|f", "4|m", "0|"},
	}
	if ok, msg := ValidateDeal(&base); !ok {
		t.Fatalf("base case: %s", msg)
	}

	p := base
	p.CardList = nil
	if ok, _ := ValidateDeal(&p); ok {
		t.Fatal("empty card_list: want invalid")
	}

	p = base
	p.CardList = []string{"1|r", "1|r", "1|r", "1|r", "1|r", "1|r", "1|r"}
	if ok, _ := ValidateDeal(&p); ok {
		t.Fatal("7 cards: want invalid")
	}

	p = base
	p.CardList = []string{"13|r", "bad", "0|"}
	if ok, _ := ValidateDeal(&p); ok {
		t.Fatal("bad token: want invalid")
	}

	p = base
	p.ShoeNumber = 0
	if ok, _ := ValidateDeal(&p); ok {
		t.Fatal("zero shoe: want invalid")
	}
}

func TestValidateTableStart(t *testing.T) {
	if ok, _ := ValidateTableStart(&TableStartParsed{TableId: 1, CountdownSec: 30}); !ok {
		t.Fatal("want valid")
	}
	if ok, _ := ValidateTableStart(&TableStartParsed{TableId: 1}); !ok {
		t.Fatal("zero countdown uses default, want valid")
	}
	if ok, _ := ValidateTableStart(&TableStartParsed{TableId: 0}); ok {
		t.Fatal("missing table: want invalid")
	}
	if ok, _ := ValidateTableStart(&TableStartParsed{TableId: 1, CountdownSec: 301}); ok {
		t.Fatal("countdown over cap: want invalid")
	}
}

func TestValidateVoid(t *testing.T) {
	if ok, _ := ValidateVoid(&VoidParsed{TableId: 1, ShoeNumber: 1, RoundNumber: 1, Reason: "camera failure"}); !ok {
		t.Fatal("want valid")
	}
	if ok, _ := ValidateVoid(&VoidParsed{TableId: 1, ShoeNumber: 0, RoundNumber: 1}); ok {
		t.Fatal("zero shoe: want invalid")
	}
	long := make([]byte, 256)
	for i := range long {
		long[i] = 'x'
	}
	if ok, _ := ValidateVoid(&VoidParsed{TableId: 1, ShoeNumber: 1, RoundNumber: 1, Reason: string(long)}); ok {
		t.Fatal("long reason: want invalid")
	}
}
