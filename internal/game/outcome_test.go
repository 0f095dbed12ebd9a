package game

import (
	"errors"
	"testing"
)

func TestParseCardToken(t *testing.T) {
	card, err := ParseCardToken("1|r")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if card.Rank != 1 || card.Suit != SuitHeart {
		t.Fatalf("unexpected card: %+v", card)
	}
	if card.Display() != "红桃A" {
		t.Fatalf("display: %s", card.Display())
	}
	if card.ImageToken() != "r1" {
		t.Fatalf("image token: %s", card.ImageToken())
	}

	// 空槽位
	card, err = ParseCardToken("0|r")
	if err != nil || card != nil {
		t.Fatalf("empty slot: card=%v err=%v", card, err)
	}

	for _, bad := range []string{"", "1", "14|r", "-1|r", "1|x", "a|r"} {
		if _, err := ParseCardToken(bad); !errors.Is(err, ErrBadCardToken) {
			t.Fatalf("token %q: want ErrBadCardToken, got %v", bad, err)
		}
	}
}

func TestComputeOutcomePoints(t *testing.T) {
	// 庄：红桃K + 黑桃6 = 6 点；闲：方块4 + 梅花4 = 8 点
	out, err := ComputeOutcome(map[int]string{
		1: "13|r", 2: "6|h", 3: "0|r",
		4: "4|f", 5: "4|m", 6: "0|r",
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if out.Banker.Point != 6 || out.Player.Point != 8 {
		t.Fatalf("points: banker=%d player=%d", out.Banker.Point, out.Player.Point)
	}
	if out.Category != CategoryPlayer {
		t.Fatalf("category: %v", out.Category)
	}
	if !out.Player.Pair {
		t.Fatal("player pair flag not set")
	}
	if out.Banker.Pair {
		t.Fatal("banker pair flag set")
	}
	// 幸运6统计未取模的庄家计点和
	if out.LuckyTotal != 6 || out.LuckySize != 2 {
		t.Fatalf("lucky: total=%d size=%d", out.LuckyTotal, out.LuckySize)
	}
	if out.Banker.Display != "红桃K-黑桃6" {
		t.Fatalf("display: %s", out.Banker.Display)
	}
}

func TestComputeOutcomeTie(t *testing.T) {
	// 双方均为 4 点
	out, err := ComputeOutcome(map[int]string{
		1: "2|r", 2: "2|h",
		4: "13|f", 5: "4|m",
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if out.Category != CategoryTie {
		t.Fatalf("category: %v, want tie", out.Category)
	}
	if out.Banker.Point != 4 || out.Player.Point != 4 {
		t.Fatalf("points: %d vs %d", out.Banker.Point, out.Player.Point)
	}
}

func TestComputeOutcomeThreeCards(t *testing.T) {
	// 庄三张 2+2+3 = 7 点（龙7），闲三张 10+4+4 = 8 点（熊8）
	out, err := ComputeOutcome(map[int]string{
		1: "2|r", 2: "2|h", 3: "3|f",
		4: "10|m", 5: "4|r", 6: "4|h",
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !out.Dragon7 {
		t.Fatal("dragon7 flag not set")
	}
	if !out.Panda8 {
		t.Fatal("panda8 flag not set")
	}
	if out.LuckySize != 3 || out.LuckyTotal != 7 {
		t.Fatalf("lucky: total=%d size=%d", out.LuckyTotal, out.LuckySize)
	}
}

func TestComputeOutcomePointRange(t *testing.T) {
	// 任意合法牌面：点数落在 [0,9]，且大结果只有一种
	boards := []map[int]string{
		{1: "13|r", 2: "12|h", 4: "11|f", 5: "10|m"},
		{1: "9|r", 2: "9|h", 3: "9|f", 4: "1|m", 5: "2|r", 6: "3|h"},
		{1: "5|r", 2: "6|h", 4: "7|f", 5: "8|m"},
	}
	for i, b := range boards {
		out, err := ComputeOutcome(b)
		if err != nil {
			t.Fatalf("board %d: %v", i, err)
		}
		if out.Banker.Point < 0 || out.Banker.Point > 9 {
			t.Fatalf("board %d: banker point %d", i, out.Banker.Point)
		}
		if out.Player.Point < 0 || out.Player.Point > 9 {
			t.Fatalf("board %d: player point %d", i, out.Player.Point)
		}
		if out.Category != CategoryTie && out.Category != CategoryBanker && out.Category != CategoryPlayer {
			t.Fatalf("board %d: category %v", i, out.Category)
		}
	}
}

func TestComputeOutcomeEmptyBoard(t *testing.T) {
	_, err := ComputeOutcome(map[int]string{1: "0|r", 4: "0|r"})
	if !errors.Is(err, ErrEmptyBoard) {
		t.Fatalf("want ErrEmptyBoard, got %v", err)
	}
	_, err = ComputeOutcome(map[int]string{})
	if !errors.Is(err, ErrEmptyBoard) {
		t.Fatalf("want ErrEmptyBoard, got %v", err)
	}
}
