package game

import "fmt"

// WagerType 玩法类型，线路编码沿用现网协议
type WagerType int

const (
	WagerPlayerPair WagerType = 2  // 闲对
	WagerLucky6     WagerType = 3  // 幸运6
	WagerBankerPair WagerType = 4  // 庄对
	WagerPlayer     WagerType = 6  // 闲
	WagerTie        WagerType = 7  // 和
	WagerBanker     WagerType = 8  // 庄
	WagerDragon7    WagerType = 9  // 龙7
	WagerPanda8     WagerType = 10 // 熊8
)

var wagerNames = map[WagerType]string{
	WagerPlayerPair: "闲对",
	WagerLucky6:     "幸运6",
	WagerBankerPair: "庄对",
	WagerPlayer:     "闲",
	WagerTie:        "和",
	WagerBanker:     "庄",
	WagerDragon7:    "龙7",
	WagerPanda8:     "熊8",
}

func (w WagerType) String() string {
	if name, ok := wagerNames[w]; ok {
		return name
	}
	return fmt.Sprintf("wager(%d)", int(w))
}

// Valid 是否为已知玩法
func (w WagerType) Valid() bool {
	_, ok := wagerNames[w]
	return ok
}

// AllWagerTypes 全部已知玩法（固定顺序，用于遍历与测试）
func AllWagerTypes() []WagerType {
	return []WagerType{
		WagerPlayerPair, WagerLucky6, WagerBankerPair,
		WagerPlayer, WagerTie, WagerBanker,
		WagerDragon7, WagerPanda8,
	}
}
