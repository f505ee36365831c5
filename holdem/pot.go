package holdem

import "sort"

type pot struct {
	amount          int64
	eligiblePlayers map[uint16]bool
}

type potManager struct {
	pots         []pot
	excessChair  uint16
	excessAmount int64
}

func (pm *potManager) resetPots() {
	pm.pots = make([]pot, 0)
	pm.excessChair = 0
	pm.excessAmount = 0
}

func (pm *potManager) addPot(p ...pot) {
	pm.pots = append(pm.pots, p...)
}

func (pm *potManager) total() int64 {
	var sum int64
	for _, p := range pm.pots {
		sum += p.amount
	}
	return sum
}

// calcPotsByPlayerBets 按下注额分层构建边池。
// 每个层级的上限由该层最小的 all-in 额决定，层级相同参与者的池会合并。
// 超额下注（最高注无人跟）先返还再分层，剩下的每一枚筹码都必须落进某个池。
func (pm *potManager) calcPotsByPlayerBets(playersWithBets []*Player) {
	sort.Slice(playersWithBets, func(i, j int) bool {
		return playersWithBets[i].Bet() < playersWithBets[j].Bet()
	})

	pm.excessChair = 0
	pm.excessAmount = 0
	if n := len(playersWithBets); n > 0 {
		top := playersWithBets[n-1]
		var secondBet int64
		if n > 1 {
			secondBet = playersWithBets[n-2].Bet()
		}
		if excess := top.Bet() - secondBet; excess > 0 {
			top.addStack(excess)
			top.addBet(-excess)
			pm.excessChair = top.ChairID()
			pm.excessAmount = excess
		}
	}

	floor := int64(0)
	for i, player := range playersWithBets {
		layer := player.Bet() - floor
		if layer <= 0 {
			continue
		}

		newPot := pot{eligiblePlayers: make(map[uint16]bool)}

		// 本层每个玩家最多贡献 layer，不足则按实际余额
		for j := i; j < len(playersWithBets); j++ {
			pj := playersWithBets[j]
			contribution := layer
			if rest := pj.Bet() - floor; contribution > rest {
				contribution = rest
			}
			newPot.amount += contribution
			if !pj.Folded() {
				newPot.eligiblePlayers[pj.ChairID()] = true
			}
		}

		// 单人有效层保留（结算时直接归其所有）；
		// 只剩弃牌玩家死钱的层并入上一个池。
		switch {
		case pm.mergeIntoLast(newPot):
		case len(newPot.eligiblePlayers) == 0 && len(pm.pots) > 0:
			pm.pots[len(pm.pots)-1].amount += newPot.amount
		default:
			pm.addPot(newPot)
		}

		floor += layer
	}
}

// mergeIntoLast 若最后一个池的参与者与 p 完全一致则并入金额
func (pm *potManager) mergeIntoLast(p pot) bool {
	if len(pm.pots) == 0 {
		return false
	}
	last := &pm.pots[len(pm.pots)-1]
	if len(last.eligiblePlayers) != len(p.eligiblePlayers) {
		return false
	}
	for chair := range p.eligiblePlayers {
		if !last.eligiblePlayers[chair] {
			return false
		}
	}
	last.amount += p.amount
	return true
}
