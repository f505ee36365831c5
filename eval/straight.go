package eval

// 顺子检测基于 1..14 位的点数掩码：A(14) 同时投影到第 1 位，
// 让 A-2-3-4-5（wheel）和普通顺子共用同一套窗口扫描。
// straightWindows[high] 是 high-4..high 五个连续位全为 1 的窗口。
var straightWindows [15]uint32

func init() {
	for high := 5; high <= 14; high++ {
		straightWindows[high] = 0x1F << uint(high-4)
	}
}

// detectStraight 在点数掩码里找最大的 5 连窗口。
// 返回顺子的最高牌；wheel 的最高牌是 5 而不是 14。
// 对 5 张唯一点数和 6-7 张并集同样适用。
func detectStraight(mask uint32) (int, bool) {
	if mask&(1<<14) != 0 {
		mask |= 1 << 1 // A 兼作最小牌
	}
	for high := 14; high >= 5; high-- {
		if mask&straightWindows[high] == straightWindows[high] {
			return high, true
		}
	}
	return 0, false
}
