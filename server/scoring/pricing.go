package scoring

// Price 计算题目当前分值 - 线性衰减公式
//
// priorSolves 是本次解题之前已提交成功的解题数：第N个解题者
// 衰减 N-1 次，第一个解题者拿满分。纯函数，必须用插入本次
// 解题记录的同一事务内读到的计数调用，避免读到过期数据。
func Price(ch *Challenge, mode Mode, priorSolves int) int {
	if mode != ModeDynamic || !ch.Dynamic {
		return ch.CurrentPoints
	}
	points := ch.InitialPoints - priorSolves*ch.DecayPerSolve
	if points < ch.MinPoints {
		return ch.MinPoints
	}
	return points
}
