package scoring

import (
	"context"
	"sort"
)

// Rank 获取排行榜
//
// 只读投影：总分降序；同分时最后解题时间早的在前（先到达当前
// 分数的队伍排名更高），没有解题记录的队伍排在有记录的之后；
// 最后用队伍ID定序，保证无写入时两次调用输出完全一致。
func (e *Engine) Rank(ctx context.Context) ([]TeamStanding, error) {
	standings, err := e.store.Standings(ctx)
	if err != nil {
		return nil, err
	}

	sort.Slice(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		switch {
		case a.LastSolveAt != nil && b.LastSolveAt != nil:
			if !a.LastSolveAt.Equal(*b.LastSolveAt) {
				return a.LastSolveAt.Before(*b.LastSolveAt)
			}
		case a.LastSolveAt != nil:
			return true
		case b.LastSolveAt != nil:
			return false
		}
		return a.TeamID < b.TeamID
	})

	for i := range standings {
		standings[i].Rank = i + 1
	}
	return standings, nil
}
