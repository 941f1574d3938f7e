package scoring

import (
	"context"
	"log/slog"
	"time"
)

// UnlockResult 提示解锁结果
type UnlockResult struct {
	Cost       int       `json:"cost"`
	Balance    int       `json:"balance"` // 扣费后的剩余积分
	UnlockedAt time.Time `json:"unlockedAt"`
}

// UnlockHint 解锁提示：扣积分 + 写解锁记录，二者同一事务提交。
//
// 余额检查和扣费之间锁定用户积分行，同一用户并发解锁不同提示
// 也会在这里串行化，第二个事务看到的是扣费后的余额，不会超支。
func (e *Engine) UnlockHint(ctx context.Context, userID, hintID int64) (*UnlockResult, error) {
	var result *UnlockResult
	err := e.withRetry(ctx, func(tx Tx) error {
		result = nil

		hint, err := tx.HintByID(hintID)
		if err != nil {
			return err
		}

		unlocked, err := tx.HasUnlock(userID, hintID)
		if err != nil {
			return err
		}
		if unlocked {
			return ErrAlreadyUnlocked
		}

		user, err := tx.UserForUpdate(userID)
		if err != nil {
			return err
		}
		if user.Score < hint.Cost {
			return ErrInsufficientScore
		}

		unlockedAt, err := tx.InsertUnlock(userID, hintID)
		if err != nil {
			return err
		}
		if err := tx.AddScore(userID, -hint.Cost); err != nil {
			return err
		}

		result = &UnlockResult{Cost: hint.Cost, Balance: user.Score - hint.Cost, UnlockedAt: unlockedAt}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("hint unlocked", "user_id", userID, "hint_id", hintID, "cost", result.Cost)
	return result, nil
}
