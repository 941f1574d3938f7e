package scoring

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// 事务冲突自动重试次数，超过后把 ErrConflict 抛给调用方
const maxConflictRetries = 3

// Engine 计分引擎：flag校验、定价、账本写入、一血判定
// 作为一个原子事务执行
type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// SubmitResult 提交成功的结果
type SubmitResult struct {
	Points     int       `json:"points"`
	FirstBlood bool      `json:"firstBlood"`
	SolvedAt   time.Time `json:"solvedAt"`
}

// SubmitFlag 提交flag
//
// 整个流程在一个事务内完成：重复提交由解题记录的唯一约束兜底；
// 动态分值基于事务内读到的解题计数计算；同一题目的并发提交在
// 题目行上串行化，后提交者看到的计数包含先提交者已落库的解题。
func (e *Engine) SubmitFlag(ctx context.Context, userID, challengeID int64, flag string) (*SubmitResult, error) {
	var result *SubmitResult
	err := e.withRetry(ctx, func(tx Tx) error {
		result = nil

		cfg, err := tx.Config()
		if err != nil {
			return err
		}

		ch, err := tx.ChallengeForUpdate(challengeID)
		if err != nil {
			return err
		}
		if !ch.Published {
			return ErrChallengeNotPublished
		}

		// 先查一次已解，让重复提交拿到 ALREADY_SOLVED 而不是
		// 错误的flag比对结果；并发窗口由插入时的唯一约束关死
		solved, err := tx.HasSolve(userID, challengeID)
		if err != nil {
			return err
		}
		if solved {
			return ErrAlreadySolved
		}

		if !flagMatches(flag, ch.Flag) {
			return ErrIncorrectFlag
		}

		prior, err := tx.CountSolves(challengeID)
		if err != nil {
			return err
		}
		points := Price(ch, cfg.Mode, prior)

		solvedAt, err := tx.InsertSolve(userID, challengeID, points)
		if err != nil {
			return err
		}
		if err := tx.AddScore(userID, points); err != nil {
			return err
		}

		firstBlood := false
		if ch.FirstBloodUID == nil {
			if err := tx.SetFirstBlood(challengeID, userID); err != nil {
				return err
			}
			firstBlood = true
		}

		// 回写当前分值，让下一个解题者看到本次衰减
		if cfg.Mode == ModeDynamic && ch.Dynamic {
			if err := tx.SetCurrentPoints(challengeID, Price(ch, cfg.Mode, prior+1)); err != nil {
				return err
			}
		}

		result = &SubmitResult{Points: points, FirstBlood: firstBlood, SolvedAt: solvedAt}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("flag accepted",
		"user_id", userID,
		"challenge_id", challengeID,
		"points", result.Points,
		"first_blood", result.FirstBlood,
	)
	return result, nil
}

// withRetry 只对 ErrConflict 做有限次重试，其余错误原样上抛
func (e *Engine) withRetry(ctx context.Context, fn func(tx Tx) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = e.store.InTx(ctx, fn)
		if !errors.Is(err, ErrConflict) {
			return err
		}
		slog.Warn("ledger transaction conflict, retrying", "attempt", attempt+1)
	}
	return err
}

// flagMatches 比对flag：去除首尾空白后忽略大小写比较
func flagMatches(submitted, stored string) bool {
	return strings.EqualFold(strings.TrimSpace(submitted), strings.TrimSpace(stored))
}
