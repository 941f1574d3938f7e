package scoring

import (
	"context"
	"time"
)

// Tx 账本事务内可用的操作。所有读写都落在同一个事务上，
// 事务失败时任何一步的修改都不会留下。
type Tx interface {
	// Config 读取全局计分配置（每次提交都重新读，不允许跨事务缓存）
	Config() (Config, error)

	// ChallengeForUpdate 按ID读取题目并锁定其计分状态，
	// 同一题目的并发提交在这里串行化
	ChallengeForUpdate(id int64) (*Challenge, error)

	// UserForUpdate 按ID读取用户并锁定积分行
	UserForUpdate(id int64) (*User, error)

	// HintByID 按ID读取提示
	HintByID(id int64) (*Hint, error)

	// HasSolve 检查 (user, challenge) 是否已有解题记录
	HasSolve(userID, challengeID int64) (bool, error)

	// CountSolves 统计题目当前已提交成功的解题数
	CountSolves(challengeID int64) (int, error)

	// InsertSolve 插入解题记录。(user, challenge) 唯一约束由存储层
	// 保证，冲突时返回 ErrAlreadySolved，兜住并发重复提交
	InsertSolve(userID, challengeID int64, points int) (time.Time, error)

	// AddScore 给用户积分加 delta（可为负）
	AddScore(userID int64, delta int) error

	// SetFirstBlood 仅在一血未设置时写入，已设置则不覆盖
	SetFirstBlood(challengeID, userID int64) error

	// SetCurrentPoints 回写动态题目的当前分值
	SetCurrentPoints(challengeID int64, points int) error

	// HasUnlock 检查 (user, hint) 是否已解锁
	HasUnlock(userID, hintID int64) (bool, error)

	// InsertUnlock 插入解锁记录，唯一约束冲突返回 ErrAlreadyUnlocked
	InsertUnlock(userID, hintID int64) (time.Time, error)
}

// Store 账本存储。InTx 提供原子的读改写；fn 返回错误时整个
// 事务回滚。瞬时冲突以 ErrConflict 上报，由引擎决定是否重试。
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// Standings 在单一一致性快照内聚合所有队伍的
	// 总分、解题数和最后解题时间，未排序
	Standings(ctx context.Context) ([]TeamStanding, error)
}
