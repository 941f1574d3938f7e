package scoring

import "time"

// Mode 全局计分模式
type Mode string

const (
	ModeStatic  Mode = "static"
	ModeDynamic Mode = "dynamic"
)

// Config 全局计分配置（固定ID的单例记录，管理员可随时修改）
type Config struct {
	Mode Mode `json:"mode"`
}

// Challenge 题目信息及其计分状态
type Challenge struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Flag          string  `json:"flag,omitempty"` // 只有管理员可见
	Description   string  `json:"description"`
	Published     bool    `json:"published"`
	Dynamic       bool    `json:"dynamic"`
	CurrentPoints int     `json:"currentPoints"`
	InitialPoints int     `json:"initialPoints"`
	MinPoints     int     `json:"minPoints"`
	DecayPerSolve int     `json:"decayPerSolve"`
	FirstBloodUID *int64  `json:"firstBloodUserId"` // 一血用户，只设置一次
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

// User 用户信息（score 只允许计分引擎和提示经济修改）
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Score    int    `json:"score"`
	TeamID   *int64 `json:"teamId"`
}

// Solve 解题记录，写入后不可变更
type Solve struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	ChallengeID int64     `json:"challengeId"`
	Points      int       `json:"points"` // 结算时刻的分数快照，永不回写
	SolvedAt    time.Time `json:"solvedAt"`
}

// Hint 题目提示
type Hint struct {
	ID          int64  `json:"id"`
	ChallengeID int64  `json:"challengeId"`
	Content     string `json:"content"`
	Cost        int    `json:"cost"`
}

// UnlockedHint 提示解锁记录，写入后不可变更
type UnlockedHint struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"userId"`
	HintID     int64     `json:"hintId"`
	UnlockedAt time.Time `json:"unlockedAt"`
}

// TeamStanding 排行榜中一支队伍的名次
type TeamStanding struct {
	Rank        int        `json:"rank"`
	TeamID      int64      `json:"teamId"`
	TeamName    string     `json:"teamName"`
	TotalScore  int        `json:"totalScore"`
	SolveCount  int        `json:"solveCount"`
	LastSolveAt *time.Time `json:"lastSolveAt"`
}
