package submission

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"flagarena/server/logs"
	"flagarena/server/scoring"
)

var (
	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flagarena_submissions_total",
		Help: "Flag submissions by outcome.",
	}, []string{"result"})

	hintUnlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flagarena_hint_unlocks_total",
		Help: "Hint unlock attempts by outcome.",
	}, []string{"result"})
)

// SubmitFlagRequest 提交flag请求
type SubmitFlagRequest struct {
	Flag string `json:"flag" binding:"required"`
}

// SubmitFlagResponse 提交flag响应
type SubmitFlagResponse struct {
	Correct    bool   `json:"correct"`
	Message    string `json:"message"`
	Points     int    `json:"points,omitempty"`
	FirstBlood bool   `json:"firstBlood,omitempty"`
}

// HandleSubmitFlag 提交flag
func HandleSubmitFlag(c *gin.Context, db *sql.DB, engine *scoring.Engine) {
	challengeID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "题目ID无效"})
		return
	}
	userID := c.GetInt64("userID")

	var req SubmitFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "请输入flag"})
		return
	}

	result, err := engine.SubmitFlag(c.Request.Context(), userID, challengeID, req.Flag)
	if err != nil {
		submissionsTotal.WithLabelValues(errLabel(err)).Inc()
		if errors.Is(err, scoring.ErrIncorrectFlag) {
			logs.WriteLog(db, logs.TypeFlagSubmit, logs.LevelError, &userID, &challengeID, nil,
				"提交答案 — 错误", gin.H{"flag": req.Flag})
		}
		writeScoringError(c, err)
		return
	}

	submissionsTotal.WithLabelValues("accepted").Inc()
	logs.WriteLog(db, logs.TypeFlagSubmit, logs.LevelSuccess, &userID, &challengeID, nil,
		"提交答案 — 正确", gin.H{"points": result.Points, "firstBlood": result.FirstBlood})

	resp := SubmitFlagResponse{
		Correct:    true,
		Points:     result.Points,
		FirstBlood: result.FirstBlood,
	}
	if result.FirstBlood {
		resp.Message = "一血！恭喜！"
	} else {
		resp.Message = "回答正确！"
	}
	c.JSON(http.StatusOK, resp)
}

// UnlockHintResponse 解锁提示响应
type UnlockHintResponse struct {
	Cost    int    `json:"cost"`
	Balance int    `json:"balance"`
	Message string `json:"message"`
}

// HandleUnlockHint 解锁提示（扣积分）
func HandleUnlockHint(c *gin.Context, db *sql.DB, engine *scoring.Engine) {
	hintID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "提示ID无效"})
		return
	}
	userID := c.GetInt64("userID")

	result, err := engine.UnlockHint(c.Request.Context(), userID, hintID)
	if err != nil {
		hintUnlocksTotal.WithLabelValues(errLabel(err)).Inc()
		writeScoringError(c, err)
		return
	}

	hintUnlocksTotal.WithLabelValues("unlocked").Inc()
	logs.WriteLog(db, logs.TypeHintUnlock, logs.LevelSuccess, &userID, nil, &hintID,
		"解锁提示", gin.H{"cost": result.Cost})

	c.JSON(http.StatusOK, UnlockHintResponse{
		Cost:    result.Cost,
		Balance: result.Balance,
		Message: "提示已解锁",
	})
}

// HandleGetLeaderboard 获取排行榜
func HandleGetLeaderboard(c *gin.Context, engine *scoring.Engine) {
	standings, err := engine.Rank(c.Request.Context())
	if err != nil {
		slog.Error("rank failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	if standings == nil {
		standings = []scoring.TeamStanding{}
	}
	c.JSON(http.StatusOK, standings)
}

// SolveInfo 个人解题记录
type SolveInfo struct {
	ChallengeID   int64  `json:"challengeId"`
	ChallengeName string `json:"challengeName"`
	Points        int    `json:"points"`
	SolvedAt      string `json:"solvedAt"`
}

// HandleGetMySolves 获取当前用户的解题列表和总积分。
// points 是结算时刻的快照，题目分值后续变化不影响这里。
func HandleGetMySolves(c *gin.Context, db *sql.DB) {
	userID := c.GetInt64("userID")

	rows, err := db.Query(`
		SELECT s.challenge_id, ch.name, s.points, s.solved_at
		FROM solves s
		JOIN challenges ch ON ch.id = s.challenge_id
		WHERE s.user_id = $1
		ORDER BY s.solved_at ASC`, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}
	defer rows.Close()

	solves := []SolveInfo{}
	for rows.Next() {
		var s SolveInfo
		var solvedAt time.Time
		if err := rows.Scan(&s.ChallengeID, &s.ChallengeName, &s.Points, &solvedAt); err != nil {
			continue
		}
		s.SolvedAt = solvedAt.Format("2006-01-02 15:04:05")
		solves = append(solves, s)
	}

	var score int
	db.QueryRow(`SELECT score FROM users WHERE id = $1`, userID).Scan(&score)

	c.JSON(http.StatusOK, gin.H{"solves": solves, "score": score})
}

// HandleGetChallengeStats 获取题目解题统计（解题数、一血、解题者列表）
func HandleGetChallengeStats(c *gin.Context, db *sql.DB) {
	challengeID := c.Param("id")

	var solveCount int
	db.QueryRow(`SELECT COUNT(*) FROM solves WHERE challenge_id = $1`, challengeID).Scan(&solveCount)

	var currentPoints int
	var firstBlood sql.NullInt64
	err := db.QueryRow(`SELECT current_points, first_blood_user_id FROM challenges WHERE id = $1`,
		challengeID).Scan(&currentPoints, &firstBlood)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "CHALLENGE_NOT_FOUND", "message": "题目不存在"})
		return
	}

	type SolverInfo struct {
		Rank     int    `json:"rank"`
		UserID   int64  `json:"userId"`
		Username string `json:"username"`
		Points   int    `json:"points"`
		SolvedAt string `json:"solvedAt"`
	}

	rows, err := db.Query(`
		SELECT s.user_id, u.username, s.points, s.solved_at
		FROM solves s
		JOIN users u ON u.id = s.user_id
		WHERE s.challenge_id = $1
		ORDER BY s.solved_at ASC`, challengeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}
	defer rows.Close()

	solvers := []SolverInfo{}
	rank := 1
	for rows.Next() {
		var s SolverInfo
		var solvedAt time.Time
		if err := rows.Scan(&s.UserID, &s.Username, &s.Points, &solvedAt); err != nil {
			continue
		}
		s.Rank = rank
		s.SolvedAt = solvedAt.Format("2006-01-02 15:04:05")
		solvers = append(solvers, s)
		rank++
	}

	resp := gin.H{"solveCount": solveCount, "currentPoints": currentPoints, "solvers": solvers}
	if firstBlood.Valid {
		resp["firstBloodUserId"] = firstBlood.Int64
	}
	c.JSON(http.StatusOK, resp)
}

// writeScoringError 把计分引擎错误映射为HTTP响应，错误类型原样透传
func writeScoringError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, scoring.ErrChallengeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "CHALLENGE_NOT_FOUND", "message": "题目不存在"})
	case errors.Is(err, scoring.ErrChallengeNotPublished):
		c.JSON(http.StatusBadRequest, gin.H{"error": "CHALLENGE_NOT_PUBLISHED", "message": "题目未开放"})
	case errors.Is(err, scoring.ErrAlreadySolved):
		c.JSON(http.StatusBadRequest, gin.H{"error": "ALREADY_SOLVED", "message": "您已解出该题"})
	case errors.Is(err, scoring.ErrIncorrectFlag):
		c.JSON(http.StatusBadRequest, gin.H{"error": "INCORRECT_FLAG", "message": "Flag错误"})
	case errors.Is(err, scoring.ErrHintNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "HINT_NOT_FOUND", "message": "提示不存在"})
	case errors.Is(err, scoring.ErrAlreadyUnlocked):
		c.JSON(http.StatusBadRequest, gin.H{"error": "ALREADY_UNLOCKED", "message": "该提示已解锁"})
	case errors.Is(err, scoring.ErrInsufficientScore):
		c.JSON(http.StatusBadRequest, gin.H{"error": "INSUFFICIENT_SCORE", "message": "积分不足"})
	case errors.Is(err, scoring.ErrConflict):
		// 引擎内部重试已用尽，调用方可安全重试
		c.JSON(http.StatusConflict, gin.H{"error": "TRANSACTION_CONFLICT", "message": "系统繁忙，请稍后重试"})
	default:
		slog.Error("scoring operation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
	}
}

// errLabel 错误对应的指标标签
func errLabel(err error) string {
	switch {
	case errors.Is(err, scoring.ErrAlreadySolved):
		return "already_solved"
	case errors.Is(err, scoring.ErrIncorrectFlag):
		return "incorrect"
	case errors.Is(err, scoring.ErrAlreadyUnlocked):
		return "already_unlocked"
	case errors.Is(err, scoring.ErrInsufficientScore):
		return "insufficient_score"
	case errors.Is(err, scoring.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
