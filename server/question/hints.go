package question

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"flagarena/server/logs"
)

// AddHintRequest 添加提示请求
type AddHintRequest struct {
	Content string `json:"content" binding:"required"`
	Cost    int    `json:"cost"`
}

// HandleListChallengeHints 获取题目的所有提示（管理端，含内容）
func HandleListChallengeHints(c *gin.Context, db *sql.DB) {
	challengeID := c.Param("id")

	rows, err := db.Query(`
		SELECT id, challenge_id, content, cost FROM hints
		WHERE challenge_id = $1 ORDER BY id`, challengeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}
	defer rows.Close()

	type AdminHint struct {
		ID          int64  `json:"id"`
		ChallengeID int64  `json:"challengeId"`
		Content     string `json:"content"`
		Cost        int    `json:"cost"`
		UnlockCount int    `json:"unlockCount"`
	}

	hints := []AdminHint{}
	for rows.Next() {
		var h AdminHint
		if err := rows.Scan(&h.ID, &h.ChallengeID, &h.Content, &h.Cost); err != nil {
			continue
		}
		db.QueryRow(`SELECT COUNT(*) FROM unlocked_hints WHERE hint_id = $1`, h.ID).Scan(&h.UnlockCount)
		hints = append(hints, h)
	}
	c.JSON(http.StatusOK, hints)
}

// HandleAddChallengeHint 给题目添加提示
func HandleAddChallengeHint(c *gin.Context, db *sql.DB) {
	challengeID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}

	var req AddHintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}
	if req.Cost < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "提示费用不能为负"})
		return
	}

	var exists bool
	db.QueryRow(`SELECT EXISTS (SELECT 1 FROM challenges WHERE id = $1)`, challengeID).Scan(&exists)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "CHALLENGE_NOT_FOUND", "message": "题目不存在"})
		return
	}

	var id int64
	err = db.QueryRow(`INSERT INTO hints (challenge_id, content, cost) VALUES ($1, $2, $3) RETURNING id`,
		challengeID, req.Content, req.Cost).Scan(&id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR", "message": err.Error()})
		return
	}

	adminID := c.GetInt64("userID")
	logs.WriteLog(db, logs.TypeAdminOp, logs.LevelInfo, &adminID, &challengeID, &id, "添加提示", nil)
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// HandleDeleteChallengeHint 删除提示
func HandleDeleteChallengeHint(c *gin.Context, db *sql.DB) {
	hintID := c.Param("hintId")

	res, err := db.Exec(`DELETE FROM hints WHERE id = $1 AND challenge_id = $2`, hintID, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR", "message": err.Error()})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "HINT_NOT_FOUND", "message": "提示不存在"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "提示已删除"})
}

// HandleGetChallengeHints 获取题目提示（用户端）。
// 未解锁的提示只展示费用，解锁后才返回内容。
func HandleGetChallengeHints(c *gin.Context, db *sql.DB) {
	challengeID := c.Param("id")
	userID := c.GetInt64("userID")

	rows, err := db.Query(`
		SELECT h.id, h.cost, h.content,
		       EXISTS (SELECT 1 FROM unlocked_hints uh WHERE uh.hint_id = h.id AND uh.user_id = $2)
		FROM hints h
		WHERE h.challenge_id = $1
		ORDER BY h.id`, challengeID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}
	defer rows.Close()

	type UserHint struct {
		ID       int64  `json:"id"`
		Cost     int    `json:"cost"`
		Unlocked bool   `json:"unlocked"`
		Content  string `json:"content,omitempty"`
	}

	hints := []UserHint{}
	for rows.Next() {
		var h UserHint
		var content string
		if err := rows.Scan(&h.ID, &h.Cost, &content, &h.Unlocked); err != nil {
			continue
		}
		if h.Unlocked {
			h.Content = content
		}
		hints = append(hints, h)
	}
	c.JSON(http.StatusOK, hints)
}
