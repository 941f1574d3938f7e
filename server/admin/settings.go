package admin

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"flagarena/server/logs"
	"flagarena/server/scoring"
)

// ========== 计分设置 ==========

type scoringConfigResponse struct {
	Mode string `json:"mode"`
}

type updateScoringConfigRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// HandleGetScoringConfig 获取计分模式
func HandleGetScoringConfig(c *gin.Context, db *sql.DB) {
	var mode string
	err := db.QueryRow(`SELECT mode FROM scoring_config WHERE id = 1`).Scan(&mode)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}
	c.JSON(http.StatusOK, scoringConfigResponse{Mode: mode})
}

// HandleUpdateScoringConfig 切换计分模式。
// 只影响后续提交的结算分值，已结算的 solve 快照不变。
func HandleUpdateScoringConfig(c *gin.Context, db *sql.DB) {
	var req updateScoringConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}

	mode := scoring.Mode(req.Mode)
	if mode != scoring.ModeStatic && mode != scoring.ModeDynamic {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "计分模式必须是 static 或 dynamic"})
		return
	}

	_, err := db.Exec(`UPDATE scoring_config SET mode = $1, updated_at = NOW() WHERE id = 1`, string(mode))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR", "message": err.Error()})
		return
	}

	adminID := c.GetInt64("userID")
	logs.WriteLog(db, logs.TypeAdminOp, logs.LevelInfo, &adminID, nil, nil, "切换计分模式为 ["+req.Mode+"]", nil)
	c.JSON(http.StatusOK, gin.H{"message": "计分模式已更新", "mode": req.Mode})
}
