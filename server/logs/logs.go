package logs

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// 日志类型常量
const (
	TypeLogin      = "login"
	TypeFlagSubmit = "flag_submit"
	TypeHintUnlock = "hint_unlock"
	TypeAdminOp    = "admin_op"
)

// 日志级别常量
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
	LevelSuccess = "success"
)

// LogEntry 日志条目
type LogEntry struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	Level       string          `json:"level"`
	UserID      *int64          `json:"userId,omitempty"`
	ChallengeID *int64          `json:"challengeId,omitempty"`
	HintID      *int64          `json:"hintId,omitempty"`
	Message     string          `json:"message"`
	Details     json.RawMessage `json:"details,omitempty"`
	CreatedAt   string          `json:"createdAt"`
}

// WriteLog 写入事件日志（供其他模块调用）。
// 只做事后记录，不参与计分事务，写失败不影响业务结果。
func WriteLog(db *sql.DB, logType, level string, userID, challengeID, hintID *int64, message string, details interface{}) {
	var detailsJSON interface{}
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			detailsJSON = string(b)
		}
	}

	_, err := db.Exec(`
		INSERT INTO system_logs (type, level, user_id, challenge_id, hint_id, message, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		logType, level, userID, challengeID, hintID, message, detailsJSON)
	if err != nil {
		slog.Warn("write system log failed", "type", logType, "error", err)
	}
}

// HandleGetLogs 获取系统日志（管理端，按时间倒序分页）
func HandleGetLogs(c *gin.Context, db *sql.DB) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	query := `SELECT id, type, level, user_id, challenge_id, hint_id, message, details,
		TO_CHAR(created_at, 'YYYY-MM-DD HH24:MI:SS') FROM system_logs`
	args := []interface{}{}
	if logType := c.Query("type"); logType != "" {
		query += ` WHERE type = $1`
		args = append(args, logType)
	}
	query += ` ORDER BY created_at DESC LIMIT ` + strconv.Itoa(limit) + ` OFFSET ` + strconv.Itoa(offset)

	rows, err := db.Query(query, args...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}
	defer rows.Close()

	entries := []LogEntry{}
	for rows.Next() {
		var e LogEntry
		var details sql.NullString
		if err := rows.Scan(&e.ID, &e.Type, &e.Level, &e.UserID, &e.ChallengeID, &e.HintID,
			&e.Message, &details, &e.CreatedAt); err != nil {
			continue
		}
		if details.Valid {
			e.Details = json.RawMessage(details.String)
		}
		entries = append(entries, e)
	}

	c.JSON(http.StatusOK, gin.H{"logs": entries})
}
