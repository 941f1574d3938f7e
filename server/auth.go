package main

import (
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"flagarena/server/logs"
)

// ensureAdmin 确保管理员账户存在（由环境变量控制）
func ensureAdmin(db *sql.DB) error {
	username := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")
	if username == "" || password == "" {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	var existingID int64
	err = db.QueryRow(`SELECT id FROM users WHERE username = $1`, username).Scan(&existingID)
	if err == sql.ErrNoRows {
		var newID int64
		err = db.QueryRow(`INSERT INTO users (username, password_hash, role) VALUES ($1, $2, 'admin') RETURNING id`,
			username, string(hash)).Scan(&newID)
		if err != nil {
			return err
		}
		slog.Info("created admin user", "username", username, "id", newID)
		return nil
	}
	if err != nil {
		return err
	}

	// 用户已存在，同步角色和密码
	_, err = db.Exec(`UPDATE users SET role = 'admin', password_hash = $1, updated_at = NOW() WHERE id = $2`,
		string(hash), existingID)
	if err != nil {
		return err
	}
	slog.Info("updated admin user", "username", username, "id", existingID)
	return nil
}

// handleLogin 处理登录请求
func handleLogin(c *gin.Context, db *sql.DB, secret []byte) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}

	var (
		id           int64
		role         string
		score        int
		teamID       sql.NullInt64
		passwordHash string
	)

	err := db.QueryRow(
		`SELECT id, role, score, team_id, password_hash FROM users WHERE username = $1`,
		req.Username,
	).Scan(&id, &role, &score, &teamID, &passwordHash)

	if err == sql.ErrNoRows {
		logs.WriteLog(db, logs.TypeLogin, logs.LevelError, nil, nil, nil,
			"登录失败: 用户 ["+req.Username+"] 不存在", nil)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "INVALID_CREDENTIALS"})
		return
	}
	if err != nil {
		slog.Error("query user failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)); err != nil {
		logs.WriteLog(db, logs.TypeLogin, logs.LevelError, &id, nil, nil,
			"登录失败: 用户 ["+req.Username+"] 密码错误", nil)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "INVALID_CREDENTIALS"})
		return
	}

	u := User{ID: id, Username: req.Username, Role: role, Score: score}
	if teamID.Valid {
		tid := teamID.Int64
		u.TeamID = &tid
	}

	token, err := generateJWT(u, secret)
	if err != nil {
		slog.Error("generate token failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	logs.WriteLog(db, logs.TypeLogin, logs.LevelSuccess, &id, nil, nil, req.Username+" 登录系统", nil)
	c.JSON(http.StatusOK, loginResponse{Token: token, User: u})
}

// generateJWT 生成JWT令牌
func generateJWT(u User, secret []byte) (string, error) {
	claims := jwt.MapClaims{
		"sub":      u.ID,
		"username": u.Username,
		"role":     u.Role,
		"exp":      time.Now().Add(24 * time.Hour).Unix(),
		"iat":      time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
