package admin

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"flagarena/server/logs"
)

// ========== 用户管理 ==========

// UserDetail 用户管理详细信息
type UserDetail struct {
	ID        int64   `json:"id"`
	Username  string  `json:"username"`
	Role      string  `json:"role"`
	Score     int     `json:"score"`
	TeamID    *int64  `json:"teamId"`
	TeamName  *string `json:"teamName"`
	CreatedAt string  `json:"createdAt"`
}

type createUserRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
	TeamID   *int64 `json:"teamId"`
}

// HandleListUsers 获取用户列表
func HandleListUsers(c *gin.Context, db *sql.DB) {
	rows, err := db.Query(`
		SELECT u.id, u.username, u.role, u.score, u.team_id, t.name,
		       TO_CHAR(u.created_at, 'YYYY-MM-DD HH24:MI:SS')
		FROM users u
		LEFT JOIN teams t ON t.id = u.team_id
		ORDER BY u.id`)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}
	defer rows.Close()

	users := []UserDetail{}
	for rows.Next() {
		var u UserDetail
		var teamID sql.NullInt64
		var teamName sql.NullString
		if err := rows.Scan(&u.ID, &u.Username, &u.Role, &u.Score, &teamID, &teamName, &u.CreatedAt); err != nil {
			continue
		}
		if teamID.Valid {
			tid := teamID.Int64
			u.TeamID = &tid
		}
		if teamName.Valid {
			name := teamName.String
			u.TeamName = &name
		}
		users = append(users, u)
	}
	c.JSON(http.StatusOK, users)
}

// HandleCreateUser 创建用户
func HandleCreateUser(c *gin.Context, db *sql.DB) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}

	role := req.Role
	if role == "" {
		role = "user"
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	var id int64
	err = db.QueryRow(`
		INSERT INTO users (username, password_hash, role, team_id)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		req.Username, string(hash), role, req.TeamID).Scan(&id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "USERNAME_TAKEN", "message": "用户名已存在"})
		return
	}

	adminID := c.GetInt64("userID")
	logs.WriteLog(db, logs.TypeAdminOp, logs.LevelInfo, &adminID, nil, nil, "创建用户 ["+req.Username+"]", nil)
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// HandleDeleteUser 删除用户
func HandleDeleteUser(c *gin.Context, db *sql.DB) {
	id := c.Param("id")

	res, err := db.Exec(`DELETE FROM users WHERE id = $1 AND role != 'admin'`, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR", "message": err.Error()})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "USER_NOT_FOUND", "message": "用户不存在或不可删除"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "用户已删除"})
}

// HandleResetPassword 重置用户密码
func HandleResetPassword(c *gin.Context, db *sql.DB) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}

	var req struct {
		NewPassword string `json:"newPassword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	res, err := db.Exec(`UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`,
		string(hash), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR", "message": err.Error()})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "USER_NOT_FOUND", "message": "用户不存在"})
		return
	}

	adminID := c.GetInt64("userID")
	logs.WriteLog(db, logs.TypeAdminOp, logs.LevelInfo, &adminID, nil, nil, "重置用户密码", gin.H{"targetUserId": userID})
	c.JSON(http.StatusOK, gin.H{"message": "密码已重置"})
}

// HandleSetUserTeam 设置用户所属队伍（teamId 为空表示移出队伍）
func HandleSetUserTeam(c *gin.Context, db *sql.DB) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}

	var req struct {
		TeamID *int64 `json:"teamId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}

	if req.TeamID != nil {
		var exists bool
		db.QueryRow(`SELECT EXISTS (SELECT 1 FROM teams WHERE id = $1)`, *req.TeamID).Scan(&exists)
		if !exists {
			c.JSON(http.StatusNotFound, gin.H{"error": "TEAM_NOT_FOUND", "message": "队伍不存在"})
			return
		}
	}

	res, err := db.Exec(`UPDATE users SET team_id = $1, updated_at = NOW() WHERE id = $2`, req.TeamID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR", "message": err.Error()})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "USER_NOT_FOUND", "message": "用户不存在"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "队伍已更新"})
}

// ========== 队伍管理 ==========

type teamRequest struct {
	Name string `json:"name" binding:"required"`
}

// HandleListTeams 获取队伍列表（含成员数）
func HandleListTeams(c *gin.Context, db *sql.DB) {
	rows, err := db.Query(`
		SELECT t.id, t.name, COUNT(u.id),
		       TO_CHAR(t.created_at, 'YYYY-MM-DD HH24:MI:SS')
		FROM teams t
		LEFT JOIN users u ON u.team_id = t.id
		GROUP BY t.id, t.name, t.created_at
		ORDER BY t.id`)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}
	defer rows.Close()

	type TeamDetail struct {
		ID          int64  `json:"id"`
		Name        string `json:"name"`
		MemberCount int    `json:"memberCount"`
		CreatedAt   string `json:"createdAt"`
	}

	teams := []TeamDetail{}
	for rows.Next() {
		var t TeamDetail
		if err := rows.Scan(&t.ID, &t.Name, &t.MemberCount, &t.CreatedAt); err != nil {
			continue
		}
		teams = append(teams, t)
	}
	c.JSON(http.StatusOK, teams)
}

// HandleCreateTeam 创建队伍
func HandleCreateTeam(c *gin.Context, db *sql.DB) {
	var req teamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}

	var id int64
	err := db.QueryRow(`INSERT INTO teams (name) VALUES ($1) RETURNING id`, req.Name).Scan(&id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "TEAM_NAME_TAKEN", "message": "队伍名已存在"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// HandleDeleteTeam 删除队伍（成员的 team_id 置空，积分和解题记录保留）
func HandleDeleteTeam(c *gin.Context, db *sql.DB) {
	id := c.Param("id")

	res, err := db.Exec(`DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR", "message": err.Error()})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "TEAM_NOT_FOUND", "message": "队伍不存在"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "队伍已删除"})
}
