package question

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"flagarena/server/logs"
	"flagarena/server/scoring"
)

// ChallengeRequest 创建/更新题目请求
type ChallengeRequest struct {
	Name          string `json:"name" binding:"required"`
	Flag          string `json:"flag" binding:"required"`
	Description   string `json:"description"`
	Dynamic       bool   `json:"dynamic"`
	Points        int    `json:"points"`        // 静态题目固定分值
	InitialPoints int    `json:"initialPoints"` // 动态题目初始分值
	MinPoints     int    `json:"minPoints"`
	DecayPerSolve int    `json:"decayPerSolve"`
	Published     bool   `json:"published"`
}

// HandleListChallenges 获取题目列表（管理端，包含flag）
func HandleListChallenges(c *gin.Context, db *sql.DB) {
	rows, err := db.Query(`
		SELECT id, name, flag, description, published, dynamic,
		       current_points, initial_points, min_points, decay_per_solve,
		       first_blood_user_id,
		       TO_CHAR(created_at, 'YYYY-MM-DD HH24:MI:SS'),
		       TO_CHAR(updated_at, 'YYYY-MM-DD HH24:MI:SS')
		FROM challenges ORDER BY id`)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}
	defer rows.Close()

	challenges := []scoring.Challenge{}
	for rows.Next() {
		var ch scoring.Challenge
		var firstBlood sql.NullInt64
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.Flag, &ch.Description, &ch.Published, &ch.Dynamic,
			&ch.CurrentPoints, &ch.InitialPoints, &ch.MinPoints, &ch.DecayPerSolve,
			&firstBlood, &ch.CreatedAt, &ch.UpdatedAt); err != nil {
			continue
		}
		if firstBlood.Valid {
			uid := firstBlood.Int64
			ch.FirstBloodUID = &uid
		}
		challenges = append(challenges, ch)
	}
	c.JSON(http.StatusOK, challenges)
}

// HandlePublicChallenges 获取已开放题目列表（用户端，不返回flag）
func HandlePublicChallenges(c *gin.Context, db *sql.DB) {
	userID := c.GetInt64("userID")

	rows, err := db.Query(`
		SELECT ch.id, ch.name, ch.description, ch.dynamic, ch.current_points,
		       ch.first_blood_user_id,
		       (SELECT COUNT(*) FROM solves s WHERE s.challenge_id = ch.id),
		       EXISTS (SELECT 1 FROM solves s WHERE s.challenge_id = ch.id AND s.user_id = $1)
		FROM challenges ch
		WHERE ch.published = TRUE
		ORDER BY ch.id`, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}
	defer rows.Close()

	type PublicChallenge struct {
		ID            int64  `json:"id"`
		Name          string `json:"name"`
		Description   string `json:"description"`
		Dynamic       bool   `json:"dynamic"`
		CurrentPoints int    `json:"currentPoints"`
		FirstBloodUID *int64 `json:"firstBloodUserId"`
		SolveCount    int    `json:"solveCount"`
		Solved        bool   `json:"solved"`
	}

	challenges := []PublicChallenge{}
	for rows.Next() {
		var ch PublicChallenge
		var firstBlood sql.NullInt64
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.Description, &ch.Dynamic, &ch.CurrentPoints,
			&firstBlood, &ch.SolveCount, &ch.Solved); err != nil {
			continue
		}
		if firstBlood.Valid {
			uid := firstBlood.Int64
			ch.FirstBloodUID = &uid
		}
		challenges = append(challenges, ch)
	}
	c.JSON(http.StatusOK, challenges)
}

// HandleCreateChallenge 创建题目
func HandleCreateChallenge(c *gin.Context, db *sql.DB) {
	var req ChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}

	currentPoints := initialValue(&req)

	var id int64
	err := db.QueryRow(`
		INSERT INTO challenges (name, flag, description, published, dynamic,
			current_points, initial_points, min_points, decay_per_solve)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		req.Name, req.Flag, req.Description, req.Published, req.Dynamic,
		currentPoints, req.InitialPoints, req.MinPoints, req.DecayPerSolve).Scan(&id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR", "message": err.Error()})
		return
	}

	adminID := c.GetInt64("userID")
	logs.WriteLog(db, logs.TypeAdminOp, logs.LevelInfo, &adminID, &id, nil, "创建题目 ["+req.Name+"]", nil)
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// HandleUpdateChallenge 更新题目。
// 计分参数变化时在这里显式重算 current_points（基于已有解题数），
// 持久化层不做任何隐式联动。
func HandleUpdateChallenge(c *gin.Context, db *sql.DB) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}

	var req ChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}

	var solveCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM solves WHERE challenge_id = $1`, id).Scan(&solveCount); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR"})
		return
	}

	currentPoints := recomputedValue(&req, solveCount)

	res, err := db.Exec(`
		UPDATE challenges SET name = $1, flag = $2, description = $3, published = $4,
			dynamic = $5, current_points = $6, initial_points = $7, min_points = $8,
			decay_per_solve = $9, updated_at = NOW()
		WHERE id = $10`,
		req.Name, req.Flag, req.Description, req.Published, req.Dynamic,
		currentPoints, req.InitialPoints, req.MinPoints, req.DecayPerSolve, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR", "message": err.Error()})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "CHALLENGE_NOT_FOUND", "message": "题目不存在"})
		return
	}

	adminID := c.GetInt64("userID")
	logs.WriteLog(db, logs.TypeAdminOp, logs.LevelInfo, &adminID, &id, nil, "更新题目 ["+req.Name+"]", nil)
	c.JSON(http.StatusOK, gin.H{"message": "题目已更新", "currentPoints": currentPoints})
}

// HandleDeleteChallenge 删除题目（解题记录和提示级联删除）
func HandleDeleteChallenge(c *gin.Context, db *sql.DB) {
	id := c.Param("id")

	res, err := db.Exec(`DELETE FROM challenges WHERE id = $1`, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB_ERROR", "message": err.Error()})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "CHALLENGE_NOT_FOUND", "message": "题目不存在"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "题目已删除"})
}

// initialValue 新建题目的起始分值
func initialValue(req *ChallengeRequest) int {
	if req.Dynamic {
		return req.InitialPoints
	}
	return req.Points
}

// recomputedValue 参数修改后的当前分值（动态题目按已有解题数重新衰减）
func recomputedValue(req *ChallengeRequest, solveCount int) int {
	if !req.Dynamic {
		return req.Points
	}
	ch := scoring.Challenge{
		Dynamic:       true,
		InitialPoints: req.InitialPoints,
		MinPoints:     req.MinPoints,
		DecayPerSolve: req.DecayPerSolve,
	}
	return scoring.Price(&ch, scoring.ModeDynamic, solveCount)
}
