package main

import (
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flagarena/pkg/logging"
	"flagarena/server/admin"
	"flagarena/server/logs"
	"flagarena/server/question"
	"flagarena/server/scoring"
	"flagarena/server/store/postgres"
	"flagarena/server/submission"
)

func main() {
	// .env 不存在时忽略，环境变量直接生效
	_ = godotenv.Load()
	logging.Setup()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		slog.Error("DATABASE_URL not set")
		os.Exit(1)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		slog.Error("JWT_SECRET not set")
		os.Exit(1)
	}

	store, err := postgres.Open(dsn)
	if err != nil {
		slog.Error("open database failed", "error", err)
		os.Exit(1)
	}
	db := store.DB()
	defer db.Close()

	if err := ensureAdmin(db); err != nil {
		slog.Error("ensure admin failed", "error", err)
		os.Exit(1)
	}

	engine := scoring.NewEngine(store)

	r := gin.Default()
	r.Use(requestLogMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.POST("/login", func(c *gin.Context) {
			handleLogin(c, db, []byte(jwtSecret))
		})

		// 排行榜公开可见
		api.GET("/leaderboard", func(c *gin.Context) {
			submission.HandleGetLeaderboard(c, engine)
		})

		// 需要登录的用户API
		userAPI := api.Group("")
		userAPI.Use(userAuthMiddleware([]byte(jwtSecret)))
		{
			userAPI.GET("/challenges", func(c *gin.Context) {
				question.HandlePublicChallenges(c, db)
			})
			userAPI.GET("/challenges/:id/stats", func(c *gin.Context) {
				submission.HandleGetChallengeStats(c, db)
			})
			userAPI.POST("/challenges/:id/submit", func(c *gin.Context) {
				submission.HandleSubmitFlag(c, db, engine)
			})
			userAPI.GET("/challenges/:id/hints", func(c *gin.Context) {
				question.HandleGetChallengeHints(c, db)
			})
			userAPI.POST("/hints/:id/unlock", func(c *gin.Context) {
				submission.HandleUnlockHint(c, db, engine)
			})
			userAPI.GET("/solves", func(c *gin.Context) {
				submission.HandleGetMySolves(c, db)
			})
		}

		// 管理员后台API
		adminAPI := api.Group("/admin")
		adminAPI.Use(authMiddleware([]byte(jwtSecret)))
		{
			// 题目管理 CRUD
			adminAPI.GET("/challenges", func(c *gin.Context) {
				question.HandleListChallenges(c, db)
			})
			adminAPI.POST("/challenges", func(c *gin.Context) {
				question.HandleCreateChallenge(c, db)
			})
			adminAPI.PUT("/challenges/:id", func(c *gin.Context) {
				question.HandleUpdateChallenge(c, db)
			})
			adminAPI.DELETE("/challenges/:id", func(c *gin.Context) {
				question.HandleDeleteChallenge(c, db)
			})

			// 提示管理
			adminAPI.GET("/challenges/:id/hints", func(c *gin.Context) {
				question.HandleListChallengeHints(c, db)
			})
			adminAPI.POST("/challenges/:id/hints", func(c *gin.Context) {
				question.HandleAddChallengeHint(c, db)
			})
			adminAPI.DELETE("/challenges/:id/hints/:hintId", func(c *gin.Context) {
				question.HandleDeleteChallengeHint(c, db)
			})

			// 用户管理
			adminAPI.GET("/users", func(c *gin.Context) {
				admin.HandleListUsers(c, db)
			})
			adminAPI.POST("/users", func(c *gin.Context) {
				admin.HandleCreateUser(c, db)
			})
			adminAPI.DELETE("/users/:id", func(c *gin.Context) {
				admin.HandleDeleteUser(c, db)
			})
			adminAPI.PUT("/users/:id/team", func(c *gin.Context) {
				admin.HandleSetUserTeam(c, db)
			})
			adminAPI.POST("/users/:id/reset-password", func(c *gin.Context) {
				admin.HandleResetPassword(c, db)
			})

			// 队伍管理
			adminAPI.GET("/teams", func(c *gin.Context) {
				admin.HandleListTeams(c, db)
			})
			adminAPI.POST("/teams", func(c *gin.Context) {
				admin.HandleCreateTeam(c, db)
			})
			adminAPI.DELETE("/teams/:id", func(c *gin.Context) {
				admin.HandleDeleteTeam(c, db)
			})

			// 计分设置
			adminAPI.GET("/settings/scoring", func(c *gin.Context) {
				admin.HandleGetScoringConfig(c, db)
			})
			adminAPI.PUT("/settings/scoring", func(c *gin.Context) {
				admin.HandleUpdateScoringConfig(c, db)
			})

			// 排行榜导出
			adminAPI.GET("/leaderboard/export", func(c *gin.Context) {
				admin.HandleExportLeaderboard(c, engine)
			})

			// 系统日志
			adminAPI.GET("/logs", func(c *gin.Context) {
				logs.HandleGetLogs(c, db)
			})
		}
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	slog.Info("server starting", "port", port)
	if err := r.Run(":" + port); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}
