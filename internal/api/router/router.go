package router

import (
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/thtun0709/beswd/config"
	"github.com/thtun0709/beswd/internal/api/handler"
	"github.com/thtun0709/beswd/internal/api/middleware"
	"github.com/thtun0709/beswd/internal/metrics"
	"github.com/thtun0709/beswd/pkg/jwt"
	"github.com/thtun0709/beswd/pkg/redis"
)

// 登录与找回密码的限流窗口
const (
	authRateLimit  = 10
	authRateWindow = time.Minute
)

// Setup 初始化并返回 Gin 路由引擎；rdb 为 nil 时不做黑名单检查与限流
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(ginzap.RecoveryWithZap(logger, true))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(metrics.GinMiddleware)
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	// ── 健康检查 / 指标 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())

	var (
		blacklist middleware.Blacklist
		limiter   middleware.Limiter
	)
	if rdb != nil {
		blacklist, limiter = rdb, rdb
	}
	authLimit := middleware.RateLimit(limiter, authRateLimit, authRateWindow)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authLimit, h.Auth.Register)
			auth.POST("/login", authLimit, h.Auth.Login)
			auth.POST("/refresh", h.Auth.RefreshToken)
			auth.POST("/forgot-password", authLimit, h.Auth.ForgotPassword)
			auth.POST("/verify-reset-code", authLimit, h.Auth.VerifyResetCode)
			auth.POST("/reset-password", authLimit, h.Auth.ResetPassword)
		}

		// 帖子只读接口公开
		v1.GET("/posts", h.Post.ListPosts)
		v1.GET("/posts/:id", h.Post.GetPost)

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, blacklist))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.Me)

			// 学生
			students := authorized.Group("/students")
			{
				students.GET("", middleware.RoleAuth("admin"), h.Student.ListStudents)
				students.PUT("/me", middleware.RoleAuth("student"), h.Student.UpdateProfile)
				students.GET("/:id", h.Student.GetStudent)
			}

			// 讲师
			lecturers := authorized.Group("/lecturers")
			{
				lecturers.GET("", h.Mentorship.ListLecturers)
				lecturers.GET("/:id", h.Lecturer.GetLecturer)
				lecturers.POST("", middleware.RoleAuth("admin"), h.Lecturer.CreateLecturer)
				lecturers.PUT("/:id", middleware.RoleAuth("admin"), h.Lecturer.UpdateLecturer)
				lecturers.DELETE("/:id", middleware.RoleAuth("admin"), h.Lecturer.DeleteLecturer)
			}

			// 小组 / 投票 / 导师申请（组长身份由业务层在行锁下判定）
			teams := authorized.Group("/teams")
			{
				teams.GET("", h.Team.ListTeams)
				teams.GET("/:id", h.Team.GetTeam)
				teams.POST("", middleware.RoleAuth("student"), h.Team.CreateTeam)
				teams.POST("/:id/join", middleware.RoleAuth("student"), h.Team.JoinTeam)
				teams.POST("/:id/leave", middleware.RoleAuth("student"), h.Team.LeaveTeam)
				teams.PUT("/:id", middleware.RoleAuth("admin"), h.Team.UpdateTeam)
				teams.PUT("/:id/status", middleware.RoleAuth("admin"), h.Team.SetTeamStatus)
				teams.DELETE("/:id", middleware.RoleAuth("admin"), h.Team.DeleteTeam)

				teams.POST("/:id/votes", middleware.RoleAuth("student"), h.Vote.CastVote)
				teams.GET("/:id/votes", middleware.RoleAuth("student", "admin"), h.Vote.ListVotes)

				teams.POST("/:id/mentorship-requests", middleware.RoleAuth("student"), h.Mentorship.SendRequest)
				teams.GET("/:id/mentorship-requests", middleware.RoleAuth("student", "admin"), h.Mentorship.ListTeamRequests)
			}

			requests := authorized.Group("/mentorship-requests", middleware.RoleAuth("lecturer"))
			{
				requests.GET("", h.Mentorship.ListMyRequests)
				requests.PATCH("/:id", h.Mentorship.RespondRequest)
			}

			// 帖子与评论
			authorized.POST("/posts", h.Post.CreatePost)
			authorized.PUT("/posts/:id", h.Post.UpdatePost)
			authorized.DELETE("/posts/:id", h.Post.DeletePost)
			authorized.POST("/posts/:id/comments", h.Post.AddComment)
			authorized.DELETE("/comments/:id", h.Post.DeleteComment)

			// 导出
			authorized.GET("/export/teams", middleware.RoleAuth("admin"), h.Export.ExportRoster)
		}
	}

	return r
}
