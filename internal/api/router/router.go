package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"praxihub/backend/config"
	"praxihub/backend/internal/api/handler"
	"praxihub/backend/internal/api/middleware"
	"praxihub/backend/internal/model"
	"praxihub/backend/pkg/jwt"
	"praxihub/backend/pkg/redis"
)

// Setup builds the gin engine. rdb may be nil.
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, db *gorm.DB, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	if err := middleware.RegisterValidators(); err != nil {
		logger.Fatal("register validators failed", zap.Error(err))
	}

	r := gin.New()
	r.MaxMultipartMemory = 8 << 20

	// ── global middleware ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodySize))

	// ── health ──
	r.GET("/health", func(c *gin.Context) {
		status := gin.H{"status": "ok", "redis": rdb != nil}
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": false})
				return
			}
		}
		c.JSON(http.StatusOK, status)
	})

	// a nil *redis.Client must not become a non-nil interface
	var revoked middleware.Revocations
	if rdb != nil {
		revoked = rdb
	}

	coordinator := middleware.RoleAuth(model.RoleCoordinator, model.RoleAdmin)
	student := middleware.RoleAuth(model.RoleStudent)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// public auth
		auth := v1.Group("/auth")
		auth.Use(middleware.RateLimit(rdb, 30, time.Minute))
		{
			auth.POST("/signup", h.Auth.Signup)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
		}

		// assistant accepts anonymous visitors
		v1.POST("/assistant/chat",
			middleware.OptionalJWTAuth(jwtMgr),
			middleware.RateLimit(rdb, cfg.Feature.ChatRateLimit, time.Minute),
			h.Assistant.Chat)

		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, revoked))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.Me)

			users := authorized.Group("/users")
			{
				users.PUT("/me", h.User.UpdateProfile)
				users.PUT("/me/skills", student, h.User.UpdateSkills)
				users.PUT("/me/company", middleware.RoleAuth(model.RoleCompany), h.User.UpdateCompany)
				users.GET("/companies", h.User.ListCompanies)
			}

			internships := authorized.Group("/internships")
			{
				internships.POST("", student, h.Internship.Create)
				internships.POST("/upload", student, h.Internship.Upload)
				internships.POST("/org-request", student, h.Internship.RequestOrg)
				internships.GET("", h.Internship.List)
				internships.GET("/latest", h.Internship.Latest)
				internships.GET("/stream", h.Internship.Stream)
				internships.GET("/:id", h.Internship.Get)
				internships.GET("/:id/calendar", h.Internship.Calendar)
				internships.POST("/:id/contract", student, h.Internship.AttachContract)
				internships.POST("/:id/analyze", student, h.Internship.Reanalyze)
				internships.PUT("/:id/confirm", student, h.Internship.Confirm)
				internships.POST("/:id/rating", middleware.RoleAuth(model.RoleStudent, model.RoleCompany), h.Internship.Rate)
				internships.POST("/:id/approve", coordinator, h.Internship.Approve)
				internships.POST("/:id/reject", coordinator, h.Internship.Reject)
			}

			authorized.POST("/matchmaking", student, h.Matchmaking.Match)
			authorized.POST("/contracts/generate", h.Contract.Generate)

			notifications := authorized.Group("/notifications")
			{
				notifications.GET("", h.Notification.List)
				notifications.PUT("/:id/read", h.Notification.MarkRead)
			}

			export := authorized.Group("/export")
			{
				export.GET("/internships", coordinator, h.Export.ExportInternships)
			}
		}
	}

	return r
}
