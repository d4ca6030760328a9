package core

import (
	"net/http"
	"time"

	authhandler "github.com/anoixa/cerberus/api/handler/auth"
	"github.com/anoixa/cerberus/api/middleware"
	"github.com/anoixa/cerberus/cache"
	"github.com/anoixa/cerberus/config"
	"github.com/anoixa/cerberus/database"
	authservice "github.com/anoixa/cerberus/internal/auth"
	"github.com/anoixa/cerberus/internal/repositories"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

// ServerDependencies 服务器依赖项
type ServerDependencies struct {
	DatabaseFactory *database.Factory
	CacheFactory    *cache.Factory
	Repositories    *repositories.Repositories
	SessionService  *authservice.SessionService
	LoginService    *authservice.LoginService
}

// 启动gin
func setupRouter(deps *ServerDependencies) (*gin.Engine, func()) {
	cfg := config.Get()

	// 仅在开发版本时启用 gin 日志
	if config.CommitHash != "n/a" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if config.CommitHash == "n/a" {
		router.Use(gin.Logger())
	}
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Length", "Content-Type", "Authorization",
			cfg.HeaderDeviceType, cfg.HeaderAppVersion, cfg.HeaderOSVersion, cfg.HeaderDeviceFingerprint,
		},
		MaxAge: 12 * time.Hour,
	}))

	router.SetTrustedProxies(nil)

	// 凭据端点限流
	authRateLimiter := middleware.NewIPRateLimiter(cfg.RateLimitAuthRPS, cfg.RateLimitAuthBurst, cfg.RateLimitExpireTime)
	cleanup := func() {
		authRateLimiter.StopCleanup()
	}

	router.GET("/health", func(c *gin.Context) {
		checks := gin.H{
			"database": checkDatabaseHealth(deps.DatabaseFactory),
			"cache":    checkCacheHealth(deps.CacheFactory),
		}
		httpStatus := http.StatusOK
		for _, result := range checks {
			if s, ok := result.(string); ok && s != "ok" && s != "disabled" {
				httpStatus = http.StatusServiceUnavailable
				break
			}
		}
		c.JSON(httpStatus, gin.H{
			"status":  "ok",
			"uptime":  time.Since(startTime).Round(time.Second).String(),
			"version": config.Version,
			"checks":  checks,
		})
	})

	// 创建处理器与守卫（依赖注入）
	authHandler := authhandler.NewHandler(cfg, deps.LoginService, deps.SessionService)
	guard := middleware.NewAuthGuard(cfg, deps.SessionService, deps.Repositories.Accounts)

	apiGroup := router.Group("/api")
	apiGroup.Use(func(c *gin.Context) { // 所有API禁止缓存
		c.Header("Cache-Control", "no-store")
		c.Next()
	})
	{
		authGroup := apiGroup.Group("/auth")
		authGroup.Use(authRateLimiter.Middleware())
		{
			authGroup.POST("/login", authHandler.LoginHandlerFunc) // POST /api/auth/login
		}

		v1 := apiGroup.Group("/v1")
		v1.Use(guard.Middleware())
		{
			v1.POST("/auth/logout", authHandler.LogoutHandlerFunc) // POST /api/v1/auth/logout
			v1.GET("/me", authHandler.MeHandlerFunc)               // GET /api/v1/me

			sessionsGroup := v1.Group("/sessions")
			{
				sessionsGroup.GET("", authHandler.SessionsHandlerFunc)                   // GET /api/v1/sessions
				sessionsGroup.DELETE("/others", authHandler.RevokeOtherSessionsHandlerFunc) // DELETE /api/v1/sessions/others
				sessionsGroup.DELETE("/all", authHandler.RevokeAllSessionsHandlerFunc)      // DELETE /api/v1/sessions/all
				sessionsGroup.DELETE("/:id", authHandler.RevokeSessionHandlerFunc)          // DELETE /api/v1/sessions/{id}
			}
		}
	}

	return router, cleanup
}

// StartServer 创建 http.Server
func StartServer(deps *ServerDependencies) (*http.Server, func()) {
	cfg := config.Get()
	router, clean := setupRouter(deps)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	return srv, clean
}
