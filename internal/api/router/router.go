package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"yukyubor/backend/config"
	"yukyubor/backend/internal/api/handler"
	"yukyubor/backend/internal/api/middleware"
	"yukyubor/backend/internal/model"
	"yukyubor/backend/pkg/jwt"
)

// Deps 路由依赖的可选基础设施；Redis 不可用时传 nil，对应能力降级
type Deps struct {
	Blacklist middleware.TokenChecker
	Limiter   middleware.RateLimiter
}

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, deps Deps, logger *zap.Logger) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)

	if err := handler.RegisterValidators(); err != nil {
		return nil, err
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	limit := middleware.RateLimit(deps.Limiter, cfg.Server.ActionLimit.Limit, cfg.Server.ActionLimit.Window)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		v1.POST("/auth/telegram", limit, h.Auth.LoginTelegram)

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, deps.Blacklist))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.Me)

			// 地点参考数据
			locations := authorized.Group("/locations")
			{
				locations.GET("", h.Location.ListLocations)
				locations.GET("/:id", h.Location.GetLocation)
			}

			// 寄件 / 带件请求
			requests := authorized.Group("/requests")
			{
				requests.GET("/mine", h.Request.ListMine)
				requests.POST("/:type", limit, h.Request.CreateRequest)
				requests.GET("/:type/:id/permissions", h.Request.Permissions)
				requests.DELETE("/:type/:id", limit, h.Request.DeleteRequest)
				requests.POST("/:type/:id/close", limit, h.Request.CloseRequest)
				requests.POST("/:type/:id/complete", limit, h.Request.CompleteRequest)
				requests.POST("/:type/:id/responses", limit, h.Response.CreateManualResponse)
			}

			// 响应
			responses := authorized.Group("/responses")
			{
				responses.GET("", h.Response.ListMine)
				responses.POST("/:id/action", limit, h.Response.Act)
				responses.DELETE("/:id", limit, h.Response.Cancel)
			}

			// 导出模块（管理员）
			export := authorized.Group("/export")
			{
				export.GET("/requests", middleware.RoleAuth(model.RoleAdmin), h.Export.ExportRequests)
			}
		}
	}

	return r, nil
}
