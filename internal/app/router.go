package app

import (
	"maturity_backend/docs"
	"maturity_backend/internal/middleware"
	"maturity_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	api := router.Group("/api")
	api.Use(middleware.PreviewMiddleware())

	// 1. 公共路由（?token= 切换为预览凭证）
	a.registerPublicRoutes(api, c)

	// 2. 需要 Keycloak 登录的路由
	authGroup := api.Group("")
	authGroup.Use(middleware.AuthMiddleware(a.services.identity))
	{
		authGroup.GET("/users/me", c.user.Me)
		authGroup.GET("/users/me/diagnostics", c.diagnostics.ListMine)
		authGroup.POST("/diagnostics", c.diagnostics.Create)
	}
}

func (a *App) registerPublicRoutes(api *gin.RouterGroup, c *controllers) {
	api.GET("/health", c.health.HealthCheck)
	api.GET("/ws", c.content.HandleWS)

	results := api.Group("/results")
	{
		results.POST("/calculate", c.results.Calculate)
		results.GET("/debug-trails", c.results.DebugTrails)
	}

	content := api.Group("/content")
	{
		content.GET("/quiz", c.content.GetQuiz)
		content.GET("/sections/:name", c.content.GetSection)
	}
	api.POST("/contact", c.content.CreateContactRequest)

	diagnostics := api.Group("/diagnostics")
	{
		diagnostics.GET("", c.diagnostics.List)
		diagnostics.GET("/:id", c.diagnostics.Get)
	}
}
