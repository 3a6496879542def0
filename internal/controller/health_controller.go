package controller

import (
	"context"
	"net/http"
	"time"

	"maturity_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// Pinger 被检查的依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc 让普通函数满足 Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthController struct {
	// Components 为 nil 的依赖视为未配置
	Components map[string]Pinger
}

func NewHealthController(components map[string]Pinger) *HealthController {
	return &HealthController{Components: components}
}

// @Summary 健康检查
// @Description 检查数据库、Redis 与 Directus 的连通性
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Failure 503 {object} util.Response
// @Router /health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	status := "ok"
	components := gin.H{}
	for name, p := range c.Components {
		if p == nil {
			components[name] = "disabled"
			continue
		}
		if err := p.Ping(reqCtx); err != nil {
			components[name] = "down"
			status = "degraded"
			continue
		}
		components[name] = "up"
	}

	body := gin.H{"status": status, "components": components}
	if status != "ok" {
		ctx.JSON(http.StatusServiceUnavailable, util.Response{Success: false, Data: body, Error: "One or more components unavailable"})
		return
	}
	util.Success(ctx, body)
}
