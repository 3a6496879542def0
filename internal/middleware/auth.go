package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"maturity_backend/internal/directus"
	"maturity_backend/internal/service"
	"maturity_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// PreviewMiddleware ?token= 让本次请求以调用方令牌读取 CMS（草稿预览）
func PreviewMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := strings.TrimSpace(c.Query("token")); token != "" {
			c.Set(util.ContextCredential, directus.Preview(token))
		}
		c.Next()
	}
}

type ProfileResolver interface {
	Me(ctx context.Context, bearer string) (*service.Profile, error)
}

// AuthMiddleware 要求 Keycloak Bearer 令牌，令牌交由 Keycloak 校验
func AuthMiddleware(identity ProfileResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		bearer := bearerToken(c)
		if bearer == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		profile, err := identity.Me(c.Request.Context(), bearer)
		if err != nil {
			switch {
			case errors.Is(err, util.ErrUnauthorized):
				util.Unauthorized(c)
			case errors.Is(err, util.ErrIdentityUnavailable):
				util.Error(c, http.StatusServiceUnavailable, "Identity provider unavailable")
			default:
				util.LogInternalError(c, err)
			}
			c.Abort()
			return
		}

		c.Set(util.ContextBearer, bearer)
		c.Set(util.ContextProfile, profile)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func ProfileFromContext(c *gin.Context) *service.Profile {
	v, ok := c.Get(util.ContextProfile)
	if !ok {
		return nil
	}
	profile, _ := v.(*service.Profile)
	return profile
}
