package util

import (
	"maturity_backend/internal/directus"

	"github.com/gin-gonic/gin"
)

// CredentialFromContext 没有 ?token= 时为服务凭证
func CredentialFromContext(c *gin.Context) directus.Credential {
	v, ok := c.Get(ContextCredential)
	if !ok {
		return directus.Credential{}
	}
	cred, _ := v.(directus.Credential)
	return cred
}

func BearerFromContext(c *gin.Context) string {
	return c.GetString(ContextBearer)
}
