package controller

import (
	"maturity_backend/internal/middleware"
	"maturity_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type UserController struct{}

func NewUserController() *UserController {
	return &UserController{}
}

// Me godoc
// @Summary 当前用户
// @Description Keycloak 用户信息及其企业（按 SIRET 查询企业库）
// @Tags 用户
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.Profile}
// @Failure 401 {object} util.Response
// @Failure 503 {object} util.Response
// @Router /users/me [get]
func (ctrl *UserController) Me(c *gin.Context) {
	profile := middleware.ProfileFromContext(c)
	if profile == nil {
		util.Unauthorized(c)
		return
	}
	util.Success(c, profile)
}
