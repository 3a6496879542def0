package controller

import (
	"errors"
	"net/http"

	"maturity_backend/internal/middleware"
	"maturity_backend/internal/service"
	"maturity_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type DiagnosticController struct {
	Diagnostics *service.DiagnosticService
}

func NewDiagnosticController(diagnostics *service.DiagnosticService) *DiagnosticController {
	return &DiagnosticController{Diagnostics: diagnostics}
}

// List godoc
// @Summary 诊断列表
// @Tags 诊断
// @Produce json
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse{list=[]service.DiagnosticSummary}}
// @Router /diagnostics [get]
func (ctrl *DiagnosticController) List(c *gin.Context) {
	page := util.ParseIntDefault(c.Query("page"), util.DefaultPage)
	limit := util.ParseIntDefault(c.Query("limit"), util.DefaultLimit)

	list, total, err := ctrl.Diagnostics.List(c.Request.Context(), page, limit)
	if err != nil {
		util.LogInternalError(c, err)
		return
	}
	util.Success(c, util.PageResponse{List: list, Total: total, Page: page, Limit: limit})
}

// ListMine godoc
// @Summary 我的诊断
// @Tags 诊断
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse{list=[]service.DiagnosticSummary}}
// @Failure 401 {object} util.Response
// @Router /users/me/diagnostics [get]
func (ctrl *DiagnosticController) ListMine(c *gin.Context) {
	profile := middleware.ProfileFromContext(c)
	if profile == nil {
		util.Unauthorized(c)
		return
	}
	page := util.ParseIntDefault(c.Query("page"), util.DefaultPage)
	limit := util.ParseIntDefault(c.Query("limit"), util.DefaultLimit)

	list, total, err := ctrl.Diagnostics.ListForUser(c.Request.Context(), profile.Claims.Sub, page, limit)
	if err != nil {
		util.LogInternalError(c, err)
		return
	}
	util.Success(c, util.PageResponse{List: list, Total: total, Page: page, Limit: limit})
}

// Get godoc
// @Summary 诊断详情
// @Tags 诊断
// @Produce json
// @Param id path string true "诊断ID"
// @Success 200 {object} util.Response{data=service.DiagnosticDetail}
// @Failure 404 {object} util.Response
// @Router /diagnostics/{id} [get]
func (ctrl *DiagnosticController) Get(c *gin.Context) {
	d, err := ctrl.Diagnostics.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		util.LogInternalError(c, err)
		return
	}
	if d == nil {
		util.NotFound(c)
		return
	}
	util.Success(c, d)
}

// Create godoc
// @Summary 保存诊断
// @Description 服务端重新计算分数后保存，用户与企业按 Keycloak 与 SIRET 关联
// @Tags 诊断
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.DiagnosticRequest true "答案列表"
// @Success 201 {object} util.Response
// @Failure 400 {object} util.Response
// @Failure 401 {object} util.Response
// @Failure 500 {object} util.Response
// @Router /diagnostics [post]
func (ctrl *DiagnosticController) Create(c *gin.Context) {
	var req service.DiagnosticRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Answers) == 0 {
		util.BadRequest(c, "answers must be a non-empty array")
		return
	}

	d, err := ctrl.Diagnostics.Save(c.Request.Context(), middleware.ProfileFromContext(c), req.Answers, util.CredentialFromContext(c))
	if err != nil {
		var lnf *service.LevelNotFoundError
		switch {
		case errors.As(err, &lnf):
			util.Error(c, http.StatusInternalServerError, err.Error())
		case errors.Is(err, service.ErrNoAnswers):
			util.BadRequest(c, err.Error())
		default:
			util.LogInternalError(c, err)
		}
		return
	}
	util.Created(c, gin.H{
		"id":            d.ID,
		"overall_score": d.TotalScore,
		"level_id":      d.LevelID,
		"level_title":   d.LevelTitle,
	})
}
