package controller

import (
	"errors"

	"maturity_backend/internal/service"
	"maturity_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// ContentController 前端渲染所需的 CMS 内容
type ContentController struct {
	Content *service.ContentService
	Hub     *service.ContentHub
}

func NewContentController(content *service.ContentService, hub *service.ContentHub) *ContentController {
	return &ContentController{Content: content, Hub: hub}
}

// GetQuiz godoc
// @Summary 获取问卷
// @Description 维度及其问题与选项，均按 sort 排列
// @Tags 内容
// @Produce json
// @Param token query string false "预览令牌"
// @Success 200 {object} util.Response{data=[]service.QuizCategory}
// @Router /content/quiz [get]
func (ctrl *ContentController) GetQuiz(c *gin.Context) {
	util.Success(c, ctrl.Content.GetQuiz(c.Request.Context(), util.CredentialFromContext(c)))
}

// GetSection godoc
// @Summary 获取内容区块
// @Description 区块 singleton 与其关联列表，如 home、faq
// @Tags 内容
// @Produce json
// @Param name path string true "区块名"
// @Param token query string false "预览令牌"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /content/sections/{name} [get]
func (ctrl *ContentController) GetSection(c *gin.Context) {
	section, err := ctrl.Content.GetSection(c.Request.Context(), c.Param("name"), util.CredentialFromContext(c))
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			util.NotFound(c)
			return
		}
		util.LogInternalError(c, err)
		return
	}
	util.Success(c, section)
}

// CreateContactRequest godoc
// @Summary 提交联系请求
// @Tags 内容
// @Accept json
// @Produce json
// @Param request body service.ContactRequest true "联系请求"
// @Success 201 {object} util.Response
// @Failure 400 {object} util.Response
// @Failure 500 {object} util.Response
// @Router /contact [post]
func (ctrl *ContentController) CreateContactRequest(c *gin.Context) {
	var req service.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	if err := ctrl.Content.CreateContactRequest(c.Request.Context(), &req); err != nil {
		util.LogInternalError(c, err)
		return
	}
	util.Created(c, gin.H{"received": true})
}

// HandleWS godoc
// @Summary 内容变更通知
// @Description 建立 WebSocket 连接，CMS 内容变化时推送 CONTENT_UPDATED
// @Tags 内容
// @Success 101 {string} string "Switching Protocols"
// @Router /ws [get]
func (ctrl *ContentController) HandleWS(c *gin.Context) {
	service.ServeWs(ctrl.Hub, c.Writer, c.Request)
}
