package controller

import (
	"errors"
	"net/http"

	"maturity_backend/internal/model"
	"maturity_backend/internal/service"
	"maturity_backend/internal/util"
	"maturity_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ResultsController 计算诊断结果并组装结果页
type ResultsController struct {
	Results     *service.ResultsService
	UserResults *service.UserResultsService
	Content     *service.ContentService
}

func NewResultsController(results *service.ResultsService, userResults *service.UserResultsService, content *service.ContentService) *ResultsController {
	return &ResultsController{Results: results, UserResults: userResults, Content: content}
}

// CalculateRequest 问卷答案
type CalculateRequest struct {
	Answers []model.Answer `json:"answers"`
}

// CalculateResponse data 为 null 时 calculatedResult 仍然有效
type CalculateResponse struct {
	Success          bool                    `json:"success"`
	Data             *model.UserResultsData  `json:"data"`
	CalculatedResult *model.CalculatedResult `json:"calculatedResult"`
	Error            string                  `json:"error,omitempty"`
}

// Calculate godoc
// @Summary 计算诊断结果
// @Description 根据答案计算总分、维度分数与等级，并组装结果页内容
// @Tags 结果
// @Accept json
// @Produce json
// @Param token query string false "预览令牌"
// @Param request body CalculateRequest true "答案列表"
// @Success 200 {object} CalculateResponse
// @Failure 400 {object} util.Response
// @Failure 500 {object} util.Response
// @Router /results/calculate [post]
func (ctrl *ResultsController) Calculate(c *gin.Context) {
	var req CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Answers) == 0 {
		util.BadRequest(c, "answers must be a non-empty array")
		return
	}

	cred := util.CredentialFromContext(c)
	calc, err := ctrl.Results.CalculateResult(c.Request.Context(), req.Answers, cred)
	if err != nil {
		var lnf *service.LevelNotFoundError
		if errors.As(err, &lnf) {
			logger.Log.Error("Result calculation failed", zap.Float64("score", lnf.Score), zap.Error(err))
			util.Error(c, http.StatusInternalServerError, err.Error())
			return
		}
		util.LogInternalError(c, err)
		return
	}

	data, err := ctrl.UserResults.ComposeUserResults(c.Request.Context(), calc, cred)
	if err != nil {
		logger.Log.Error("Result composition failed",
			zap.Float64("score", calc.TotalScore),
			zap.Int("levelId", calc.GeneralLevel.ID),
			zap.Error(err))
		c.JSON(http.StatusOK, CalculateResponse{
			Success:          true,
			CalculatedResult: calc,
			Error:            "Failed to compose user results: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, CalculateResponse{
		Success:          true,
		Data:             data,
		CalculatedResult: calc,
	})
}

// DebugTrails godoc
// @Summary 查看全部路径
// @Description 供内容编辑核对 trails 集合
// @Tags 结果
// @Produce json
// @Param token query string false "预览令牌"
// @Success 200 {object} util.Response{data=[]model.Trail}
// @Router /results/debug-trails [get]
func (ctrl *ResultsController) DebugTrails(c *gin.Context) {
	util.Success(c, ctrl.Content.DebugTrails(c.Request.Context(), util.CredentialFromContext(c)))
}
