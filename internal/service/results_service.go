package service

import (
	"context"
	"fmt"

	"maturity_backend/internal/directus"
	"maturity_backend/internal/model"
	"maturity_backend/pkg/logger"
	"maturity_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// LevelResolver 分数到等级的查询
type LevelResolver interface {
	ResolveMaturityLevel(ctx context.Context, score float64, cred directus.Credential) *model.LevelRef
	ResolveCategoryLevel(ctx context.Context, categoryID int, score float64, cred directus.Credential) *model.LevelRef
}

// LevelNotFoundError 分数没有对应的区间，或区间指向不存在的等级
type LevelNotFoundError struct {
	Score      float64
	CategoryID int
}

func (e *LevelNotFoundError) Error() string {
	if e.CategoryID != 0 {
		return fmt.Sprintf("no level found for score %g in category %d", e.Score, e.CategoryID)
	}
	return fmt.Sprintf("no maturity level found for score %g", e.Score)
}

type ResultsService struct {
	Levels LevelResolver
}

func NewResultsService(levels LevelResolver) *ResultsService {
	return &ResultsService{Levels: levels}
}

// CalculateResult 汇总总分与各维度得分并解析等级。
// 全局等级缺失返回 *LevelNotFoundError；维度等级缺失时该维度被省略。
func (s *ResultsService) CalculateResult(ctx context.Context, answers []model.Answer, cred directus.Credential) (*model.CalculatedResult, error) {
	var total float64
	order := make([]int, 0)
	sums := make(map[int]float64)
	for _, a := range answers {
		total += a.Score
		if _, seen := sums[a.CategoryID]; !seen {
			order = append(order, a.CategoryID)
		}
		sums[a.CategoryID] += a.Score
	}

	general := s.Levels.ResolveMaturityLevel(ctx, total, cred)
	if general == nil {
		monitoring.ResultCalculations.WithLabelValues("level_not_found").Inc()
		return nil, &LevelNotFoundError{Score: total}
	}

	result := &model.CalculatedResult{
		TotalScore:   total,
		GeneralLevel: *general,
		Categories:   make([]model.CategoryResult, 0, len(order)),
	}
	for _, categoryID := range order {
		score := sums[categoryID]
		level := s.Levels.ResolveCategoryLevel(ctx, categoryID, score, cred)
		if level == nil {
			logger.Log.Debug("category level not found, omitting category",
				zap.Int("categoryId", categoryID),
				zap.Float64("score", score))
			continue
		}
		result.Categories = append(result.Categories, model.CategoryResult{
			CategoryID: categoryID,
			Score:      score,
			Level:      *level,
		})
	}

	monitoring.ResultCalculations.WithLabelValues("ok").Inc()
	return result, nil
}
