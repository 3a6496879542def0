package service

import (
	"context"
	"sort"

	"maturity_backend/internal/directus"
	"maturity_backend/internal/model"
	"maturity_backend/pkg/logger"
	"maturity_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	collectionLevels         = "levels"
	collectionMaturityRanges = "maturity_ranges"
	collectionCategoryRanges = "category_ranges"
)

// LevelService 将分数映射到等级：区间 -> level_id -> levels 集合
type LevelService struct {
	Source directus.Source
}

func NewLevelService(src directus.Source) *LevelService {
	return &LevelService{Source: src}
}

// ResolveMaturityLevel 全局成熟度等级，找不到时返回 nil
func (s *LevelService) ResolveMaturityLevel(ctx context.Context, score float64, cred directus.Credential) *model.LevelRef {
	return s.resolve(ctx, collectionMaturityRanges, nil, score, cred)
}

// ResolveCategoryLevel 维度等级，找不到时返回 nil
func (s *LevelService) ResolveCategoryLevel(ctx context.Context, categoryID int, score float64, cred directus.Credential) *model.LevelRef {
	return s.resolve(ctx, collectionCategoryRanges, directus.Filter{"category_id": directus.Eq(categoryID)}, score, cred)
}

func (s *LevelService) resolve(ctx context.Context, collection string, scope directus.Filter, score float64, cred directus.Credential) *model.LevelRef {
	ctx, span := tracing.Tracer.Start(ctx, "level.resolve")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection), attribute.Float64("score", score))

	filter := directus.And(
		scope,
		directus.Filter{"min_score": directus.Lte(score)},
		directus.Filter{"max_score": directus.Gte(score)},
	)
	ranges := directus.FetchList[model.LevelRange](ctx, s.Source, collection, directus.Query{
		Filter: filter,
		Sort:   []string{"id"},
	}, cred)

	match, ok := firstRange(ranges, score)
	if !ok {
		return nil
	}
	if len(ranges) > 1 {
		logger.Log.Warn("overlapping score ranges, using lowest id",
			zap.String("collection", collection),
			zap.Float64("score", score),
			zap.Int("rangeId", match.ID),
			zap.Int("matches", len(ranges)))
	}

	levels := directus.FetchList[model.Level](ctx, s.Source, collectionLevels, directus.Query{}, cred)
	for _, l := range levels {
		if l.ID == match.LevelID {
			return &model.LevelRef{ID: l.ID, Title: l.Title}
		}
	}

	logger.Log.Warn("score range points to unknown level",
		zap.String("collection", collection),
		zap.Int("rangeId", match.ID),
		zap.Int("levelId", match.LevelID))
	return nil
}

// firstRange 按 id 升序取第一个包含该分数的区间
func firstRange(ranges []model.LevelRange, score float64) (model.LevelRange, bool) {
	sorted := make([]model.LevelRange, 0, len(ranges))
	for _, r := range ranges {
		if r.Contains(score) {
			sorted = append(sorted, r)
		}
	}
	if len(sorted) == 0 {
		return model.LevelRange{}, false
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return sorted[0], true
}
