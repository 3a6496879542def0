package service

import (
	"context"
	"fmt"

	"maturity_backend/internal/directus"
	"maturity_backend/internal/model"
	"maturity_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	collectionResultsText       = "results_text"
	collectionHeroInsights      = "hero_insights"
	collectionLevelInsights     = "level_insights"
	collectionCategorySummaries = "category_summaries"
	collectionCategoryInsights  = "category_insights"
	collectionCategories        = "categories"
	collectionTrails            = "trails"
	collectionCTAs              = "ctas"
	collectionCourses           = "courses"
	collectionRegionalPhones    = "regional_phones"

	resultsPage        = "results"
	maxCategoryCourses = 4
)

var (
	courseFields = []string{"*", "levels.levels_id", "categories.categories_id"}
	phoneFields  = []string{"id", "city", "phone", "region.id", "region.title"}
)

// UserResultsService 根据计算结果组装结果页文档。
// 洞察与维度摘要在匹配项中随机挑选，相同输入的两次请求可能得到不同文案。
type UserResultsService struct {
	Source directus.Source
	Picker Picker
}

func NewUserResultsService(src directus.Source, picker Picker) *UserResultsService {
	return &UserResultsService{Source: src, Picker: picker}
}

type categoryContent struct {
	summary *model.CategorySummary
	insight *model.CategoryInsight
}

// ComposeUserResults 各项内容独立查询，缺失的文本为空串、列表为空列表。
// 客户端断开不会中断已发出的查询；只有查询协程 panic 时返回错误。
func (s *UserResultsService) ComposeUserResults(ctx context.Context, calc *model.CalculatedResult, cred directus.Credential) (*model.UserResultsData, error) {
	if calc == nil {
		return nil, fmt.Errorf("compose user results: nil calculated result")
	}

	ctx, span := tracing.Tracer.Start(ctx, "results.compose")
	defer span.End()
	ctx = context.WithoutCancel(ctx)
	span.SetAttributes(
		attribute.Int("level_id", calc.GeneralLevel.ID),
		attribute.Int("categories", len(calc.Categories)),
		attribute.Bool("preview", cred.IsPreview()),
	)

	levelID := calc.GeneralLevel.ID

	var (
		text       *model.ResultsText
		hero       *model.HeroInsight
		advice     *model.LevelInsight
		trail      *model.Trail
		cta        *model.CTA
		courses    []model.Course
		categories []model.Category
		phones     []model.RegionalPhone
		perCat     = make([]categoryContent, len(calc.Categories))
	)

	var g errgroup.Group
	run := func(name string, fn func()) {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%s lookup panicked: %v", name, r)
				}
			}()
			fn()
			return nil
		})
	}

	run(collectionResultsText, func() {
		text = directus.FetchSingleton[model.ResultsText](ctx, s.Source, collectionResultsText, cred)
	})
	run(collectionHeroInsights, func() {
		items := directus.FetchList[model.HeroInsight](ctx, s.Source, collectionHeroInsights, byLevel(levelID), cred)
		if item, ok := pickRandom(s.Picker, items); ok {
			hero = &item
		}
	})
	run(collectionLevelInsights, func() {
		items := directus.FetchList[model.LevelInsight](ctx, s.Source, collectionLevelInsights, byLevel(levelID), cred)
		if item, ok := pickRandom(s.Picker, items); ok {
			advice = &item
		}
	})
	run(collectionTrails, func() {
		trail = s.trailFor(ctx, levelID, cred)
	})
	run(collectionCTAs, func() {
		cta = s.resultsCTA(ctx, cred)
	})
	run(collectionCourses, func() {
		courses = directus.FetchList[model.Course](ctx, s.Source, collectionCourses, directus.Query{Fields: courseFields}, cred)
	})
	run(collectionCategories, func() {
		categories = directus.FetchList[model.Category](ctx, s.Source, collectionCategories, directus.Query{Sort: []string{"sort"}}, cred)
	})
	run(collectionRegionalPhones, func() {
		phones = directus.FetchList[model.RegionalPhone](ctx, s.Source, collectionRegionalPhones, directus.Query{Fields: phoneFields}, cred)
	})
	for i, cat := range calc.Categories {
		q := byCategoryLevel(cat.CategoryID, cat.Level.ID)
		run(collectionCategorySummaries, func() {
			items := directus.FetchList[model.CategorySummary](ctx, s.Source, collectionCategorySummaries, q, cred)
			if item, ok := pickRandom(s.Picker, items); ok {
				perCat[i].summary = &item
			}
		})
		run(collectionCategoryInsights, func() {
			perCat[i].insight = directus.FetchFirst[model.CategoryInsight](ctx, s.Source, collectionCategoryInsights, q, cred)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if text == nil {
		text = &model.ResultsText{}
	}
	categoryByID := make(map[int]model.Category, len(categories))
	for _, c := range categories {
		categoryByID[c.ID] = c
	}

	data := &model.UserResultsData{
		Hero: model.HeroBlock{
			Title:      text.HeroTitle,
			Subtitle:   text.HeroSubtitle,
			Score:      calc.TotalScore,
			LevelID:    levelID,
			LevelTitle: calc.GeneralLevel.Title,
		},
		Advice: model.AdviceBlock{Title: text.AdviceTitle},
		Categories: model.CategoriesBlock{
			Title: text.CategoriesTitle,
			Items: make([]model.CategoryCard, 0, len(calc.Categories)),
		},
		Trail:      model.TrailBlock{SectionTitle: text.TrailTitle},
		Conclusion: model.ConclusionBlock{Title: text.ConclusionTitle, Text: text.ConclusionText},
		Content: model.ContentBlock{
			Title:   text.ContentTitle,
			Courses: catalogueFor(courses, levelID),
		},
		Contacts: model.ContactsBlock{
			Title: text.ContactTitle,
			Rows:  groupPhones(phones),
		},
	}

	if hero != nil {
		data.Hero.InsightTitle = hero.Title
		data.Hero.InsightText = hero.Text
		data.Hero.Image = hero.Image
	}
	if advice != nil {
		data.Advice.InsightTitle = advice.Title
		data.Advice.Text = advice.Advice
		data.Advice.Image = advice.Image
	}
	if trail != nil {
		data.Trail.Title = trail.Title
		data.Trail.Description = trail.Description
		data.Trail.URL = trail.URL
		data.Trail.Image = trail.Image
	}
	if cta != nil {
		data.CTA = model.CTABlock{
			Title:       cta.Title,
			Text:        cta.Text,
			ButtonLabel: cta.ButtonLabel,
			ButtonURL:   cta.ButtonURL,
			Image:       cta.Image,
		}
	}

	for i, cat := range calc.Categories {
		meta := categoryByID[cat.CategoryID]
		card := model.CategoryCard{
			CategoryID:  cat.CategoryID,
			Title:       meta.Title,
			Description: meta.Description,
			Icon:        meta.Icon,
			Score:       cat.Score,
			LevelID:     cat.Level.ID,
			LevelTitle:  cat.Level.Title,
			Courses:     recommendCourses(courses, cat.CategoryID, cat.Level.ID, maxCategoryCourses),
		}
		if sum := perCat[i].summary; sum != nil {
			card.Summary = sum.Summary
			card.Image = sum.Image
		}
		if ins := perCat[i].insight; ins != nil {
			card.Insight = ins.Tip
		}
		data.Categories.Items = append(data.Categories.Items, card)
	}

	return data, nil
}

// trailFor 按等级匹配；没有匹配时退回集合中的第一条
func (s *UserResultsService) trailFor(ctx context.Context, levelID int, cred directus.Credential) *model.Trail {
	if t := directus.FetchFirst[model.Trail](ctx, s.Source, collectionTrails, byLevel(levelID), cred); t != nil {
		return t
	}
	return directus.FetchFirst[model.Trail](ctx, s.Source, collectionTrails, directus.Query{Sort: []string{"id"}}, cred)
}

// resultsCTA page == "results"，没有时退回第一条 CTA
func (s *UserResultsService) resultsCTA(ctx context.Context, cred directus.Credential) *model.CTA {
	q := directus.Query{Filter: directus.Filter{"page": directus.Eq(resultsPage)}}
	if c := directus.FetchFirst[model.CTA](ctx, s.Source, collectionCTAs, q, cred); c != nil {
		return c
	}
	return directus.FetchFirst[model.CTA](ctx, s.Source, collectionCTAs, directus.Query{Sort: []string{"id"}}, cred)
}

func byLevel(levelID int) directus.Query {
	return directus.Query{Filter: directus.Filter{"level_id": directus.Eq(levelID)}}
}

func byCategoryLevel(categoryID, levelID int) directus.Query {
	return directus.Query{Filter: directus.And(
		directus.Filter{"category_id": directus.Eq(categoryID)},
		directus.Filter{"level_id": directus.Eq(levelID)},
	)}
}

// recommendCourses 同时属于该维度与该等级的课程，按获取顺序取前 limit 个
func recommendCourses(courses []model.Course, categoryID, levelID, limit int) []model.CourseCard {
	out := make([]model.CourseCard, 0, limit)
	for _, c := range courses {
		if len(out) == limit {
			break
		}
		if c.HasCategory(categoryID) && c.HasLevel(levelID) {
			out = append(out, courseCard(c))
		}
	}
	return out
}

func catalogueFor(courses []model.Course, levelID int) []model.CourseCard {
	out := make([]model.CourseCard, 0, len(courses))
	for _, c := range courses {
		if c.HasLevel(levelID) {
			out = append(out, courseCard(c))
		}
	}
	return out
}

func courseCard(c model.Course) model.CourseCard {
	return model.CourseCard{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		URL:         c.URL,
		Image:       c.Image,
		Duration:    c.Duration,
	}
}

type regionCity struct {
	regionID int
	city     string
}

// groupPhones 按 (region, city) 分组后展开，每个号码一行
func groupPhones(phones []model.RegionalPhone) []model.ContactRow {
	order := make([]regionCity, 0)
	groups := make(map[regionCity][]model.RegionalPhone)
	for _, p := range phones {
		key := regionCity{regionID: p.Region.ID, city: p.City}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], p)
	}

	rows := make([]model.ContactRow, 0, len(phones))
	for _, key := range order {
		for _, p := range groups[key] {
			rows = append(rows, model.ContactRow{
				Region: p.Region.Title,
				City:   p.City,
				Phone:  p.Phone,
			})
		}
	}
	return rows
}
