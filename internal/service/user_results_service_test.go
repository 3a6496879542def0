package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"maturity_backend/internal/directus"
	"maturity_backend/internal/directus/directustest"
	"maturity_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedPicker 总是取第 n 项（越界时取最后一项）
type fixedPicker int

func (p fixedPicker) Intn(n int) int {
	if int(p) < n {
		return int(p)
	}
	return n - 1
}

func course(id int, levels, categories []int) map[string]any {
	ls := make([]map[string]any, 0, len(levels))
	for _, l := range levels {
		ls = append(ls, map[string]any{"levels_id": l})
	}
	cs := make([]map[string]any, 0, len(categories))
	for _, c := range categories {
		cs = append(cs, map[string]any{"categories_id": c})
	}
	return map[string]any{
		"id":         id,
		"title":      fmt.Sprintf("Course %d", id),
		"levels":     ls,
		"categories": cs,
	}
}

func phone(id, region int, regionTitle, city, number string) map[string]any {
	return map[string]any{
		"id":     id,
		"city":   city,
		"phone":  number,
		"region": map[string]any{"id": region, "title": regionTitle},
	}
}

func resultsStore() *directustest.Store {
	return directustest.New().
		SetSingleton("results_text", model.ResultsText{
			HeroTitle:       "Votre maturité numérique",
			AdviceTitle:     "Nos conseils",
			CategoriesTitle: "Par thématique",
			TrailTitle:      "Votre parcours",
			ContentTitle:    "Formations",
			ConclusionTitle: "Et maintenant ?",
			ConclusionText:  "Contactez votre CCI.",
			ContactTitle:    "Contacts",
		}).
		Add("hero_insights",
			model.HeroInsight{ID: 1, LevelID: 2, Title: "Hero A", Text: "Texte A"},
			model.HeroInsight{ID: 2, LevelID: 2, Title: "Hero B", Text: "Texte B"},
			model.HeroInsight{ID: 3, LevelID: 1, Title: "Hero other"},
		).
		Add("level_insights",
			model.LevelInsight{ID: 1, LevelID: 2, Title: "Advice", Advice: "Structurez"},
		).
		Add("categories",
			model.Category{ID: 1, Title: "Stratégie", Sort: 1},
			model.Category{ID: 2, Title: "Outils", Sort: 2},
		).
		Add("category_summaries",
			model.CategorySummary{ID: 1, CategoryID: 1, LevelID: 1, Summary: "Strat 1"},
			model.CategorySummary{ID: 2, CategoryID: 1, LevelID: 1, Summary: "Strat 2"},
			model.CategorySummary{ID: 3, CategoryID: 2, LevelID: 3, Summary: "Outils 3"},
		).
		Add("category_insights",
			model.CategoryInsight{ID: 1, CategoryID: 1, LevelID: 1, Tip: "Tip 1"},
			model.CategoryInsight{ID: 2, CategoryID: 1, LevelID: 1, Tip: "Tip 1 bis"},
		).
		Add("trails",
			model.Trail{ID: 1, LevelID: 1, Title: "Trail 1"},
			model.Trail{ID: 2, LevelID: 2, Title: "Trail 2"},
		).
		Add("ctas",
			model.CTA{ID: 1, Page: "home", Title: "Home CTA"},
			model.CTA{ID: 2, Page: "results", Title: "Results CTA"},
		).
		Add("courses",
			course(1, []int{1}, []int{1}),
			course(2, []int{1, 2}, []int{2}),
			course(3, []int{3}, []int{1}),
			course(4, []int{2}, []int{1, 2}),
		).
		Add("regional_phones",
			phone(1, 1, "Bretagne", "Rennes", "02 00 00 00 01"),
			phone(2, 2, "Normandie", "Caen", "02 00 00 00 02"),
			phone(3, 1, "Bretagne", "Rennes", "02 00 00 00 03"),
			phone(4, 1, "Bretagne", "Brest", "02 00 00 00 04"),
		)
}

func sampleResult() *model.CalculatedResult {
	return &model.CalculatedResult{
		TotalScore:   12,
		GeneralLevel: model.LevelRef{ID: 2, Title: "Intermédiaire"},
		Categories: []model.CategoryResult{
			{CategoryID: 1, Score: 5, Level: model.LevelRef{ID: 1, Title: "Débutant"}},
			{CategoryID: 2, Score: 7, Level: model.LevelRef{ID: 3, Title: "Avancé"}},
		},
	}
}

func TestComposeUserResults(t *testing.T) {
	svc := NewUserResultsService(resultsStore(), fixedPicker(0))

	data, err := svc.ComposeUserResults(context.Background(), sampleResult(), directus.Credential{})
	require.NoError(t, err)

	assert.Equal(t, model.HeroBlock{
		Title:        "Votre maturité numérique",
		Score:        12,
		LevelID:      2,
		LevelTitle:   "Intermédiaire",
		InsightTitle: "Hero A",
		InsightText:  "Texte A",
	}, data.Hero)
	assert.Equal(t, "Structurez", data.Advice.Text)
	assert.Equal(t, "Trail 2", data.Trail.Title)
	assert.Equal(t, "Votre parcours", data.Trail.SectionTitle)
	assert.Equal(t, "Results CTA", data.CTA.Title)
	assert.Equal(t, model.ConclusionBlock{Title: "Et maintenant ?", Text: "Contactez votre CCI."}, data.Conclusion)

	require.Len(t, data.Categories.Items, 2)
	strat := data.Categories.Items[0]
	assert.Equal(t, "Stratégie", strat.Title)
	assert.Equal(t, "Strat 1", strat.Summary)
	assert.Equal(t, "Tip 1", strat.Insight)
	assert.Equal(t, []int{1}, courseIDs(strat.Courses))

	tools := data.Categories.Items[1]
	assert.Equal(t, "Outils 3", tools.Summary)
	assert.Empty(t, tools.Insight)
	assert.Empty(t, tools.Courses)

	assert.Equal(t, []int{2, 4}, courseIDs(data.Content.Courses))
}

func TestComposeUserResults_RandomPickUsesPicker(t *testing.T) {
	svc := NewUserResultsService(resultsStore(), fixedPicker(1))

	data, err := svc.ComposeUserResults(context.Background(), sampleResult(), directus.Credential{})
	require.NoError(t, err)
	assert.Equal(t, "Hero B", data.Hero.InsightTitle)
	assert.Equal(t, "Strat 2", data.Categories.Items[0].Summary)
	// 确定性查询不受随机源影响
	assert.Equal(t, "Tip 1", data.Categories.Items[0].Insight)
}

func TestComposeUserResults_EmptyContent(t *testing.T) {
	svc := NewUserResultsService(directustest.New(), NewRandomPicker(1))

	data, err := svc.ComposeUserResults(context.Background(), sampleResult(), directus.Credential{})
	require.NoError(t, err)
	require.NotNil(t, data)

	assert.Empty(t, data.Hero.Title)
	assert.Empty(t, data.Hero.InsightText)
	assert.Empty(t, data.Trail.Title)
	assert.Empty(t, data.CTA.Title)
	require.Len(t, data.Categories.Items, 2)
	assert.Empty(t, data.Categories.Items[0].Summary)

	raw, err := json.Marshal(data)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, []any{}, doc["content"].(map[string]any)["courses"])
	assert.Equal(t, []any{}, doc["contacts"].(map[string]any)["rows"])
	assert.Equal(t, []any{}, doc["categories"].(map[string]any)["items"].([]any)[0].(map[string]any)["courses"])
}

func TestComposeUserResults_UnavailableCMS(t *testing.T) {
	store := directustest.New()
	for _, c := range []string{"results_text", "hero_insights", "level_insights", "categories",
		"category_summaries", "category_insights", "trails", "ctas", "courses", "regional_phones"} {
		store.Fail(c)
	}
	svc := NewUserResultsService(store, fixedPicker(0))

	data, err := svc.ComposeUserResults(context.Background(), sampleResult(), directus.Credential{})
	require.NoError(t, err)
	assert.Equal(t, 12.0, data.Hero.Score)
	assert.Empty(t, data.Contacts.Rows)
}

func TestComposeUserResults_TrailFallback(t *testing.T) {
	store := directustest.New().Add("trails",
		model.Trail{ID: 4, LevelID: 1, Title: "Trail 4"},
		model.Trail{ID: 3, LevelID: 3, Title: "Trail 3"},
	)
	svc := NewUserResultsService(store, fixedPicker(0))

	data, err := svc.ComposeUserResults(context.Background(), sampleResult(), directus.Credential{})
	require.NoError(t, err)
	assert.Equal(t, "Trail 3", data.Trail.Title)
}

func TestComposeUserResults_CTAFallback(t *testing.T) {
	store := directustest.New().Add("ctas",
		model.CTA{ID: 9, Page: "home", Title: "Home"},
		model.CTA{ID: 5, Page: "about", Title: "About"},
	)
	svc := NewUserResultsService(store, fixedPicker(0))

	data, err := svc.ComposeUserResults(context.Background(), sampleResult(), directus.Credential{})
	require.NoError(t, err)
	assert.Equal(t, "About", data.CTA.Title)
}

func TestComposeUserResults_PreviewCredentialEverywhere(t *testing.T) {
	store := resultsStore()
	svc := NewUserResultsService(store, fixedPicker(0))

	_, err := svc.ComposeUserResults(context.Background(), sampleResult(), directus.Preview("draft"))
	require.NoError(t, err)
	tokens := store.PreviewTokens()
	require.NotEmpty(t, tokens)
	for _, tok := range tokens {
		assert.Equal(t, "draft", tok)
	}
}

func TestComposeUserResults_ClientGoneStillComposes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	data, err := NewUserResultsService(resultsStore(), fixedPicker(0)).ComposeUserResults(ctx, sampleResult(), directus.Credential{})
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, "Trail 2", data.Trail.Title)
}

func TestRecommendCourses_ConjunctionAndCapped(t *testing.T) {
	var courses []model.Course
	for i := 1; i <= 6; i++ {
		courses = append(courses, model.Course{
			ID:         i,
			Levels:     []model.RelationRef{{ID: 2}},
			Categories: []model.RelationRef{{ID: 1}},
		})
	}
	courses = append([]model.Course{
		{ID: 100, Levels: []model.RelationRef{{ID: 2}}, Categories: []model.RelationRef{{ID: 9}}},
		{ID: 101, Levels: []model.RelationRef{{ID: 9}}, Categories: []model.RelationRef{{ID: 1}}},
	}, courses...)

	got := recommendCourses(courses, 1, 2, maxCategoryCourses)
	assert.Equal(t, []int{1, 2, 3, 4}, courseIDs(got))
}

func TestGroupPhones_OneRowPerPhone(t *testing.T) {
	phones := []model.RegionalPhone{
		{ID: 1, Region: model.RegionRef{ID: 1, Title: "Bretagne"}, City: "Rennes", Phone: "a"},
		{ID: 2, Region: model.RegionRef{ID: 2, Title: "Normandie"}, City: "Caen", Phone: "b"},
		{ID: 3, Region: model.RegionRef{ID: 1, Title: "Bretagne"}, City: "Rennes", Phone: "c"},
		{ID: 4, Region: model.RegionRef{ID: 1, Title: "Bretagne"}, City: "Rennes", Phone: "d"},
	}
	assert.Equal(t, []model.ContactRow{
		{Region: "Bretagne", City: "Rennes", Phone: "a"},
		{Region: "Bretagne", City: "Rennes", Phone: "c"},
		{Region: "Bretagne", City: "Rennes", Phone: "d"},
		{Region: "Normandie", City: "Caen", Phone: "b"},
	}, groupPhones(phones))
}

func TestPickRandom_Seeded(t *testing.T) {
	items := []string{"a", "b", "c", "d"}
	first := make([]string, 0, 10)
	second := make([]string, 0, 10)
	p1, p2 := NewRandomPicker(7), NewRandomPicker(7)
	for i := 0; i < 10; i++ {
		a, _ := pickRandom(p1, items)
		b, _ := pickRandom(p2, items)
		first = append(first, a)
		second = append(second, b)
	}
	assert.Equal(t, first, second)

	_, ok := pickRandom(p1, []string{})
	assert.False(t, ok)
}

func courseIDs(cards []model.CourseCard) []int {
	ids := make([]int, 0, len(cards))
	for _, c := range cards {
		ids = append(ids, c.ID)
	}
	return ids
}
