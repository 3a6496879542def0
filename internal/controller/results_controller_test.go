package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"maturity_backend/internal/directus"
	"maturity_backend/internal/directus/directustest"
	"maturity_backend/internal/middleware"
	"maturity_backend/internal/model"
	"maturity_backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// panickingSource 对指定集合的查询直接 panic
type panickingSource struct {
	directus.Source
	collection string
}

func (p panickingSource) Items(ctx context.Context, collection string, q directus.Query, cred directus.Credential) (json.RawMessage, error) {
	if collection == p.collection {
		panic("boom")
	}
	return p.Source.Items(ctx, collection, q, cred)
}

type firstPicker struct{}

func (firstPicker) Intn(int) int { return 0 }

func contentStore() *directustest.Store {
	return directustest.New().
		Add("levels",
			model.Level{ID: 1, Title: "Débutant"},
			model.Level{ID: 2, Title: "Confirmé"},
		).
		Add("maturity_ranges",
			model.LevelRange{ID: 1, MinScore: 0, MaxScore: 5, LevelID: 1},
			model.LevelRange{ID: 2, MinScore: 6, MaxScore: 20, LevelID: 2},
		).
		Add("category_ranges", model.LevelRange{ID: 1, MinScore: 0, MaxScore: 10, LevelID: 1, CategoryID: 1}).
		Add("trails", map[string]any{"id": 1, "level_id": 2, "title": "Parcours avancé"}).
		SetSingleton("results_text", model.ResultsText{HeroTitle: "Résultats"})
}

func newResultsRouter(src directus.Source) *gin.Engine {
	levels := service.NewLevelService(src)
	ctrl := NewResultsController(
		service.NewResultsService(levels),
		service.NewUserResultsService(src, firstPicker{}),
		service.NewContentService(src, nil, nil),
	)
	r := gin.New()
	api := r.Group("/api", middleware.PreviewMiddleware())
	api.POST("/results/calculate", ctrl.Calculate)
	api.GET("/results/debug-trails", ctrl.DebugTrails)
	return r
}

func jsonBody(body any) *bytes.Reader {
	raw, _ := json.Marshal(body)
	return bytes.NewReader(raw)
}

func postJSON(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, jsonBody(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestCalculate_Success(t *testing.T) {
	r := newResultsRouter(contentStore())

	w := postJSON(r, "/api/results/calculate", CalculateRequest{Answers: []model.Answer{
		{QuestionID: 1, CategoryID: 1, AnswerID: 1, Score: 3},
		{QuestionID: 2, CategoryID: 1, AnswerID: 2, Score: 4},
	}})
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	calc := body["calculatedResult"].(map[string]any)
	assert.Equal(t, float64(7), calc["total_score"])
	data := body["data"].(map[string]any)
	require.NotNil(t, data)
	assert.NotContains(t, body, "error")
}

func TestCalculate_RejectsEmptyAnswers(t *testing.T) {
	r := newResultsRouter(contentStore())

	for _, payload := range []any{map[string]any{}, CalculateRequest{Answers: []model.Answer{}}} {
		w := postJSON(r, "/api/results/calculate", payload)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, false, decode(t, w)["success"])
	}
}

func TestCalculate_GeneralLevelMissing(t *testing.T) {
	r := newResultsRouter(contentStore())

	w := postJSON(r, "/api/results/calculate", CalculateRequest{Answers: []model.Answer{
		{QuestionID: 1, CategoryID: 1, Score: 50},
	}})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decode(t, w)["error"], "50")
}

func TestCalculate_CompositionFailureKeepsScore(t *testing.T) {
	r := newResultsRouter(panickingSource{Source: contentStore(), collection: "ctas"})

	w := postJSON(r, "/api/results/calculate", CalculateRequest{Answers: []model.Answer{
		{QuestionID: 1, CategoryID: 1, Score: 2},
	}})
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body, "data")
	assert.Nil(t, body["data"])
	assert.NotEmpty(t, body["error"])
	assert.Equal(t, float64(2), body["calculatedResult"].(map[string]any)["total_score"])
}

func TestCalculate_PreviewToken(t *testing.T) {
	store := contentStore()
	r := newResultsRouter(store)

	w := postJSON(r, "/api/results/calculate?token=draft", CalculateRequest{Answers: []model.Answer{
		{QuestionID: 1, CategoryID: 1, Score: 1},
	}})
	require.Equal(t, http.StatusOK, w.Code)
	for _, token := range store.PreviewTokens() {
		assert.Equal(t, "draft", token)
	}
}

func TestDebugTrails(t *testing.T) {
	r := newResultsRouter(contentStore())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/results/debug-trails", nil))
	require.Equal(t, http.StatusOK, w.Code)
	trails := decode(t, w)["data"].([]any)
	assert.Len(t, trails, 1)
}
