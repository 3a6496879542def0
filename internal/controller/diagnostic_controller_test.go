package controller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"maturity_backend/internal/middleware"
	"maturity_backend/internal/model"
	"maturity_backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDiagnosticStore struct {
	saved []model.Diagnostic
}

func (s *fakeDiagnosticStore) Save(_ context.Context, d *model.Diagnostic, _ *model.User, _ *model.Company) error {
	d.ID = "diag-1"
	d.CreatedAt = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s.saved = append(s.saved, *d)
	return nil
}

func (s *fakeDiagnosticStore) List(_ context.Context, _ *uint, _, _ int) ([]model.Diagnostic, int64, error) {
	return s.saved, int64(len(s.saved)), nil
}

func (s *fakeDiagnosticStore) FindByID(_ context.Context, id string) (*model.Diagnostic, error) {
	for i := range s.saved {
		if s.saved[i].ID == id {
			return &s.saved[i], nil
		}
	}
	return nil, nil
}

func (s *fakeDiagnosticStore) FindUserByKeycloakID(context.Context, string) (*model.User, error) {
	return nil, nil
}

type staticProfile struct{}

func (staticProfile) Me(context.Context, string) (*service.Profile, error) {
	return &service.Profile{Claims: service.UserClaims{Sub: "kc-1"}}, nil
}

func newDiagnosticRouter(store *fakeDiagnosticStore) *gin.Engine {
	svc := service.NewDiagnosticService(store, service.NewResultsService(service.NewLevelService(contentStore())))
	ctrl := NewDiagnosticController(svc)
	r := gin.New()
	api := r.Group("/api", middleware.PreviewMiddleware())
	api.GET("/diagnostics", ctrl.List)
	api.GET("/diagnostics/:id", ctrl.Get)
	authed := api.Group("", middleware.AuthMiddleware(staticProfile{}))
	authed.POST("/diagnostics", ctrl.Create)
	authed.GET("/users/me/diagnostics", ctrl.ListMine)
	return r
}

func TestDiagnostics_CreateRequiresBearer(t *testing.T) {
	r := newDiagnosticRouter(&fakeDiagnosticStore{})

	w := postJSON(r, "/api/diagnostics", service.DiagnosticRequest{Answers: []model.Answer{{QuestionID: 1, CategoryID: 1, Score: 2}}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDiagnostics_CreateListGet(t *testing.T) {
	store := &fakeDiagnosticStore{}
	r := newDiagnosticRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/api/diagnostics",
		jsonBody(service.DiagnosticRequest{Answers: []model.Answer{{QuestionID: 1, CategoryID: 1, Score: 2}}}))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "diag-1", created["id"])
	assert.Equal(t, "Débutant", created["level_title"])

	w = get(r, "/api/diagnostics?page=1&limit=10")
	require.Equal(t, http.StatusOK, w.Code)
	page := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, float64(1), page["total"])
	item := page["list"].([]any)[0].(map[string]any)
	assert.Equal(t, "diag-1", item["id"])
	assert.Equal(t, float64(2), item["overall_score"])
	assert.Equal(t, "2024-03-01T10:00:00Z", item["date"])

	w = get(r, "/api/diagnostics/diag-1")
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(r, "/api/diagnostics/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDiagnostics_CreateRejectsEmptyAnswers(t *testing.T) {
	r := newDiagnosticRouter(&fakeDiagnosticStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/diagnostics", jsonBody(map[string]any{"answers": []any{}}))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDiagnostics_GetOmitsOwner(t *testing.T) {
	userID, companyID := uint(42), uint(7)
	store := &fakeDiagnosticStore{saved: []model.Diagnostic{{
		UUIDBase:   model.UUIDBase{ID: "diag-42"},
		UserID:     &userID,
		CompanyID:  &companyID,
		TotalScore: 9,
		LevelID:    2,
		LevelTitle: "Confirmé",
		User:       &model.User{KeycloakID: "kc-42", Email: "jane@corp.fr", FirstName: "Jane"},
		Company:    &model.Company{Siret: "12345678900011", Name: "Acme"},
		Categories: []model.DiagnosticCategory{{CategoryID: 1, Score: 9, LevelID: 1, LevelTitle: "Débutant"}},
		Answers:    []model.DiagnosticAnswer{{QuestionID: 3, CategoryID: 1, AnswerID: 11, Score: 9}},
	}}}
	r := newDiagnosticRouter(store)

	w := get(r, "/api/diagnostics/diag-42")
	require.Equal(t, http.StatusOK, w.Code)
	raw := w.Body.String()
	for _, leaked := range []string{"jane@corp.fr", "kc-42", "keycloak", "12345678900011", "Acme", "userId", "companyId"} {
		assert.NotContains(t, raw, leaked)
	}

	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "diag-42", data["id"])
	assert.Equal(t, float64(9), data["overall_score"])
	cats := data["categories"].([]any)
	require.Len(t, cats, 1)
	assert.Equal(t, "Débutant", cats[0].(map[string]any)["level_title"])
	answers := data["answers"].([]any)
	require.Len(t, answers, 1)
	assert.Equal(t, float64(11), answers[0].(map[string]any)["answer_id"])
}
