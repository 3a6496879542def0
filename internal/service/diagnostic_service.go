package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"maturity_backend/internal/directus"
	"maturity_backend/internal/model"
	"maturity_backend/pkg/logger"

	"go.uber.org/zap"
)

var ErrNoAnswers = errors.New("answers are required")

type DiagnosticStore interface {
	Save(ctx context.Context, d *model.Diagnostic, user *model.User, company *model.Company) error
	List(ctx context.Context, userID *uint, page, limit int) ([]model.Diagnostic, int64, error)
	FindByID(ctx context.Context, id string) (*model.Diagnostic, error)
	FindUserByKeycloakID(ctx context.Context, keycloakID string) (*model.User, error)
}

type DiagnosticService struct {
	Repo    DiagnosticStore
	Results *ResultsService
}

func NewDiagnosticService(repo DiagnosticStore, results *ResultsService) *DiagnosticService {
	return &DiagnosticService{Repo: repo, Results: results}
}

type DiagnosticSummary struct {
	ID           string    `json:"id"`
	Date         time.Time `json:"date"`
	OverallScore float64   `json:"overall_score"`
	LevelID      int       `json:"level_id"`
	LevelTitle   string    `json:"level_title"`
}

// DiagnosticDetail 公开详情，不含用户与企业信息
type DiagnosticDetail struct {
	DiagnosticSummary
	Categories []CategoryDetail `json:"categories"`
	Answers    []model.Answer   `json:"answers"`
}

type CategoryDetail struct {
	CategoryID int     `json:"category_id"`
	Score      float64 `json:"score"`
	LevelID    int     `json:"level_id"`
	LevelTitle string  `json:"level_title"`
}

type DiagnosticRequest struct {
	Answers []model.Answer `json:"answers"`
}

func summarize(d model.Diagnostic) DiagnosticSummary {
	return DiagnosticSummary{
		ID:           d.ID,
		Date:         d.CreatedAt,
		OverallScore: d.TotalScore,
		LevelID:      d.LevelID,
		LevelTitle:   d.LevelTitle,
	}
}

func (s *DiagnosticService) List(ctx context.Context, page, limit int) ([]DiagnosticSummary, int64, error) {
	return s.list(ctx, nil, page, limit)
}

// ListForUser 用户尚未保存过诊断时返回空列表
func (s *DiagnosticService) ListForUser(ctx context.Context, keycloakID string, page, limit int) ([]DiagnosticSummary, int64, error) {
	user, err := s.Repo.FindUserByKeycloakID(ctx, keycloakID)
	if err != nil {
		return nil, 0, err
	}
	if user == nil {
		return []DiagnosticSummary{}, 0, nil
	}
	return s.list(ctx, &user.ID, page, limit)
}

func (s *DiagnosticService) list(ctx context.Context, userID *uint, page, limit int) ([]DiagnosticSummary, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	list, total, err := s.Repo.List(ctx, userID, page, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]DiagnosticSummary, 0, len(list))
	for _, d := range list {
		out = append(out, summarize(d))
	}
	return out, total, nil
}

// GetByID 不存在时返回 nil, nil
func (s *DiagnosticService) GetByID(ctx context.Context, id string) (*DiagnosticDetail, error) {
	d, err := s.Repo.FindByID(ctx, id)
	if err != nil || d == nil {
		return nil, err
	}
	return detail(*d), nil
}

func detail(d model.Diagnostic) *DiagnosticDetail {
	out := &DiagnosticDetail{
		DiagnosticSummary: summarize(d),
		Categories:        make([]CategoryDetail, 0, len(d.Categories)),
		Answers:           make([]model.Answer, 0, len(d.Answers)),
	}
	for _, c := range d.Categories {
		out.Categories = append(out.Categories, CategoryDetail{
			CategoryID: c.CategoryID,
			Score:      c.Score,
			LevelID:    c.LevelID,
			LevelTitle: c.LevelTitle,
		})
	}
	for _, a := range d.Answers {
		out.Answers = append(out.Answers, model.Answer{
			QuestionID: a.QuestionID,
			CategoryID: a.CategoryID,
			AnswerID:   a.AnswerID,
			Score:      a.Score,
		})
	}
	return out
}

// Save 服务端重新计算后持久化，用户与企业按外部标识查找或创建
func (s *DiagnosticService) Save(ctx context.Context, profile *Profile, answers []model.Answer, cred directus.Credential) (*model.Diagnostic, error) {
	if len(answers) == 0 {
		return nil, ErrNoAnswers
	}

	calc, err := s.Results.CalculateResult(ctx, answers, cred)
	if err != nil {
		return nil, err
	}

	d := &model.Diagnostic{
		TotalScore: calc.TotalScore,
		LevelID:    calc.GeneralLevel.ID,
		LevelTitle: calc.GeneralLevel.Title,
		Categories: make([]model.DiagnosticCategory, 0, len(calc.Categories)),
		Answers:    make([]model.DiagnosticAnswer, 0, len(answers)),
	}
	for _, c := range calc.Categories {
		d.Categories = append(d.Categories, model.DiagnosticCategory{
			CategoryID: c.CategoryID,
			Score:      c.Score,
			LevelID:    c.Level.ID,
			LevelTitle: c.Level.Title,
		})
	}
	for _, a := range answers {
		d.Answers = append(d.Answers, model.DiagnosticAnswer{
			QuestionID: a.QuestionID,
			CategoryID: a.CategoryID,
			AnswerID:   a.AnswerID,
			Score:      a.Score,
		})
	}

	var user *model.User
	var company *model.Company
	if profile != nil {
		user = profile.User()
		company = profile.Company
	}

	if err := s.Repo.Save(ctx, d, user, company); err != nil {
		return nil, fmt.Errorf("save diagnostic: %w", err)
	}

	logger.Log.Info("diagnostic saved",
		zap.String("diagnosticId", d.ID),
		zap.Float64("score", d.TotalScore),
		zap.Int("levelId", d.LevelID))
	return d, nil
}
