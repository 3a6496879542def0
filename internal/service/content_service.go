package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"maturity_backend/internal/config"
	"maturity_backend/internal/directus"
	"maturity_backend/internal/model"
	"maturity_backend/internal/util"
	"maturity_backend/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	collectionQuestions       = "questions"
	collectionContactRequests = "contact_requests"
)

var questionFields = []string{"*", "answers.*"}

// ContentWriter 向 CMS 写入记录
type ContentWriter interface {
	Create(ctx context.Context, collection string, record any, cred directus.Credential) (json.RawMessage, error)
}

type ContentService struct {
	Source   directus.Source
	Writer   ContentWriter
	Sections map[string]config.SectionConfig
}

func NewContentService(src directus.Source, writer ContentWriter, sections map[string]config.SectionConfig) *ContentService {
	if sections == nil {
		sections = config.DefaultSections()
	}
	return &ContentService{Source: src, Writer: writer, Sections: sections}
}

type QuizCategory struct {
	model.Category
	Questions []model.Question `json:"questions"`
}

// GetQuiz 问卷：维度按 sort 排列，各维度下的问题与选项同样按 sort 排列
func (s *ContentService) GetQuiz(ctx context.Context, cred directus.Credential) []QuizCategory {
	var (
		categories []model.Category
		questions  []model.Question
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		categories = directus.FetchList[model.Category](gctx, s.Source, collectionCategories, directus.Query{Sort: []string{"sort", "id"}}, cred)
		return nil
	})
	g.Go(func() error {
		questions = directus.FetchList[model.Question](gctx, s.Source, collectionQuestions, directus.Query{Sort: []string{"sort", "id"}, Fields: questionFields}, cred)
		return nil
	})
	_ = g.Wait()

	byCategory := make(map[int][]model.Question, len(categories))
	for _, q := range questions {
		sort.SliceStable(q.Answers, func(i, j int) bool { return q.Answers[i].Sort < q.Answers[j].Sort })
		if q.Answers == nil {
			q.Answers = []model.AnswerOption{}
		}
		byCategory[q.CategoryID] = append(byCategory[q.CategoryID], q)
	}

	quiz := make([]QuizCategory, 0, len(categories))
	for _, c := range categories {
		qs := byCategory[c.ID]
		if qs == nil {
			qs = []model.Question{}
		}
		quiz = append(quiz, QuizCategory{Category: c, Questions: qs})
	}
	return quiz
}

// GetSection 未配置的区块返回 util.ErrNotFound
func (s *ContentService) GetSection(ctx context.Context, name string, cred directus.Credential) (map[string]json.RawMessage, error) {
	section, ok := s.Sections[name]
	if !ok {
		return nil, fmt.Errorf("section %q: %w", name, util.ErrNotFound)
	}
	extras := make(map[string]directus.Extra, len(section.Extras))
	for key, e := range section.Extras {
		if key == config.SectionKey {
			return nil, fmt.Errorf("section %q: extra name %q is reserved", name, key)
		}
		extras[key] = directus.Extra{Collection: e.Collection, Sort: e.Sort}
	}
	return directus.FetchSectionWithExtras(ctx, s.Source, section.Collection, extras, cred), nil
}

func (s *ContentService) DebugTrails(ctx context.Context, cred directus.Credential) []model.Trail {
	return directus.FetchList[model.Trail](ctx, s.Source, collectionTrails, directus.Query{Sort: []string{"id"}}, cred)
}

type ContactRequest struct {
	Name      string    `json:"name" binding:"required"`
	Email     string    `json:"email" binding:"required,email"`
	Phone     string    `json:"phone"`
	Company   string    `json:"company"`
	Message   string    `json:"message" binding:"required,max=4000"`
	Diagnosis string    `json:"diagnostic_id"`
	CreatedAt time.Time `json:"date_created"`
}

// CreateContactRequest 联系请求写入 CMS，由运营在后台处理
func (s *ContentService) CreateContactRequest(ctx context.Context, req *ContactRequest) error {
	if s.Writer == nil {
		return fmt.Errorf("contact request: no content writer configured")
	}
	req.CreatedAt = time.Now().UTC()
	raw, err := s.Writer.Create(ctx, collectionContactRequests, req, directus.Credential{})
	if err != nil {
		return fmt.Errorf("contact request: %w", err)
	}
	var created struct {
		ID json.RawMessage `json:"id"`
	}
	_ = json.Unmarshal(raw, &created)
	logger.Log.Info("contact request stored", zap.String("recordId", string(created.ID)))
	return nil
}
