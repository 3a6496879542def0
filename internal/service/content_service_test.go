package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"maturity_backend/internal/config"
	"maturity_backend/internal/directus"
	"maturity_backend/internal/directus/directustest"
	"maturity_backend/internal/util"
	"maturity_backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingWriter struct {
	collection string
	record     any
	err        error
}

func (w *recordingWriter) Create(_ context.Context, collection string, record any, _ directus.Credential) (json.RawMessage, error) {
	w.collection = collection
	w.record = record
	return json.RawMessage(`{"id":1}`), w.err
}

func quizStore() *directustest.Store {
	return directustest.New().
		Add("categories",
			map[string]any{"id": 2, "title": "Données", "sort": 2},
			map[string]any{"id": 1, "title": "Stratégie", "sort": 1},
			map[string]any{"id": 3, "title": "Cybersécurité", "sort": 3},
		).
		Add("questions",
			map[string]any{"id": 10, "title": "Q10", "category_id": 1, "sort": 2, "answers": []map[string]any{
				{"id": 101, "label": "Oui", "score": 2, "sort": 2},
				{"id": 100, "label": "Non", "score": 0, "sort": 1},
			}},
			map[string]any{"id": 11, "title": "Q11", "category_id": 1, "sort": 1},
			map[string]any{"id": 20, "title": "Q20", "category_id": 2, "sort": 1},
		)
}

func TestContentService_GetQuiz(t *testing.T) {
	svc := NewContentService(quizStore(), nil, nil)

	quiz := svc.GetQuiz(context.Background(), directus.Credential{})
	require.Len(t, quiz, 3)
	assert.Equal(t, 1, quiz[0].ID)
	assert.Equal(t, 2, quiz[1].ID)
	assert.Equal(t, 3, quiz[2].ID)

	require.Len(t, quiz[0].Questions, 2)
	assert.Equal(t, 11, quiz[0].Questions[0].ID)
	assert.Equal(t, 10, quiz[0].Questions[1].ID)
	assert.NotNil(t, quiz[0].Questions[0].Answers)
	require.Len(t, quiz[0].Questions[1].Answers, 2)
	assert.Equal(t, 100, quiz[0].Questions[1].Answers[0].ID)

	assert.NotNil(t, quiz[2].Questions)
	assert.Empty(t, quiz[2].Questions)
}

func TestContentService_GetQuizUnavailable(t *testing.T) {
	svc := NewContentService(quizStore().Fail("categories"), nil, nil)

	quiz := svc.GetQuiz(context.Background(), directus.Credential{})
	assert.NotNil(t, quiz)
	assert.Empty(t, quiz)
}

func TestContentService_GetSection(t *testing.T) {
	store := directustest.New().
		SetSingleton("faq_section", map[string]any{"title": "FAQ"}).
		Add("faq_items",
			map[string]any{"id": 2, "question": "B", "sort": 2},
			map[string]any{"id": 1, "question": "A", "sort": 1},
		)
	svc := NewContentService(store, nil, nil)

	section, err := svc.GetSection(context.Background(), "faq", directus.Preview("editor"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"FAQ"}`, string(section["section"]))
	assert.JSONEq(t, `[{"id":1,"question":"A","sort":1},{"id":2,"question":"B","sort":2}]`, string(section["items"]))
	for _, token := range store.PreviewTokens() {
		assert.Equal(t, "editor", token)
	}
}

func TestContentService_UnknownSection(t *testing.T) {
	svc := NewContentService(directustest.New(), nil, nil)

	_, err := svc.GetSection(context.Background(), "pricing", directus.Credential{})
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestContentService_DebugTrails(t *testing.T) {
	store := directustest.New().Add("trails",
		map[string]any{"id": 2, "title": "B"},
		map[string]any{"id": 1, "title": "A"},
	)
	svc := NewContentService(store, nil, nil)

	trails := svc.DebugTrails(context.Background(), directus.Credential{})
	require.Len(t, trails, 2)
	assert.Equal(t, "A", trails[0].Title)
}

func TestContentService_CreateContactRequest(t *testing.T) {
	writer := &recordingWriter{}
	svc := NewContentService(directustest.New(), writer, nil)

	core, logs := observer.New(zap.InfoLevel)
	prev := logger.Log
	logger.Log = zap.New(core)
	defer func() { logger.Log = prev }()

	req := &ContactRequest{Name: "Jane", Email: "jane@example.com", Message: "Bonjour"}
	require.NoError(t, svc.CreateContactRequest(context.Background(), req))
	assert.Equal(t, "contact_requests", writer.collection)
	assert.False(t, req.CreatedAt.IsZero())

	entries := logs.FilterMessage("contact request stored").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "1", fields["recordId"])
	for _, v := range fields {
		assert.NotEqual(t, "jane@example.com", v)
	}

	writer.err = errors.New("forbidden")
	assert.Error(t, svc.CreateContactRequest(context.Background(), req))
}

func TestContentService_ReservedExtraName(t *testing.T) {
	store := directustest.New().SetSingleton("home_section", map[string]any{"title": "Bienvenue"})
	svc := NewContentService(store, nil, map[string]config.SectionConfig{
		"home": {
			Collection: "home_section",
			Extras:     map[string]config.SectionExtra{"section": {Collection: "benefits"}},
		},
	})

	_, err := svc.GetSection(context.Background(), "home", directus.Credential{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, util.ErrNotFound)
}
