package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/devpilot-api/model"
	"github.com/sahilchouksey/devpilot-api/services"
	"github.com/sahilchouksey/devpilot-api/services/llm"
	"github.com/sahilchouksey/devpilot-api/utils/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type chatFixture struct {
	db       *gorm.DB
	provider *testutil.FakeProvider
	user     *model.User
	other    *model.User
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	goLang := testutil.CreateTechStack(t, db, "Go", "Language")
	return &chatFixture{
		db:       db,
		provider: &testutil.FakeProvider{EmbeddingDims: 3, Reply: "Use channels."},
		user:     testutil.CreateUser(t, db, "alice", "password123", goLang),
		other:    testutil.CreateUser(t, db, "bob", "password123"),
	}
}

func (f *chatFixture) app(user *model.User) *fiber.App {
	svc := services.NewChatService(f.db, f.provider, services.ChatServiceConfig{EmbeddingDimensions: 3})
	h := NewChatHandler(svc, nil)

	app := fiber.New()
	group := app.Group("/api/chat", testutil.AsUser(user))
	group.Post("/session", h.CreateSession)
	group.Get("/sessions", h.ListSessions)
	group.Get("/session/:id/messages", h.GetSessionMessages)
	group.Post("/message", h.SendMessage)
	group.Delete("/session/:id", h.DeleteSession)
	group.Post("/history", h.History)
	group.Get("/search", h.Search)
	return app
}

func createSession(t *testing.T, app *fiber.App) model.ChatSession {
	t.Helper()
	status, env := testutil.DoJSON(t, app, "POST", "/api/chat/session", nil)
	require.Equal(t, fiber.StatusCreated, status)
	var session model.ChatSession
	env.Decode(t, &session)
	require.NotEmpty(t, session.SessionID)
	return session
}

func TestChatHandler_SendMessage(t *testing.T) {
	f := newChatFixture(t)
	app := f.app(f.user)
	session := createSession(t, app)

	status, env := testutil.DoJSON(t, app, "POST", "/api/chat/message", map[string]string{
		"session_id": session.SessionID,
		"content":    "How do I cancel a goroutine",
	})
	require.Equal(t, fiber.StatusOK, status)

	var got ChatResponse
	env.Decode(t, &got)
	assert.Equal(t, "Use channels.", got.Message)
	assert.Equal(t, session.SessionID, got.SessionID)
	assert.Equal(t, []string{"Go"}, got.TechContext.TechStack)
	assert.Equal(t, "How do I cancel a goroutine", got.Title)

	status, env = testutil.DoJSON(t, app, "GET", "/api/chat/session/"+session.SessionID+"/messages", nil)
	require.Equal(t, fiber.StatusOK, status)
	var msgs []model.ChatMessage
	env.Decode(t, &msgs)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.MessageRoleUser, msgs[0].Role)
	assert.Equal(t, model.MessageRoleAssistant, msgs[1].Role)
}

func TestChatHandler_SendMessageValidation(t *testing.T) {
	f := newChatFixture(t)
	app := f.app(f.user)
	session := createSession(t, app)

	status, env := testutil.DoJSON(t, app, "POST", "/api/chat/message", map[string]string{
		"session_id": session.SessionID,
		"content":    "   ",
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Empty(t, f.provider.CompleteCalls())
}

func TestChatHandler_OtherUsersSessionIsNotFound(t *testing.T) {
	f := newChatFixture(t)
	session := createSession(t, f.app(f.user))
	intruder := f.app(f.other)

	status, _ := testutil.DoJSON(t, intruder, "POST", "/api/chat/message", map[string]string{
		"session_id": session.SessionID,
		"content":    "hello",
	})
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = testutil.DoJSON(t, intruder, "GET", "/api/chat/session/"+session.SessionID+"/messages", nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = testutil.DoJSON(t, intruder, "DELETE", "/api/chat/session/"+session.SessionID, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestChatHandler_GenerationFailure(t *testing.T) {
	f := newChatFixture(t)
	f.provider.CompleteFunc = func(ctx context.Context, systemPrompt string, messages []llm.Message) (string, error) {
		return "", errors.New("upstream down")
	}
	app := f.app(f.user)
	session := createSession(t, app)

	status, env := testutil.DoJSON(t, app, "POST", "/api/chat/message", map[string]string{
		"session_id": session.SessionID,
		"content":    "Explain Go interfaces",
	})
	assert.Equal(t, fiber.StatusInternalServerError, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "GENERATION_FAILED", env.Error.Code)

	var count int64
	require.NoError(t, f.db.Model(&model.ChatMessage{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestChatHandler_DeleteHidesSession(t *testing.T) {
	f := newChatFixture(t)
	app := f.app(f.user)
	session := createSession(t, app)

	status, _ := testutil.DoJSON(t, app, "DELETE", "/api/chat/session/"+session.SessionID, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, env := testutil.DoJSON(t, app, "GET", "/api/chat/sessions", nil)
	require.Equal(t, fiber.StatusOK, status)
	var sessions []model.ChatSession
	env.Decode(t, &sessions)
	assert.Empty(t, sessions)

	status, _ = testutil.DoJSON(t, app, "DELETE", "/api/chat/session/"+session.SessionID, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestChatHandler_ListSessionsRejectsBadLimit(t *testing.T) {
	f := newChatFixture(t)
	app := f.app(f.user)

	status, _ := testutil.DoJSON(t, app, "GET", "/api/chat/sessions?limit=0", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	status, _ = testutil.DoJSON(t, app, "GET", "/api/chat/sessions?limit=abc", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestChatHandler_History(t *testing.T) {
	f := newChatFixture(t)
	app := f.app(f.user)
	session := createSession(t, app)
	status, _ := testutil.DoJSON(t, app, "POST", "/api/chat/message", map[string]string{
		"session_id": session.SessionID,
		"content":    "What is a mutex",
	})
	require.Equal(t, fiber.StatusOK, status)

	status, env := testutil.DoJSON(t, app, "POST", "/api/chat/history", map[string]interface{}{"username": "alice"})
	require.Equal(t, fiber.StatusOK, status)
	var history services.HistoryResult
	env.Decode(t, &history)
	require.Len(t, history.Sessions, 1)
	assert.Len(t, history.Messages[session.SessionID], 2)

	status, _ = testutil.DoJSON(t, app, "POST", "/api/chat/history", map[string]interface{}{"username": "bob"})
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = testutil.DoJSON(t, app, "POST", "/api/chat/history", map[string]interface{}{"username": "alice", "limit": 101})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
}

func TestChatHandler_Search(t *testing.T) {
	f := newChatFixture(t)
	app := f.app(f.user)
	session := createSession(t, app)
	status, _ := testutil.DoJSON(t, app, "POST", "/api/chat/message", map[string]string{
		"session_id": session.SessionID,
		"content":    "How do channels work",
	})
	require.Equal(t, fiber.StatusOK, status)

	status, env := testutil.DoJSON(t, app, "GET", "/api/chat/search?q=channels&limit=1", nil)
	require.Equal(t, fiber.StatusOK, status)
	var hits []services.SimilarMessage
	env.Decode(t, &hits)
	require.Len(t, hits, 1)
	assert.Equal(t, session.SessionID, hits[0].SessionID)

	status, _ = testutil.DoJSON(t, app, "GET", "/api/chat/search", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)

	f.provider.EmbedFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("embeddings down")
	}
	status, _ = testutil.DoJSON(t, app, "GET", "/api/chat/search?q=channels", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
}
