package router

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/devpilot-api/api"
	"github.com/sahilchouksey/devpilot-api/database"
	"github.com/sahilchouksey/devpilot-api/services"
	"github.com/sahilchouksey/devpilot-api/utils/auth"
	"github.com/sahilchouksey/devpilot-api/utils/middleware"
	"github.com/sahilchouksey/devpilot-api/utils/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type client struct {
	t     *testing.T
	app   *fiber.App
	token string
}

func (c *client) do(method, path string, body interface{}) (int, testutil.Envelope) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.app.Test(req, -1)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var env testutil.Envelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	return resp.StatusCode, env
}

func newTestServer(t *testing.T, chatLimit int) (*client, *testutil.FakeProvider) {
	t.Helper()
	db := testutil.NewTestDB(t)
	_, err := database.NewSeeder(db, nil).SeedTechStacks()
	require.NoError(t, err)

	provider := &testutil.FakeProvider{EmbeddingDims: 3, Reply: "Prefer composition over inheritance."}
	limiter := middleware.NewSlidingWindowLimiter(0, map[middleware.RouteClass]int{
		middleware.RouteClassChatMessage: chatLimit,
	})

	app := api.NewAPIServer(":0", nil).GetEngine()
	SetupRoutes(app, Dependencies{
		Store:            database.NewGORMStore(db, nil),
		JWTManager:       auth.NewJWTManager(auth.JWTConfig{Secret: "router-secret", Issuer: "test"}),
		ChatService:      services.NewChatService(db, provider, services.ChatServiceConfig{EmbeddingDimensions: 3}),
		InterviewService: services.NewInterviewService(db, provider, nil),
		Limiter:          limiter,
		AllowedOrigins:   "http://localhost:3000",
	})
	return &client{t: t, app: app}, provider
}

func (c *client) login(username string) {
	c.t.Helper()
	status, _ := c.do("POST", "/api/auth/register", map[string]interface{}{
		"username":            username,
		"email":               username + "@example.com",
		"password":            "password123",
		"years_of_experience": 4,
	})
	require.Equal(c.t, fiber.StatusCreated, status)

	status, env := c.do("POST", "/api/auth/login", map[string]string{
		"username": username,
		"password": "password123",
	})
	require.Equal(c.t, fiber.StatusOK, status)
	var token struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	env.Decode(c.t, &token)
	require.Equal(c.t, "bearer", token.TokenType)
	c.token = token.AccessToken
}

func TestEndToEndChat(t *testing.T) {
	c, provider := newTestServer(t, 20)
	c.login("alice")

	status, env := c.do("GET", "/api/techstack/available?category=Programming%20Language", nil)
	require.Equal(t, fiber.StatusOK, status)
	var techs []struct {
		ID   uint   `json:"id"`
		Name string `json:"name"`
	}
	env.Decode(t, &techs)
	require.NotEmpty(t, techs)

	status, _ = c.do("PUT", "/api/techstack/my-stack", map[string]interface{}{"tech_stack_ids": []uint{techs[0].ID}})
	require.Equal(t, fiber.StatusOK, status)

	status, env = c.do("POST", "/api/chat/session", nil)
	require.Equal(t, fiber.StatusCreated, status)
	var session struct {
		SessionID string `json:"session_id"`
	}
	env.Decode(t, &session)

	status, env = c.do("POST", "/api/chat/message", map[string]string{
		"session_id": session.SessionID,
		"content":    "How should I structure a service layer",
	})
	require.Equal(t, fiber.StatusOK, status)
	var reply struct {
		Message     string `json:"message"`
		TechContext struct {
			TechStack []string `json:"tech_stack"`
		} `json:"tech_context"`
	}
	env.Decode(t, &reply)
	assert.Equal(t, "Prefer composition over inheritance.", reply.Message)
	assert.Equal(t, []string{techs[0].Name}, reply.TechContext.TechStack)

	calls := provider.CompleteCalls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].SystemPrompt, techs[0].Name)
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	c, _ := newTestServer(t, 20)

	for _, route := range []struct{ method, path string }{
		{"GET", "/api/chat/sessions"},
		{"POST", "/api/interview/generate"},
		{"GET", "/api/preferences"},
		{"GET", "/api/techstack/my-stack"},
		{"GET", "/api/auth/me"},
	} {
		status, env := c.do(route.method, route.path, nil)
		assert.Equal(t, fiber.StatusUnauthorized, status, route.path)
		require.NotNil(t, env.Error, route.path)
		assert.Equal(t, middleware.CredentialsErrorMessage, env.Error.Message, route.path)
	}
}

func TestChatMessageRateLimit(t *testing.T) {
	c, provider := newTestServer(t, 2)
	c.login("alice")

	status, env := c.do("POST", "/api/chat/session", nil)
	require.Equal(t, fiber.StatusCreated, status)
	var session struct {
		SessionID string `json:"session_id"`
	}
	env.Decode(t, &session)

	body := map[string]string{"session_id": session.SessionID, "content": "What is a goroutine"}
	for i := 0; i < 2; i++ {
		status, _ = c.do("POST", "/api/chat/message", body)
		require.Equal(t, fiber.StatusOK, status)
	}

	status, env = c.do("POST", "/api/chat/message", body)
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", env.Error.Code)
	assert.Len(t, provider.CompleteCalls(), 2)

	// the default class keeps its own budget
	status, _ = c.do("GET", "/api/chat/sessions", nil)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestHealthAndMetrics(t *testing.T) {
	c, _ := newTestServer(t, 20)

	status, _ := c.do("GET", "/health", nil)
	assert.Equal(t, fiber.StatusOK, status)

	resp, err := c.app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "devpilot_http_requests_total"))
}
