package auth

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/devpilot-api/model"
	authutil "github.com/sahilchouksey/devpilot-api/utils/auth"
	"github.com/sahilchouksey/devpilot-api/utils/cache"
	"github.com/sahilchouksey/devpilot-api/utils/middleware"
	"github.com/sahilchouksey/devpilot-api/utils/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

type authFixture struct {
	app *fiber.App
	db  *gorm.DB
	jwt *authutil.JWTManager
}

func newAuthFixture(t *testing.T, bf *middleware.BruteForceProtection) *authFixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	jwtManager := authutil.NewJWTManager(authutil.JWTConfig{Secret: "test-secret", Issuer: "test"})

	h := NewAuthHandler(db, jwtManager, bf, nil)
	h.hashCost = authutil.MinCost

	app := fiber.New()
	group := app.Group("/api/auth")
	if bf != nil {
		group.Post("/login", bf.CheckLockout(), h.Login)
	} else {
		group.Post("/login", h.Login)
	}
	group.Post("/register", h.Register)
	required := middleware.NewAuthMiddleware(jwtManager, db, nil).Required()
	group.Get("/me", required, h.GetProfile)
	group.Put("/me", required, h.UpdateProfile)

	return &authFixture{app: app, db: db, jwt: jwtManager}
}

func (f *authFixture) do(t *testing.T, method, path string, body interface{}, token string) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.app.Test(req)
	require.NoError(t, err)

	var env envelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	return resp.StatusCode, env
}

func registerBody(username, email string) map[string]interface{} {
	return map[string]interface{}{
		"username":            username,
		"email":               email,
		"password":            "password123",
		"full_name":           "Test User",
		"years_of_experience": 4,
		"current_role":        "Backend Engineer",
	}
}

func TestRegister_Success(t *testing.T) {
	f := newAuthFixture(t, nil)

	status, env := f.do(t, "POST", "/api/auth/register", registerBody("alice", "Alice@Example.com"), "")
	require.Equal(t, fiber.StatusCreated, status)

	var user map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, "alice", user["username"])
	assert.Equal(t, "alice@example.com", user["email"])
	assert.Equal(t, true, user["is_active"])
	assert.NotContains(t, user, "password_hash")
	assert.NotContains(t, user, "PasswordHash")

	var stored model.User
	require.NoError(t, f.db.Where("username = ?", "alice").First(&stored).Error)
	assert.NoError(t, authutil.VerifyPassword(stored.PasswordHash, "password123"))
}

func TestRegister_ConflictsNameTheField(t *testing.T) {
	f := newAuthFixture(t, nil)
	status, _ := f.do(t, "POST", "/api/auth/register", registerBody("alice", "alice@example.com"), "")
	require.Equal(t, fiber.StatusCreated, status)

	status, env := f.do(t, "POST", "/api/auth/register", registerBody("alice", "other@example.com"), "")
	assert.Equal(t, fiber.StatusConflict, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "username", env.Error.Details)

	status, env = f.do(t, "POST", "/api/auth/register", registerBody("bob", "alice@example.com"), "")
	assert.Equal(t, fiber.StatusConflict, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "email", env.Error.Details)

	// both taken: username wins
	status, env = f.do(t, "POST", "/api/auth/register", registerBody("alice", "alice@example.com"), "")
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "username", env.Error.Details)
}

func TestRegister_Validation(t *testing.T) {
	f := newAuthFixture(t, nil)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"short username", registerBody("al", "al@example.com")},
		{"bad email", registerBody("alice", "not-an-email")},
		{"short password", func() map[string]interface{} {
			b := registerBody("alice", "alice@example.com")
			b["password"] = "short"
			return b
		}()},
		{"negative experience", func() map[string]interface{} {
			b := registerBody("alice", "alice@example.com")
			b["years_of_experience"] = -1
			return b
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := f.do(t, "POST", "/api/auth/register", tt.body, "")
			assert.Equal(t, fiber.StatusUnprocessableEntity, status)
			require.NotNil(t, env.Error)
			assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
		})
	}

	var count int64
	require.NoError(t, f.db.Model(&model.User{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestLogin_Success(t *testing.T) {
	f := newAuthFixture(t, nil)
	testutil.CreateUser(t, f.db, "alice", "password123")

	status, env := f.do(t, "POST", "/api/auth/login", map[string]string{"username": "alice", "password": "password123"}, "")
	require.Equal(t, fiber.StatusOK, status)

	var tok TokenResponse
	require.NoError(t, json.Unmarshal(env.Data, &tok))
	assert.Equal(t, "bearer", tok.TokenType)
	assert.Equal(t, 30*60, tok.ExpiresIn)

	claims, err := f.jwt.ValidateToken(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), claims.ExpiresAt.Time, 5*time.Second)

	status, env = f.do(t, "GET", "/api/auth/me", nil, tok.AccessToken)
	require.Equal(t, fiber.StatusOK, status)
	var me map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "alice", me["username"])
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	f := newAuthFixture(t, nil)
	testutil.CreateUser(t, f.db, "alice", "password123")
	inactive := testutil.CreateUser(t, f.db, "carol", "password123")
	require.NoError(t, f.db.Model(inactive).Update("is_active", false).Error)

	wrongPassword := map[string]string{"username": "alice", "password": "wrong-password"}
	unknownUser := map[string]string{"username": "nobody", "password": "password123"}
	inactiveUser := map[string]string{"username": "carol", "password": "password123"}

	s1, e1 := f.do(t, "POST", "/api/auth/login", wrongPassword, "")
	s2, e2 := f.do(t, "POST", "/api/auth/login", unknownUser, "")
	s3, e3 := f.do(t, "POST", "/api/auth/login", inactiveUser, "")

	assert.Equal(t, fiber.StatusUnauthorized, s1)
	assert.Equal(t, s1, s2)
	assert.Equal(t, s1, s3)
	assert.Equal(t, e1, e2)
	assert.Equal(t, e1, e3)
	require.NotNil(t, e1.Error)
	assert.Equal(t, LoginFailedMessage, e1.Error.Message)
}

func TestLogin_BruteForceLockout(t *testing.T) {
	mr := miniredis.RunT(t)
	rc, err := cache.NewRedisCache("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })

	f := newAuthFixture(t, middleware.NewBruteForceProtection(rc, nil))
	testutil.CreateUser(t, f.db, "alice", "password123")

	bad := map[string]string{"username": "alice", "password": "nope-nope"}
	for i := 0; i < 5; i++ {
		status, _ := f.do(t, "POST", "/api/auth/login", bad, "")
		require.Equal(t, fiber.StatusUnauthorized, status)
	}

	good := map[string]string{"username": "alice", "password": "password123"}
	status, _ := f.do(t, "POST", "/api/auth/login", good, "")
	assert.Equal(t, fiber.StatusTooManyRequests, status)

	mr.FastForward(3 * time.Minute)
	status, _ = f.do(t, "POST", "/api/auth/login", good, "")
	assert.Equal(t, fiber.StatusOK, status)
}

func TestUpdateProfile(t *testing.T) {
	f := newAuthFixture(t, nil)
	testutil.CreateUser(t, f.db, "alice", "password123")
	token, _, err := f.jwt.GenerateAccessToken("alice")
	require.NoError(t, err)

	status, env := f.do(t, "PUT", "/api/auth/me", map[string]interface{}{
		"years_of_experience": 7,
		"current_role":        "Staff Engineer",
	}, token)
	require.Equal(t, fiber.StatusOK, status)

	var me model.User
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, 7, me.YearsOfExperience)
	assert.Equal(t, "Staff Engineer", me.CurrentRole)
	assert.Equal(t, "Alice", me.FullName)

	status, _ = f.do(t, "PUT", "/api/auth/me", map[string]interface{}{"years_of_experience": 51}, token)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)

	status, _ = f.do(t, "PUT", "/api/auth/me", map[string]interface{}{"current_role": "x"}, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}
