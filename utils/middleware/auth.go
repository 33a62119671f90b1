package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/devpilot-api/model"
	"github.com/sahilchouksey/devpilot-api/utils/auth"
	"github.com/sahilchouksey/devpilot-api/utils/response"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CredentialsErrorMessage is returned for every authentication failure so
// callers cannot tell which check rejected them
const CredentialsErrorMessage = "Could not validate credentials"

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	jwtManager *auth.JWTManager
	db         *gorm.DB
	log        *zap.Logger
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtManager *auth.JWTManager, db *gorm.DB, log *zap.Logger) *AuthMiddleware {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthMiddleware{
		jwtManager: jwtManager,
		db:         db,
		log:        log,
	}
}

// Required rejects the request unless it carries a valid bearer token for an
// existing, active user. The user is stored in Locals("user").
func (m *AuthMiddleware) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return rejectCredentials(c)
		}

		claims, err := m.jwtManager.ValidateToken(tokenString)
		if err != nil {
			m.log.Debug("token rejected", zap.Error(err))
			return rejectCredentials(c)
		}

		var user model.User
		err = m.db.WithContext(c.UserContext()).
			Preload("TechStacks").
			Where("username = ?", claims.Username).
			First(&user).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				m.log.Error("failed to load user for token", zap.String("username", claims.Username), zap.Error(err))
			}
			return rejectCredentials(c)
		}

		if !user.IsActive {
			return rejectCredentials(c)
		}

		c.Locals("user", &user)
		c.Locals("claims", claims)

		return c.Next()
	}
}

func rejectCredentials(c *fiber.Ctx) error {
	c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
	return response.Unauthorized(c, CredentialsErrorMessage)
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// GetUser extracts full user object from context
func GetUser(c *fiber.Ctx) (*model.User, bool) {
	user := c.Locals("user")
	if user == nil {
		return nil, false
	}
	u, ok := user.(*model.User)
	return u, ok
}

// GetClaims extracts full claims from context
func GetClaims(c *fiber.Ctx) (*auth.Claims, bool) {
	claims := c.Locals("claims")
	if claims == nil {
		return nil, false
	}
	claimsData, ok := claims.(*auth.Claims)
	return claimsData, ok
}
