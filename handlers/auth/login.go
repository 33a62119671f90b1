package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/devpilot-api/model"
	authutil "github.com/sahilchouksey/devpilot-api/utils/auth"
	"github.com/sahilchouksey/devpilot-api/utils/response"
	"github.com/sahilchouksey/devpilot-api/utils/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LoginFailedMessage is returned for every rejected login
const LoginFailedMessage = "Incorrect username or password"

// LoginRequest represents a user login request
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse represents a successful login response
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"` // in seconds
}

// Login handles user login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.Username = validation.SanitizeString(req.Username)

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.Describe(err))
	}

	ctx := c.UserContext()
	ip := c.IP()

	var user model.User
	err := h.db.WithContext(ctx).Where("username = ?", req.Username).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		h.log.Error("failed to load user for login", zap.Error(err))
		return response.InternalServerError(c, "")
	}

	// unknown user, wrong password and inactive account are indistinguishable
	var verifyErr error
	if err != nil {
		verifyErr = authutil.VerifyDummyPassword(req.Password)
	} else {
		verifyErr = authutil.VerifyPassword(user.PasswordHash, req.Password)
	}
	if verifyErr != nil || !user.IsActive {
		if h.bruteForceProtection != nil {
			h.bruteForceProtection.RecordFailedAttempt(ctx, ip, req.Username)
		}
		c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		return response.Unauthorized(c, LoginFailedMessage)
	}

	if h.bruteForceProtection != nil {
		h.bruteForceProtection.RecordSuccessfulAttempt(ctx, ip)
	}

	accessToken, _, err := h.jwtManager.GenerateAccessToken(user.Username)
	if err != nil {
		h.log.Error("failed to sign access token", zap.Error(err))
		return response.InternalServerError(c, "Failed to generate access token")
	}

	return response.Success(c, TokenResponse{
		AccessToken: accessToken,
		TokenType:   "bearer",
		ExpiresIn:   int(h.jwtManager.Expiry().Seconds()),
	})
}
