package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sahilchouksey/devpilot-api/utils/metrics"
	"go.uber.org/zap"
)

// ContentSecurityPolicy applied to every response
const ContentSecurityPolicy = "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'"

// SecurityConfig holds security middleware configuration
type SecurityConfig struct {
	AllowedOrigins string
	RateLimit      RateLimitConfig
	Logger         *zap.Logger
}

// SetupSecurity installs the outer middleware chain in order: request id,
// request logging, panic recovery, security headers, CORS, metrics and the
// sliding-window rate limiter. Authentication is attached per route group.
func SetupSecurity(app *fiber.App, config SecurityConfig) {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	app.Use(requestid.New())

	app.Use(RequestLogger(config.Logger))

	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			config.Logger.Error("panic recovered",
				zap.Any("panic", e),
				zap.String("path", c.Path()),
				zap.Stack("stack"),
			)
		},
	}))

	app.Use(helmet.New(helmet.Config{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: ContentSecurityPolicy,
	}))

	origins := strings.Split(config.AllowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(metrics.Middleware())

	if config.RateLimit.Limiter != nil {
		if config.RateLimit.Logger == nil {
			config.RateLimit.Logger = config.Logger
		}
		app.Use(RateLimit(config.RateLimit))
	}
}
