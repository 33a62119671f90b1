package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/devpilot-api/database"
	"github.com/sahilchouksey/devpilot-api/handlers"
	auth_handlers "github.com/sahilchouksey/devpilot-api/handlers/auth"
	chat_handlers "github.com/sahilchouksey/devpilot-api/handlers/chat"
	interview_handlers "github.com/sahilchouksey/devpilot-api/handlers/interview"
	preference_handlers "github.com/sahilchouksey/devpilot-api/handlers/preference"
	techstack_handlers "github.com/sahilchouksey/devpilot-api/handlers/techstack"
	"github.com/sahilchouksey/devpilot-api/services"
	"github.com/sahilchouksey/devpilot-api/utils/auth"
	"github.com/sahilchouksey/devpilot-api/utils/cache"
	"github.com/sahilchouksey/devpilot-api/utils/metrics"
	"github.com/sahilchouksey/devpilot-api/utils/middleware"
	"go.uber.org/zap"
)

// Dependencies are the shared components the routes are built from
type Dependencies struct {
	Store            database.Storage
	JWTManager       *auth.JWTManager
	RedisCache       *cache.RedisCache // optional; enables login brute-force protection
	ChatService      *services.ChatService
	InterviewService *services.InterviewService
	Limiter          *middleware.SlidingWindowLimiter
	AllowedOrigins   string
	Logger           *zap.Logger
}

// RateLimitRules assigns the expensive model-backed routes their own budgets
func RateLimitRules() []middleware.RouteRule {
	return []middleware.RouteRule{
		{Method: fiber.MethodPost, Path: "/api/chat/message", Class: middleware.RouteClassChatMessage},
		{Method: fiber.MethodPost, Path: "/api/interview/generate", Class: middleware.RouteClassInterviewGeneration},
	}
}

func SetupRoutes(app *fiber.App, deps Dependencies) {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	db := deps.Store.GetDB()

	var bruteForceProtection *middleware.BruteForceProtection
	if deps.RedisCache != nil {
		bruteForceProtection = middleware.NewBruteForceProtection(deps.RedisCache, log)
	}

	authMiddleware := middleware.NewAuthMiddleware(deps.JWTManager, db, log)
	authHandler := auth_handlers.NewAuthHandler(db, deps.JWTManager, bruteForceProtection, log)
	chatHandler := chat_handlers.NewChatHandler(deps.ChatService, log)
	interviewHandler := interview_handlers.NewInterviewHandler(deps.InterviewService, log)
	techStackHandler := techstack_handlers.NewTechStackHandler(db, log)
	preferenceHandler := preference_handlers.NewPreferenceHandler(db, log)

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins: deps.AllowedOrigins,
		Logger:         log,
		RateLimit: middleware.RateLimitConfig{
			Limiter:    deps.Limiter,
			Classifier: middleware.NewRouteClassifier(RateLimitRules()...),
		},
	})

	app.Get("/health", handlers.HandleCheckHealth(deps.Store))
	app.Get("/metrics", metrics.Handler())

	api := app.Group("/api")

	// Auth routes
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	if bruteForceProtection != nil {
		authGroup.Post("/login", bruteForceProtection.CheckLockout(), authHandler.Login)
	} else {
		authGroup.Post("/login", authHandler.Login)
	}
	authGroup.Get("/me", authMiddleware.Required(), authHandler.GetProfile)
	authGroup.Put("/me", authMiddleware.Required(), authHandler.UpdateProfile)

	// Tech stack catalogue
	techstack := api.Group("/techstack")
	techstack.Get("/available", techStackHandler.ListAvailable)
	techstack.Get("/categories", techStackHandler.ListCategories)
	techstack.Post("/create", authMiddleware.Required(), techStackHandler.Create)
	techstack.Get("/my-stack", authMiddleware.Required(), techStackHandler.GetMyStack)
	techstack.Put("/my-stack", authMiddleware.Required(), techStackHandler.UpdateMyStack)
	techstack.Delete("/my-stack/:id", authMiddleware.Required(), techStackHandler.RemoveFromMyStack)

	// Chat routes (all protected)
	chat := api.Group("/chat", authMiddleware.Required())
	chat.Post("/session", chatHandler.CreateSession)
	chat.Get("/sessions", chatHandler.ListSessions)
	chat.Get("/session/:id/messages", chatHandler.GetSessionMessages)
	chat.Delete("/session/:id", chatHandler.DeleteSession)
	chat.Post("/message", chatHandler.SendMessage)
	chat.Post("/history", chatHandler.History)
	chat.Get("/search", chatHandler.Search)

	// Interview routes (all protected)
	interview := api.Group("/interview", authMiddleware.Required())
	interview.Post("/generate", interviewHandler.Generate)
	interview.Post("/practice-set", interviewHandler.PracticeSet)
	interview.Get("/saved", interviewHandler.Saved)
	interview.Get("/categories", interviewHandler.Categories)
	interview.Get("/difficulty-levels", interviewHandler.DifficultyLevels)
	interview.Get("/stats", interviewHandler.Stats)

	// Preferences (all protected)
	preferences := api.Group("/preferences", authMiddleware.Required())
	preferences.Get("/", preferenceHandler.List)
	preferences.Put("/:key", preferenceHandler.Set)
	preferences.Delete("/:key", preferenceHandler.Delete)
}
