package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/devpilot-api/utils/response"
	"go.uber.org/zap"
)

type APIServer struct {
	app           *fiber.App
	listenAddress string
	log           *zap.Logger
}

func NewAPIServer(listenAddress string, log *zap.Logger) *APIServer {
	if log == nil {
		log = zap.NewNop()
	}
	return &APIServer{
		app: fiber.New(fiber.Config{
			AppName:      "DevPilot API",
			ErrorHandler: ErrorHandler(log),
			BodyLimit:    1 << 20,
		}),
		listenAddress: listenAddress,
		log:           log,
	}
}

func (s *APIServer) GetEngine() *fiber.App {
	return s.app
}

func (s *APIServer) Run() error {
	s.log.Info("starting API server", zap.String("address", s.listenAddress))
	return s.app.Listen(s.listenAddress)
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *APIServer) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down API server")
	return s.app.ShutdownWithContext(ctx)
}

// ErrorHandler renders errors that escape handlers in the response envelope.
// Unexpected errors never leak their message.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			switch fe.Code {
			case fiber.StatusNotFound:
				return response.NotFound(c, fe.Message)
			case fiber.StatusMethodNotAllowed:
				return response.Error(c, fe.Code, fe.Message, "METHOD_NOT_ALLOWED")
			case fiber.StatusRequestEntityTooLarge:
				return response.Error(c, fe.Code, fe.Message, "PAYLOAD_TOO_LARGE")
			case fiber.StatusUnauthorized:
				return response.Unauthorized(c, fe.Message)
			case fiber.StatusTooManyRequests:
				return response.TooManyRequests(c, fe.Message)
			}
			if fe.Code < fiber.StatusInternalServerError {
				return response.BadRequest(c, fe.Message)
			}
		}

		log.Error("unhandled error",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return response.InternalServerError(c, "Internal server error")
	}
}
