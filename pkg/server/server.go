package server

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/dataplatform/dataplatform/pkg/config"
	"github.com/dataplatform/dataplatform/pkg/contract"
	"github.com/dataplatform/dataplatform/pkg/service"
)

// Server exposes the platform API over HTTP.
type Server struct {
	app    *fiber.App
	config *config.Config
	logger *logrus.Logger
}

func NewServer(cfg *config.Config, svc *service.PlatformService, logger *logrus.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          newErrorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(compress.New())

	srv := &Server{app: app, config: cfg, logger: logger}
	registerRoutes(app, svc, cfg, NewHTTPRequestParser())

	return srv
}

// Listen blocks serving requests until Shutdown is called.
func (s *Server) Listen() error {
	s.logger.Infof("Serving platform API on %s", s.config.Address)

	return s.app.Listen(s.config.Address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// newErrorHandler maps contract errors to their HTTP status and renders them
// as JSON. Unknown errors become opaque 500s.
func newErrorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		var contractError *contract.Error
		if !errors.As(err, &contractError) {
			var fiberError *fiber.Error
			if errors.As(err, &fiberError) {
				return ctx.Status(fiberError.Code).JSON(contract.NewError(
					contract.ErrorCodeInternalError, fiberError.Message,
				))
			}
			contractError = contract.NewErrorWith(
				contract.ErrorCodeInternalError, "internal error", err,
			)
		}

		entry := logger.WithFields(logrus.Fields{
			"method": ctx.Method(),
			"path":   ctx.Path(),
			"status": contractError.StatusCode(),
		})
		if contractError.StatusCode() >= fiber.StatusInternalServerError {
			entry.Error(contractError.Error())
		} else {
			entry.Warn(contractError.Error())
		}

		return ctx.Status(contractError.StatusCode()).JSON(contractError)
	}
}
