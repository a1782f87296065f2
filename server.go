package accounts

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// NewFiberServer returns a go-router server backed by a fiber app built from
// cfg. Errors returned by handlers are rendered with ErrorHandler and the raw
// query string of every request is available through RawQuery.
//
// Middleware added to WrappedRouter() must be registered before any route.
func NewFiberServer(logger Logger, cfg ...fiber.Config) router.Server[*fiber.App] {
	var conf fiber.Config
	if len(cfg) > 0 {
		conf = cfg[0]
	}
	conf.ErrorHandler = ErrorHandler(logger)

	return router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		app := fiber.New(conf)
		app.Use(captureRawQuery)
		return app
	})
}

func captureRawQuery(c *fiber.Ctx) error {
	raw := string(c.Request().URI().QueryString())
	c.SetUserContext(WithRawQuery(c.UserContext(), raw))
	return c.Next()
}

// ErrorHandler renders errors as {"error": {...}} with the status derived
// from the error code or category.
func ErrorHandler(logger Logger) fiber.ErrorHandler {
	logger = resolveLogger(logger)
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		var rich *goerrors.Error
		if errors.As(err, &fe) && !goerrors.As(err, &rich) {
			rich = goerrors.New(fe.Message, goerrors.HTTPStatusToCategory(fe.Code)).
				WithCode(fe.Code).
				WithTextCode(goerrors.HTTPStatusToTextCode(fe.Code))
		} else {
			rich = goerrors.MapToError(err, goerrors.DefaultErrorMappers())
		}

		status := rich.Code
		if status == 0 {
			status = statusFromCategory(rich.Category)
		}

		if status >= fiber.StatusInternalServerError {
			logger.Error("%s %s failed: %v", c.Method(), c.Path(), err)
		}

		return c.Status(status).JSON(rich.ToErrorResponse(false, nil))
	}
}

func statusFromCategory(cat goerrors.Category) int {
	switch cat {
	case goerrors.CategoryValidation:
		return fiber.StatusUnprocessableEntity
	case goerrors.CategoryBadInput:
		return fiber.StatusBadRequest
	case goerrors.CategoryAuth:
		return fiber.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return fiber.StatusForbidden
	case goerrors.CategoryNotFound:
		return fiber.StatusNotFound
	case goerrors.CategoryConflict:
		return fiber.StatusConflict
	case goerrors.CategoryRateLimit:
		return fiber.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
