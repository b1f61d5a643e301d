package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"google.golang.org/grpc/codes"

	"github.com/taxsyncpro/taxsync/internal/common"
	"github.com/taxsyncpro/taxsync/internal/logger"
)

// httpStatus maps a gRPC code onto the HTTP status returned to clients.
func httpStatus(code codes.Code) int {
	switch code {
	case codes.OK:
		return fiber.StatusOK
	case codes.InvalidArgument, codes.OutOfRange:
		return fiber.StatusBadRequest
	case codes.NotFound:
		return fiber.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return fiber.StatusConflict
	case codes.ResourceExhausted:
		return fiber.StatusRequestEntityTooLarge
	case codes.FailedPrecondition:
		return fiber.StatusPreconditionFailed
	case codes.Unimplemented:
		return fiber.StatusNotImplemented
	case codes.Unavailable:
		return fiber.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return fiber.StatusGatewayTimeout
	}
	return fiber.StatusInternalServerError
}

// errorBody is the JSON shape of every error response.
func errorBody(err error) (int, fiber.Map) {
	status := httpStatus(common.StatusCode(err))
	body := fiber.Map{"error": common.UserMessage(err)}
	if code := common.ErrorCode(err); code != "" {
		body["code"] = code
	}
	if status >= fiber.StatusInternalServerError {
		body["error"] = "internal error"
	}
	return status, body
}

func errorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}
		status, body := errorBody(err)
		if status >= fiber.StatusInternalServerError {
			logger.FromContext(c.UserContext()).Error("request failed", "path", c.Path(), "error", err)
		}
		return c.Status(status).JSON(body)
	}
}
