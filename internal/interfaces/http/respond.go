package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/Fiscal-Harmony/odoov19/internal/application/dto"
	"github.com/Fiscal-Harmony/odoov19/internal/domain"
)

// respondError traduce errores de dominio a respuestas HTTP consistentes.
func respondError(c *fiber.Ctx, err error) error {
	var vErr *domain.ValidationError
	var netErr *domain.NetworkError
	var authErr *domain.AuthorityError

	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})
	case errors.Is(err, domain.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DUPLICATE", Message: err.Error()})
	case errors.Is(err, domain.ErrLeaseHeld):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "LEASE_HELD", Message: err.Error()})
	case errors.Is(err, domain.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: err.Error()})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrConfigMissing):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "CONFIG_MISSING", Message: err.Error()})
	case errors.Is(err, domain.ErrRetryLimit):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "RETRY_LIMIT", Message: err.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "credenciales inválidas"})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: err.Error()})
	case errors.As(err, &vErr):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: vErr.Error()})
	case errors.As(err, &authErr):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "AUTHORITY_REJECTED", Message: authErr.Error()})
	case errors.As(err, &netErr):
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "NETWORK", Message: netErr.Error()})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}
