package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"ambos-norte-backend/internal/service"
)

// httpError translates domain errors into HTTP responses. Cart validation
// failures carry the offending line; conflicts and bad enum values are 400s,
// missing entities 404s.
func httpError(err error) error {
	var cartErr *service.CartError
	if errors.As(err, &cartErr) {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]interface{}{
			"error": cartErr.Error(),
			"line":  cartErr.Line,
		})
	}

	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrPriceMismatch),
		errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, service.ErrOrderInactive):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}

	return err
}
