package http

import (
	"context"
	"errors"
	"net/http"

	"loan-ledger/internal/collateral"
	"loan-ledger/internal/domain/loan"
	"loan-ledger/internal/wallet"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// statusFor maps domain errors → HTTP codes. Anything unknown is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, wallet.ErrNotConnected), errors.Is(err, wallet.ErrUserRejected):
		return http.StatusUnauthorized
	case errors.Is(err, loan.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, loan.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, loan.ErrIllegalTransition), errors.Is(err, loan.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, loan.ErrInvalidInput),
		errors.Is(err, loan.ErrInvalidAmount),
		errors.Is(err, loan.ErrInvalidAsset),
		errors.Is(err, wallet.ErrInvalidAddr),
		errors.Is(err, collateral.ErrInvalidDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, wallet.ErrNoProvider):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeError(c echo.Context, log logrus.FieldLogger, err error) error {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.Path()).Error("request failed")
		return c.JSON(code, ErrorResponse{Error: "internal error"})
	}
	return c.JSON(code, ErrorResponse{Error: err.Error()})
}

func validationFailed(c echo.Context, err error) error {
	return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "validation failed",
		Details: ToFieldErrors(err),
	})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}
