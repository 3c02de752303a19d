package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/workday-booking/internal/model"
)

// writeError maps an engine error to its HTTP status.  Only unexpected
// failures are logged; their text is not exposed.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, model.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, model.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, model.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, model.ErrGateway):
		logrus.WithError(err).WithField("path", c.Path()).Warn("payment gateway failure")
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment pending, retry status check"})
	}
	logrus.WithError(err).WithFields(logrus.Fields{
		"method": c.Request().Method,
		"path":   c.Path(),
	}).Error("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}
