package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/workday-booking/internal/calendar"
	"github.com/iliyamo/workday-booking/internal/service"
)

// CalendarHandler serves the public availability calendar.
type CalendarHandler struct {
	Booking *service.BookingService
}

func NewCalendarHandler(booking *service.BookingService) *CalendarHandler {
	return &CalendarHandler{Booking: booking}
}

// Months handles GET /v1/calendar.
func (h *CalendarHandler) Months(c echo.Context) error {
	months, err := h.Booking.CalendarMonths(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"months": months})
}

// Month handles GET /v1/calendar/:month where month is YYYY-MM.
func (h *CalendarHandler) Month(c echo.Context) error {
	month, err := calendar.ParseMonth(c.Param("month"))
	if err != nil {
		return badRequest(c, "month must be YYYY-MM")
	}
	days, err := h.Booking.CalendarMonth(c.Request().Context(), month)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"month": c.Param("month"), "days": days})
}
