package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/workday-booking/internal/calendar"
	"github.com/iliyamo/workday-booking/internal/middleware"
	"github.com/iliyamo/workday-booking/internal/service"
)

// ClientHandler serves the routes a chat client reaches through the
// front-end.  All methods assume JWTAuth and RequireRole(CLIENT) ran; the
// client id is the token subject.
type ClientHandler struct {
	Booking    *service.BookingService
	SupportSvc *service.SupportService
}

func NewClientHandler(booking *service.BookingService, support *service.SupportService) *ClientHandler {
	if booking == nil || support == nil {
		panic("nil service passed to NewClientHandler")
	}
	return &ClientHandler{Booking: booking, SupportSvc: support}
}

type reserveReq struct {
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Username    string `json:"username" validate:"max=64"`
	DisplayName string `json:"display_name" validate:"max=128"`
}

type supportReq struct {
	Text     string `json:"text" validate:"required,max=4000"`
	Username string `json:"username" validate:"max=64"`
}

// Reserve handles POST /v1/reservations.  It answers 201 with the
// tentative reservation and the deposit payment the client must complete
// at payment.confirmation_url.
func (h *ClientHandler) Reserve(c echo.Context) error {
	clientID, err := middleware.ClientID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req reserveReq
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	day, err := calendar.ParseDate(req.Date)
	if err != nil {
		return badRequest(c, "invalid date")
	}
	out, err := h.Booking.Reserve(c.Request().Context(), service.ReserveRequest{
		ClientID:    clientID,
		Username:    req.Username,
		DisplayName: req.DisplayName,
		SlotDate:    day,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

// MyReservations handles GET /v1/my-reservations.
func (h *ClientHandler) MyReservations(c echo.Context) error {
	clientID, err := middleware.ClientID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	list, err := h.Booking.ClientReservations(c.Request().Context(), clientID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": list})
}

// Cancel handles DELETE /v1/reservations/:id.
func (h *ClientHandler) Cancel(c echo.Context) error {
	clientID, err := middleware.ClientID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return badRequest(c, "invalid reservation id")
	}
	res, err := h.Booking.Cancel(c.Request().Context(), clientID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// FinalPayment handles POST /v1/reservations/:id/final-payment.
func (h *ClientHandler) FinalPayment(c echo.Context) error {
	clientID, err := middleware.ClientID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return badRequest(c, "invalid reservation id")
	}
	p, err := h.Booking.CreateFinalPayment(c.Request().Context(), clientID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// CheckPayment handles POST /v1/payments/:id/check, the "I paid" button.
// The provider is asked for the status; a pending payment is not an error.
func (h *ClientHandler) CheckPayment(c echo.Context) error {
	clientID, err := middleware.ClientID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	out, err := h.Booking.CheckPayment(c.Request().Context(), clientID, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Support handles POST /v1/support.
func (h *ClientHandler) Support(c echo.Context) error {
	clientID, err := middleware.ClientID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req supportReq
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	if err := h.SupportSvc.Ask(c.Request().Context(), clientID, req.Username, req.Text); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"status": "sent"})
}
