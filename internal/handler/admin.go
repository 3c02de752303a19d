package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/workday-booking/internal/notify"
	"github.com/iliyamo/workday-booking/internal/operator"
	"github.com/iliyamo/workday-booking/internal/service"
)

// AdminHandler serves the operator routes.  All methods assume JWTAuth and
// RequireRole(OPERATOR) ran.
type AdminHandler struct {
	Commands *operator.Commands
	Booking  *service.BookingService
	Delivery *service.DeliveryService
	Support  *service.SupportService
}

func NewAdminHandler(cmds *operator.Commands, booking *service.BookingService,
	delivery *service.DeliveryService, support *service.SupportService) *AdminHandler {
	if cmds == nil || booking == nil || delivery == nil || support == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{Commands: cmds, Booking: booking, Delivery: delivery, Support: support}
}

type commandReq struct {
	Line string `json:"line" validate:"required,startswith=/"`
}

type partReq struct {
	Kind    notify.Kind `json:"kind" validate:"required,oneof=text photo document"`
	Text    string      `json:"text" validate:"max=4096"`
	FileID  string      `json:"file_id"`
	Caption string      `json:"caption"`
}

type refundReq struct {
	Amount *decimal.Decimal `json:"amount"`
}

type replyReq struct {
	Text string `json:"text" validate:"required,max=4000"`
}

// Command handles POST /v1/admin/commands.  The reply is always 200 with
// the command's text; failures are described in the text.
func (h *AdminHandler) Command(c echo.Context) error {
	var req commandReq
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reply": h.Commands.Execute(c.Request().Context(), req.Line)})
}

// FileBrief handles POST /v1/admin/reservations/:id/brief, called when the
// client's brief form arrives.
func (h *AdminHandler) FileBrief(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return badRequest(c, "invalid reservation id")
	}
	res, err := h.Booking.FileBrief(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// StartDelivery handles POST /v1/admin/reservations/:id/delivery.
func (h *AdminHandler) StartDelivery(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return badRequest(c, "invalid reservation id")
	}
	job, err := h.Delivery.StartDelivery(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, job)
}

// DeliverPart handles POST /v1/admin/deliveries/:job/parts.
func (h *AdminHandler) DeliverPart(c echo.Context) error {
	var req partReq
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	out, err := h.Delivery.DeliverPart(c.Request().Context(), c.Param("job"), notify.Content{
		Kind:    req.Kind,
		Text:    req.Text,
		FileID:  req.FileID,
		Caption: req.Caption,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Refund handles POST /v1/admin/payments/:id/refund.  Without an amount
// the whole payment is refunded.
func (h *AdminHandler) Refund(c echo.Context) error {
	var req refundReq
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	p, err := h.Booking.Refund(c.Request().Context(), c.Param("id"), req.Amount)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// SupportReply handles POST /v1/admin/support/:client/reply.
func (h *AdminHandler) SupportReply(c echo.Context) error {
	clientID, err := strconv.ParseInt(c.Param("client"), 10, 64)
	if err != nil || clientID <= 0 {
		return badRequest(c, "invalid client id")
	}
	var req replyReq
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	if err := h.Support.Reply(c.Request().Context(), clientID, req.Text); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "sent"})
}
