package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/workday-booking/internal/handler"
	"github.com/iliyamo/workday-booking/internal/middleware"
)

// RegisterAdmin registers operator endpoints under /v1/admin.  All routes
// require a valid JWT and the OPERATOR role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleOperator),
	)
	g.POST("/commands", h.Command)

	// brief form arrivals and project delivery
	g.POST("/reservations/:id/brief", h.FileBrief)
	g.POST("/reservations/:id/delivery", h.StartDelivery)
	g.POST("/deliveries/:job/parts", h.DeliverPart)

	g.POST("/payments/:id/refund", h.Refund)
	g.POST("/support/:client/reply", h.SupportReply)
}
