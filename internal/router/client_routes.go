package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/workday-booking/internal/handler"
	"github.com/iliyamo/workday-booking/internal/middleware"
)

// RegisterClient registers client-scoped endpoints under /v1.  All routes
// require a valid JWT with the CLIENT role and pass through the rate
// limiter.  Clients reserve dates, pay, cancel, check payments and write
// to support.
func RegisterClient(e *echo.Echo, h *handler.ClientHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleClient),
		limiter,
	)
	g.POST("/reservations", h.Reserve)
	g.GET("/my-reservations", h.MyReservations)
	g.DELETE("/reservations/:id", h.Cancel)
	g.POST("/reservations/:id/final-payment", h.FinalPayment)
	g.POST("/payments/:id/check", h.CheckPayment)
	g.POST("/support", h.Support)
}
