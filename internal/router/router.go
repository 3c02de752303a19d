package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/workday-booking/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/workday-booking/internal/metrics"    // prometheus exposition
	"github.com/iliyamo/workday-booking/internal/middleware" // import middleware for JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance: the health check and the metrics endpoint.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service and its database are up.
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}

// RegisterAuth registers the token endpoints under /v1/auth.  Operators log
// in with a password; the chat front-end proves itself with frontendKey
// and receives CLIENT tokens for its users.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, frontendKey string) {
	g := e.Group("/v1/auth")
	// Register a POST endpoint to handle operator login at /v1/auth/login.
	g.POST("/login", a.Login)
	// Register a POST endpoint exchanging a client id for a CLIENT token.
	g.POST("/session", a.Session, middleware.RequireAPIKey(frontendKey))
}

// RegisterPublic registers unauthenticated endpoints: the availability
// calendar and the payment provider webhook.  The calendar is served
// through the response cache; cache may be a pass-through.
func RegisterPublic(e *echo.Echo, cal *handler.CalendarHandler, pay *handler.PaymentHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/calendar", cache)
	g.GET("", cal.Months)
	g.GET("/:month", cal.Month)

	// The provider posts here; the body is only a hint, see PaymentHandler.
	e.POST("/v1/payments/notifications", pay.Notification)
}
