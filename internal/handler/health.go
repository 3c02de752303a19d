package handler // declare the package name; contains HTTP handlers

import (
	"context"  // context bounds the database ping
	"net/http" // net/http provides status codes and response helpers
	"time"     // timeout for the ping

	"github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health returns a health‑check endpoint used by load balancers and
// monitoring systems.  It answers 200 "ok" while the ledger database
// responds and 503 otherwise.  A nil db only checks that the process runs.
func Health(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if db == nil { // nothing to check
			return c.String(http.StatusOK, "ok") // write "ok" with a 200 OK status
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second) // keep probes fast
		defer cancel()
		if err := db.PingContext(ctx); err != nil { // the ledger is authoritative; without it we are down
			return c.String(http.StatusServiceUnavailable, "database unavailable")
		}
		return c.String(http.StatusOK, "ok")
	}
}
