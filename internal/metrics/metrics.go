// Package metrics declares the Prometheus collectors of the booking service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "booking"

var ReservationsCreated = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "reservations",
	Name:      "created_total",
	Help:      "Tentative reservations created.",
})

var ReservationTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "reservations",
	Name:      "transitions_total",
	Help:      "Reservation state transitions by target state.",
}, []string{"to"})

var SlotConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "reservations",
	Name:      "slot_conflicts_total",
	Help:      "Deposits that lost their slot to a concurrent booking.",
})

var PaymentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "payments",
	Name:      "created_total",
	Help:      "Payments opened at the provider by kind.",
}, []string{"kind"})

var PaymentReconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "payments",
	Name:      "reconciliations_total",
	Help:      "Reported payment statuses processed.",
}, []string{"status"})

var GatewayErrors = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "payments",
	Name:      "gateway_errors_total",
	Help:      "Provider calls that ended with an unknown or failed outcome.",
})

var MirrorPushes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "mirror",
	Name:      "pushes_total",
	Help:      "Mirror pushes by result (ok, failed).",
}, []string{"result"})

var RemindersSent = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "reminders",
	Name:      "sent_total",
	Help:      "Final-payment reminders delivered to clients.",
})

var DeliveryParts = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "delivery",
	Name:      "parts_total",
	Help:      "Delivery parts forwarded to clients.",
})

var DeliveriesCompleted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "delivery",
	Name:      "completed_total",
	Help:      "Deliveries that reached the last part.",
})

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
