package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters for the write paths. Registered on the default registry and
// served by the /metrics endpoint.
var (
	AttendanceWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parishledger_attendance_writes_total",
		Help: "Attendance records written, by source.",
	}, []string{"source"})

	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parishledger_scans_total",
		Help: "QR scan outcomes, by result (accepted or the rejection reason).",
	}, []string{"result"})

	PaymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parishledger_payments_total",
		Help: "Payment transactions recorded, by currency and method.",
	}, []string{"currency", "method"})
)
