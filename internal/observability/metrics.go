package observability

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "testcentre",
			Subsystem: "transport",
			Name:      "frames_total",
			Help:      "Frames moved over the driver connection.",
		},
		[]string{"direction"},
	)
	frameBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "testcentre",
			Subsystem: "transport",
			Name:      "bytes_total",
			Help:      "Frame bytes (header and payload) moved over the driver connection.",
		},
		[]string{"direction"},
	)
	protocolErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "testcentre",
			Subsystem: "transport",
			Name:      "closures_total",
			Help:      "Connection closures by reason.",
		},
		[]string{"reason"},
	)
	connectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "testcentre",
			Subsystem: "transport",
			Name:      "connect_attempts_total",
			Help:      "Connect attempts by outcome.",
		},
		[]string{"success"},
	)
	connectionState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "testcentre",
			Subsystem: "transport",
			Name:      "state",
			Help:      "Transport state: 0 disconnected, 1 connecting, 2 connected, 3 closed.",
		},
	)
	dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "testcentre",
			Subsystem: "dispatch",
			Name:      "commands_total",
			Help:      "Dispatched commands by outcome.",
		},
		[]string{"type", "outcome"},
	)
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "testcentre",
			Subsystem: "centre",
			Name:      "events_total",
			Help:      "Pushed events by delivery result.",
		},
		[]string{"sent"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			framesTotal,
			frameBytes,
			protocolErrors,
			connectAttempts,
			connectionState,
			dispatchTotal,
			eventsTotal,
		)
	})
}

func RecordFrame(direction string, size int) {
	RegisterMetrics()
	framesTotal.WithLabelValues(direction).Inc()
	frameBytes.WithLabelValues(direction).Add(float64(size))
}

func RecordClosure(reason string) {
	RegisterMetrics()
	protocolErrors.WithLabelValues(reason).Inc()
}

func RecordConnectAttempt(success bool) {
	RegisterMetrics()
	connectAttempts.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func RecordState(state int) {
	RegisterMetrics()
	connectionState.Set(float64(state))
}

// RecordDispatch labels by command type; outcome is one of handled,
// unhandled, dropped.
func RecordDispatch(commandType, outcome string) {
	RegisterMetrics()
	dispatchTotal.WithLabelValues(commandType, outcome).Inc()
}

func RecordEvent(sent bool) {
	RegisterMetrics()
	eventsTotal.WithLabelValues(strconv.FormatBool(sent)).Inc()
}
