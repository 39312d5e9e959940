package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "swapharness",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests served.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "swapharness",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	pollFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "swapharness",
			Subsystem: "poll",
			Name:      "fetches_total",
			Help:      "Resource fetches issued by the state poller.",
		},
		[]string{"actor", "satisfied"},
	)
	comitActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "swapharness",
			Subsystem: "actor",
			Name:      "comit_actions_total",
			Help:      "Daemon actions executed by actors.",
		},
		[]string{"actor", "action", "outcome"},
	)
	ledgerActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "swapharness",
			Subsystem: "ledger",
			Name:      "actions_total",
			Help:      "Ledger actions dispatched.",
		},
		[]string{"actor", "type", "outcome"},
	)
	ledgerWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "swapharness",
			Subsystem: "ledger",
			Name:      "precondition_wait_seconds",
			Help:      "Time spent waiting for ledger time preconditions.",
			Buckets:   []float64{0, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"actor", "kind"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, pollFetches, comitActions, ledgerActions, ledgerWait)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordPollFetch(actor string, satisfied bool) {
	RegisterMetrics()
	pollFetches.WithLabelValues(actor, strconv.FormatBool(satisfied)).Inc()
}

func RecordComitAction(actor, action string, err error) {
	RegisterMetrics()
	comitActions.WithLabelValues(actor, action, outcome(err)).Inc()
}

func RecordLedgerAction(actor, actionType string, err error) {
	RegisterMetrics()
	ledgerActions.WithLabelValues(actor, actionType, outcome(err)).Inc()
}

func RecordLedgerWait(actor, kind string, waited time.Duration) {
	RegisterMetrics()
	ledgerWait.WithLabelValues(actor, kind).Observe(waited.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
