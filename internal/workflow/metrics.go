package workflow

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsRegistry struct {
	registry         *prometheus.Registry
	issuancesTotal   *prometheus.CounterVec
	transferAttempts *prometheus.CounterVec
	allowanceChecks  *prometheus.CounterVec
}

func newMetricsRegistry() *metricsRegistry {
	issuances := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "giftrails_issuances_total",
		Help: "Gift card issuance submissions by outcome",
	}, []string{"status"})

	transfers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "giftrails_transfer_attempts_total",
		Help: "Transfer dispatch attempts by method and result",
	}, []string{"method", "result"})

	allowanceChecks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "giftrails_allowance_checks_total",
		Help: "ERC-20 allowance checks by result",
	}, []string{"result"})

	r := prometheus.NewRegistry()
	r.MustRegister(issuances, transfers, allowanceChecks)

	return &metricsRegistry{
		registry:         r,
		issuancesTotal:   issuances,
		transferAttempts: transfers,
		allowanceChecks:  allowanceChecks,
	}
}

func (m *metricsRegistry) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metricsRegistry) incIssuance(status string) {
	m.issuancesTotal.WithLabelValues(status).Inc()
}

func (m *metricsRegistry) incTransfer(method, result string) {
	m.transferAttempts.WithLabelValues(method, result).Inc()
}

func (m *metricsRegistry) incAllowance(result string) {
	m.allowanceChecks.WithLabelValues(result).Inc()
}
