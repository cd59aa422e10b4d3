// Package metrics holds the Prometheus collectors shared by authd and
// calendar-front.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Callback outcomes recorded on CallbacksTotal
const (
	OutcomeSuccess         = "success"
	OutcomeProviderError   = "provider_error"
	OutcomeInvalidRequest  = "invalid_request"
	OutcomeUnknownState    = "unknown_state"
	OutcomeReplayedState   = "replayed_state"
	OutcomeExchangeFailed  = "exchange_failed"
	OutcomeVerifyFailed    = "verify_failed"
	OutcomeDomainForbidden = "domain_forbidden"
	OutcomeStoreFailed     = "store_failed"
)

// Calendar outcomes recorded on CalendarRequests, besides OutcomeSuccess
const (
	OutcomeAPIError = "api_error"
	OutcomeError    = "error"
)

var (
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gsession_sessions_created_total",
		Help: "Authorization sessions issued by POST /session",
	})

	CallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gsession_callbacks_total",
		Help: "OAuth callbacks handled, by outcome",
	}, []string{"outcome"})

	CalendarRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gsession_calendar_requests_total",
		Help: "Calendar event listings, by outcome",
	}, []string{"outcome"})

	ExpiredSessionsRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gsession_expired_sessions_removed_total",
		Help: "Expired session records removed by the cleanup manager",
	})

	ExchangeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gsession_code_exchange_duration_seconds",
		Help:    "Latency of the authorization code exchange with Google",
		Buckets: prometheus.DefBuckets,
	})
)

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
