package llm

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Call outcomes recorded on specforge_llm_requests_total.
const (
	OutcomeSuccess      = "success"
	OutcomeNetworkError = "network_error"
	OutcomeHTTPError    = "http_error"
	OutcomeParseError   = "parse_error"
	OutcomeConfigError  = "config_error"
)

var (
	// requestsTotal counts gateway calls by provider and outcome
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "specforge_llm_requests_total",
		Help: "Total language-model requests by provider and outcome",
	}, []string{"provider", "outcome"})

	// requestDuration tracks round-trip latency including body read
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "specforge_llm_request_duration_seconds",
		Help:    "Language-model request duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2m
	}, []string{"provider"})
)

// outcomeOf maps an error from Call to its metric label.
func outcomeOf(err error) string {
	var (
		netErr   *NetworkError
		httpErr  *HTTPError
		parseErr *ParseError
	)
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.As(err, &netErr):
		return OutcomeNetworkError
	case errors.As(err, &httpErr):
		return OutcomeHTTPError
	case errors.As(err, &parseErr):
		return OutcomeParseError
	default:
		return OutcomeConfigError
	}
}
