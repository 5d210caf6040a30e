// Package metrics exposes the Prometheus collectors of the portfolio server.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Chat outcomes.
const (
	ChatOutcomeAnswered = "answered"
	ChatOutcomeEmpty    = "empty"
	ChatOutcomeOffline  = "offline"
	ChatOutcomeRejected = "rejected"
)

var (
	// ChatRequestsTotal counts chat questions by how they were answered.
	ChatRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netfolio_chat_requests_total",
		Help: "Chat questions by outcome (answered, empty, offline, rejected).",
	}, []string{"outcome"})

	// ChatCacheTotal counts answer cache lookups.
	ChatCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netfolio_chat_cache_total",
		Help: "Chat answer cache lookups by result (hit, miss, error).",
	}, []string{"result"})

	ChatProviderTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netfolio_chat_provider_total",
		Help: "Generated chat answers by provider and whether the fallback served them.",
	}, []string{"provider", "fallback"})

	ChatLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "netfolio_chat_generation_seconds",
		Help:    "Time spent generating a chat answer upstream.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 90},
	})

	CatalogReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netfolio_catalog_reloads_total",
		Help: "Catalog file reloads by result (ok, error).",
	}, []string{"result"})

	// HTTPRequestsTotal uses the chi route pattern, never the raw path.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netfolio_http_requests_total",
		Help: "HTTP requests by route pattern, method and status code.",
	}, []string{"route", "method", "status"})
)

func RecordChat(outcome string) {
	ChatRequestsTotal.WithLabelValues(outcome).Inc()
}

func RecordCache(result string) {
	ChatCacheTotal.WithLabelValues(result).Inc()
}

func RecordProvider(provider string, fallback bool) {
	ChatProviderTotal.WithLabelValues(provider, strconv.FormatBool(fallback)).Inc()
}

func RecordCatalogReload(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	CatalogReloadsTotal.WithLabelValues(result).Inc()
}

func RecordHTTP(route, method string, status int) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}
