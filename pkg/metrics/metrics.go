// Package metrics exposes prometheus instrumentation for the upload and
// conversion pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// UploadsTotal counts upload attempts by outcome.
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billflow_uploads_total",
		Help: "Upload attempts by outcome (accepted, duplicate, rejected).",
	}, []string{"outcome"})

	// ConversionsTotal counts conversion runs by terminal status.
	ConversionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billflow_conversions_total",
		Help: "Conversion runs by terminal status (completed, error).",
	}, []string{"status"})

	// ConversionDuration observes wall-clock conversion time.
	ConversionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "billflow_conversion_duration_seconds",
		Help:    "Wall-clock duration of conversion subprocess runs.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)

// Handler serves the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
