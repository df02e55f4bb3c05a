package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Range request kinds, used as a metric label.
const (
	rangeNone   = "none"
	rangeSingle = "single"
	rangeMulti  = "multi"
)

// Metrics holds the Prometheus metrics for layer serving.
type Metrics struct {
	requestsTotal *prometheus.CounterVec
	rangesTotal   *prometheus.CounterVec
	bytesServed   *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fgb_http_requests_total",
				Help: "Total number of layer requests",
			},
			[]string{"method", "status_code"},
		),
		rangesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fgb_range_requests_total",
				Help: "Layer requests by range kind (none, single, multi)",
			},
			[]string{"kind"},
		),
		bytesServed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fgb_bytes_served_total",
				Help: "Response body bytes written for layer requests",
			},
			[]string{"layer"},
		),
	}
}

// RecordLayerRequest records one finished layer request.
func (m *Metrics) RecordLayerRequest(r *http.Request, layer string, statusCode, bytesWritten int) {
	m.requestsTotal.WithLabelValues(r.Method, strconv.Itoa(statusCode)).Inc()
	m.rangesTotal.WithLabelValues(rangeKind(r.Header.Get("Range"))).Inc()
	m.bytesServed.WithLabelValues(layer).Add(float64(bytesWritten))
}

// rangeKind classifies a Range header by how many ranges it asks for.
func rangeKind(header string) string {
	if header == "" {
		return rangeNone
	}
	if strings.Contains(header, ",") {
		return rangeMulti
	}
	return rangeSingle
}
