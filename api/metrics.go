// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type httpMetrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
	eventStreams     prometheus.Gauge
}

func newHTTPMetrics(promRegistry prometheus.Registerer) *httpMetrics {
	promautoFactory := promauto.With(promRegistry)
	return &httpMetrics{
		requestsTotal: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ballot_api_http_requests_total",
				Help: "total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: promautoFactory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ballot_api_http_request_duration_seconds",
				Help:    "duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		requestsInFlight: promautoFactory.NewGauge(prometheus.GaugeOpts{
			Name: "ballot_api_http_requests_in_flight",
			Help: "number of HTTP requests currently being processed",
		}),
		eventStreams: promautoFactory.NewGauge(prometheus.GaugeOpts{
			Name: "ballot_api_event_streams",
			Help: "number of connected event stream clients",
		}),
	}
}

// middleware records request metrics by route pattern
func (m *httpMetrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.requestsInFlight.Inc()
		defer m.requestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use the route pattern if available, otherwise use the path
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := strconv.Itoa(ww.Status())
		m.requestsTotal.WithLabelValues(r.Method, path, status).Inc()
		m.requestDuration.WithLabelValues(r.Method, path).
			Observe(time.Since(start).Seconds())
	})
}
