package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors exported on /metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Uploads         *prometheus.CounterVec
	GalleryOps      *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New registers the collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Uploads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "twi",
			Name:      "uploads_total",
			Help:      "Uploaded files by kind and result.",
		}, []string{"kind", "result"}),
		GalleryOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "twi",
			Name:      "gallery_operations_total",
			Help:      "Gallery mutations by operation and result.",
		}, []string{"op", "result"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "twi",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveUpload counts one uploaded file
func (m *Metrics) ObserveUpload(kind string, err error) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(kind, result(err)).Inc()
}

// ObserveGalleryOp counts one gallery mutation
func (m *Metrics) ObserveGalleryOp(op string, err error) {
	if m == nil {
		return
	}
	m.GalleryOps.WithLabelValues(op, result(err)).Inc()
}

// Middleware records request latency per matched route
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
