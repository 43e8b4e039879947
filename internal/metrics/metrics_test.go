package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveUpload("image", nil)
	m.ObserveUpload("image", nil)
	m.ObserveUpload("image", errors.New("boom"))
	m.ObserveGalleryOp("reorder", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Uploads.WithLabelValues("image", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Uploads.WithLabelValues("image", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GalleryOps.WithLabelValues("reorder", "ok")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveUpload("video", nil)
	m.ObserveGalleryOp("delete", errors.New("x"))
}

func TestMiddlewareRecordsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := New(reg)

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/properties/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/properties/abc", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestDuration, "twi_http_request_duration_seconds"))
}
