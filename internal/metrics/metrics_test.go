package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	apperr "github.com/thtun0709/beswd/pkg/errors"
)

func TestObserveTeamOp_LabelsByKind(t *testing.T) {
	before := testutil.ToFloat64(teamOps.WithLabelValues("join", "transient"))
	ObserveTeamOp("join", time.Now(), apperr.ErrTransient)
	require.Equal(t, before+1, testutil.ToFloat64(teamOps.WithLabelValues("join", "transient")))

	before = testutil.ToFloat64(teamOps.WithLabelValues("join", "ok"))
	ObserveTeamOp("join", time.Now(), nil)
	require.Equal(t, before+1, testutil.ToFloat64(teamOps.WithLabelValues("join", "ok")))

	before = testutil.ToFloat64(teamOps.WithLabelValues("join", "internal"))
	ObserveTeamOp("join", time.Now(), errors.New("boom"))
	require.Equal(t, before+1, testutil.ToFloat64(teamOps.WithLabelValues("join", "internal")))
}

func TestGinMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/metrics", Handler())

	before := testutil.ToFloat64(httpRequests.WithLabelValues("/ping", "GET", "200"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("/ping", "GET", "200")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, strings.Contains(w.Body.String(), "http_requests_total"))
}
