package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperr "github.com/thtun0709/beswd/pkg/errors"
)

var (
	registry = prometheus.DefaultRegisterer

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by path/method/code.",
		},
		[]string{"path", "method", "code"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests by path/method/code.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "code"},
	)

	teamOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "team_operations_total",
			Help: "Team ledger operations by op and result kind.",
		},
		[]string{"op", "result"},
	)

	teamOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "team_operation_duration_seconds",
			Help:    "Duration of team ledger operations including lock wait.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	leaderVotes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leader_votes_total",
			Help: "Leader votes by outcome (voted, leader_chosen, rejected).",
		},
		[]string{"outcome"},
	)

	mentorshipRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentorship_requests_total",
			Help: "Mentorship request transitions by status.",
		},
		[]string{"status"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Realtime notifications by event and result.",
		},
		[]string{"event", "result"},
	)
)

func GinMiddleware(c *gin.Context) {
	start := time.Now()
	c.Next()
	code := strconv.Itoa(c.Writer.Status())
	path := c.FullPath()

	// 未匹配路由时 FullPath 为空
	if path == "" {
		path = "unmatched"
	}

	if path == "/metrics" || strings.HasPrefix(path, "/debug/") {
		return
	}

	method := c.Request.Method

	httpRequests.WithLabelValues(path, method, code).Inc()
	httpDuration.WithLabelValues(path, method, code).Observe(time.Since(start).Seconds())
}

func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// ObserveTeamOp 记录成员/投票/申请类操作，result 为错误分类（成功记 ok）
func ObserveTeamOp(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = string(apperr.KindOf(err))
	}
	teamOps.WithLabelValues(op, result).Inc()
	teamOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func ObserveVote(outcome string) {
	leaderVotes.WithLabelValues(outcome).Inc()
}

func ObserveMentorship(status string) {
	mentorshipRequests.WithLabelValues(status).Inc()
}

func ObserveNotification(event string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	notifications.WithLabelValues(event, result).Inc()
}

func init() {
	collectors := []prometheus.Collector{
		httpRequests,
		httpDuration,
		teamOps,
		teamOpDuration,
		leaderVotes,
		mentorshipRequests,
		notifications,
	}

	for _, c := range collectors {
		_ = registry.Register(c)
	}
}
