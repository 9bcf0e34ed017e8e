// Package metrics は Prometheus メトリクスを定義します。
// すべてのメトリクスは呼び出し側から渡された Registerer に登録します。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/ogurasousui/user-api/internal/core/user"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "user_api"

// UserMetrics はユーザーユースケースの結果を記録します。user.Recorder を満たします。
type UserMetrics struct {
	created     prometheus.Counter
	conflicts   *prometheus.CounterVec
	softDeleted prometheus.Counter
}

// NewUserMetrics はユーザーメトリクスを reg に登録します。reg が nil の場合は何も記録しません。
func NewUserMetrics(reg prometheus.Registerer) *UserMetrics {
	if reg == nil {
		return &UserMetrics{}
	}
	created := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "users_created_total",
		Help:      "Number of users created.",
	})
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "user_conflicts_total",
		Help:      "Number of rejected writes due to username or email uniqueness.",
	}, []string{"reason"})
	softDeleted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "users_soft_deleted_total",
		Help:      "Number of users transitioned to inactive by soft delete.",
	})
	reg.MustRegister(created, conflicts, softDeleted)
	return &UserMetrics{
		created:     created,
		conflicts:   conflicts,
		softDeleted: softDeleted,
	}
}

func (m *UserMetrics) UserCreated() {
	if m == nil || m.created == nil {
		return
	}
	m.created.Inc()
}

func (m *UserMetrics) Conflict(reason user.ConflictReason) {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.WithLabelValues(string(reason)).Inc()
}

func (m *UserMetrics) UserSoftDeleted() {
	if m == nil || m.softDeleted == nil {
		return
	}
	m.softDeleted.Inc()
}

// HTTPMetrics は HTTP リクエストの件数とレイテンシを記録します。
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics は HTTP メトリクスを reg に登録します。
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		return &HTTPMetrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
	reg.MustRegister(requests, duration)
	return &HTTPMetrics{requests: requests, duration: duration}
}

// Middleware はルートテンプレート単位でメトリクスを記録する echo ミドルウェアです。
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil || m.requests == nil {
				return next(c)
			}

			start := time.Now()
			err := next(c)
			if err != nil {
				// 記録前にエラーレスポンスを確定させます。
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			status := strconv.Itoa(c.Response().Status)

			m.requests.WithLabelValues(method, route, status).Inc()
			m.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// Handler は reg の内容を公開する /metrics ハンドラを返します。
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
