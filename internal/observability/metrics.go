package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_http_requests_total",
			Help: "Total number of REST calls issued to the chat API.",
		},
		[]string{"method", "route", "status"},
	)
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_client_http_request_duration_seconds",
			Help:    "REST call latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	localRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_local_requests_total",
			Help: "Total number of requests served by the local control API.",
		},
		[]string{"method", "route", "status"},
	)
	tokenRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_token_refresh_total",
			Help: "Token refresh attempts by result.",
		},
		[]string{"result"},
	)
	wsConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_client_ws_connected",
			Help: "1 while the real-time channel is connected.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_ws_events_total",
			Help: "Total number of real-time channel events.",
		},
		[]string{"event"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_client_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		apiRequestsTotal,
		apiRequestDuration,
		localRequestsTotal,
		tokenRefreshTotal,
		wsConnected,
		wsEventsTotal,
		amqpPublishErrorsTotal,
	)
}

// ObserveAPIRequest records one outbound REST call. status is 0 for transport failures.
func ObserveAPIRequest(method, route string, status int, elapsed time.Duration) {
	apiRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	apiRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// HTTPMetricsMiddleware counts requests served by the local control API.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		localRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

func IncTokenRefresh(result string) {
	tokenRefreshTotal.WithLabelValues(result).Inc()
}

func SetWSConnected(connected bool) {
	if connected {
		wsConnected.Set(1)
		return
	}
	wsConnected.Set(0)
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
