package router

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/cropcare/reminder-api/internal/middleware"
)

// Handler registers its routes on a router group.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Config struct {
	RateLimit  rate.Limit
	RateBurst  int
	CORSConfig middleware.CORSConfig
}

type Router struct {
	engine  *gin.Engine
	config  Config
	metrics *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

func New(config Config) *Router {
	gin.SetMode(gin.ReleaseMode)

	r := &Router{
		engine:  gin.New(),
		config:  config,
		metrics: newRouterMetrics(),
	}

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  config.RateLimit,
		Burst: config.RateBurst,
	})

	r.engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		middleware.CORS(config.CORSConfig),
		limiter.RateLimit(),
		r.instrument(),
	)

	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// API returns the versioned API group handlers mount on.
func (r *Router) API() *gin.RouterGroup {
	return r.engine.Group("/api/v1")
}

// Root returns the unversioned group used for health endpoints.
func (r *Router) Root() *gin.RouterGroup {
	return r.engine.Group("")
}

func newRouterMetrics() *routerMetrics {
	return &routerMetrics{
		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "path", "status"}),
	}
}

func (r *Router) instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}
