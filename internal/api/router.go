package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/finbright/bankcore/internal/handler"
	"github.com/finbright/bankcore/internal/infrastructure/auth"
	"github.com/finbright/bankcore/internal/infrastructure/redis"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func init() {
	prometheus.MustRegister(RequestCounter, RequestDuration)
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// The route template keeps tx refs and ids out of the label set.
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tmpl
			}
		}

		recorder := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, r)

		status := fmt.Sprintf("%d", recorder.status)
		RequestCounter.WithLabelValues(r.Method, endpoint, status).Inc()
		RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

// SetupRouter assembles the public, authenticated and admin route trees and
// exposes /metrics for Prometheus scraping.
func SetupRouter(h *handler.Handler, adminHandler *handler.AdminHandler, redisClient redis.RedisClient, jwtSecret string) *mux.Router {
	root := mux.NewRouter()
	root.Use(metricsMiddleware)

	h.RegisterPublicRoutes(root)

	authMiddleware := auth.AuthMiddleware(redisClient, jwtSecret)

	protected := root.NewRoute().Subrouter()
	protected.Use(authMiddleware)
	h.RegisterProtectedRoutes(protected)

	admin := root.PathPrefix("/admin").Subrouter()
	admin.Use(authMiddleware, auth.AdminMiddleware)
	adminHandler.RegisterRoutes(admin)

	root.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return root
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}
