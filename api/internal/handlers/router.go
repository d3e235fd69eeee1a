package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServerMetrics instruments the sandbox router.
type ServerMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	factory := promauto.With(reg)
	return &ServerMetrics{
		Requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sandbox_http_requests_total",
				Help: "HTTP requests served by the sandbox backend",
			},
			[]string{"method", "route", "status"},
		),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sandbox_http_request_duration_seconds",
				Help:    "Sandbox request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
}

// NewRouter wires every endpoint. gatherer backs /metrics; it may be nil.
func NewRouter(h *Handlers, metrics *ServerMetrics, gatherer prometheus.Gatherer) *mux.Router {
	router := mux.NewRouter()

	router.Use(corsMiddleware)
	if metrics != nil {
		router.Use(metrics.middleware)
	}

	api := router.PathPrefix("/api").Subrouter()

	// Auth endpoints
	api.HandleFunc("/login", h.Login).Methods("POST")
	api.HandleFunc("/register", h.Register).Methods("POST")

	secured := api.NewRoute().Subrouter()
	secured.Use(h.authMiddleware)

	// Rules endpoints
	secured.HandleFunc("/rules/stats", h.GetRulesStats).Methods("GET")
	secured.HandleFunc("/rules/test/{id}", h.TestRule).Methods("POST")
	secured.HandleFunc("/rules", h.GetRules).Methods("GET")
	secured.HandleFunc("/rules", h.CreateRule).Methods("POST")
	secured.HandleFunc("/rules/{id}", h.UpdateRule).Methods("PUT")
	secured.HandleFunc("/rules/{id}", h.DeleteRule).Methods("DELETE")

	// Alerts endpoints
	secured.HandleFunc("/alerts", h.GetAlerts).Methods("GET")
	secured.HandleFunc("/alerts/{id}", h.GetAlert).Methods("GET")
	secured.HandleFunc("/alerts/{id}/resolve", h.ResolveAlert).Methods("PUT")
	secured.HandleFunc("/alerts/{id}/dismiss", h.DismissAlert).Methods("PUT")

	// Traffic endpoints
	secured.HandleFunc("/traffic/analysis", h.GetTrafficAnalysis).Methods("GET")

	// Health check
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods("GET", "OPTIONS")

	if gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	return router
}

func (h *Handlers) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "OPTIONS" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" || token != h.creds.Token {
			writeJSON(w, http.StatusUnauthorized, response{Message: "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (m *ServerMetrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		m.Duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		m.Requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
