package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RealtimeHandler upgrades and serves a realtime connection.
type RealtimeHandler interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

// NewRouter assembles the control plane, the realtime endpoint and the
// operational routes.
func NewRouter(handler *Handler, realtime RealtimeHandler, gatherer prometheus.Gatherer, log *slog.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(logRequests(log), cors)

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/sessions", handler.CreateSession).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{code}", handler.GetSession).Methods(http.MethodGet)
	v1.HandleFunc("/sessions/{code}", handler.EndSession).Methods(http.MethodDelete)
	v1.HandleFunc("/sessions/{code}/translation/start", handler.StartTranslation).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{code}/translation/stop", handler.StopTranslation).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{code}/avatar", handler.ConnectListenerAvatar).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{code}/audio", handler.PushAudio).Methods(http.MethodPost)
	v1.HandleFunc("/ice-token", handler.IceToken).Methods(http.MethodGet)

	router.HandleFunc("/ws", realtime.ServeWS)
	router.HandleFunc("/healthz", handler.Healthz).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return router
}

func logRequests(log *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Debug("request", "method", r.Method, "path", r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Connection-Id")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
