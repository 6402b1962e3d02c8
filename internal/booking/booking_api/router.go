package booking_api

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"terrace-booking/internal/logger"
)

// NewRouter wires middleware, CORS and the terrace routes. Assets under
// staticDir are served at "/" when the directory exists.
func NewRouter(h *Handler, log *logger.Logger, staticDir string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	h.RegisterRoutes(r)

	if staticDir != "" {
		if info, err := os.Stat(staticDir); err == nil && info.IsDir() {
			r.Handle("/*", http.FileServer(http.Dir(staticDir)))
			log.Info("ROUTER", fmt.Sprintf("Serving static files from %s", staticDir))
		}
	}
	return r
}

// RequestLogger logs method, path, status and duration of every request.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.LogAPI(r.Method, r.URL.Path, fmt.Sprintf("%d", status), time.Since(start).String())
		})
	}
}
