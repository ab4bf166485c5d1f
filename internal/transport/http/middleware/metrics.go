package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Observer принимает длительность и статус каждого HTTP-запроса.
type Observer interface {
	ObserveHTTP(method, route string, status int, dur time.Duration)
}

// Metrics отдаёт в obs метод, шаблон маршрута chi (например, /messages/{id}) и статус.
// Запросы без совпавшего маршрута помечаются route="unmatched".
func Metrics(obs Observer) Middleware {
	return func(next http.Handler) http.Handler {
		if obs == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := newStatusWriter(w)
			start := time.Now()
			next.ServeHTTP(sw, r)

			obs.ObserveHTTP(r.Method, routePattern(r), sw.code(), time.Since(start))
		})
	}
}

// routePattern: шаблон маршрута chi после обработки запроса или "unmatched".
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}

	return "unmatched"
}
