package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/placenotes/internal/transport/http/handlers"
	"github.com/pribylovaa/placenotes/internal/transport/http/middleware"
)

// Options: параметры сборки HTTP-роутера.
type Options struct {
	Logger        *slog.Logger
	Timeout       time.Duration
	Metrics       middleware.Observer     // nil: без метрик
	RateLimiter   *middleware.RateLimiter // nil: без ограничения частоты
	Auth          middleware.AuthOptions
	DefaultRadius float64
}

// NewRouter собирает http.Handler REST API с chi и подключёнными middleware/роутами.
func NewRouter(svc handlers.Service, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),
		middleware.RequestID(), // до логирования
		middleware.Logging(opts.Logger),
		middleware.Metrics(opts.Metrics),
		opts.RateLimiter.Middleware(),
		middleware.Auth(opts.Auth),
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout))
	}

	registerRoutes(root, handlers.New(svc, opts.DefaultRadius))

	return root
}

// registerRoutes: единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers) {
	// поиск
	r.Get("/messages/near", h.FindNear)
	r.Get("/messages/inbox", h.FindInbox)

	// запись
	r.Post("/messages", h.CreateMessage)
	r.Post("/notes", h.CreateNote)
	r.Patch("/messages/{id}", h.UpdateBody)
	r.Post("/messages/{id}/read", h.SetRead(true))
	r.Post("/messages/{id}/unread", h.SetRead(false))
	r.Post("/messages/{id}/hide", h.SetHidden(true))
	r.Post("/messages/{id}/unhide", h.SetHidden(false))
	r.Delete("/messages/{id}", h.DeleteItem)
}
