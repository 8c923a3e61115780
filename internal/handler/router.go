package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/blogapi/blog-api/internal/middleware"
	"github.com/blogapi/blog-api/internal/service"
)

// RouterConfig holds everything NewRouter needs to build the HTTP API.
type RouterConfig struct {
	Auth           *service.AuthService
	Blogs          *service.BlogService
	DB             Pinger
	AllowedOrigins []string
}

// NewRouter wires the HTTP routes.
func NewRouter(cfg RouterConfig) http.Handler {
	authHandler := NewAuthHandler(cfg.Auth)
	blogHandler := NewBlogHandler(cfg.Blogs)
	healthHandler := NewHealthHandler(cfg.DB)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.HandleHealth)

	r.Post("/users", authHandler.HandleRegister)
	r.Post("/login", authHandler.HandleLogin)

	r.Get("/blog", blogHandler.HandleList)
	r.Get("/blog/{id}", blogHandler.HandleShow)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireUser(cfg.Auth))
		r.Get("/users/me", authHandler.HandleMe)

		r.Post("/blog", blogHandler.HandleCreate)
		r.Put("/blog/{id}", blogHandler.HandleUpdate)
		r.Delete("/blog/{id}", blogHandler.HandleDelete)
	})

	return r
}
