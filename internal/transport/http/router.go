package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bookshelf/internal/handler"
	"bookshelf/internal/httputil"
	"bookshelf/internal/model"
	authmw "bookshelf/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	AuthHandler       *handler.AuthHandler
	UserHandler       *handler.UserHandler
	MediaHandler      *handler.MediaHandler
	AdminHandler      *handler.AdminHandler
	ListFollowHandler *handler.ListFollowHandler
	Users             authmw.UserLookup // re-checks the stored role behind admin tokens
	JWTSecret         string
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Public routes - no authentication required
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", cfg.AuthHandler.Register)
		r.Post("/login", cfg.AuthHandler.Login)
		r.Get("/availability", cfg.AuthHandler.Availability)
	})

	r.Route("/users", func(r chi.Router) {
		r.Get("/search", cfg.UserHandler.Search)
		r.Get("/{id}", cfg.UserHandler.GetByID)
		r.Get("/{id}/followed-lists", cfg.UserHandler.FollowedLists)
	})

	r.Get("/lists/most-followed", cfg.ListFollowHandler.MostFollowed)
	r.Get("/lists/{id}/followers/count", cfg.ListFollowHandler.FollowersCount)

	// Protected routes - require authentication
	r.Group(func(r chi.Router) {
		r.Use(authmw.AuthMiddleware(cfg.JWTSecret))

		r.Get("/me", cfg.AuthHandler.Me)
		r.Post("/me/profile-image", cfg.MediaHandler.UploadProfileImage)

		r.Post("/lists/{id}/follow", cfg.ListFollowHandler.Follow)
		r.Delete("/lists/{id}/follow", cfg.ListFollowHandler.Unfollow)
		r.Get("/lists/{id}/follow", cfg.ListFollowHandler.IsFollowing)

		// Admin gate runs before any admin handler
		r.Route("/admin/users", func(r chi.Router) {
			r.Use(authmw.RequireRole(cfg.Users, model.RoleAdmin))

			r.Get("/", cfg.AdminHandler.ListUsers)
			r.Post("/", cfg.AdminHandler.CreateUser)
			r.Get("/{id}", cfg.AdminHandler.GetUser)
			r.Patch("/{id}", cfg.AdminHandler.UpdateUser)
			r.Delete("/{id}", cfg.AdminHandler.DeleteUser)
			r.Put("/{id}/profile-image", cfg.AdminHandler.SetProfileImage)
		})
	})

	return r
}
