package handler

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"bookshelf/internal/httputil"
	"bookshelf/internal/model"
	"bookshelf/internal/service"
	"bookshelf/internal/transport/http/middleware"
)

// AuthHandler groups auth-related HTTP endpoints and their dependencies.
type AuthHandler struct {
	userService *service.UserService
	authService *service.AuthService
}

// NewAuthHandler wires dependencies for authentication endpoints.
func NewAuthHandler(userService *service.UserService, authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		authService: authService,
	}
}

// Register handles self sign-up
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	id, err := h.userService.Create(r.Context(), &model.CreateUserRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     model.RoleUser,
	})
	if err != nil {
		writeUserError(w, "Register", err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, map[string]int64{"id_user": id})
}

// Availability reports whether a username and/or email is already registered
// GET /auth/availability?username=&email=
func (h *AuthHandler) Availability(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if username == "" && email == "" {
		httputil.WriteBadRequest(w, "Query parameter 'username' or 'email' is required")
		return
	}

	resp := make(map[string]bool, 2)
	if username != "" {
		taken, err := h.userService.UsernameExists(r.Context(), username)
		if err != nil {
			writeUserError(w, "Availability", err)
			return
		}
		resp["username_taken"] = taken
	}
	if email != "" {
		taken, err := h.userService.EmailExists(r.Context(), email)
		if err != nil {
			writeUserError(w, "Availability", err)
			return
		}
		resp["email_taken"] = taken
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Login accepts a username or an email as identifier
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.userService.Authenticate(r.Context(), req.Identifier, req.Password)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCredentials) {
			httputil.WriteUnauthorized(w, "Invalid username/email or password")
			return
		}
		log.Printf("[ERROR] Login handler: %v", err)
		httputil.WriteInternalError(w, "Failed to login")
		return
	}

	response, err := h.authService.Login(user)
	if err != nil {
		log.Printf("[ERROR] Login handler: %v", err)
		httputil.WriteInternalError(w, "Failed to generate token")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, response)
}

// Me returns the currently authenticated user
// GET /me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		writeUserError(w, "Me", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, user)
}
