package handler

import (
	"net/http"

	"bookshelf/internal/httputil"
	"bookshelf/internal/model"
	"bookshelf/internal/service"
)

// AdminHandler serves user management. Routes are mounted behind RequireRole(admin).
type AdminHandler struct {
	userService *service.UserService
}

func NewAdminHandler(userService *service.UserService) *AdminHandler {
	return &AdminHandler{userService: userService}
}

type setProfileImageRequest struct {
	Path string `json:"path" validate:"required,max=255"`
}

// ListUsers handles GET /admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		writeUserError(w, "ListUsers", err)
		return
	}
	if users == nil {
		users = []model.User{}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
	})
}

// CreateUser handles POST /admin/users
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req model.CreateUserRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	id, err := h.userService.Create(r.Context(), &req)
	if err != nil {
		writeUserError(w, "CreateUser", err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, map[string]int64{"id_user": id})
}

// GetUser handles GET /admin/users/{id}
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id", "user")
	if !ok {
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		writeUserError(w, "GetUser", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, user)
}

// UpdateUser handles PATCH /admin/users/{id}. Omitted fields keep their value.
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id", "user")
	if !ok {
		return
	}

	var req model.UpdateUserRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.userService.Update(r.Context(), id, &req); err != nil {
		writeUserError(w, "UpdateUser", err)
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		writeUserError(w, "UpdateUser", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, user)
}

// SetProfileImage handles PUT /admin/users/{id}/profile-image with a stored path.
func (h *AdminHandler) SetProfileImage(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id", "user")
	if !ok {
		return
	}

	var req setProfileImageRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.userService.SetProfileImage(r.Context(), id, req.Path); err != nil {
		writeUserError(w, "SetProfileImage", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteUser handles DELETE /admin/users/{id}. Deleting a missing user succeeds.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id", "user")
	if !ok {
		return
	}

	if err := h.userService.Delete(r.Context(), id); err != nil {
		writeUserError(w, "DeleteUser", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
