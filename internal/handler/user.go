package handler

import (
	"log"
	"net/http"
	"strings"

	"bookshelf/internal/httputil"
	"bookshelf/internal/model"
	"bookshelf/internal/service"
)

type UserHandler struct {
	userService       *service.UserService
	listFollowService *service.ListFollowService
}

func NewUserHandler(userService *service.UserService, listFollowService *service.ListFollowService) *UserHandler {
	return &UserHandler{
		userService:       userService,
		listFollowService: listFollowService,
	}
}

// GetByID handles GET /users/{id}
func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(w, r, "id", "user")
	if !ok {
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		writeUserError(w, "GetUser", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, user)
}

// Search handles GET /users/search?q=
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		httputil.WriteBadRequest(w, "Query parameter 'q' is required")
		return
	}

	users, err := h.userService.SearchByName(r.Context(), query)
	if err != nil {
		writeUserError(w, "Search", err)
		return
	}
	if users == nil {
		users = []model.UserSearchResult{}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
	})
}

// FollowedLists handles GET /users/{id}/followed-lists
func (h *UserHandler) FollowedLists(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(w, r, "id", "user")
	if !ok {
		return
	}

	exists, err := h.userService.Exists(r.Context(), userID)
	if err != nil {
		writeUserError(w, "FollowedLists", err)
		return
	}
	if !exists {
		httputil.WriteNotFound(w, "User not found")
		return
	}

	lists, err := h.listFollowService.GetFollowedLists(r.Context(), userID)
	if err != nil {
		log.Printf("[ERROR] FollowedLists handler: %v", err)
		httputil.WriteInternalError(w, "Failed to get followed lists")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"lists": lists,
	})
}
