package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"bookshelf/internal/httputil"
	"bookshelf/internal/model"
	"bookshelf/internal/service"
	"bookshelf/internal/transport/http/middleware"
)

type ListFollowHandler struct {
	listFollowService *service.ListFollowService
}

func NewListFollowHandler(listFollowService *service.ListFollowService) *ListFollowHandler {
	return &ListFollowHandler{
		listFollowService: listFollowService,
	}
}

// Follow handles POST /lists/{id}/follow. Following twice is not an error.
func (h *ListFollowHandler) Follow(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	listID, ok := idParam(w, r, "id", "list")
	if !ok {
		return
	}

	inserted, err := h.listFollowService.Follow(r.Context(), userID, listID)
	if err != nil {
		if errors.Is(err, model.ErrListNotFound) {
			httputil.WriteNotFound(w, "List not found")
			return
		}
		log.Printf("[ERROR] Follow list handler: %v", err)
		httputil.WriteInternalError(w, "Failed to follow list")
		return
	}

	status := http.StatusOK
	if inserted {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, map[string]interface{}{
		"id_list":   listID,
		"following": true,
	})
}

// Unfollow handles DELETE /lists/{id}/follow. Unfollowing a list that is not followed succeeds.
func (h *ListFollowHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	listID, ok := idParam(w, r, "id", "list")
	if !ok {
		return
	}

	if err := h.listFollowService.Unfollow(r.Context(), userID, listID); err != nil {
		log.Printf("[ERROR] Unfollow list handler: %v", err)
		httputil.WriteInternalError(w, "Failed to unfollow list")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"id_list":   listID,
		"following": false,
	})
}

// IsFollowing handles GET /lists/{id}/follow
func (h *ListFollowHandler) IsFollowing(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	listID, ok := idParam(w, r, "id", "list")
	if !ok {
		return
	}

	following, err := h.listFollowService.IsFollowing(r.Context(), userID, listID)
	if err != nil {
		log.Printf("[ERROR] IsFollowing handler: %v", err)
		httputil.WriteInternalError(w, "Failed to check follow status")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"id_list":   listID,
		"following": following,
	})
}

// FollowersCount handles GET /lists/{id}/followers/count
func (h *ListFollowHandler) FollowersCount(w http.ResponseWriter, r *http.Request) {
	listID, ok := idParam(w, r, "id", "list")
	if !ok {
		return
	}

	exists, err := h.listFollowService.ListExists(r.Context(), listID)
	if err != nil {
		log.Printf("[ERROR] FollowersCount handler: %v", err)
		httputil.WriteInternalError(w, "Failed to count followers")
		return
	}
	if !exists {
		httputil.WriteNotFound(w, "List not found")
		return
	}

	count, err := h.listFollowService.FollowersCount(r.Context(), listID)
	if err != nil {
		log.Printf("[ERROR] FollowersCount handler: %v", err)
		httputil.WriteInternalError(w, "Failed to count followers")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]int64{
		"id_list":      listID,
		"followersNum": count,
	})
}

// MostFollowed handles GET /lists/most-followed?limit=
func (h *ListFollowHandler) MostFollowed(w http.ResponseWriter, r *http.Request) {
	limit := model.MostFollowedCap
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			httputil.WriteBadRequest(w, "Limit must be a positive integer")
			return
		}
		limit = parsed // values above the cap are clamped by the service
	}

	ids, err := h.listFollowService.GetMostFollowed(r.Context(), limit)
	if err != nil {
		log.Printf("[ERROR] MostFollowed handler: %v", err)
		httputil.WriteInternalError(w, "Failed to get most followed lists")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"list_ids": ids,
	})
}
