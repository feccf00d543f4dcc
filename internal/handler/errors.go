package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"bookshelf/internal/httputil"
	"bookshelf/internal/model"
)

// writeUserError maps user service errors to HTTP responses.
func writeUserError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, model.ErrUserNotFound):
		httputil.WriteNotFound(w, "User not found")
	case errors.Is(err, model.ErrUsernameExists):
		httputil.WriteConflict(w, "Username already exists")
	case errors.Is(err, model.ErrEmailExists):
		httputil.WriteConflict(w, "Email already exists")
	case errors.Is(err, model.ErrDuplicate):
		httputil.WriteConflict(w, "User already exists")
	case errors.Is(err, model.ErrInvalidRole):
		httputil.WriteValidationError(w, "Role must be one of: user, admin")
	case errors.Is(err, model.ErrMissingField):
		httputil.WriteValidationError(w, err.Error())
	case errors.Is(err, model.ErrStorage):
		log.Printf("[ERROR] %s handler: %v", op, err)
		httputil.WriteInternalError(w, "Storage operation failed")
	default:
		log.Printf("[ERROR] %s handler: %v", op, err)
		httputil.WriteInternalError(w, "Internal server error")
	}
}

// idParam parses a positive integer URL parameter. It writes the 400 itself.
func idParam(w http.ResponseWriter, r *http.Request, name, label string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httputil.WriteBadRequest(w, "Invalid "+label+" ID")
		return 0, false
	}
	return id, true
}
