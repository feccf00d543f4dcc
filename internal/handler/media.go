package handler

import (
	"errors"
	"net/http"

	"bookshelf/internal/httputil"
	"bookshelf/internal/model"
	"bookshelf/internal/service"
	"bookshelf/internal/transport/http/middleware"
)

// MediaHandler serves image uploads. profileImages is nil when R2 is not configured
// and every upload then answers 503.
type MediaHandler struct {
	profileImages *service.ProfileImageService
}

func NewMediaHandler(profileImages *service.ProfileImageService) *MediaHandler {
	return &MediaHandler{profileImages: profileImages}
}

// UploadProfileImage handles POST /me/profile-image (multipart field "image")
func (h *MediaHandler) UploadProfileImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	if h.profileImages == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, model.CodeMediaDisabled, "Image uploads are not configured")
		return
	}

	maxFormSize := int64(model.MaxProfileImageSizeBytes) + 1024*1024 // allow form overhead
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			httputil.WriteBadRequest(w, "Content-Type must be multipart/form-data")
			return
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httputil.WriteBadRequestWithCode(w, model.CodeFileTooLarge, "Image exceeds 5MB limit")
			return
		}
		httputil.WriteBadRequest(w, "Invalid form data")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		httputil.WriteBadRequest(w, "Field 'image' is required")
		return
	}
	defer file.Close()

	user, err := h.profileImages.Replace(r.Context(), userID, file, header)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrFileTooLarge):
			httputil.WriteBadRequestWithCode(w, model.CodeFileTooLarge, "Image exceeds 5MB limit")
		case errors.Is(err, model.ErrInvalidImageType):
			httputil.WriteBadRequestWithCode(w, model.CodeInvalidImageType, "Unsupported image type. Allowed: jpeg, png, gif, webp")
		default:
			writeUserError(w, "UploadProfileImage", err)
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, user)
}
