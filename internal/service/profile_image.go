package service

import (
	"context"
	"fmt"
	"log"
	"mime/multipart"

	"bookshelf/internal/model"
	"bookshelf/internal/repository"
)

// ImageStore uploads and removes profile images. MediaService implements it.
type ImageStore interface {
	UploadProfileImage(ctx context.Context, file multipart.File, header *multipart.FileHeader) (*model.UploadResult, error)
	KeyForURL(url string) (string, bool)
	DeleteObject(ctx context.Context, key string) error
}

// ProfileImageService replaces a user's profile image.
type ProfileImageService struct {
	users  repository.UserRepository
	images ImageStore
}

func NewProfileImageService(users repository.UserRepository, images ImageStore) *ProfileImageService {
	return &ProfileImageService{users: users, images: images}
}

// Replace uploads the new image, points the user at it and then removes the
// previous uploaded object. Failing to remove the old object is only logged.
func (s *ProfileImageService) Replace(ctx context.Context, userID int64, file multipart.File, header *multipart.FileHeader) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	previous := user.ProfileImage

	upload, err := s.images.UploadProfileImage(ctx, file, header)
	if err != nil {
		return nil, err
	}

	if err := s.users.SetProfileImage(ctx, userID, upload.URL); err != nil {
		// The row was not updated, so the fresh object is orphaned.
		if delErr := s.images.DeleteObject(ctx, upload.Key); delErr != nil {
			log.Printf("[ProfileImageService] cleanup of %s failed: %v", upload.Key, delErr)
		}
		return nil, fmt.Errorf("failed to set profile image: %w", err)
	}

	if key, ok := s.images.KeyForURL(previous); ok {
		if err := s.images.DeleteObject(ctx, key); err != nil {
			log.Printf("[ProfileImageService] delete previous image user=%d key=%s err=%v", userID, key, err)
		}
	}

	user.ProfileImage = upload.URL
	log.Printf("[ProfileImageService] user=%d profile image=%s", userID, upload.Key)
	return user, nil
}
