package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"bookshelf/internal/cache"
	"bookshelf/internal/model"
	"bookshelf/internal/queue"
	"bookshelf/internal/repository"
)

// UserService handles business logic for user operations
type UserService struct {
	repo         repository.UserRepository
	publisher    queue.Publisher // nil when Redis is not configured
	cache        cache.ListCache // nil when Redis is not configured
	defaultImage string
}

func NewUserService(repo repository.UserRepository, defaultImage string) *UserService {
	return &UserService{
		repo:         repo,
		defaultImage: defaultImage,
	}
}

// SetPublisher enables user_deleted events (optional).
func (s *UserService) SetPublisher(p queue.Publisher) {
	s.publisher = p
}

// SetCache lets Delete flush list aggregates itself when no event reaches the worker.
func (s *UserService) SetCache(c cache.ListCache) {
	s.cache = c
}

// Create inserts a new user after checking that neither the username nor the
// email is taken. Nothing is inserted when a check fails.
func (s *UserService) Create(ctx context.Context, req *model.CreateUserRequest) (int64, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)

	if username == "" {
		return 0, fmt.Errorf("username: %w", model.ErrMissingField)
	}
	if email == "" {
		return 0, fmt.Errorf("email: %w", model.ErrMissingField)
	}
	if req.Password == "" {
		return 0, fmt.Errorf("password: %w", model.ErrMissingField)
	}

	role := req.Role
	if role == "" {
		role = model.RoleUser
	}
	if !role.Valid() {
		return 0, model.ErrInvalidRole
	}

	exists, err := s.repo.ExistsByUsername(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		return 0, model.ErrUsernameExists
	}

	exists, err = s.repo.ExistsByEmail(ctx, email)
	if err != nil {
		return 0, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return 0, model.ErrEmailExists
	}

	hashed, err := hashPassword(req.Password)
	if err != nil {
		return 0, err
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		Password:     hashed,
		Role:         role,
		ProfileImage: s.defaultImage,
	}

	// A concurrent insert can still win between the checks and here; the
	// repository maps the unique violation to the same sentinels.
	id, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to create user: %w", err)
	}

	log.Printf("[UserService] Created user id=%d username=%s role=%s", id, username, role)
	return id, nil
}

// Update applies a partial edit. Fields left nil keep their stored value, and a
// username or email equal to the user's own current value is not a collision.
// An empty new password counts as not supplied.
func (s *UserService) Update(ctx context.Context, id int64, req *model.UpdateUserRequest) error {
	var fields model.UpdateUserFields

	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		if username == "" {
			return fmt.Errorf("username: %w", model.ErrMissingField)
		}
		taken, err := s.repo.ExistsByUsernameExcluding(ctx, id, username)
		if err != nil {
			return fmt.Errorf("failed to check username: %w", err)
		}
		if taken {
			return model.ErrUsernameExists
		}
		fields.Username = &username
	}

	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if email == "" {
			return fmt.Errorf("email: %w", model.ErrMissingField)
		}
		taken, err := s.repo.ExistsByEmailExcluding(ctx, id, email)
		if err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if taken {
			return model.ErrEmailExists
		}
		fields.Email = &email
	}

	if req.Password != nil && *req.Password != "" {
		hashed, err := hashPassword(*req.Password)
		if err != nil {
			return err
		}
		fields.Password = &hashed
	}

	if req.Role != nil {
		if !req.Role.Valid() {
			return model.ErrInvalidRole
		}
		role := *req.Role
		fields.Role = &role
	}

	if err := s.repo.Update(ctx, id, fields); err != nil {
		if errors.Is(err, model.ErrUserNotFound) || errors.Is(err, model.ErrDuplicate) {
			return err
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (s *UserService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByUsernameOrEmail matches identifier against both columns.
func (s *UserService) GetByUsernameOrEmail(ctx context.Context, identifier string) (*model.User, error) {
	return s.repo.GetByUsernameOrEmail(ctx, identifier)
}

func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	return s.repo.List(ctx)
}

// Delete removes the user. Deleting a missing id is not an error.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	s.notifyDeleted(ctx, id)
	return nil
}

// notifyDeleted mirrors ListFollowService.notify: the worker flushes the cache on
// user_deleted, and without a delivered event the flush happens here.
func (s *UserService) notifyDeleted(ctx context.Context, id int64) {
	if s.publisher != nil {
		_, err := s.publisher.Publish(ctx, queue.StreamLists, queue.NewUserDeletedEvent(id))
		if err == nil {
			return
		}
		log.Printf("[UserService] Delete: failed to publish user_deleted user=%d err=%v", id, err)
	}

	if s.cache != nil {
		if err := s.cache.InvalidateAll(ctx); err != nil {
			log.Printf("[UserService] Delete: inline cache flush failed user=%d err=%v", id, err)
		}
	}
}

func (s *UserService) UsernameExists(ctx context.Context, username string) (bool, error) {
	return s.repo.ExistsByUsername(ctx, username)
}

func (s *UserService) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.repo.ExistsByEmail(ctx, email)
}

func (s *UserService) GetUsernameByID(ctx context.Context, id int64) (string, error) {
	return s.repo.GetUsernameByID(ctx, id)
}

func (s *UserService) Exists(ctx context.Context, id int64) (bool, error) {
	return s.repo.Exists(ctx, id)
}

// SearchByName returns users whose username contains query, most followed
// first. An empty query matches every user.
func (s *UserService) SearchByName(ctx context.Context, query string) ([]model.UserSearchResult, error) {
	return s.repo.SearchByName(ctx, query)
}

func (s *UserService) SetProfileImage(ctx context.Context, id int64, path string) error {
	return s.repo.SetProfileImage(ctx, id, path)
}

// Authenticate checks a username-or-email and password pair.
func (s *UserService) Authenticate(ctx context.Context, identifier, password string) (*model.User, error) {
	user, err := s.repo.GetByUsernameOrEmail(ctx, strings.TrimSpace(identifier))
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			// Don't reveal whether the identifier exists
			return nil, model.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, model.ErrInvalidCredentials
	}
	return user, nil
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}
