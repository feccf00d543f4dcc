package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"bookshelf/internal/model"
)

const userColumns = `id_user, username, email, password, role, profile_image`

// userRepository implements UserRepository using sqlx
type userRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

// Create inserts a new user and returns the generated id.
// A unique violation on username or email is reported as the matching rejection.
func (r *userRepository) Create(ctx context.Context, u *model.User) (int64, error) {
	query := `
		INSERT INTO users (username, email, password, role, profile_image)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id_user
	`

	var id int64
	err := r.db.QueryRowxContext(ctx, query,
		u.Username,
		u.Email,
		u.Password,
		u.Role,
		u.ProfileImage,
	).Scan(&id)
	if err != nil {
		return 0, mapUniqueViolation("insert user", err)
	}

	u.ID = id
	return id, nil
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id_user = $1`

	var u model.User
	err := r.db.GetContext(ctx, &u, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, storageError("get user by id", err)
	}

	return &u, nil
}

// GetByUsernameOrEmail matches identifier against both username and email.
// When one user's email equals another user's username the lowest id wins.
func (r *userRepository) GetByUsernameOrEmail(ctx context.Context, identifier string) (*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE username = $1 OR email = $1
		ORDER BY id_user ASC
		LIMIT 1
	`

	var u model.User
	err := r.db.GetContext(ctx, &u, query, identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, storageError("get user by username or email", err)
	}

	return &u, nil
}

func (r *userRepository) List(ctx context.Context) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id_user ASC`

	var users []model.User
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, storageError("list users", err)
	}

	return users, nil
}

// Update applies a partial update: every nil field keeps its stored value.
func (r *userRepository) Update(ctx context.Context, id int64, f model.UpdateUserFields) error {
	query := `
		UPDATE users
		SET username = COALESCE($1, username),
		    email = COALESCE($2, email),
		    password = COALESCE($3, password),
		    role = COALESCE($4, role)
		WHERE id_user = $5
	`

	result, err := r.db.ExecContext(ctx, query, f.Username, f.Email, f.Password, f.Role, id)
	if err != nil {
		return mapUniqueViolation("update user", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return storageError("get rows affected", err)
	}
	if rows == 0 {
		return model.ErrUserNotFound
	}

	return nil
}

// Delete removes a user. Deleting an unknown id is not an error.
func (r *userRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM users WHERE id_user = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return storageError("delete user", err)
	}
	return nil
}

// ExistsByUsername checks if a username is already taken
func (r *userRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`
	return r.exists(ctx, "check username existence", query, username)
}

// ExistsByEmail checks if an email is already taken
func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`
	return r.exists(ctx, "check email existence", query, email)
}

func (r *userRepository) ExistsByUsernameExcluding(ctx context.Context, id int64, username string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1 AND id_user <> $2)`
	return r.exists(ctx, "check username existence for update", query, username, id)
}

func (r *userRepository) ExistsByEmailExcluding(ctx context.Context, id int64, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 AND id_user <> $2)`
	return r.exists(ctx, "check email existence for update", query, email, id)
}

func (r *userRepository) GetUsernameByID(ctx context.Context, id int64) (string, error) {
	query := `SELECT username FROM users WHERE id_user = $1`

	var username string
	err := r.db.GetContext(ctx, &username, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", model.ErrUserNotFound
		}
		return "", storageError("get username by id", err)
	}

	return username, nil
}

func (r *userRepository) Exists(ctx context.Context, id int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE id_user = $1)`
	return r.exists(ctx, "check user existence", query, id)
}

// SearchByName finds users whose username contains pattern (case-insensitive),
// with their follower count and number of public standard lists, most followed first.
func (r *userRepository) SearchByName(ctx context.Context, pattern string) ([]model.UserSearchResult, error) {
	query := `
		SELECT u.id_user, u.username, u.profile_image,
		       COALESCE(f.followers_num, 0) AS followers_num,
		       COALESCE(l.public_lists_count, 0) AS public_lists_count
		FROM users u
		LEFT JOIN (
			SELECT id_followed, COUNT(*) AS followers_num
			FROM followers
			GROUP BY id_followed
		) AS f ON u.id_user = f.id_followed
		LEFT JOIN (
			SELECT id_user, COUNT(*) AS public_lists_count
			FROM lists
			WHERE visibility = 'public' AND type IS NULL
			GROUP BY id_user
		) AS l ON u.id_user = l.id_user
		WHERE u.username ILIKE $1
		ORDER BY followers_num DESC, u.id_user ASC
	`

	var users []model.UserSearchResult
	err := r.db.SelectContext(ctx, &users, query, "%"+escapeLike(pattern)+"%")
	if err != nil {
		return nil, storageError("search users", err)
	}

	return users, nil
}

func (r *userRepository) SetProfileImage(ctx context.Context, id int64, path string) error {
	query := `UPDATE users SET profile_image = $1 WHERE id_user = $2`

	result, err := r.db.ExecContext(ctx, query, path, id)
	if err != nil {
		return storageError("update profile image", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return storageError("get rows affected", err)
	}
	if rows == 0 {
		return model.ErrUserNotFound
	}

	return nil
}

func (r *userRepository) exists(ctx context.Context, op, query string, args ...interface{}) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, storageError(op, err)
	}
	return exists, nil
}

// escapeLike makes LIKE metacharacters in s match literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
