package repository

import (
	"context"

	"bookshelf/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) (int64, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsernameOrEmail(ctx context.Context, identifier string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, id int64, fields model.UpdateUserFields) error
	Delete(ctx context.Context, id int64) error
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// The Excluding variants ignore the row of the user being updated
	ExistsByUsernameExcluding(ctx context.Context, id int64, username string) (bool, error)
	ExistsByEmailExcluding(ctx context.Context, id int64, email string) (bool, error)
	GetUsernameByID(ctx context.Context, id int64) (string, error)
	Exists(ctx context.Context, id int64) (bool, error)
	SearchByName(ctx context.Context, pattern string) ([]model.UserSearchResult, error)
	SetProfileImage(ctx context.Context, id int64, path string) error
}

type ListFollowRepository interface {
	// Follow inserts a follow row without checking for an existing one
	Follow(ctx context.Context, userID, listID int64) error
	// FollowIfAbsent inserts a follow row only when the pair is not present yet
	FollowIfAbsent(ctx context.Context, userID, listID int64) (bool, error)
	Unfollow(ctx context.Context, userID, listID int64) error
	IsFollowing(ctx context.Context, userID, listID int64) (bool, error)
	FollowersCount(ctx context.Context, listID int64) (int64, error)
	GetFollowedLists(ctx context.Context, userID int64) ([]model.FollowedList, error)
	GetMostFollowed(ctx context.Context, limit int) ([]int64, error)
	ListExists(ctx context.Context, listID int64) (bool, error)
}
