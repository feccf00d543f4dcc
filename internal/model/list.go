package model

import "errors"

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"

	// MostFollowedCap bounds the most-followed ranking
	MostFollowedCap = 50
)

// List is a curated list of books. Type is nil for standard lists.
type List struct {
	ID         int64   `db:"id_list" json:"id_list"`
	OwnerID    int64   `db:"id_user" json:"id_user"`
	Name       string  `db:"name" json:"name"`
	Visibility string  `db:"visibility" json:"visibility"`
	Type       *string `db:"type" json:"type"`
}

// FollowedList is a list followed by a user together with its derived attributes
type FollowedList struct {
	List
	BILCount     int64   `db:"bil_count" json:"BILCount"`
	FollowersNum int64   `db:"followers_num" json:"followersNum"`
	ListPic      *string `db:"list_pic" json:"list_pic"` // nil when the list has no books
	OwnerName    string  `db:"owner_name" json:"ownerName"`
}

var (
	ErrListNotFound = errors.New("list not found")
)
