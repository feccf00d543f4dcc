package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"bookshelf/internal/model"
)

type listFollowRepository struct {
	db *sqlx.DB
}

func NewListFollowRepository(db *sqlx.DB) ListFollowRepository {
	return &listFollowRepository{db: db}
}

func (r *listFollowRepository) Follow(ctx context.Context, userID, listID int64) error {
	query := `INSERT INTO user_follow_lists (id_user, id_list) VALUES ($1, $2)`
	if _, err := r.db.ExecContext(ctx, query, userID, listID); err != nil {
		return storageError("follow list", err)
	}
	return nil
}

// FollowIfAbsent inserts the pair unless it is already present. There is no
// unique constraint on (id_user, id_list), and under READ COMMITTED two
// concurrent NOT EXISTS inserts could both succeed, so callers for the same
// pair are serialized on a transaction-scoped advisory lock first.
func (r *listFollowRepository) FollowIfAbsent(ctx context.Context, userID, listID int64) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, storageError("begin follow", err)
	}
	defer tx.Rollback()

	lockQuery := `SELECT pg_advisory_xact_lock(hashtextextended($1::text || ':' || $2::text, 0))`
	if _, err := tx.ExecContext(ctx, lockQuery, userID, listID); err != nil {
		return false, storageError("lock follow pair", err)
	}

	// Runs after the lock is held, so its snapshot sees a row committed by
	// the previous holder.
	query := `
		INSERT INTO user_follow_lists (id_user, id_list)
		SELECT $1::bigint, $2::bigint
		WHERE NOT EXISTS (
			SELECT 1 FROM user_follow_lists WHERE id_user = $1 AND id_list = $2
		)
	`
	result, err := tx.ExecContext(ctx, query, userID, listID)
	if err != nil {
		return false, storageError("follow list", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, storageError("get rows affected", err)
	}

	if err := tx.Commit(); err != nil {
		return false, storageError("commit follow", err)
	}
	return rowsAffected > 0, nil
}

// Unfollow removes every follow row for the pair. Missing rows are not an error.
func (r *listFollowRepository) Unfollow(ctx context.Context, userID, listID int64) error {
	query := `DELETE FROM user_follow_lists WHERE id_user = $1 AND id_list = $2`
	if _, err := r.db.ExecContext(ctx, query, userID, listID); err != nil {
		return storageError("unfollow list", err)
	}
	return nil
}

func (r *listFollowRepository) IsFollowing(ctx context.Context, userID, listID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM user_follow_lists WHERE id_user = $1 AND id_list = $2)`
	var following bool
	if err := r.db.GetContext(ctx, &following, query, userID, listID); err != nil {
		return false, storageError("check list follow", err)
	}
	return following, nil
}

func (r *listFollowRepository) FollowersCount(ctx context.Context, listID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM user_follow_lists WHERE id_list = $1`
	var count int64
	if err := r.db.GetContext(ctx, &count, query, listID); err != nil {
		return 0, storageError("count list followers", err)
	}
	return count, nil
}

// GetFollowedLists returns each list followed by userID once, with its distinct
// book count, follower count, cover image (book with the lowest isbn) and owner name.
func (r *listFollowRepository) GetFollowedLists(ctx context.Context, userID int64) ([]model.FollowedList, error) {
	query := `
		SELECT DISTINCT ON (l.id_list)
		       l.id_list, l.id_user, l.name, l.visibility, l.type,
		       COALESCE(bil.book_count, 0) AS bil_count,
		       COALESCE(fc.followers_num, 0) AS followers_num,
		       (SELECT b.image
		        FROM books_in_lists bl
		        JOIN books b ON bl.isbn = b.isbn
		        WHERE bl.id_list = l.id_list
		        ORDER BY bl.isbn ASC
		        LIMIT 1) AS list_pic,
		       u.username AS owner_name
		FROM user_follow_lists ufl
		JOIN lists l ON ufl.id_list = l.id_list
		JOIN users u ON l.id_user = u.id_user
		LEFT JOIN (
			SELECT id_list, COUNT(DISTINCT isbn) AS book_count
			FROM books_in_lists
			GROUP BY id_list
		) AS bil ON l.id_list = bil.id_list
		LEFT JOIN (
			SELECT id_list, COUNT(*) AS followers_num
			FROM user_follow_lists
			GROUP BY id_list
		) AS fc ON l.id_list = fc.id_list
		WHERE ufl.id_user = $1
		ORDER BY l.id_list ASC
	`

	var lists []model.FollowedList
	if err := r.db.SelectContext(ctx, &lists, query, userID); err != nil {
		return nil, storageError("get followed lists", err)
	}
	return lists, nil
}

// GetMostFollowed ranks public standard lists by follower count. Lists without
// followers are included and sort last. limit is clamped to model.MostFollowedCap.
func (r *listFollowRepository) GetMostFollowed(ctx context.Context, limit int) ([]int64, error) {
	if limit <= 0 || limit > model.MostFollowedCap {
		limit = model.MostFollowedCap
	}

	query := `
		SELECT l.id_list
		FROM lists l
		LEFT JOIN user_follow_lists ufl ON l.id_list = ufl.id_list
		WHERE l.visibility = 'public' AND l.type IS NULL
		GROUP BY l.id_list
		ORDER BY COUNT(ufl.id_list) DESC, l.id_list ASC
		LIMIT $1
	`

	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, limit); err != nil {
		return nil, storageError("get most followed lists", err)
	}
	return ids, nil
}

func (r *listFollowRepository) ListExists(ctx context.Context, listID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM lists WHERE id_list = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, listID); err != nil {
		return false, storageError("check list existence", err)
	}
	return exists, nil
}
