package service

import (
	"context"
	"mime/multipart"

	"bookshelf/internal/model"
	"bookshelf/internal/queue"
)

// =============================================================================
// MOCK REPOSITORIES
// =============================================================================
//
// Each mock carries one function field per method so every test only wires
// the behavior it cares about. Unset fields fall back to "nothing found".

type mockUserRepository struct {
	createFn                    func(ctx context.Context, user *model.User) (int64, error)
	getByIDFn                   func(ctx context.Context, id int64) (*model.User, error)
	getByUsernameOrEmailFn      func(ctx context.Context, identifier string) (*model.User, error)
	listFn                      func(ctx context.Context) ([]model.User, error)
	updateFn                    func(ctx context.Context, id int64, fields model.UpdateUserFields) error
	deleteFn                    func(ctx context.Context, id int64) error
	existsByUsernameFn          func(ctx context.Context, username string) (bool, error)
	existsByEmailFn             func(ctx context.Context, email string) (bool, error)
	existsByUsernameExcludingFn func(ctx context.Context, id int64, username string) (bool, error)
	existsByEmailExcludingFn    func(ctx context.Context, id int64, email string) (bool, error)
	getUsernameByIDFn           func(ctx context.Context, id int64) (string, error)
	existsFn                    func(ctx context.Context, id int64) (bool, error)
	searchByNameFn              func(ctx context.Context, pattern string) ([]model.UserSearchResult, error)
	setProfileImageFn           func(ctx context.Context, id int64, path string) error

	// Track calls for assertions
	createCalls []*model.User
	updateCalls []model.UpdateUserFields
}

func (m *mockUserRepository) Create(ctx context.Context, user *model.User) (int64, error) {
	m.createCalls = append(m.createCalls, user)
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return 1, nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) GetByUsernameOrEmail(ctx context.Context, identifier string) (*model.User, error) {
	if m.getByUsernameOrEmailFn != nil {
		return m.getByUsernameOrEmailFn(ctx, identifier)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) List(ctx context.Context) ([]model.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockUserRepository) Update(ctx context.Context, id int64, fields model.UpdateUserFields) error {
	m.updateCalls = append(m.updateCalls, fields)
	if m.updateFn != nil {
		return m.updateFn(ctx, id, fields)
	}
	return nil
}

func (m *mockUserRepository) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	if m.existsByUsernameFn != nil {
		return m.existsByUsernameFn(ctx, username)
	}
	return false, nil
}

func (m *mockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if m.existsByEmailFn != nil {
		return m.existsByEmailFn(ctx, email)
	}
	return false, nil
}

func (m *mockUserRepository) ExistsByUsernameExcluding(ctx context.Context, id int64, username string) (bool, error) {
	if m.existsByUsernameExcludingFn != nil {
		return m.existsByUsernameExcludingFn(ctx, id, username)
	}
	return false, nil
}

func (m *mockUserRepository) ExistsByEmailExcluding(ctx context.Context, id int64, email string) (bool, error) {
	if m.existsByEmailExcludingFn != nil {
		return m.existsByEmailExcludingFn(ctx, id, email)
	}
	return false, nil
}

func (m *mockUserRepository) GetUsernameByID(ctx context.Context, id int64) (string, error) {
	if m.getUsernameByIDFn != nil {
		return m.getUsernameByIDFn(ctx, id)
	}
	return "", model.ErrUserNotFound
}

func (m *mockUserRepository) Exists(ctx context.Context, id int64) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, id)
	}
	return false, nil
}

func (m *mockUserRepository) SearchByName(ctx context.Context, pattern string) ([]model.UserSearchResult, error) {
	if m.searchByNameFn != nil {
		return m.searchByNameFn(ctx, pattern)
	}
	return nil, nil
}

func (m *mockUserRepository) SetProfileImage(ctx context.Context, id int64, path string) error {
	if m.setProfileImageFn != nil {
		return m.setProfileImageFn(ctx, id, path)
	}
	return nil
}

type mockListFollowRepository struct {
	followFn           func(ctx context.Context, userID, listID int64) error
	followIfAbsentFn   func(ctx context.Context, userID, listID int64) (bool, error)
	unfollowFn         func(ctx context.Context, userID, listID int64) error
	isFollowingFn      func(ctx context.Context, userID, listID int64) (bool, error)
	followersCountFn   func(ctx context.Context, listID int64) (int64, error)
	getFollowedListsFn func(ctx context.Context, userID int64) ([]model.FollowedList, error)
	getMostFollowedFn  func(ctx context.Context, limit int) ([]int64, error)
	listExistsFn       func(ctx context.Context, listID int64) (bool, error)

	followersCountCalls  int
	getMostFollowedCalls []int
}

func (m *mockListFollowRepository) Follow(ctx context.Context, userID, listID int64) error {
	if m.followFn != nil {
		return m.followFn(ctx, userID, listID)
	}
	return nil
}

func (m *mockListFollowRepository) FollowIfAbsent(ctx context.Context, userID, listID int64) (bool, error) {
	if m.followIfAbsentFn != nil {
		return m.followIfAbsentFn(ctx, userID, listID)
	}
	return true, nil
}

func (m *mockListFollowRepository) Unfollow(ctx context.Context, userID, listID int64) error {
	if m.unfollowFn != nil {
		return m.unfollowFn(ctx, userID, listID)
	}
	return nil
}

func (m *mockListFollowRepository) IsFollowing(ctx context.Context, userID, listID int64) (bool, error) {
	if m.isFollowingFn != nil {
		return m.isFollowingFn(ctx, userID, listID)
	}
	return false, nil
}

func (m *mockListFollowRepository) FollowersCount(ctx context.Context, listID int64) (int64, error) {
	m.followersCountCalls++
	if m.followersCountFn != nil {
		return m.followersCountFn(ctx, listID)
	}
	return 0, nil
}

func (m *mockListFollowRepository) GetFollowedLists(ctx context.Context, userID int64) ([]model.FollowedList, error) {
	if m.getFollowedListsFn != nil {
		return m.getFollowedListsFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockListFollowRepository) GetMostFollowed(ctx context.Context, limit int) ([]int64, error) {
	m.getMostFollowedCalls = append(m.getMostFollowedCalls, limit)
	if m.getMostFollowedFn != nil {
		return m.getMostFollowedFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockListFollowRepository) ListExists(ctx context.Context, listID int64) (bool, error) {
	if m.listExistsFn != nil {
		return m.listExistsFn(ctx, listID)
	}
	return true, nil
}

// =============================================================================
// MOCK INFRASTRUCTURE
// =============================================================================

type mockPublisher struct {
	err    error
	events []queue.ListEvent
}

func (m *mockPublisher) Publish(ctx context.Context, stream string, event queue.ListEvent) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.events = append(m.events, event)
	return "1-0", nil
}

// memListCache is an in-memory cache.ListCache.
type memListCache struct {
	mostFollowed []int64
	hasRanking   bool
	counts       map[int64]int64
	invalidated  []int64
	flushes      int
}

func newMemListCache() *memListCache {
	return &memListCache{counts: make(map[int64]int64)}
}

func (c *memListCache) GetMostFollowed(ctx context.Context) ([]int64, bool, error) {
	return c.mostFollowed, c.hasRanking, nil
}

func (c *memListCache) SetMostFollowed(ctx context.Context, ids []int64) error {
	c.mostFollowed, c.hasRanking = ids, true
	return nil
}

func (c *memListCache) GetFollowersCount(ctx context.Context, listID int64) (int64, bool, error) {
	count, ok := c.counts[listID]
	return count, ok, nil
}

func (c *memListCache) SetFollowersCount(ctx context.Context, listID, count int64) error {
	c.counts[listID] = count
	return nil
}

func (c *memListCache) InvalidateList(ctx context.Context, listID int64) error {
	c.invalidated = append(c.invalidated, listID)
	delete(c.counts, listID)
	c.mostFollowed, c.hasRanking = nil, false
	return nil
}

func (c *memListCache) InvalidateAll(ctx context.Context) error {
	c.flushes++
	c.counts = make(map[int64]int64)
	c.mostFollowed, c.hasRanking = nil, false
	return nil
}

type mockImageStore struct {
	uploadFn func(ctx context.Context, file multipart.File, header *multipart.FileHeader) (*model.UploadResult, error)
	keyFn    func(url string) (string, bool)
	deleted  []string
}

func (m *mockImageStore) UploadProfileImage(ctx context.Context, file multipart.File, header *multipart.FileHeader) (*model.UploadResult, error) {
	return m.uploadFn(ctx, file, header)
}

func (m *mockImageStore) KeyForURL(url string) (string, bool) {
	if m.keyFn != nil {
		return m.keyFn(url)
	}
	return "", false
}

func (m *mockImageStore) DeleteObject(ctx context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	return nil
}
