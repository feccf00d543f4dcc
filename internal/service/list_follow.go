package service

import (
	"context"
	"fmt"
	"log"

	"bookshelf/internal/cache"
	"bookshelf/internal/model"
	"bookshelf/internal/queue"
	"bookshelf/internal/repository"
)

// ListFollowService handles following lists and the aggregates derived from it.
// The cache and publisher are nil when Redis is not configured.
type ListFollowService struct {
	repo      repository.ListFollowRepository
	cache     cache.ListCache
	publisher queue.Publisher
}

func NewListFollowService(
	repo repository.ListFollowRepository,
	listCache cache.ListCache,
	publisher queue.Publisher,
) *ListFollowService {
	return &ListFollowService{
		repo:      repo,
		cache:     listCache,
		publisher: publisher,
	}
}

// Follow makes userID follow listID. Following twice keeps a single row;
// the returned bool reports whether a new row was inserted.
func (s *ListFollowService) Follow(ctx context.Context, userID, listID int64) (bool, error) {
	if err := s.requireList(ctx, listID); err != nil {
		return false, err
	}

	inserted, err := s.repo.FollowIfAbsent(ctx, userID, listID)
	if err != nil {
		return false, fmt.Errorf("failed to follow list: %w", err)
	}
	if inserted {
		s.notify(ctx, queue.NewListFollowedEvent(userID, listID))
	}
	return inserted, nil
}

// FollowDuplicate inserts a follow row without checking for an existing one.
// Repeated calls create duplicate rows that all count towards the aggregates.
func (s *ListFollowService) FollowDuplicate(ctx context.Context, userID, listID int64) error {
	if err := s.requireList(ctx, listID); err != nil {
		return err
	}

	if err := s.repo.Follow(ctx, userID, listID); err != nil {
		return fmt.Errorf("failed to follow list: %w", err)
	}
	s.notify(ctx, queue.NewListFollowedEvent(userID, listID))
	return nil
}

// Unfollow removes every follow row of the pair. It is a no-op when absent.
func (s *ListFollowService) Unfollow(ctx context.Context, userID, listID int64) error {
	if err := s.repo.Unfollow(ctx, userID, listID); err != nil {
		return fmt.Errorf("failed to unfollow list: %w", err)
	}
	s.notify(ctx, queue.NewListUnfollowedEvent(userID, listID))
	return nil
}

func (s *ListFollowService) IsFollowing(ctx context.Context, userID, listID int64) (bool, error) {
	return s.repo.IsFollowing(ctx, userID, listID)
}

// FollowersCount reads through the cache. Cache failures fall back to Postgres.
func (s *ListFollowService) FollowersCount(ctx context.Context, listID int64) (int64, error) {
	if s.cache != nil {
		count, found, err := s.cache.GetFollowersCount(ctx, listID)
		if err != nil {
			log.Printf("[ListFollowService] FollowersCount: cache read failed list=%d err=%v", listID, err)
		} else if found {
			return count, nil
		}
	}

	count, err := s.repo.FollowersCount(ctx, listID)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.SetFollowersCount(ctx, listID, count); err != nil {
			log.Printf("[ListFollowService] FollowersCount: cache write failed list=%d err=%v", listID, err)
		}
	}
	return count, nil
}

// GetFollowedLists returns the lists followed by userID with their aggregates.
func (s *ListFollowService) GetFollowedLists(ctx context.Context, userID int64) ([]model.FollowedList, error) {
	lists, err := s.repo.GetFollowedLists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if lists == nil {
		lists = []model.FollowedList{}
	}
	return lists, nil
}

// GetMostFollowed returns up to limit public standard list ids, most followed
// first. A limit outside 1..MostFollowedCap means MostFollowedCap. The full
// ranking is cached once and sliced per call.
func (s *ListFollowService) GetMostFollowed(ctx context.Context, limit int) ([]int64, error) {
	if limit <= 0 || limit > model.MostFollowedCap {
		limit = model.MostFollowedCap
	}

	var ids []int64
	cached := false
	if s.cache != nil {
		var err error
		ids, cached, err = s.cache.GetMostFollowed(ctx)
		if err != nil {
			log.Printf("[ListFollowService] GetMostFollowed: cache read failed err=%v", err)
			cached = false
		}
	}

	if !cached {
		var err error
		ids, err = s.repo.GetMostFollowed(ctx, model.MostFollowedCap)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.SetMostFollowed(ctx, ids); err != nil {
				log.Printf("[ListFollowService] GetMostFollowed: cache write failed err=%v", err)
			}
		}
	}

	if ids == nil {
		return []int64{}, nil
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *ListFollowService) ListExists(ctx context.Context, listID int64) (bool, error) {
	return s.repo.ListExists(ctx, listID)
}

func (s *ListFollowService) requireList(ctx context.Context, listID int64) error {
	exists, err := s.repo.ListExists(ctx, listID)
	if err != nil {
		return fmt.Errorf("failed to check list: %w", err)
	}
	if !exists {
		return model.ErrListNotFound
	}
	return nil
}

// notify publishes event for the worker. Without a publisher, or when publishing
// fails, the affected cache keys are dropped inline instead.
func (s *ListFollowService) notify(ctx context.Context, event queue.ListEvent) {
	if s.publisher != nil {
		_, err := s.publisher.Publish(ctx, queue.StreamLists, event)
		if err == nil {
			return
		}
		log.Printf("[ListFollowService] publish %s failed user=%d list=%d err=%v",
			event.Type, event.UserID, event.ListID, err)
	}

	if s.cache != nil {
		if err := s.cache.InvalidateList(ctx, event.ListID); err != nil {
			log.Printf("[ListFollowService] inline invalidation failed list=%d err=%v", event.ListID, err)
		}
	}
}
