package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"bookshelf/internal/cache"
	"bookshelf/internal/queue"
)

// Handler turns list events into cache invalidations.
type Handler struct {
	listCache cache.ListCache
}

func NewHandler(listCache cache.ListCache) *Handler {
	return &Handler{listCache: listCache}
}

// HandleEvent routes an event to the appropriate handler based on type.
func (h *Handler) HandleEvent(ctx context.Context, event queue.ListEvent) error {
	startTime := time.Now()
	var err error

	switch event.Type {
	case queue.EventListFollowed, queue.EventListUnfollowed:
		err = h.handleFollowChanged(ctx, event)
	case queue.EventUserDeleted:
		err = h.handleUserDeleted(ctx, event)
	default:
		log.Printf("[Worker] Unknown event type: %s", event.Type)
		return fmt.Errorf("unknown event type: %s", event.Type)
	}

	if err != nil {
		log.Printf("[Worker] HandleEvent FAILED: type=%s duration=%v err=%v",
			event.Type, time.Since(startTime), err)
		return err
	}

	log.Printf("[Worker] HandleEvent OK: type=%s duration=%v", event.Type, time.Since(startTime))
	return nil
}

// handleFollowChanged drops the follower count of the list and the ranking.
func (h *Handler) handleFollowChanged(ctx context.Context, event queue.ListEvent) error {
	if event.ListID <= 0 {
		return fmt.Errorf("%s event without list id", event.Type)
	}
	if err := h.listCache.InvalidateList(ctx, event.ListID); err != nil {
		return fmt.Errorf("invalidate list %d: %w", event.ListID, err)
	}
	return nil
}

// handleUserDeleted flushes every aggregate. The follow rows are gone by the
// time this runs, so there is no way to tell which lists were affected.
func (h *Handler) handleUserDeleted(ctx context.Context, event queue.ListEvent) error {
	if event.UserID > 0 {
		log.Printf("[Worker] UserDeleted: user=%d", event.UserID)
	}
	if err := h.listCache.InvalidateAll(ctx); err != nil {
		return fmt.Errorf("invalidate all: %w", err)
	}
	return nil
}

// HandleBatch applies a read batch with one invalidation per distinct list.
// A user_deleted event in the batch turns it into a single full flush.
// Malformed events are reported in the joined error and do not stop the rest.
func (h *Handler) HandleBatch(ctx context.Context, events []queue.ListEvent) error {
	var (
		errs     []error
		flushAll bool
		listIDs  []int64
		seen     = make(map[int64]struct{}, len(events))
	)

	for _, event := range events {
		switch event.Type {
		case queue.EventUserDeleted:
			flushAll = true
		case queue.EventListFollowed, queue.EventListUnfollowed:
			if event.ListID <= 0 {
				errs = append(errs, fmt.Errorf("%s event without list id", event.Type))
				continue
			}
			if _, dup := seen[event.ListID]; !dup {
				seen[event.ListID] = struct{}{}
				listIDs = append(listIDs, event.ListID)
			}
		default:
			errs = append(errs, fmt.Errorf("unknown event type: %s", event.Type))
		}
	}

	if flushAll {
		if err := h.handleUserDeleted(ctx, queue.ListEvent{Type: queue.EventUserDeleted}); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	}

	for _, listID := range listIDs {
		if err := h.listCache.InvalidateList(ctx, listID); err != nil {
			errs = append(errs, fmt.Errorf("invalidate list %d: %w", listID, err))
		}
	}
	return errors.Join(errs...)
}
