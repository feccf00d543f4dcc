package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types for the list stream
const (
	EventListFollowed   = "list_followed"
	EventListUnfollowed = "list_unfollowed"
	EventUserDeleted    = "user_deleted"
)

// Stream names
const (
	StreamLists = "stream:lists"
)

// Consumer group name for list workers
const (
	ConsumerGroupLists = "list_workers"
)

// ListEvent is published whenever a change can stale the cached list aggregates.
type ListEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"` // Unix timestamp when event occurred

	UserID int64 `json:"user_id"`
	ListID int64 `json:"list_id,omitempty"` // zero for EventUserDeleted
}

func NewListFollowedEvent(userID, listID int64) ListEvent {
	return ListEvent{
		Type:      EventListFollowed,
		Timestamp: time.Now().Unix(),
		UserID:    userID,
		ListID:    listID,
	}
}

func NewListUnfollowedEvent(userID, listID int64) ListEvent {
	return ListEvent{
		Type:      EventListUnfollowed,
		Timestamp: time.Now().Unix(),
		UserID:    userID,
		ListID:    listID,
	}
}

// NewUserDeletedEvent is emitted after a user row is removed; the schema
// cascades the user's follows and owned lists, so every aggregate may change.
func NewUserDeletedEvent(userID int64) ListEvent {
	return ListEvent{
		Type:      EventUserDeleted,
		Timestamp: time.Now().Unix(),
		UserID:    userID,
	}
}

// ToMap converts the event to the field-value pairs stored by XADD.
// The full event is JSON encoded in the "data" field.
func (e ListEvent) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParseListEvent parses a ListEvent from Redis stream message values.
func ParseListEvent(values map[string]interface{}) (ListEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return ListEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event ListEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return ListEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
