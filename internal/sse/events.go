// Package sse streams cache and delete state changes to browser clients as
// Server-Sent Events.
package sse

import (
	"time"

	"github.com/listenupapp/tagnotes/internal/cache"
	"github.com/listenupapp/tagnotes/internal/domain"
	"github.com/listenupapp/tagnotes/internal/pending"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventCache represents a change of a cache entry (notes or tags).
	EventCache EventType = "cache"
	// EventDeleteState represents a note moving through the delete flow.
	EventDeleteState EventType = "note.delete_state"
	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
	// EventConnected is the first event on every stream.
	EventConnected EventType = "connected"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
}

// CacheEventData is the data payload for cache events. Value carries the
// entry value after the change, so clients can render without refetching.
type CacheEventData struct {
	Key     string          `json:"key"`
	Kind    cache.EventKind `json:"kind"`
	Version uint64          `json:"version"`
	Error   string          `json:"error,omitempty"`
	Value   any             `json:"value,omitempty"`
}

// DeleteStateEventData is the data payload for delete state events.
type DeleteStateEventData struct {
	NoteID domain.ID     `json:"note_id"`
	State  pending.State `json:"state"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewCacheEvent creates a cache event from a cache store notification.
func NewCacheEvent(ev cache.Event) Event {
	return Event{
		Type:      EventCache,
		Timestamp: time.Now(),
		Data: CacheEventData{
			Key:     ev.Key,
			Kind:    ev.Kind,
			Version: ev.Version,
			Error:   ev.ErrMessage(),
			Value:   ev.Data,
		},
	}
}

// NewDeleteStateEvent creates a delete state event.
func NewDeleteStateEvent(noteID domain.ID, state pending.State) Event {
	return Event{
		Type:      EventDeleteState,
		Timestamp: time.Now(),
		Data:      DeleteStateEventData{NoteID: noteID, State: state},
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	now := time.Now()
	return Event{
		Type:      EventHeartbeat,
		Timestamp: now,
		Data:      HeartbeatEventData{ServerTime: now},
	}
}
