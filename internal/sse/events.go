// Package sse implements Server-Sent Events so clients can follow changes to
// their shopping lists without polling.
package sse

import (
	"time"

	"github.com/google/uuid"

	"github.com/bac-dam-1991/shopping-list/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventListCreated represents a shopping list creation event.
	EventListCreated EventType = "list.created"
	// EventListRenamed represents a shopping list rename event.
	EventListRenamed EventType = "list.renamed"
	// EventListDeleted represents a shopping list deletion event.
	EventListDeleted EventType = "list.deleted"

	// EventItemAdded represents an item added to (or merged into) a list.
	EventItemAdded EventType = "item.added"
	// EventItemUpdated represents an item update event.
	EventItemUpdated EventType = "item.updated"
	// EventItemRemoved represents an item removal event.
	EventItemRemoved EventType = "item.removed"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
// The Data field contains the event payload as a JSON object for direct deserialization.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	ID        string    `json:"id"`
	Type      EventType `json:"type"`

	// Owner is the subject whose clients receive the event. Empty reaches
	// every client and is only used for heartbeats.
	Owner string `json:"-"`
}

// ListEventData is the data payload for list events.
type ListEventData struct {
	List *domain.ShoppingList `json:"list"`
}

// ItemEventData is the data payload for item events.
type ItemEventData struct {
	ShoppingListID string               `json:"shopping_list_id"`
	Item           *domain.ShoppingItem `json:"item"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

func newEvent(t EventType, owner string, data any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Data:      data,
		Owner:     owner,
		Timestamp: time.Now(),
	}
}

// NewListCreatedEvent creates a list.created event for the list owner.
func NewListCreatedEvent(list *domain.ShoppingList) Event {
	return newEvent(EventListCreated, list.Sub, ListEventData{List: list})
}

// NewListRenamedEvent creates a list.renamed event for the list owner.
func NewListRenamedEvent(list *domain.ShoppingList) Event {
	return newEvent(EventListRenamed, list.Sub, ListEventData{List: list})
}

// NewListDeletedEvent creates a list.deleted event carrying the prior contents.
func NewListDeletedEvent(list *domain.ShoppingList) Event {
	return newEvent(EventListDeleted, list.Sub, ListEventData{List: list})
}

// NewItemAddedEvent creates an item.added event.
func NewItemAddedEvent(listID, owner string, item *domain.ShoppingItem) Event {
	return newEvent(EventItemAdded, owner, ItemEventData{ShoppingListID: listID, Item: item})
}

// NewItemUpdatedEvent creates an item.updated event.
func NewItemUpdatedEvent(listID, owner string, item *domain.ShoppingItem) Event {
	return newEvent(EventItemUpdated, owner, ItemEventData{ShoppingListID: listID, Item: item})
}

// NewItemRemovedEvent creates an item.removed event.
func NewItemRemovedEvent(listID, owner string, item *domain.ShoppingItem) Event {
	return newEvent(EventItemRemoved, owner, ItemEventData{ShoppingListID: listID, Item: item})
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return newEvent(EventHeartbeat, "", HeartbeatEventData{ServerTime: time.Now()})
}
