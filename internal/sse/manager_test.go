package sse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bac-dam-1991/shopping-list/internal/domain"
)

func startManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go m.Start(ctx)
	t.Cleanup(cancel)
	return m
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case evt := <-c.Events:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestManager_DeliversOnlyToOwner(t *testing.T) {
	m := startManager(t)
	alice := connect(t, m, "alice")
	bob := connect(t, m, "bob")

	list := &domain.ShoppingList{ID: "63552a5d00ca2e59a40c1f53", Name: "Groceries", Sub: "alice"}
	m.Emit(NewListCreatedEvent(list))

	evt := receive(t, alice)
	assert.Equal(t, EventListCreated, evt.Type)
	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, list, evt.Data.(ListEventData).List)

	select {
	case evt := <-bob.Events:
		t.Fatalf("bob received %s", evt.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManager_DropsForSlowClient(t *testing.T) {
	m := NewManager(nil)
	c := connect(t, m, "alice")

	for range clientQueueSize + 10 {
		m.route(NewItemAddedEvent("l1", "alice", &domain.ShoppingItem{ID: "i1"}))
	}
	assert.Len(t, c.Events, clientQueueSize)
}

func TestManager_Disconnect(t *testing.T) {
	m := NewManager(nil)
	c := connect(t, m, "alice")
	require.Equal(t, 1, m.ClientCount())

	m.Disconnect(c)
	assert.Equal(t, 0, m.ClientCount())

	_, open := <-c.Events
	assert.False(t, open)

	m.Disconnect(c) // second call is a no-op
}

func TestManager_ShutdownDrainsAndStopsAccepting(t *testing.T) {
	m := NewManager(nil)
	c := connect(t, m, "alice")

	m.Emit(NewListDeletedEvent(&domain.ShoppingList{ID: "l1", Sub: "alice"}))
	require.NoError(t, m.Shutdown(context.Background()))

	evt, ok := <-c.Events
	require.True(t, ok)
	assert.Equal(t, EventListDeleted, evt.Type)

	_, ok = <-c.Events
	assert.False(t, ok, "clients are closed after the drain")

	m.Emit(NewListDeletedEvent(&domain.ShoppingList{ID: "l2", Sub: "alice"})) // dropped, no panic
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_ConnectAfterShutdown(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.Shutdown(context.Background()))

	c, err := m.Connect("alice")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Nil(t, c)
	assert.Zero(t, m.ClientCount())
}

func TestManager_EmitIgnoresForeignValues(t *testing.T) {
	m := NewManager(nil)
	m.Emit("not an event")
	assert.Empty(t, m.queue)
}

func connect(t *testing.T, m *Manager, subject string) *Client {
	t.Helper()
	c, err := m.Connect(subject)
	require.NoError(t, err)
	return c
}
