package handler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConn(userID string) *WSConn {
	return &WSConn{
		userID: userID,
		send:   make(chan []byte, 16),
		rooms:  make(map[string]bool),
	}
}

func recvEvent(t *testing.T, c *WSConn) WSEvent {
	t.Helper()
	select {
	case payload := <-c.send:
		var ev WSEvent
		require.NoError(t, json.Unmarshal(payload, &ev))
		return ev
	default:
		t.Fatal("no event queued")
		return WSEvent{}
	}
}

func TestHubEmitToRoom(t *testing.T) {
	hub := NewHub()
	a := newTestConn("u1")
	b := newTestConn("u2")
	outsider := newTestConn("u3")
	for _, c := range []*WSConn{a, b, outsider} {
		hub.Register(c)
	}
	hub.JoinRoom(a, "ROOM01")
	hub.JoinRoom(b, "ROOM01")
	hub.JoinRoom(outsider, "ROOM02")

	hub.EmitToRoom("ROOM01", "chatMessage", map[string]string{"content": "hi"})

	for _, c := range []*WSConn{a, b} {
		ev := recvEvent(t, c)
		assert.Equal(t, "chatMessage", ev.Type)
		assert.Equal(t, "ROOM01", ev.Room)
	}
	assert.Empty(t, outsider.send)
}

func TestHubEmitToPlayer(t *testing.T) {
	hub := NewHub()
	a := newTestConn("u1")
	b := newTestConn("u2")
	hub.Register(a)
	hub.Register(b)
	hub.JoinRoom(a, "ROOM01")
	hub.JoinRoom(b, "ROOM01")

	hub.EmitToPlayer("ROOM01", "u2", "actionError", map[string]string{"message": "not your turn"})

	assert.Empty(t, a.send)
	ev := recvEvent(t, b)
	assert.Equal(t, "actionError", ev.Type)
}

func TestHubUnregisterReturnsRooms(t *testing.T) {
	hub := NewHub()
	c := newTestConn("u1")
	hub.Register(c)
	hub.JoinRoom(c, "ROOM01")
	hub.JoinRoom(c, "ROOM02")
	require.Equal(t, 1, hub.ConnectionCount())

	codes := hub.Unregister(c)
	assert.ElementsMatch(t, []string{"ROOM01", "ROOM02"}, codes)
	assert.Equal(t, 0, hub.ConnectionCount())
	assert.Equal(t, 0, hub.RoomSubscriberCount("ROOM01"))

	// A second unregister is a no-op.
	assert.Nil(t, hub.Unregister(c))
}

func TestHubLeaveRoom(t *testing.T) {
	hub := NewHub()
	c := newTestConn("u1")
	hub.Register(c)
	hub.JoinRoom(c, "ROOM01")
	require.Equal(t, 1, hub.RoomSubscriberCount("ROOM01"))

	hub.LeaveRoom(c, "ROOM01")
	assert.Equal(t, 0, hub.RoomSubscriberCount("ROOM01"))

	hub.EmitToRoom("ROOM01", "chatMessage", nil)
	assert.Empty(t, c.send)
}
