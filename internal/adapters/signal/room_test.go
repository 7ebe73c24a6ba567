package signal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avdeyev/onair/internal/app"
	"github.com/avdeyev/onair/internal/core"
	"github.com/avdeyev/onair/internal/domain"
)

// wireMsg is the decoded shape of any frame the server sends, for assertions.
type wireMsg struct {
	Type  string          `json:"type"`
	ID    string          `json:"id"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func newTestController() *Controller {
	return &Controller{
		Registry: app.NewRegistry(),
		Rooms:    app.NewRoomManager(),
	}
}

func newTestConn() *wsConn {
	return &wsConn{send: make(chan core.Frame, 32)}
}

// recvAll drains and decodes every frame buffered on the connection.
func recvAll(t *testing.T, c *wsConn) []wireMsg {
	t.Helper()
	var msgs []wireMsg
	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return msgs
			}
			var m wireMsg
			require.NoError(t, json.Unmarshal(frame, &m))
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

func join(t *testing.T, ctl *Controller, pid domain.PeerID, roomID string) *wsConn {
	t.Helper()
	conn := newTestConn()
	ctl.Registry.Bind(pid, conn, nil)
	ctl.handleJoinRoom(pid, conn, json.RawMessage(`{"roomId":"`+roomID+`"}`))
	return conn
}

func TestJoinNotifiesExistingMembersOnly(t *testing.T) {
	ctl := newTestController()

	c1 := join(t, ctl, "p1", "studio")
	c2 := join(t, ctl, "p2", "studio")

	got := recvAll(t, c1)
	require.Len(t, got, 1)
	assert.Equal(t, "user-joined", got[0].Type)
	assert.JSONEq(t, `{"peerId":"p2"}`, string(got[0].Data))

	// The joiner gets no echo of its own join.
	assert.Empty(t, recvAll(t, c2))
}

func TestSignalRelayScoping(t *testing.T) {
	ctl := newTestController()

	c1 := join(t, ctl, "p1", "studio")
	c2 := join(t, ctl, "p2", "studio")
	c3 := join(t, ctl, "p3", "studio")
	outsider := join(t, ctl, "p4", "lobby")
	recvAll(t, c1)
	recvAll(t, c2)
	recvAll(t, c3)
	recvAll(t, outsider)

	ctl.handleSignalRelay("p1", c1, json.RawMessage(`{"roomId":"studio","signal":{"sdp":"v=0"}}`))

	for _, c := range []*wsConn{c2, c3} {
		got := recvAll(t, c)
		require.Len(t, got, 1)
		assert.Equal(t, "signal", got[0].Type)
		assert.JSONEq(t, `{"from":"p1","signal":{"sdp":"v=0"}}`, string(got[0].Data))
	}
	assert.Empty(t, recvAll(t, c1))
	assert.Empty(t, recvAll(t, outsider))
}

func TestSignalRelayUnknownRoom(t *testing.T) {
	ctl := newTestController()
	conn := newTestConn()
	ctl.Registry.Bind("p1", conn, nil)

	ctl.handleSignalRelay("p1", conn, json.RawMessage(`{"roomId":"nowhere","signal":{}}`))

	got := recvAll(t, conn)
	require.Len(t, got, 1)
	assert.Equal(t, "error", got[0].Type)
	assert.JSONEq(t, `"room does not exist"`, string(got[0].Data))
}

func TestJoinBadPayload(t *testing.T) {
	ctl := newTestController()
	conn := newTestConn()
	ctl.Registry.Bind("p1", conn, nil)

	ctl.handleJoinRoom("p1", conn, json.RawMessage(`{"roomId":""}`))

	got := recvAll(t, conn)
	require.Len(t, got, 1)
	assert.Equal(t, "error", got[0].Type)
	_, ok := ctl.Rooms.Get("")
	assert.False(t, ok)
}

func TestJoinRateLimited(t *testing.T) {
	ctl := newTestController()
	ctl.JoinLimiter = NewJoinRateLimiter(1, time.Minute)

	c1 := join(t, ctl, "p1", "a")
	recvAll(t, c1)
	ctl.handleJoinRoom("p1", c1, json.RawMessage(`{"roomId":"b"}`))

	got := recvAll(t, c1)
	require.Len(t, got, 1)
	assert.Equal(t, "error", got[0].Type)
	_, ok := ctl.Rooms.Get("b")
	assert.False(t, ok)
}

func TestLeaveRoomNotifiesAndStopsEmpty(t *testing.T) {
	ctl := newTestController()
	c1 := join(t, ctl, "p1", "studio")
	c2 := join(t, ctl, "p2", "studio")
	recvAll(t, c1)
	recvAll(t, c2)

	ctl.handleLeaveRoom("p1", c1, json.RawMessage(`{"roomId":"studio"}`))

	got := recvAll(t, c2)
	require.Len(t, got, 1)
	assert.Equal(t, "user-left", got[0].Type)
	assert.JSONEq(t, `{"peerId":"p1"}`, string(got[0].Data))

	ack := recvAll(t, c1)
	require.Len(t, ack, 1)
	assert.Equal(t, "left", ack[0].Type)

	// Last member out stops the room.
	ctl.handleLeaveRoom("p2", c2, json.RawMessage(`{"roomId":"studio"}`))
	_, ok := ctl.Rooms.Get("studio")
	assert.False(t, ok)
}

func TestDisconnectCleansEveryRoom(t *testing.T) {
	ctl := newTestController()
	c1 := newTestConn()
	canceled := false
	ctl.Registry.Bind("p1", c1, func() { canceled = true })
	ctl.handleJoinRoom("p1", c1, json.RawMessage(`{"roomId":"studio"}`))
	ctl.handleJoinRoom("p1", c1, json.RawMessage(`{"roomId":"lobby"}`))
	c2 := join(t, ctl, "p2", "studio")
	recvAll(t, c1)
	recvAll(t, c2)

	ctl.disconnect("p1", c1)

	got := recvAll(t, c2)
	require.Len(t, got, 1)
	assert.Equal(t, "user-left", got[0].Type)

	assert.True(t, canceled)
	_, ok := ctl.Registry.Get("p1")
	assert.False(t, ok)
	assert.Nil(t, ctl.Registry.Rooms("p1"))
	_, ok = ctl.Rooms.Get("lobby")
	assert.False(t, ok)

	room, ok := ctl.Rooms.Get("studio")
	require.True(t, ok)
	assert.Equal(t, []domain.PeerID{"p2"}, room.Members())
}

func TestDisconnectIgnoresSupersededConnection(t *testing.T) {
	ctl := newTestController()
	tab1 := join(t, ctl, "p1", "studio")
	tab2 := newTestConn()
	ctl.Registry.Bind("p1", tab2, nil)
	ctl.handleJoinRoom("p1", tab2, json.RawMessage(`{"roomId":"studio"}`))

	ctl.disconnect("p1", tab1)

	got, ok := ctl.Registry.Get("p1")
	require.True(t, ok)
	assert.Same(t, tab2, got)
	_, ok = ctl.Rooms.Get("studio")
	assert.True(t, ok)

	tab1.mu.RLock()
	closed := tab1.closed
	tab1.mu.RUnlock()
	assert.True(t, closed)
}

func TestBroadcastClosesSlowMembers(t *testing.T) {
	ctl := newTestController()
	c1 := join(t, ctl, "p1", "studio")
	slow := &wsConn{send: make(chan core.Frame)}
	canceled := false
	ctl.Registry.Bind("p2", slow, func() { canceled = true })
	ctl.handleJoinRoom("p2", slow, json.RawMessage(`{"roomId":"studio"}`))
	recvAll(t, c1)

	// Nobody reads slow's unbuffered channel, so this broadcast drops it.
	join(t, ctl, "p3", "studio")

	assert.True(t, canceled)
	slow.mu.RLock()
	closed := slow.closed
	slow.mu.RUnlock()
	assert.True(t, closed)
}
