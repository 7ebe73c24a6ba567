package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avdeyev/onair/internal/domain"
)

type fakeConn struct {
	frames []Frame
	fail   bool
}

func (f *fakeConn) TrySend(fr Frame) error {
	if f.fail {
		return errors.New("backpressure")
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {}

func TestRoomBroadcastSkipsSender(t *testing.T) {
	room := NewRoomService("r1")
	c1, c2, c3 := &fakeConn{}, &fakeConn{}, &fakeConn{}
	room.AddMember("p1", c1)
	room.AddMember("p2", c2)
	room.AddMember("p3", c3)

	res := room.Broadcast("p1", Frame("hello"))

	assert.Equal(t, 2, res.SentTo)
	assert.Empty(t, res.Dropped)
	assert.Empty(t, c1.frames)
	require.Len(t, c2.frames, 1)
	require.Len(t, c3.frames, 1)
	assert.Equal(t, Frame("hello"), c2.frames[0])
}

func TestRoomBroadcastReportsDropped(t *testing.T) {
	room := NewRoomService("r1")
	slow := &fakeConn{fail: true}
	room.AddMember("p1", &fakeConn{})
	room.AddMember("p2", slow)

	res := room.Broadcast("p1", Frame("x"))

	assert.Equal(t, 0, res.SentTo)
	assert.Equal(t, []domain.PeerID{"p2"}, res.Dropped)
}

func TestRoomMembership(t *testing.T) {
	room := NewRoomService("r1")
	assert.Equal(t, 0, room.MemberCount())

	room.AddMember("p1", &fakeConn{})
	room.AddMember("p2", &fakeConn{})
	assert.Equal(t, 2, room.MemberCount())
	assert.ElementsMatch(t, []domain.PeerID{"p1", "p2"}, room.Members())

	room.RemoveMember("p1")
	assert.Equal(t, 1, room.MemberCount())

	// Removing an unknown member is a no-op.
	room.RemoveMember("p1")
	assert.Equal(t, 1, room.MemberCount())
}
