package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/avdeyev/onair/internal/domain"
)

type peerRef struct {
	PeerID domain.PeerID `json:"peerId"`
}

func (ctl *Controller) handleJoinRoom(pid domain.PeerID, c *wsConn, data json.RawMessage) {
	var p struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendJSON(c, event{Type: "error", Data: "bad_payload"})
		return
	}
	if ctl.JoinLimiter != nil && !ctl.JoinLimiter.Allow(pid) {
		ctl.sendJSON(c, event{Type: "error", Data: "too many join attempts"})
		return
	}

	roomID := domain.RoomID(p.RoomID)
	room := ctl.Rooms.GetOrCreate(roomID)
	room.AddMember(pid, c)
	ctl.Registry.AddRoom(pid, roomID)
	log.Info().Str("module", "signal").Str("pid", string(pid)).Str("room", p.RoomID).Msg("join")

	ctl.broadcastRoom(roomID, pid, event{Type: "user-joined", Data: peerRef{PeerID: pid}})
}

func (ctl *Controller) handleLeaveRoom(pid domain.PeerID, c *wsConn, data json.RawMessage) {
	var p struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad leave payload")
		ctl.sendJSON(c, event{Type: "error", Data: "bad_payload"})
		return
	}

	log.Info().Str("module", "signal").Str("pid", string(pid)).Str("room", p.RoomID).Msg("leave")
	ctl.leaveRoom(pid, domain.RoomID(p.RoomID))
	ctl.sendJSON(c, event{Type: "left"})
}

// handleSignalRelay forwards an opaque signaling payload to every other room
// member, tagged with the sender. At-most-once, no acknowledgment, no retry.
func (ctl *Controller) handleSignalRelay(pid domain.PeerID, c *wsConn, data json.RawMessage) {
	var p struct {
		RoomID string          `json:"roomId"`
		Signal json.RawMessage `json:"signal"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad signal payload")
		ctl.sendJSON(c, event{Type: "error", Data: "bad_payload"})
		return
	}
	if _, ok := ctl.Rooms.Get(domain.RoomID(p.RoomID)); !ok {
		log.Warn().Str("module", "signal").Str("room", p.RoomID).Msg("signal for unknown room")
		ctl.sendJSON(c, event{Type: "error", Data: "room does not exist"})
		return
	}

	ctl.broadcastRoom(domain.RoomID(p.RoomID), pid, event{
		Type: "signal",
		Data: struct {
			From   domain.PeerID   `json:"from"`
			Signal json.RawMessage `json:"signal"`
		}{From: pid, Signal: p.Signal},
	})
}

// leaveRoom undoes one join: membership, registry record, user-left
// notification, and the room itself once it empties. The disconnect path
// runs this for every room the peer joined.
func (ctl *Controller) leaveRoom(pid domain.PeerID, roomID domain.RoomID) {
	ctl.Registry.RemoveRoom(pid, roomID)
	room, ok := ctl.Rooms.Get(roomID)
	if !ok {
		return
	}
	room.RemoveMember(pid)
	ctl.broadcastRoom(roomID, pid, event{Type: "user-left", Data: peerRef{PeerID: pid}})
	if room.MemberCount() == 0 {
		ctl.Rooms.StopRoom(roomID)
	}
}

// disconnect tears down one connection. A call for a connection the registry
// no longer holds under this PeerID must not touch the current entry's state.
func (ctl *Controller) disconnect(pid domain.PeerID, c *wsConn) {
	defer c.Close()
	if cur, ok := ctl.Registry.Get(pid); !ok || cur != c {
		return
	}
	for _, roomID := range ctl.Registry.Rooms(pid) {
		ctl.leaveRoom(pid, roomID)
	}
	ctl.Registry.Cancel(pid)
	ctl.Registry.Unbind(pid, c)
}
