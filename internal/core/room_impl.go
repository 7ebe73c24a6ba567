package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/avdeyev/onair/internal/domain"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned connections.
type roomImpl struct {
	id    domain.RoomID
	mu    sync.RWMutex
	byPID map[domain.PeerID]SignalConnection
}

func NewRoomService(id domain.RoomID) RoomService {
	return &roomImpl{
		id:    id,
		byPID: make(map[domain.PeerID]SignalConnection),
	}
}

func (r *roomImpl) ID() domain.RoomID { return r.id }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPID)
}

func (r *roomImpl) Members() []domain.PeerID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.PeerID, 0, len(r.byPID))
	for pid := range r.byPID {
		out = append(out, pid)
	}
	return out
}

func (r *roomImpl) AddMember(pid domain.PeerID, conn SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byPID[pid] = conn
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("pid", string(pid)).Msg("member added")
}

func (r *roomImpl) RemoveMember(pid domain.PeerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byPID, pid)
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("pid", string(pid)).Msg("member removed")
}

// Broadcast is at-most-once and best-effort: a member that cannot keep up is
// reported in Dropped, never retried.
func (r *roomImpl) Broadcast(from domain.PeerID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for pid, conn := range r.byPID {
		if pid == from {
			continue
		}
		if err := conn.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, pid)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.room").Str("from", string(from)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
