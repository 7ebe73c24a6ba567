package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/avdeyev/onair/internal/core"
	"github.com/avdeyev/onair/internal/domain"
)

// peerEntry is the canonical per-connection record. Every room a peer joins
// is tracked here so the disconnect path can undo every join.
type peerEntry struct {
	Conn   core.SignalConnection
	Rooms  map[domain.RoomID]struct{}
	Cancel context.CancelFunc
}

type Registry struct {
	mu    sync.RWMutex
	peers map[domain.PeerID]*peerEntry
}

func NewRegistry() *Registry {
	return &Registry{peers: make(map[domain.PeerID]*peerEntry)}
}

func (r *Registry) Bind(pid domain.PeerID, conn core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[pid] = &peerEntry{
		Conn:   conn,
		Rooms:  make(map[domain.RoomID]struct{}),
		Cancel: cancel,
	}
	log.Info().Str("module", "app.registry").Str("pid", string(pid)).Msg("bound peer")
}

func (r *Registry) Get(pid domain.PeerID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.peers[pid]; ok {
		return e.Conn, true
	}
	return nil, false
}

// AddRoom records a join. Returns false if the peer is unknown.
func (r *Registry) AddRoom(pid domain.PeerID, roomID domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.peers[pid]
	if !ok {
		return false
	}
	e.Rooms[roomID] = struct{}{}
	return true
}

func (r *Registry) RemoveRoom(pid domain.PeerID, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.peers[pid]; ok {
		delete(e.Rooms, roomID)
	}
}

// Rooms returns every room the peer has joined and not left.
func (r *Registry) Rooms(pid domain.PeerID) []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.peers[pid]
	if !ok {
		return nil
	}
	out := make([]domain.RoomID, 0, len(e.Rooms))
	for id := range e.Rooms {
		out = append(out, id)
	}
	return out
}

// Unbind removes the peer's entry, but only while it still belongs to conn.
// An entry superseded by a newer Bind must not be torn down by its
// predecessor's cleanup.
func (r *Registry) Unbind(pid domain.PeerID, conn core.SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.peers[pid]
	if !ok || e.Conn != conn {
		return
	}
	delete(r.peers, pid)
	log.Info().Str("module", "app.registry").Str("pid", string(pid)).Msg("unbound peer")
}

type PeerSnap struct {
	PID  domain.PeerID
	Conn core.SignalConnection
}

// Connections snapshots every live peer, for process-global notifications.
func (r *Registry) Connections() []PeerSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PeerSnap, 0, len(r.peers))
	for pid, e := range r.peers {
		out = append(out, PeerSnap{PID: pid, Conn: e.Conn})
	}
	return out
}

func (r *Registry) Cancel(pid domain.PeerID) bool {
	r.mu.RLock()
	e, ok := r.peers[pid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("pid", string(pid)).Msg("canceled peer")
	return true
}
