package core

import "github.com/avdeyev/onair/internal/domain"

// PublishResult reports delivery stats/backpressure to the dispatcher.
type PublishResult struct {
	SentTo  int
	Dropped []domain.PeerID
}

// RoomService is the core-facing API of one room. It owns the membership set
// but never touches transport resources.
type RoomService interface {
	ID() domain.RoomID
	MemberCount() int
	Members() []domain.PeerID

	AddMember(pid domain.PeerID, conn SignalConnection)
	RemoveMember(pid domain.PeerID)
	// Broadcast fans data out to every member except from.
	Broadcast(from domain.PeerID, data Frame) PublishResult
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"member_count"`
}

type RoomManager interface {
	GetOrCreate(id domain.RoomID) RoomService
	Get(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo
	StopRoom(id domain.RoomID)
}
