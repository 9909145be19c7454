package core

import (
	"github.com/dkeye/roomlink/internal/directory"
	"github.com/dkeye/roomlink/internal/domain"
)

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	Peer   directory.PeerID `json:"peer"`
	Client domain.ClientID  `json:"client"`
	Name   string           `json:"name"`
	Role   string           `json:"role"`
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	MembersSnapshot() []MemberDTO
	Peers() []directory.Peer
	Member(peer directory.PeerID) (MemberSession, bool)

	AddMember(ms MemberSession)
	RemoveMember(peer directory.PeerID) (MemberSession, bool)
	Broadcast(from directory.PeerID, ev directory.Event) PublishResult
	Deliver(to []directory.PeerID, ev directory.Event) PublishResult
}

type RoomInfo struct {
	ID          domain.RoomID   `json:"id"`
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"member_count"`
}

type RoomManager interface {
	GetOrCreate(name domain.RoomName) RoomService
	Get(name domain.RoomName) (RoomService, bool)
	List() []RoomInfo
	StopRoom(name domain.RoomName)
}
