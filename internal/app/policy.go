package app

import "github.com/dkeye/roomlink/internal/core"

// SlowMemberAction is what the hub does with a member whose mailbox could
// not take an event.
type SlowMemberAction int

const (
	NoAction SlowMemberAction = iota
	// KickMember removes the member from the room. If it cannot even be told
	// it left, its endpoint is canceled.
	KickMember
	// DropEvent loses the one event and keeps the member.
	DropEvent
)

// Policy decides the fate of slow room members.
type Policy interface {
	OnSlowMember(room core.RoomService, member core.MemberSession) SlowMemberAction
}

// KickPolicy kicks every slow member.
type KickPolicy struct{}

func (KickPolicy) OnSlowMember(core.RoomService, core.MemberSession) SlowMemberAction {
	return KickMember
}

type DropPolicy struct{}

func (DropPolicy) OnSlowMember(core.RoomService, core.MemberSession) SlowMemberAction {
	return DropEvent
}
