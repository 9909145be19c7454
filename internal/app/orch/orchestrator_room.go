package orch

import (
	"github.com/dkeye/roomlink/internal/core"
	"github.com/dkeye/roomlink/internal/directory"
	"github.com/dkeye/roomlink/internal/domain"
	"github.com/rs/zerolog/log"
)

// Join adds sid to room under a fresh peer id. The joiner gets GroupJoined
// with the peers already present; everyone else gets PeerJoined.
func (o *Orchestrator) Join(sid core.SessionID, name domain.RoomName, tag []byte) (directory.PeerID, error) {
	if name == "" {
		return directory.NoPeer, directory.ErrEmptyGroup
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	client, ep, ok := o.Registry.Get(sid)
	if !ok {
		return directory.NoPeer, ErrUnknownSession
	}
	if _, ok := o.Registry.PeerIn(sid, name); ok {
		return directory.NoPeer, ErrAlreadyMember
	}

	room := o.Rooms.GetOrCreate(name)
	existing := room.Peers()
	peer := o.Registry.NextPeerID()
	ms := core.NewMemberSession(sid, domain.NewMember(client, peer, tag), ep)
	room.AddMember(ms)
	o.Registry.AddRoom(sid, name, peer)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(name)).Uint64("peer", uint64(peer)).Str("role", ms.Meta().Role().String()).Msg("joined room")

	group := string(name)
	o.handleDropped(room, room.Deliver([]directory.PeerID{peer}, directory.GroupJoined{Group: group, Self: peer, Peers: existing}))
	o.handleDropped(room, room.Broadcast(peer, directory.PeerJoined{Group: group, Peer: directory.Peer{ID: peer, Tag: ms.Meta().Tag}}))
	return peer, nil
}

func (o *Orchestrator) Leave(sid core.SessionID, name domain.RoomName) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	peer, ok := o.Registry.PeerIn(sid, name)
	if !ok {
		return directory.ErrNotMember
	}
	room, ok := o.Rooms.Get(name)
	if !ok {
		o.Registry.RemoveRoom(sid, name)
		return directory.ErrNotMember
	}
	o.removeMember(room, peer, true)
	return nil
}

// Kick removes one peer from a room as if it had left.
func (o *Orchestrator) Kick(name domain.RoomName, peer directory.PeerID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	room, ok := o.Rooms.Get(name)
	if !ok {
		return false
	}
	return o.removeMember(room, peer, true)
}

func (o *Orchestrator) EvictRoom(name domain.RoomName) {
	o.mu.Lock()
	defer o.mu.Unlock()
	room, ok := o.Rooms.Get(name)
	if !ok {
		return
	}
	for _, p := range room.Peers() {
		o.removeMember(room, p.ID, true)
	}
	o.Rooms.StopRoom(name)
	log.Info().Str("module", "orch").Str("room", string(name)).Msg("room evicted")
}

// removeMember runs with o.mu held. Empty rooms are dropped.
func (o *Orchestrator) removeMember(room core.RoomService, peer directory.PeerID, notifySelf bool) bool {
	ms, ok := room.RemoveMember(peer)
	if !ok {
		return false
	}
	name := room.Room().Name
	o.Registry.RemoveRoom(ms.SID(), name)
	if notifySelf {
		if err := ms.Endpoint().TrySend(directory.GroupLeft{Group: string(name)}); err != nil {
			// The member cannot learn it left; drop its connection instead.
			o.Registry.Cancel(ms.SID())
		}
	}
	res := room.Broadcast(peer, directory.PeerLeft{Group: string(name), Peer: peer})
	if room.MemberCount() == 0 {
		o.Rooms.StopRoom(name)
		log.Debug().Str("module", "orch").Str("room", string(name)).Msg("empty room dropped")
		return true
	}
	o.handleDropped(room, res)
	return true
}
