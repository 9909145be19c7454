package core

import (
	"cmp"
	"slices"
	"sync"

	"github.com/dkeye/roomlink/internal/directory"
	"github.com/dkeye/roomlink/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	room   *domain.Room
	mu     sync.RWMutex
	byPeer map[directory.PeerID]MemberSession
}

func NewRoomService(room *domain.Room) RoomService {
	return &roomImpl{
		room:   room,
		byPeer: make(map[directory.PeerID]MemberSession),
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPeer)
}

func (r *roomImpl) Member(peer directory.PeerID) (MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ms, ok := r.byPeer[peer]
	return ms, ok
}

func (r *roomImpl) AddMember(ms MemberSession) {
	p := ms.Meta().Peer
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byPeer[p] = ms
	log.Info().Str("module", "core.room").Str("room", string(r.room.Name)).Str("sid", string(ms.SID())).Uint64("peer", uint64(p)).Msg("member added")
}

func (r *roomImpl) RemoveMember(peer directory.PeerID) (MemberSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms, ok := r.byPeer[peer]
	if !ok {
		return nil, false
	}
	delete(r.byPeer, peer)
	log.Info().Str("module", "core.room").Str("room", string(r.room.Name)).Uint64("peer", uint64(peer)).Msg("member removed")
	return ms, true
}

func (r *roomImpl) Broadcast(from directory.PeerID, ev directory.Event) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for peer, m := range r.byPeer {
		if peer == from {
			continue
		}
		r.push(m, ev, &res)
	}
	log.Debug().Str("module", "core.room").Uint64("from", uint64(from)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

// Deliver sends ev to each listed member once. Peers that are not in the
// room are skipped.
func (r *roomImpl) Deliver(to []directory.PeerID, ev directory.Event) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	seen := make(map[directory.PeerID]struct{}, len(to))
	for _, peer := range to {
		if _, dup := seen[peer]; dup {
			continue
		}
		seen[peer] = struct{}{}
		if m, ok := r.byPeer[peer]; ok {
			r.push(m, ev, &res)
		}
	}
	return res
}

func (r *roomImpl) push(m MemberSession, ev directory.Event, res *PublishResult) {
	if err := m.Endpoint().TrySend(ev); err != nil {
		res.Dropped = append(res.Dropped, m)
		return
	}
	res.SendTo++
}

// Peers lists members ordered by peer id.
func (r *roomImpl) Peers() []directory.Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]directory.Peer, 0, len(r.byPeer))
	for peer, ms := range r.byPeer {
		out = append(out, directory.Peer{ID: peer, Tag: ms.Meta().Tag})
	}
	slices.SortFunc(out, func(a, b directory.Peer) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberDTO, 0, len(r.byPeer))
	for peer, ms := range r.byPeer {
		m := ms.Meta()
		out = append(out, MemberDTO{Peer: peer, Client: m.Client.ID, Name: m.Client.Name, Role: m.Role().String()})
	}
	return out
}
