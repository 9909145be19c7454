package app

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/dkeye/roomlink/internal/core"
	"github.com/dkeye/roomlink/internal/directory"
	"github.com/dkeye/roomlink/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	Client   *domain.Client
	Endpoint core.Endpoint
	Rooms    map[domain.RoomName]directory.PeerID
	Cancel   context.CancelFunc
}

// Registry tracks attached endpoints and the rooms each one is in. Peer ids
// are allocated here, once per membership, and never reused.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
	lastPeer atomic.Uint64
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
	}
}

func (r *Registry) NextPeerID() directory.PeerID {
	return directory.PeerID(r.lastPeer.Add(1))
}

func (r *Registry) Bind(sid core.SessionID, client *domain.Client, ep core.Endpoint, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{
		Client:   client,
		Endpoint: ep,
		Rooms:    make(map[domain.RoomName]directory.PeerID),
		Cancel:   cancel,
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("client", client.Name).Msg("bound session")
}

func (r *Registry) Get(sid core.SessionID) (*domain.Client, core.Endpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return nil, nil, false
	}
	return e.Client, e.Endpoint, true
}

func (r *Registry) Unbind(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
}

// PeerIn returns the peer id sid holds in room.
func (r *Registry) PeerIn(sid core.SessionID, room domain.RoomName) (directory.PeerID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return directory.NoPeer, false
	}
	peer, ok := e.Rooms[room]
	return peer, ok
}

func (r *Registry) AddRoom(sid core.SessionID, room domain.RoomName, peer directory.PeerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	e.Rooms[room] = peer
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(room)).Uint64("peer", uint64(peer)).Msg("added room")
	return true
}

func (r *Registry) RemoveRoom(sid core.SessionID, room domain.RoomName) (directory.PeerID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return directory.NoPeer, false
	}
	peer, ok := e.Rooms[room]
	delete(e.Rooms, room)
	if ok {
		log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(room)).Msg("removed room association")
	}
	return peer, ok
}

func (r *Registry) RoomsOf(sid core.SessionID) map[domain.RoomName]directory.PeerID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return nil
	}
	return maps.Clone(e.Rooms)
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
