// Package orch runs the room hub: membership changes and message fan-out
// for every attached endpoint.
package orch

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/dkeye/roomlink/internal/app"
	"github.com/dkeye/roomlink/internal/core"
	"github.com/dkeye/roomlink/internal/directory"
	"github.com/dkeye/roomlink/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownSession = errors.New("orch: unknown session")
	ErrAlreadyMember  = errors.New("orch: already a member of room")
)

// Orchestrator serializes membership changes and deliveries, so every
// endpoint sees room events in the order they happened.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomManager
	Policy   app.Policy

	mu sync.Mutex
}

func New(policy app.Policy) *Orchestrator {
	return &Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewRoomTable(),
		Policy:   policy,
	}
}

func (o *Orchestrator) Attach(sid core.SessionID, client *domain.Client, ep core.Endpoint, cancel context.CancelFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Registry.Bind(sid, client, ep, cancel)
}

// Detach removes sid from every room it is in. The endpoint is gone, so it
// gets no GroupLeft.
func (o *Orchestrator) Detach(sid core.SessionID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for name, peer := range o.Registry.RoomsOf(sid) {
		if room, ok := o.Rooms.Get(name); ok {
			o.removeMember(room, peer, false)
		}
	}
	o.Registry.Unbind(sid)
}

// SendTo delivers data from sid's peer in room to each listed peer. Peers
// not in the room are skipped; the count of accepted deliveries is returned.
func (o *Orchestrator) SendTo(sid core.SessionID, name domain.RoomName, to []directory.PeerID, data []byte) (int, error) {
	if len(to) == 0 {
		return 0, directory.ErrNoRecipient
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	from, ok := o.Registry.PeerIn(sid, name)
	if !ok {
		return 0, directory.ErrNotMember
	}
	room, ok := o.Rooms.Get(name)
	if !ok {
		return 0, directory.ErrNotMember
	}
	res := room.Deliver(to, directory.MessageReceived{Group: string(name), From: from, Data: bytes.Clone(data)})
	o.handleDropped(room, res)
	return res.SendTo, nil
}

func (o *Orchestrator) handleDropped(room core.RoomService, res core.PublishResult) {
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		peer := slow.Meta().Peer
		switch o.Policy.OnSlowMember(room, slow) {
		case app.KickMember:
			log.Warn().Str("module", "orch").Str("room", string(room.Room().Name)).Uint64("peer", uint64(peer)).Msg("kicking slow member")
			o.removeMember(room, peer, true)
		case app.DropEvent, app.NoAction:
			log.Debug().Str("module", "orch").Uint64("peer", uint64(peer)).Msg("event dropped for slow member")
		}
	}
}
