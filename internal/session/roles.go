package session

import (
	"fmt"

	"github.com/dkeye/roomlink/internal/directory"
	"github.com/dkeye/roomlink/internal/envelope"
	"github.com/dkeye/roomlink/internal/role"
)

// roleBehavior holds everything that differs between the two ends of a
// session. A nil behavior is the unassigned role. Methods run with the
// session lock held.
type roleBehavior interface {
	role() Role
	joined(s *Session, e directory.GroupJoined)
	peerJoined(s *Session, p directory.Peer)
	peerLeft(s *Session, id directory.PeerID)
	message(s *Session, from directory.PeerID, env envelope.Envelope)
}

type serverRole struct{}

func (*serverRole) role() Role { return RoleServer }

// joined: a server is connected to itself as soon as its own join succeeds.
func (*serverRole) joined(s *Session, e directory.GroupJoined) {
	for _, p := range e.Peers {
		if p.ID != e.Self && role.Decode(p.Tag) == role.Server {
			s.logger.Warn().Str("group", e.Group).Uint64("peer", uint64(p.ID)).Msg("another server already in group")
		}
	}
	s.conns = make(map[directory.PeerID]struct{})
	s.notify(func(h Handler) { h.OnConnected() })
}

func (*serverRole) peerJoined(s *Session, p directory.Peer) {
	switch tag := role.Decode(p.Tag); tag {
	case role.Server:
		// Not acknowledged; the impostor times out on its own.
		s.logger.Warn().Str("group", s.group).Uint64("peer", uint64(p.ID)).Msg("refusing second server")
	case role.Unknown:
		s.logger.Debug().Str("group", s.group).Uint64("peer", uint64(p.ID)).Msg("ignoring peer without role")
	default:
		s.conns[p.ID] = struct{}{}
		conn := s.connFor(p.ID)
		s.logger.Info().Str("group", s.group).Int("conn", int(conn)).Str("tag", tag.String()).Msg("connection accepted")
		s.notify(func(h Handler) { h.OnConnectionAccepted(conn) })
	}
}

func (*serverRole) peerLeft(s *Session, id directory.PeerID) {
	if _, ok := s.conns[id]; !ok {
		return
	}
	delete(s.conns, id)
	conn := s.connFor(id)
	s.logger.Info().Str("group", s.group).Int("conn", int(conn)).Msg("connection closed")
	s.notify(func(h Handler) { h.OnConnectionClosed(conn) })
}

func (*serverRole) message(s *Session, from directory.PeerID, env envelope.Envelope) {
	switch env.Kind {
	case envelope.Default:
		conn := s.connFor(from)
		payload := env.Payload
		s.notify(func(h Handler) { h.OnDataReceived(conn, payload) })
	case envelope.DisconnectClient:
		s.logger.Warn().Uint64("from", uint64(from)).Msg("server cannot be disconnected by a peer")
	}
}

type clientRole struct{}

func (clientRole) role() Role { return RoleClient }

// joined scans the room for its server. Joining a room without one is
// terminal for a client.
func (clientRole) joined(s *Session, e directory.GroupJoined) {
	for _, p := range e.Peers {
		if p.ID == e.Self || role.Decode(p.Tag) != role.Server {
			continue
		}
		s.host = p.ID
		s.logger.Info().Str("group", e.Group).Uint64("host", uint64(p.ID)).Msg("host found")
		s.notify(func(h Handler) { h.OnConnected() })
		return
	}
	group := s.group
	s.logger.Warn().Str("group", group).Msg("no host in group")
	s.notify(func(h Handler) { h.OnNoHostFound(group) })
	s.teardown(true)
}

// peerJoined records a host that joined after this client.
func (clientRole) peerJoined(s *Session, p directory.Peer) {
	if role.Decode(p.Tag) != role.Server {
		return
	}
	if s.host != directory.NoPeer {
		if s.host != p.ID {
			s.logger.Warn().Uint64("host", uint64(s.host)).Uint64("peer", uint64(p.ID)).Msg("ignoring second server")
		}
		return
	}
	s.host = p.ID
	s.logger.Info().Str("group", s.group).Uint64("host", uint64(p.ID)).Msg("host joined")
}

func (clientRole) peerLeft(s *Session, id directory.PeerID) {
	if id != s.host {
		return
	}
	msg := fmt.Sprintf("host %d left group %q", id, s.group)
	s.logger.Error().Str("group", s.group).Uint64("host", uint64(id)).Msg("host lost")
	s.notify(func(h Handler) { h.OnError(ErrorHostLost, msg) })
	s.teardown(true)
}

func (clientRole) message(s *Session, from directory.PeerID, env envelope.Envelope) {
	if from != s.host {
		s.logger.Warn().Uint64("from", uint64(from)).Uint64("host", uint64(s.host)).Msg("message from non-host dropped")
		return
	}
	switch env.Kind {
	case envelope.Default:
		payload := env.Payload
		s.notify(func(h Handler) { h.OnDataReceived(NoConnection, payload) })
	case envelope.DisconnectClient:
		s.logger.Info().Str("group", s.group).Int("payload", len(env.Payload)).Msg("host asked us to disconnect")
		s.teardown(true)
	}
}
