package session

import (
	"fmt"
	"math"
	"sync"

	"github.com/dkeye/roomlink/internal/directory"
	"github.com/dkeye/roomlink/internal/envelope"
	"github.com/dkeye/roomlink/internal/role"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Option func(*Session)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// groupHandle is the joined room. self stays NoPeer when a client was
// connected by a message before the join confirmation arrived.
type groupHandle struct {
	name string
	self directory.PeerID
}

// Session is one client or server endpoint over a room.
//
// All state changes happen under mu. Directory calls and Handler callbacks
// are queued as effects while the lock is held and run after it is released,
// one at a time and in queue order. A call that finds another goroutine
// draining the queue leaves its effects to that goroutine and returns.
type Session struct {
	dir     directory.Directory
	handler Handler
	logger  zerolog.Logger

	mu          sync.Mutex
	phase       Phase
	behavior    roleBehavior
	group       string
	active      *groupHandle
	host        directory.PeerID
	conns       map[directory.PeerID]struct{}
	localClient bool
	sub         directory.Subscription
	gen         uint64
	effects     []func()
	draining    bool
}

func New(dir directory.Directory, h Handler, opts ...Option) *Session {
	if h == nil {
		h = NopHandler{}
	}
	s := &Session{
		dir:     dir,
		handler: h,
		logger:  log.With().Str("module", "session").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect starts a client session on group. If this session is already
// connected (a host connecting its own client) it signals OnConnected
// without rejoining.
//
// The join error is returned when the join ran before Connect returned.
// Otherwise a failed join is logged and the session goes back to idle.
func (s *Session) Connect(group string) error {
	if group == "" {
		return ErrEmptyGroup
	}
	var joined <-chan error
	err := s.applyErr(func() error {
		if s.phase == PhaseConnected {
			return s.attachLocalClient(group)
		}
		if s.phase != PhaseIdle {
			return fmt.Errorf("%w: %s in group %q", ErrSessionActive, s.phase, s.group)
		}
		joined = s.join(s.begin(clientRole{}, group), group, role.Client)
		return nil
	})
	if err != nil {
		return err
	}
	return joinResult(joined)
}

// Listen starts a server session on group.
func (s *Session) Listen(group string) error {
	if group == "" {
		return ErrEmptyGroup
	}
	var joined <-chan error
	err := s.applyErr(func() error {
		if s.phase != PhaseIdle {
			return fmt.Errorf("%w: %s in group %q", ErrSessionActive, s.phase, s.group)
		}
		joined = s.join(s.begin(&serverRole{}, group), group, role.Server)
		return nil
	})
	if err != nil {
		return err
	}
	return joinResult(joined)
}

// Send routes to ClientSend or ServerSend by role. conn is ignored for
// clients.
func (s *Session) Send(conn ConnectionID, data []byte) error {
	if s.Role() == RoleClient {
		return s.ClientSend(data)
	}
	return s.ServerSend(conn, data)
}

// ClientSend sends data to the host. It fails with ErrInvalidSend and
// transmits nothing while the host is unknown.
func (s *Session) ClientSend(data []byte) error {
	return s.applyErr(func() error {
		if s.localClient {
			s.notify(func(h Handler) {
				h.OnDataReceived(LocalConnectionID, data)
				h.OnDataSent(NoConnection, data)
			})
			return nil
		}
		if _, ok := s.behavior.(clientRole); !ok {
			return fmt.Errorf("%w: not a client", ErrInvalidSend)
		}
		if s.phase != PhaseConnected || s.active == nil {
			return fmt.Errorf("%w: not joined to %q", ErrInvalidSend, s.group)
		}
		if s.host == directory.NoPeer {
			return fmt.Errorf("%w: host unknown", ErrInvalidSend)
		}
		s.transmit(s.host, envelope.Default, data, NoConnection)
		return nil
	})
}

// ServerSend sends data to one connection.
func (s *Session) ServerSend(conn ConnectionID, data []byte) error {
	return s.applyErr(func() error {
		if _, ok := s.behavior.(*serverRole); !ok {
			return fmt.Errorf("%w: not a server", ErrInvalidSend)
		}
		if s.active == nil {
			return fmt.Errorf("%w: no active group", ErrInvalidSend)
		}
		if conn == LocalConnectionID {
			if !s.localClient {
				return fmt.Errorf("%w: no local client", ErrInvalidSend)
			}
			s.notify(func(h Handler) {
				h.OnDataReceived(NoConnection, data)
				h.OnDataSent(LocalConnectionID, data)
			})
			return nil
		}
		peer, ok := s.peerFor(conn)
		if !ok {
			return fmt.Errorf("%w: connection %d", ErrInvalidSend, conn)
		}
		s.transmit(peer, envelope.Default, data, conn)
		return nil
	})
}

// DisconnectConnection asks one client to leave. The room cannot evict a
// peer, so this is advisory: the connection closes when the peer leaves.
func (s *Session) DisconnectConnection(conn ConnectionID) error {
	return s.applyErr(func() error {
		if _, ok := s.behavior.(*serverRole); !ok || s.active == nil {
			return fmt.Errorf("%w: not a connected server", ErrInvalidSend)
		}
		if conn == LocalConnectionID {
			if s.localClient {
				s.detachLocalClient()
			}
			return nil
		}
		peer, ok := s.peerFor(conn)
		if !ok {
			return fmt.Errorf("%w: connection %d", ErrInvalidSend, conn)
		}
		s.transmit(peer, envelope.DisconnectClient, nil, conn)
		return nil
	})
}

// Disconnect ends the client side: the local client of a host, or a client
// session.
func (s *Session) Disconnect() {
	s.apply(func() {
		switch {
		case s.localClient:
			s.detachLocalClient()
		case s.role() == RoleClient:
			s.teardown(true)
		default:
			s.logger.Debug().Str("role", s.role().String()).Msg("disconnect ignored, no client side")
		}
	})
}

// Stop ends the session whatever its role.
func (s *Session) Stop() {
	s.apply(func() { s.teardown(true) })
}

func (s *Session) Role() Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role()
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) Connected() bool {
	return s.Phase() == PhaseConnected
}

func (s *Session) Group() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.group
}

// HostPeer is NoPeer until a client discovered its server.
func (s *Session) HostPeer() directory.PeerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.host
}

func (s *Session) SelfPeer() directory.PeerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return directory.NoPeer
	}
	return s.active.self
}

func (s *Session) LocalClient() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localClient
}

func (s *Session) role() Role {
	if s.behavior == nil {
		return RoleUnassigned
	}
	return s.behavior.role()
}

func (s *Session) begin(b roleBehavior, group string) uint64 {
	s.gen++
	s.behavior = b
	s.group = group
	s.transition(PhaseJoining)
	s.logger.Info().Str("group", group).Str("role", b.role().String()).Msg("joining")
	return s.gen
}

// join queues the subscribe and join of generation gen behind any pending
// leave. The channel receives the outcome once the effect ran.
func (s *Session) join(gen uint64, group string, tag role.Tag) <-chan error {
	res := make(chan error, 1)
	s.after(func() {
		sub := s.dir.Subscribe(func(ev directory.Event) { s.handleEvent(gen, ev) })
		stale := false
		s.apply(func() {
			if stale = s.gen != gen; !stale {
				s.sub = sub
			}
		})
		if stale {
			sub.Release()
			res <- nil
			return
		}
		if err := s.dir.JoinGroup(group, role.Encode(tag)); err != nil {
			s.logger.Warn().Err(err).Str("group", group).Msg("join failed")
			s.apply(func() {
				if s.gen == gen {
					s.teardown(false)
				}
			})
			res <- fmt.Errorf("session: join %q: %w", group, err)
			return
		}
		res <- nil
	})
	return res
}

func joinResult(joined <-chan error) error {
	if joined == nil {
		return nil
	}
	select {
	case err := <-joined:
		return err
	default:
		return nil
	}
}

func (s *Session) attachLocalClient(group string) error {
	if _, ok := s.behavior.(*serverRole); ok {
		if group != s.group {
			return fmt.Errorf("%w: hosting %q", ErrSessionActive, s.group)
		}
		s.localClient = true
		s.logger.Info().Str("group", group).Msg("local client attached to host")
	}
	s.notify(func(h Handler) { h.OnConnected() })
	return nil
}

func (s *Session) detachLocalClient() {
	s.localClient = false
	s.logger.Info().Str("group", s.group).Msg("local client detached")
	s.notify(func(h Handler) { h.OnDisconnected() })
}

// teardown is the single Leaving -> Idle path. It releases the directory
// subscription, leaves the room and resets the session.
func (s *Session) teardown(signal bool) {
	if s.behavior == nil {
		return
	}
	if !s.transition(PhaseLeaving) {
		return
	}
	sub, group := s.sub, s.group
	clientSide := s.role() == RoleClient || s.localClient
	s.after(func() {
		if sub != nil {
			sub.Release()
		}
		if err := s.dir.LeaveGroup(group); err != nil {
			s.logger.Warn().Err(err).Str("group", group).Msg("leave group")
		}
	})
	if signal && clientSide {
		s.notify(func(h Handler) { h.OnDisconnected() })
	}
	s.logger.Info().Str("group", group).Str("role", s.role().String()).Msg("left")

	s.gen++
	s.behavior = nil
	s.group = ""
	s.active = nil
	s.host = directory.NoPeer
	s.conns = nil
	s.localClient = false
	s.sub = nil
	s.transition(PhaseIdle)
}

func (s *Session) transition(to Phase) bool {
	if !canTransition(s.phase, to) {
		s.logger.Error().Str("from", s.phase.String()).Str("to", to.String()).Msg("illegal phase transition")
		return false
	}
	s.logger.Debug().Str("from", s.phase.String()).Str("to", to.String()).Msg("phase")
	s.phase = to
	return true
}

// transmit queues one envelope to peer; OnDataSent(conn) fires when the
// room resolves it.
func (s *Session) transmit(peer directory.PeerID, kind envelope.Kind, data []byte, conn ConnectionID) {
	group := s.group
	wire := envelope.Encode(kind, data)
	s.after(func() {
		s.dir.SendToPeers(group, []directory.PeerID{peer}, wire, func(err error) {
			if err != nil {
				s.logger.Warn().Err(err).Str("group", group).Uint64("peer", uint64(peer)).Msg("send failed")
				return
			}
			if kind != envelope.Default {
				return
			}
			s.apply(func() { s.notify(func(h Handler) { h.OnDataSent(conn, data) }) })
		})
	})
}

func (s *Session) connFor(peer directory.PeerID) ConnectionID {
	if s.active != nil && peer == s.active.self {
		return LocalConnectionID
	}
	return ConnectionID(peer)
}

func (s *Session) peerFor(conn ConnectionID) (directory.PeerID, bool) {
	if conn <= LocalConnectionID {
		return directory.NoPeer, false
	}
	return directory.PeerID(conn), true
}

func (s *Session) isSelf(peer directory.PeerID) bool {
	return s.active != nil && s.active.self != directory.NoPeer && peer == s.active.self
}

// validPeer reports whether id can name a remote connection.
func validPeer(id directory.PeerID) bool {
	return id != directory.NoPeer && uint64(id) <= math.MaxInt
}

func eventPeer(ev directory.Event) (directory.PeerID, bool) {
	switch e := ev.(type) {
	case directory.PeerJoined:
		return e.Peer.ID, true
	case directory.PeerLeft:
		return e.Peer, true
	case directory.MessageReceived:
		return e.From, true
	}
	return directory.NoPeer, false
}

func (s *Session) handleEvent(gen uint64, ev directory.Event) {
	s.apply(func() {
		if gen != s.gen || s.behavior == nil {
			return
		}
		if ev.GroupName() != s.group {
			s.logger.Debug().Str("group", ev.GroupName()).Msg("event for foreign group dropped")
			return
		}
		if id, ok := eventPeer(ev); ok && !validPeer(id) {
			s.logger.Warn().Str("group", s.group).Str("event", fmt.Sprintf("%T", ev)).Uint64("peer", uint64(id)).
				Msg("event with invalid peer id dropped")
			return
		}
		switch e := ev.(type) {
		case directory.GroupJoined:
			s.onGroupJoined(e)
		case directory.GroupLeft:
			s.onGroupLeft()
		case directory.PeerJoined:
			if s.phase != PhaseConnected || s.isSelf(e.Peer.ID) {
				return
			}
			s.behavior.peerJoined(s, e.Peer)
		case directory.PeerLeft:
			if s.phase != PhaseConnected || s.isSelf(e.Peer) {
				return
			}
			s.behavior.peerLeft(s, e.Peer)
		case directory.MessageReceived:
			s.onMessage(e)
		}
	})
}

func (s *Session) onGroupJoined(e directory.GroupJoined) {
	if s.phase == PhaseConnected {
		if s.active != nil && s.active.self == directory.NoPeer {
			s.active.self = e.Self
		}
		s.logger.Debug().Str("group", e.Group).Msg("duplicate join confirmation ignored")
		return
	}
	if s.phase != PhaseJoining {
		return
	}
	peers := e.Peers[:0:0]
	for _, p := range e.Peers {
		if !validPeer(p.ID) {
			s.logger.Warn().Str("group", e.Group).Uint64("peer", uint64(p.ID)).Msg("member with invalid peer id ignored")
			continue
		}
		peers = append(peers, p)
	}
	e.Peers = peers
	s.transition(PhaseConnected)
	s.active = &groupHandle{name: e.Group, self: e.Self}
	s.logger.Info().Str("group", e.Group).Uint64("self", uint64(e.Self)).Int("peers", len(e.Peers)).Msg("joined")
	s.behavior.joined(s, e)
}

func (s *Session) onGroupLeft() {
	if s.phase != PhaseConnected && s.phase != PhaseJoining {
		return
	}
	msg := fmt.Sprintf("removed from group %q", s.group)
	s.logger.Warn().Str("group", s.group).Msg("group left unexpectedly")
	s.notify(func(h Handler) { h.OnError(ErrorGroupLost, msg) })
	s.teardown(true)
}

func (s *Session) onMessage(e directory.MessageReceived) {
	if s.phase == PhaseJoining {
		if _, ok := s.behavior.(clientRole); ok {
			// The join confirmation is not ordered before the host's first
			// message; a message from the room proves the join.
			s.transition(PhaseConnected)
			s.active = &groupHandle{name: e.Group}
			s.host = e.From
			s.logger.Info().Str("group", e.Group).Uint64("host", uint64(e.From)).Msg("connected by first message")
			s.notify(func(h Handler) { h.OnConnected() })
		}
	}
	if s.phase != PhaseConnected {
		return
	}
	env := envelope.Decode(e.Data)
	if env.Kind == envelope.Invalid {
		s.logger.Warn().Uint64("from", uint64(e.From)).Int("len", len(e.Data)).Msg("invalid envelope dropped")
		return
	}
	s.behavior.message(s, e.From, env)
}

func (s *Session) after(fn func()) {
	s.effects = append(s.effects, fn)
}

func (s *Session) notify(fn func(Handler)) {
	h := s.handler
	s.after(func() { fn(h) })
}

func (s *Session) apply(fn func()) {
	_ = s.applyErr(func() error {
		fn()
		return nil
	})
}

// applyErr runs fn under the lock. The caller that finds no drain in
// progress runs the effect queue until it is empty, including effects queued
// meanwhile by other goroutines or by handlers calling back in.
func (s *Session) applyErr(fn func() error) error {
	s.mu.Lock()
	err := fn()
	if s.draining {
		s.mu.Unlock()
		return err
	}
	s.draining = true
	for len(s.effects) > 0 {
		effects := s.effects
		s.effects = nil
		s.mu.Unlock()
		for _, e := range effects {
			e()
		}
		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
	return err
}
