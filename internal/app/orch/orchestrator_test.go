package orch

import (
	"sync"
	"testing"

	"github.com/dkeye/roomlink/internal/app"
	"github.com/dkeye/roomlink/internal/core"
	"github.com/dkeye/roomlink/internal/directory"
	"github.com/dkeye/roomlink/internal/domain"
	"github.com/dkeye/roomlink/internal/role"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mailbox is an endpoint that keeps events and refuses them past limit.
type mailbox struct {
	mu       sync.Mutex
	limit    int
	events   []directory.Event
	canceled bool
}

func (m *mailbox) TrySend(ev directory.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.limit > 0 && len(m.events) >= m.limit {
		return core.ErrBackpressure
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *mailbox) drain() []directory.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.events
	m.events = nil
	return out
}

func attach(t *testing.T, o *Orchestrator, sid core.SessionID, limit int) *mailbox {
	t.Helper()
	c, err := domain.NewClient(string(sid))
	require.NoError(t, err)
	mb := &mailbox{limit: limit}
	o.Attach(sid, c, mb, func() {
		mb.mu.Lock()
		mb.canceled = true
		mb.mu.Unlock()
	})
	return mb
}

func TestJoinFanOut(t *testing.T) {
	o := New(app.KickPolicy{})
	host := attach(t, o, "host", 0)
	guest := attach(t, o, "guest", 0)

	hostPeer, err := o.Join("host", "lobby", role.Encode(role.Server))
	require.NoError(t, err)
	assert.Equal(t, []directory.Event{
		directory.GroupJoined{Group: "lobby", Self: hostPeer, Peers: []directory.Peer{}},
	}, host.drain())

	guestPeer, err := o.Join("guest", "lobby", role.Encode(role.Client))
	require.NoError(t, err)
	assert.NotEqual(t, hostPeer, guestPeer)

	joined := guest.drain()
	require.Len(t, joined, 1)
	gj := joined[0].(directory.GroupJoined)
	assert.Equal(t, guestPeer, gj.Self)
	require.Len(t, gj.Peers, 1)
	assert.Equal(t, hostPeer, gj.Peers[0].ID)
	assert.Equal(t, role.Server, role.Decode(gj.Peers[0].Tag))

	assert.Equal(t, []directory.Event{
		directory.PeerJoined{Group: "lobby", Peer: directory.Peer{ID: guestPeer, Tag: role.Encode(role.Client)}},
	}, host.drain())

	_, err = o.Join("guest", "lobby", nil)
	assert.ErrorIs(t, err, ErrAlreadyMember)
	_, err = o.Join("nobody", "lobby", nil)
	assert.ErrorIs(t, err, ErrUnknownSession)
	_, err = o.Join("guest", "", nil)
	assert.ErrorIs(t, err, directory.ErrEmptyGroup)
}

func TestSendToSkipsStrangers(t *testing.T) {
	o := New(app.KickPolicy{})
	host := attach(t, o, "host", 0)
	guest := attach(t, o, "guest", 0)
	outsider := attach(t, o, "outsider", 0)

	hostPeer, _ := o.Join("host", "lobby", role.Encode(role.Server))
	guestPeer, _ := o.Join("guest", "lobby", role.Encode(role.Client))
	outsiderPeer, _ := o.Join("outsider", "elsewhere", role.Encode(role.Client))
	host.drain()
	guest.drain()
	outsider.drain()

	n, err := o.SendTo("guest", "lobby", []directory.PeerID{hostPeer, hostPeer, outsiderPeer}, []byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []directory.Event{
		directory.MessageReceived{Group: "lobby", From: guestPeer, Data: []byte("hi")},
	}, host.drain())
	assert.Empty(t, outsider.drain())

	_, err = o.SendTo("outsider", "lobby", []directory.PeerID{hostPeer}, []byte("x"))
	assert.ErrorIs(t, err, directory.ErrNotMember)
	_, err = o.SendTo("guest", "lobby", nil, []byte("x"))
	assert.ErrorIs(t, err, directory.ErrNoRecipient)
}

func TestLeaveAndDetach(t *testing.T) {
	o := New(app.KickPolicy{})
	host := attach(t, o, "host", 0)
	guest := attach(t, o, "guest", 0)
	_, _ = o.Join("host", "lobby", role.Encode(role.Server))
	guestPeer, _ := o.Join("guest", "lobby", role.Encode(role.Client))
	_, _ = o.Join("guest", "side", role.Encode(role.Client))
	host.drain()
	guest.drain()

	require.NoError(t, o.Leave("guest", "lobby"))
	assert.Equal(t, []directory.Event{directory.GroupLeft{Group: "lobby"}}, guest.drain())
	assert.Equal(t, []directory.Event{directory.PeerLeft{Group: "lobby", Peer: guestPeer}}, host.drain())
	assert.ErrorIs(t, o.Leave("guest", "lobby"), directory.ErrNotMember)

	o.Detach("guest")
	_, ok := o.Rooms.Get("side")
	assert.False(t, ok, "empty room is dropped")
	assert.Empty(t, guest.drain())
	assert.Equal(t, 1, o.Registry.Count())

	o.Detach("host")
	_, ok = o.Rooms.Get("lobby")
	assert.False(t, ok)
	assert.Zero(t, o.Registry.Count())
}

func TestSlowMemberIsKicked(t *testing.T) {
	o := New(app.KickPolicy{})
	host := attach(t, o, "host", 0)
	slow := attach(t, o, "slow", 1)
	_, _ = o.Join("host", "lobby", role.Encode(role.Server))
	slowPeer, _ := o.Join("slow", "lobby", role.Encode(role.Client))
	host.drain()

	_, err := o.SendTo("host", "lobby", []directory.PeerID{slowPeer}, []byte("burst"))
	require.NoError(t, err)

	_, ok := o.Registry.PeerIn("slow", "lobby")
	assert.False(t, ok)
	assert.Equal(t, []directory.Event{directory.PeerLeft{Group: "lobby", Peer: slowPeer}}, host.drain())
	assert.Len(t, slow.drain(), 1)
	assert.True(t, slow.canceled, "undeliverable GroupLeft drops the connection")
	assert.False(t, host.canceled)
}

func TestDropPolicyKeepsMember(t *testing.T) {
	o := New(app.DropPolicy{})
	attach(t, o, "host", 0)
	attach(t, o, "slow", 1)
	_, _ = o.Join("host", "lobby", role.Encode(role.Server))
	slowPeer, _ := o.Join("slow", "lobby", role.Encode(role.Client))

	n, err := o.SendTo("host", "lobby", []directory.PeerID{slowPeer}, []byte("burst"))
	require.NoError(t, err)
	assert.Zero(t, n)
	_, ok := o.Registry.PeerIn("slow", "lobby")
	assert.True(t, ok)
}

func TestKickAndEvict(t *testing.T) {
	o := New(app.KickPolicy{})
	host := attach(t, o, "host", 0)
	guest := attach(t, o, "guest", 0)
	_, _ = o.Join("host", "lobby", role.Encode(role.Server))
	guestPeer, _ := o.Join("guest", "lobby", role.Encode(role.Client))
	host.drain()
	guest.drain()

	assert.True(t, o.Kick("lobby", guestPeer))
	assert.False(t, o.Kick("lobby", guestPeer))
	assert.Equal(t, []directory.Event{directory.GroupLeft{Group: "lobby"}}, guest.drain())

	o.EvictRoom("lobby")
	assert.Equal(t, []directory.Event{
		directory.PeerLeft{Group: "lobby", Peer: guestPeer},
		directory.GroupLeft{Group: "lobby"},
	}, host.drain())
	assert.Empty(t, o.Rooms.List())
}
