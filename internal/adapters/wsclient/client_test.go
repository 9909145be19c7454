package wsclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	roomhttp "github.com/dkeye/roomlink/internal/adapters/http"
	"github.com/dkeye/roomlink/internal/adapters/signal/wire"
	"github.com/dkeye/roomlink/internal/app"
	"github.com/dkeye/roomlink/internal/app/orch"
	"github.com/dkeye/roomlink/internal/config"
	"github.com/dkeye/roomlink/internal/directory"
	"github.com/dkeye/roomlink/internal/role"
	"github.com/dkeye/roomlink/internal/session"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanHandler chan string

func (c chanHandler) OnConnected()                                     { c <- "connected" }
func (c chanHandler) OnConnectionAccepted(id session.ConnectionID)     { c <- fmt.Sprintf("accepted:%d", id) }
func (c chanHandler) OnConnectionClosed(id session.ConnectionID)       { c <- fmt.Sprintf("closed:%d", id) }
func (c chanHandler) OnDataReceived(id session.ConnectionID, b []byte) { c <- fmt.Sprintf("recv:%d:%s", id, b) }
func (c chanHandler) OnDataSent(id session.ConnectionID, b []byte)     { c <- fmt.Sprintf("sent:%d:%s", id, b) }
func (c chanHandler) OnDisconnected()                                  { c <- "disconnected" }
func (c chanHandler) OnError(k session.ErrorKind, _ string)            { c <- "error:" + k.String() }
func (c chanHandler) OnNoHostFound(g string)                           { c <- "nohost:" + g }

func await(t *testing.T, c chanHandler, want string) {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case got := <-c:
			if got == want {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func roomServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	cfg := &config.Config{
		LogLevel: "info",
		Server: config.ServerConfig{
			Mode:         "test",
			Port:         8080,
			Secret:       "test-secret",
			ReadLimit:    32768,
			PingPeriod:   time.Minute,
			WriteWait:    time.Second,
			MailboxSize:  64,
			JoinLimit:    10,
			JoinInterval: time.Second,
		},
	}
	srv := httptest.NewServer(roomhttp.SetupRouter(ctx, cfg, orch.New(app.KickPolicy{})))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, url string) *Client {
	t.Helper()
	c, err := Dial(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSessionsOverWebsocket(t *testing.T) {
	srv := roomServer(t)
	hostEvents, clientEvents := make(chanHandler, 64), make(chanHandler, 64)
	host := session.New(dial(t, wsURL(srv, "/api/ws?name=host")), hostEvents)
	client := session.New(dial(t, wsURL(srv, "/api/ws?name=client")), clientEvents)

	require.NoError(t, host.Listen("lobby"))
	await(t, hostEvents, "connected")
	require.NoError(t, client.Connect("lobby"))
	await(t, clientEvents, "connected")

	conn := session.ConnectionID(client.SelfPeer())
	await(t, hostEvents, fmt.Sprintf("accepted:%d", conn))

	require.NoError(t, client.ClientSend([]byte("ping")))
	await(t, hostEvents, fmt.Sprintf("recv:%d:ping", conn))
	await(t, clientEvents, "sent:-1:ping")

	require.NoError(t, host.ServerSend(conn, []byte("pong")))
	await(t, clientEvents, "recv:-1:pong")
	await(t, hostEvents, fmt.Sprintf("sent:%d:pong", conn))

	require.NoError(t, host.DisconnectConnection(conn))
	await(t, clientEvents, "disconnected")
	await(t, hostEvents, fmt.Sprintf("closed:%d", conn))
}

func TestCombinedHostOverWebsocket(t *testing.T) {
	srv := roomServer(t)
	events := make(chanHandler, 64)
	host := session.New(dial(t, wsURL(srv, "/api/ws?name=host")), events)

	require.NoError(t, host.Listen("den"))
	await(t, events, "connected")
	require.NoError(t, host.Connect("den"))
	await(t, events, "connected")
	assert.True(t, host.LocalClient())

	require.NoError(t, host.ClientSend([]byte("loop")))
	await(t, events, "recv:0:loop")
	require.NoError(t, host.ServerSend(session.LocalConnectionID, []byte("back")))
	await(t, events, "recv:-1:back")
}

// stubServer runs fn for the first websocket it accepts.
func stubServer(t *testing.T, fn func(ws *websocket.Conn)) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		fn(ws)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeFrame(ws *websocket.Conn, m wire.Message) {
	b, _ := wire.Encode(m)
	_ = ws.WriteMessage(websocket.TextMessage, b)
}

func TestCloseFailsPendingSends(t *testing.T) {
	got := make(chan wire.Message, 1)
	srv := stubServer(t, func(ws *websocket.Conn) {
		_, b, err := ws.ReadMessage()
		if err == nil {
			m, _ := wire.Decode(b)
			got <- m
		}
		_, _, _ = ws.ReadMessage()
	})
	c := dial(t, wsURL(srv, "/"))

	errs := make(chan error, 1)
	c.SendToPeers("lobby", []directory.PeerID{2}, []byte{1, 0}, func(err error) { errs <- err })
	select {
	case m := <-got:
		assert.Equal(t, wire.TypeSend, m.Type)
		assert.Equal(t, uint64(1), m.Seq)
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the send")
	}

	require.NoError(t, c.Close())
	assert.ErrorIs(t, <-errs, directory.ErrClosed)
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("pumps did not stop")
	}
	assert.ErrorIs(t, c.JoinGroup("lobby", nil), directory.ErrClosed)
}

func TestSendAckCarriesError(t *testing.T) {
	srv := stubServer(t, func(ws *websocket.Conn) {
		_, b, err := ws.ReadMessage()
		if err != nil {
			return
		}
		m, _ := wire.Decode(b)
		writeFrame(ws, wire.Message{Type: wire.TypeSent, Seq: m.Seq, Error: wire.ErrorText(directory.ErrNotMember)})
		_, _, _ = ws.ReadMessage()
	})
	c := dial(t, wsURL(srv, "/"))

	errs := make(chan error, 1)
	c.SendToPeers("lobby", []directory.PeerID{2}, []byte{1, 0}, func(err error) { errs <- err })
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, directory.ErrNotMember)
	case <-time.After(2 * time.Second):
		t.Fatal("no ack")
	}
}

func TestRefusedJoinAndLostConnection(t *testing.T) {
	srv := stubServer(t, func(ws *websocket.Conn) {
		for {
			_, b, err := ws.ReadMessage()
			if err != nil {
				return
			}
			m, _ := wire.Decode(b)
			if m.Room == "closed" {
				writeFrame(ws, wire.Message{Type: wire.TypeError, Op: wire.TypeJoin, Room: m.Room, Error: "rate_limited"})
				continue
			}
			writeFrame(ws, wire.Message{Type: wire.TypeRoomJoined, Room: m.Room, Self: 1})
			return
		}
	})
	c := dial(t, wsURL(srv, "/"))

	events := make(chan directory.Event, 8)
	c.Subscribe(func(ev directory.Event) { events <- ev })

	next := func() directory.Event {
		select {
		case ev := <-events:
			return ev
		case <-time.After(2 * time.Second):
			t.Fatal("no event")
			return nil
		}
	}

	require.NoError(t, c.JoinGroup("closed", role.Encode(role.Client)))
	assert.Equal(t, directory.GroupLeft{Group: "closed"}, next())

	require.NoError(t, c.JoinGroup("open", role.Encode(role.Client)))
	joined, ok := next().(directory.GroupJoined)
	require.True(t, ok)
	assert.Equal(t, "open", joined.Group)
	assert.Equal(t, directory.GroupLeft{Group: "open"}, next(), "server hung up")
}

func TestJoinErrorKeepsEnteredRoom(t *testing.T) {
	srv := stubServer(t, func(ws *websocket.Conn) {
		seen := make(map[string]bool)
		for {
			_, b, err := ws.ReadMessage()
			if err != nil {
				return
			}
			m, _ := wire.Decode(b)
			if m.Type != wire.TypeJoin {
				continue
			}
			if seen[m.Room] {
				writeFrame(ws, wire.Message{Type: wire.TypeError, Op: wire.TypeJoin, Room: m.Room, Error: "already_joined"})
				continue
			}
			seen[m.Room] = true
			writeFrame(ws, wire.Message{Type: wire.TypeRoomJoined, Room: m.Room, Self: 1})
		}
	})
	c := dial(t, wsURL(srv, "/"))

	events := make(chan directory.Event, 8)
	c.Subscribe(func(ev directory.Event) { events <- ev })
	next := func() directory.Event {
		select {
		case ev := <-events:
			return ev
		case <-time.After(2 * time.Second):
			t.Fatal("no event")
			return nil
		}
	}

	require.NoError(t, c.JoinGroup("a", role.Encode(role.Client)))
	require.IsType(t, directory.GroupJoined{}, next())
	require.NoError(t, c.JoinGroup("a", role.Encode(role.Client)))
	require.NoError(t, c.JoinGroup("b", role.Encode(role.Client)))

	joined, ok := next().(directory.GroupJoined)
	require.True(t, ok, "a refused rejoin must not report the room as left")
	assert.Equal(t, "b", joined.Group)
	assert.True(t, c.inRoom("a"))
}
