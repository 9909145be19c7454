package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"

	"github.com/dkeye/roomlink/internal/session"
	"github.com/rs/zerolog/log"
)

// chat is a line chat over one session. A host also joins as its own
// client and relays every line it receives to the other connections.
type chat struct {
	host bool
	room string
	done chan struct{}

	sess *session.Session

	outMu sync.Mutex
	out   io.Writer

	mu    sync.Mutex
	conns map[session.ConnectionID]struct{}
	once  sync.Once
}

func newChat(out io.Writer, host bool, room string) *chat {
	return &chat{
		host:  host,
		room:  room,
		done:  make(chan struct{}),
		out:   out,
		conns: make(map[session.ConnectionID]struct{}),
	}
}

func (c *chat) start(sess *session.Session) error {
	c.sess = sess
	if c.host {
		return sess.Listen(c.room)
	}
	return sess.Connect(c.room)
}

func (c *chat) say(line string) error {
	if line == "" {
		return nil
	}
	return c.sess.ClientSend([]byte(line))
}

func (c *chat) printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, format+"\n", args...)
}

func (c *chat) finish() {
	c.once.Do(func() { close(c.done) })
}

// relay forwards one line to every connection except its sender.
func (c *chat) relay(from session.ConnectionID, text string) {
	c.mu.Lock()
	targets := slices.Sorted(maps.Keys(c.conns))
	c.mu.Unlock()
	if c.sess.LocalClient() {
		targets = append(targets, session.LocalConnectionID)
	}
	for _, conn := range targets {
		if conn == from {
			continue
		}
		if err := c.sess.ServerSend(conn, []byte(text)); err != nil {
			log.Debug().Err(err).Int("conn", int(conn)).Msg("relay")
		}
	}
}

func (c *chat) OnConnected() {
	if c.host && !c.sess.LocalClient() {
		// Server half is up; join as our own client.
		if err := c.sess.Connect(c.room); err != nil {
			c.printf("* cannot join own room: %v", err)
			c.finish()
		}
		return
	}
	c.printf("* joined %s", c.room)
}

func (c *chat) OnConnectionAccepted(conn session.ConnectionID) {
	c.mu.Lock()
	c.conns[conn] = struct{}{}
	c.mu.Unlock()
	c.relay(conn, fmt.Sprintf("* [%d] joined", conn))
}

func (c *chat) OnConnectionClosed(conn session.ConnectionID) {
	c.mu.Lock()
	delete(c.conns, conn)
	c.mu.Unlock()
	c.relay(conn, fmt.Sprintf("* [%d] left", conn))
}

func (c *chat) OnDataReceived(conn session.ConnectionID, data []byte) {
	if conn == session.NoConnection {
		c.printf("%s", data)
		return
	}
	label := "host"
	if conn != session.LocalConnectionID {
		label = fmt.Sprint(conn)
	}
	c.relay(conn, fmt.Sprintf("[%s] %s", label, data))
}

func (c *chat) OnDataSent(session.ConnectionID, []byte) {}

func (c *chat) OnDisconnected() {
	c.printf("* disconnected")
	c.finish()
}

func (c *chat) OnError(kind session.ErrorKind, msg string) {
	c.printf("* %s: %s", kind, msg)
}

func (c *chat) OnNoHostFound(room string) {
	c.printf("* no host in %s", room)
	c.finish()
}
