// Package wsclient is a directory.Directory backed by a websocket room
// server.
package wsclient

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/roomlink/internal/adapters/signal/wire"
	"github.com/dkeye/roomlink/internal/directory"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

type Option func(*Client)

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

func WithWriteWait(d time.Duration) Option {
	return func(c *Client) { c.writeWait = d }
}

func WithSendBuffer(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.bufSize = n
		}
	}
}

// Client speaks the room protocol over one websocket. Events are published
// from the read pump, so listeners see them in server order.
type Client struct {
	directory.SubscriberSet

	dialer    *websocket.Dialer
	writeWait time.Duration
	bufSize   int

	conn   *websocket.Conn
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup
	done   chan struct{}
	once   sync.Once
	logger zerolog.Logger

	closedByUser atomic.Bool

	mu      sync.Mutex
	seq     uint64
	pending map[uint64]func(error)
	rooms   map[string]struct{}
}

// Dial connects to a room server websocket url.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	c := &Client{
		dialer:    websocket.DefaultDialer,
		writeWait: 5 * time.Second,
		bufSize:   64,
		done:      make(chan struct{}),
		pending:   make(map[uint64]func(error)),
		rooms:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	conn, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c.conn = conn
	c.send = make(chan []byte, c.bufSize)
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.logger = log.With().Str("module", "adapters.wsclient").Str("url", url).Logger()

	c.wg.Go(c.writePump)
	c.wg.Go(c.readPump)
	go func() {
		c.wg.Wait()
		close(c.done)
	}()
	c.logger.Info().Msg("connected")
	return c, nil
}

func (c *Client) JoinGroup(name string, tag []byte) error {
	if name == "" {
		return directory.ErrEmptyGroup
	}
	return c.enqueue(wire.Message{Type: wire.TypeJoin, Room: name, Tag: tag})
}

func (c *Client) LeaveGroup(name string) error {
	return c.enqueue(wire.Message{Type: wire.TypeLeave, Room: name})
}

// SendToPeers queues a send; done runs on the read pump when the server
// acknowledges it, or with ErrClosed if the connection goes away first.
func (c *Client) SendToPeers(name string, peers []directory.PeerID, data []byte, done func(error)) {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	if done != nil {
		c.pending[seq] = done
	}
	c.mu.Unlock()

	err := c.enqueue(wire.Message{Type: wire.TypeSend, Seq: seq, Room: name, To: peers, Data: data})
	if err != nil && done != nil {
		if fn := c.takePending(seq); fn != nil {
			fn(err)
		}
	}
}

// Ping asks the server for a pong.
func (c *Client) Ping() error {
	return c.enqueue(wire.Message{Type: wire.TypePing})
}

// Close stops both pumps and fails pending sends. It does not wait for the
// pumps; see Done.
func (c *Client) Close() error {
	c.closedByUser.Store(true)
	c.shutdown()
	return nil
}

// Done is closed once both pumps have exited.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) enqueue(m wire.Message) error {
	b, err := wire.Encode(m)
	if err != nil {
		return err
	}
	if c.ctx.Err() != nil {
		return directory.ErrClosed
	}
	select {
	case c.send <- b:
		return nil
	case <-c.ctx.Done():
		return directory.ErrClosed
	}
}

func (c *Client) takePending(seq uint64) func(error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn := c.pending[seq]
	delete(c.pending, seq)
	return fn
}

// shutdown runs once: it stops the pumps and fails pending sends.
func (c *Client) shutdown() {
	c.once.Do(func() {
		c.cancel()
		deadline := time.Now().Add(c.writeWait)
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = c.conn.Close()

		c.mu.Lock()
		pending := c.pending
		c.pending = make(map[uint64]func(error))
		c.mu.Unlock()

		for _, fn := range pending {
			fn(directory.ErrClosed)
		}
		c.logger.Info().Bool("by_user", c.closedByUser.Load()).Msg("closed")
	})
}
