// Package signal serves room clients over websocket.
package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/roomlink/internal/adapters/signal/wire"
	"github.com/dkeye/roomlink/internal/app/orch"
	"github.com/dkeye/roomlink/internal/core"
	"github.com/dkeye/roomlink/internal/directory"
	"github.com/dkeye/roomlink/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type Options struct {
	ReadLimit    int64
	PingPeriod   time.Duration
	WriteWait    time.Duration
	MailboxSize  int
	JoinLimit    int
	JoinInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		ReadLimit:    32768,
		PingPeriod:   54 * time.Second,
		WriteWait:    5 * time.Second,
		MailboxSize:  256,
		JoinLimit:    5,
		JoinInterval: 10 * time.Second,
	}
}

type SignalWSController struct {
	Orch    *orch.Orchestrator
	opts    Options
	limiter *RoomRateLimiter
}

func NewSignalWSController(o *orch.Orchestrator, opts Options) *SignalWSController {
	return &SignalWSController{
		Orch:    o,
		opts:    opts,
		limiter: NewRoomRateLimiter(opts.JoinLimit, opts.JoinInterval),
	}
}

// wsSignalConn is the hub endpoint of one websocket.
type wsSignalConn struct {
	sid   core.SessionID
	token string
	conn  *websocket.Conn
	send  chan []byte

	mu     sync.RWMutex
	closed bool
}

// TrySend implements core.Endpoint.
func (c *wsSignalConn) TrySend(ev directory.Event) error {
	m, ok := wire.FromEvent(ev)
	if !ok {
		return nil
	}
	return c.trySendMessage(m)
}

func (c *wsSignalConn) trySendMessage(m wire.Message) error {
	b, err := wire.Encode(m)
	if err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return directory.ErrClosed
	}
	select {
	case c.send <- b:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *wsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and attaches the socket to the hub until
// it closes. The display name comes from the name query parameter.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	token := c.GetString("client_token")
	name := c.DefaultQuery("name", "guest")
	client, err := domain.NewClient(name)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &wsSignalConn{
		sid:   core.SessionID(uuid.NewString()),
		token: token,
		conn:  ws,
		send:  make(chan []byte, ctl.opts.MailboxSize),
	}
	log.Info().Str("module", "signal").Str("sid", string(conn.sid)).Str("client", client.Name).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Attach(conn.sid, client, conn, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, conn)
}
