package wsclient

import (
	"time"

	"github.com/dkeye/roomlink/internal/adapters/signal/wire"
	"github.com/dkeye/roomlink/internal/directory"
	"github.com/gorilla/websocket"
)

func (c *Client) writePump() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case b := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
				c.shutdown()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				c.logger.Warn().Err(err).Msg("write")
				c.shutdown()
				return
			}
		}
	}
}

func (c *Client) readPump() {
	for {
		_, b, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				c.logger.Debug().Err(err).Msg("read")
			}
			c.shutdown()
			c.dropRooms()
			return
		}
		m, err := wire.Decode(b)
		if err != nil {
			c.logger.Warn().Err(err).Msg("bad frame")
			continue
		}
		c.dispatch(m)
	}
}

func (c *Client) dispatch(m wire.Message) {
	switch m.Type {
	case wire.TypeSent:
		if fn := c.takePending(m.Seq); fn != nil {
			fn(wire.ParseError(m.Error))
		}
		return
	case wire.TypePong:
		c.logger.Debug().Msg("pong")
		return
	case wire.TypeError:
		c.logger.Warn().Str("op", string(m.Op)).Str("room", m.Room).Str("error", m.Error).Msg("server error")
		if m.Op == wire.TypeJoin && m.Room != "" && !c.inRoom(m.Room) {
			// The join was refused; report the room as never entered.
			c.Publish(directory.GroupLeft{Group: m.Room})
		}
		return
	}

	ev, ok := m.Event()
	if !ok {
		c.logger.Warn().Str("type", string(m.Type)).Msg("unexpected frame")
		return
	}
	c.track(ev)
	c.Publish(ev)
}

func (c *Client) inRoom(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[name]
	return ok
}

func (c *Client) track(ev directory.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch e := ev.(type) {
	case directory.GroupJoined:
		c.rooms[e.Group] = struct{}{}
	case directory.GroupLeft:
		delete(c.rooms, e.Group)
	}
}

// dropRooms reports every joined room as left after the connection went
// away on its own.
func (c *Client) dropRooms() {
	c.mu.Lock()
	rooms := c.rooms
	c.rooms = make(map[string]struct{})
	c.mu.Unlock()
	if c.closedByUser.Load() {
		return
	}
	c.logger.Warn().Int("rooms", len(rooms)).Msg("connection lost")
	for room := range rooms {
		c.Publish(directory.GroupLeft{Group: room})
	}
}

var _ directory.Directory = (*Client)(nil)
