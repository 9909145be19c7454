package signal

import (
	"context"
	"time"

	"github.com/dkeye/roomlink/internal/adapters/signal/wire"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *wsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer ticker.Stop()
	defer c.Close()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("sid", string(c.sid)).Msg("writePump ctx done")
			return
		case <-ticker.C:
			deadline := time.Now().Add(ctl.opts.WriteWait)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("sid", string(c.sid)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump owns the connection lifetime: when it returns the socket is
// detached from every room and closed.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, c *wsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(c.sid)).Msg("readPump closing")
		ctl.Orch.Detach(c.sid)
		cancel()
		c.Close()
	}()

	pongWait := ctl.opts.PingPeriod * 10 / 9
	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.sid)).Msg("readPump read error")
			}
			return
		}
		ctl.handleSignal(c, data)
	}
}

func (ctl *SignalWSController) handleSignal(c *wsSignalConn, data []byte) {
	m, err := wire.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(c, "", "", "bad_payload")
		return
	}

	switch m.Type {
	case wire.TypeJoin:
		ctl.handleJoin(c, m)
	case wire.TypeLeave:
		ctl.handleLeave(c, m)
	case wire.TypeSend:
		ctl.handleSend(c, m)
	case wire.TypePing:
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", string(m.Type)).Msg("unknown signal")
		ctl.sendError(c, m.Type, m.Room, "unknown_type")
	}
}

func (ctl *SignalWSController) reply(c *wsSignalConn, m wire.Message) {
	if err := c.trySendMessage(m); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.sid)).Str("type", string(m.Type)).Msg("reply dropped")
	}
}

func (ctl *SignalWSController) sendError(c *wsSignalConn, op wire.Type, room, msg string) {
	ctl.reply(c, wire.Message{Type: wire.TypeError, Op: op, Room: room, Error: msg})
}
