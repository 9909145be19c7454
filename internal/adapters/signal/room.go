package signal

import (
	"github.com/dkeye/roomlink/internal/adapters/signal/wire"
	"github.com/dkeye/roomlink/internal/domain"
	"github.com/rs/zerolog/log"
)

const maxRoomNameLen = 64

// handleJoin answers with room_joined through the hub, or with an error
// carrying op "join".
func (ctl *SignalWSController) handleJoin(c *wsSignalConn, m wire.Message) {
	if len(m.Room) > maxRoomNameLen {
		ctl.sendError(c, wire.TypeJoin, m.Room, "room name too long")
		return
	}
	if !ctl.limiter.Allow(c.token) {
		log.Warn().Str("module", "signal").Str("sid", string(c.sid)).Str("room", m.Room).Msg("join rate limited")
		ctl.sendError(c, wire.TypeJoin, m.Room, "rate_limited")
		return
	}
	if _, err := ctl.Orch.Join(c.sid, domain.RoomName(m.Room), m.Tag); err != nil {
		log.Info().Err(err).Str("module", "signal").Str("sid", string(c.sid)).Str("room", m.Room).Msg("join refused")
		ctl.sendError(c, wire.TypeJoin, m.Room, wire.ErrorText(err))
	}
}

// handleLeave leaves one room; the connection stays open.
func (ctl *SignalWSController) handleLeave(c *wsSignalConn, m wire.Message) {
	log.Info().Str("module", "signal").Str("sid", string(c.sid)).Str("room", m.Room).Msg("leave")
	if err := ctl.Orch.Leave(c.sid, domain.RoomName(m.Room)); err != nil {
		ctl.sendError(c, wire.TypeLeave, m.Room, wire.ErrorText(err))
	}
}

func (ctl *SignalWSController) handleSend(c *wsSignalConn, m wire.Message) {
	_, err := ctl.Orch.SendTo(c.sid, domain.RoomName(m.Room), m.To, m.Data)
	ctl.reply(c, wire.Message{Type: wire.TypeSent, Seq: m.Seq, Room: m.Room, Error: wire.ErrorText(err)})
}
