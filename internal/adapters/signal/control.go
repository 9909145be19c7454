package signal

import "github.com/dkeye/roomlink/internal/adapters/signal/wire"

func (ctl *SignalWSController) handlePing(c *wsSignalConn) {
	ctl.reply(c, wire.Message{Type: wire.TypePong})
}
