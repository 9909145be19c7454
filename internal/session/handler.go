package session

import "errors"

// ConnectionID addresses a logical connection for the layer above. For a
// remote peer it equals the peer id, so only peer ids in 1..math.MaxInt get
// a connection; events naming any other peer are dropped.
type ConnectionID int

const (
	// LocalConnectionID is the host's own client when a process both
	// listens and connects on one room.
	LocalConnectionID ConnectionID = 0
	// NoConnection tags client-side callbacks: a client only talks to its host.
	NoConnection ConnectionID = -1
)

var (
	ErrInvalidSend   = errors.New("session: invalid send")
	ErrSessionActive = errors.New("session: already active")
	ErrEmptyGroup    = errors.New("session: empty group name")
)

type ErrorKind int

const (
	// ErrorHostLost is fatal for a client: its server left the room.
	ErrorHostLost ErrorKind = iota + 1
	// ErrorGroupLost means the room service dropped this peer from the room.
	ErrorGroupLost
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorHostLost:
		return "host_lost"
	case ErrorGroupLost:
		return "group_lost"
	default:
		return "unknown"
	}
}

// Handler receives session notifications. Calls are made one at a time, in
// the order the session queued them, and never while it holds its lock. A
// handler may call back into the Session; the effects of that call run after
// the handler returns.
type Handler interface {
	OnConnected()
	OnConnectionAccepted(conn ConnectionID)
	OnConnectionClosed(conn ConnectionID)
	OnDataReceived(conn ConnectionID, data []byte)
	OnDataSent(conn ConnectionID, data []byte)
	OnDisconnected()
	OnError(kind ErrorKind, msg string)
	OnNoHostFound(group string)
}

// NopHandler ignores everything. Embed it to implement part of Handler.
type NopHandler struct{}

func (NopHandler) OnConnected()                        {}
func (NopHandler) OnConnectionAccepted(ConnectionID)   {}
func (NopHandler) OnConnectionClosed(ConnectionID)     {}
func (NopHandler) OnDataReceived(ConnectionID, []byte) {}
func (NopHandler) OnDataSent(ConnectionID, []byte)     {}
func (NopHandler) OnDisconnected()                     {}
func (NopHandler) OnError(ErrorKind, string)           {}
func (NopHandler) OnNoHostFound(string)                {}
