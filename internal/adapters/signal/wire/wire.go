// Package wire is the JSON text protocol between room clients and the
// websocket room server.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/roomlink/internal/directory"
)

type Type string

// client -> server
const (
	TypeJoin  Type = "join"
	TypeLeave Type = "leave"
	TypeSend  Type = "send"
	TypePing  Type = "ping"
)

// server -> client
const (
	TypeRoomJoined Type = "room_joined"
	TypeRoomLeft   Type = "room_left"
	TypePeerJoined Type = "peer_joined"
	TypePeerLeft   Type = "peer_left"
	TypeMessage    Type = "message"
	TypeSent       Type = "sent"
	TypePong       Type = "pong"
	TypeError      Type = "error"
)

var ErrBadMessage = errors.New("wire: bad message")

type Peer struct {
	ID  directory.PeerID `json:"id"`
	Tag []byte           `json:"tag"`
}

// Message is one frame. Only the fields of its Type are set; byte slices
// travel as base64.
type Message struct {
	Type   Type               `json:"type"`
	Seq    uint64             `json:"seq,omitempty"`
	Room   string             `json:"room,omitempty"`
	Tag    []byte             `json:"tag,omitempty"`
	To     []directory.PeerID `json:"to,omitempty"`
	Data   []byte             `json:"data,omitempty"`
	Self   directory.PeerID   `json:"self,omitempty"`
	Peers  []Peer             `json:"peers,omitempty"`
	Peer   *Peer              `json:"peer,omitempty"`
	PeerID directory.PeerID   `json:"peer_id,omitempty"`
	From   directory.PeerID   `json:"from,omitempty"`
	// Op names the request an error answers.
	Op    Type   `json:"op,omitempty"`
	Error string `json:"error,omitempty"`
}

func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

func Decode(b []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if m.Type == "" {
		return Message{}, fmt.Errorf("%w: missing type", ErrBadMessage)
	}
	return m, nil
}

// FromEvent renders a hub event for the wire.
func FromEvent(ev directory.Event) (Message, bool) {
	switch e := ev.(type) {
	case directory.GroupJoined:
		peers := make([]Peer, 0, len(e.Peers))
		for _, p := range e.Peers {
			peers = append(peers, Peer{ID: p.ID, Tag: p.Tag})
		}
		return Message{Type: TypeRoomJoined, Room: e.Group, Self: e.Self, Peers: peers}, true
	case directory.GroupLeft:
		return Message{Type: TypeRoomLeft, Room: e.Group}, true
	case directory.PeerJoined:
		return Message{Type: TypePeerJoined, Room: e.Group, Peer: &Peer{ID: e.Peer.ID, Tag: e.Peer.Tag}}, true
	case directory.PeerLeft:
		return Message{Type: TypePeerLeft, Room: e.Group, PeerID: e.Peer}, true
	case directory.MessageReceived:
		return Message{Type: TypeMessage, Room: e.Group, From: e.From, Data: e.Data}, true
	default:
		return Message{}, false
	}
}

// Event is the inverse of FromEvent. Requests and replies are not events.
func (m Message) Event() (directory.Event, bool) {
	switch m.Type {
	case TypeRoomJoined:
		peers := make([]directory.Peer, 0, len(m.Peers))
		for _, p := range m.Peers {
			peers = append(peers, directory.Peer{ID: p.ID, Tag: p.Tag})
		}
		return directory.GroupJoined{Group: m.Room, Self: m.Self, Peers: peers}, true
	case TypeRoomLeft:
		return directory.GroupLeft{Group: m.Room}, true
	case TypePeerJoined:
		if m.Peer == nil {
			return nil, false
		}
		return directory.PeerJoined{Group: m.Room, Peer: directory.Peer{ID: m.Peer.ID, Tag: m.Peer.Tag}}, true
	case TypePeerLeft:
		return directory.PeerLeft{Group: m.Room, Peer: m.PeerID}, true
	case TypeMessage:
		return directory.MessageReceived{Group: m.Room, From: m.From, Data: m.Data}, true
	default:
		return nil, false
	}
}

// known lets a client map an error string back to its sentinel.
var known = []error{
	directory.ErrNotMember,
	directory.ErrEmptyGroup,
	directory.ErrNoRecipient,
	directory.ErrClosed,
}

// ErrorText is the wire form of err; nil maps to "".
func ErrorText(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range known {
		if errors.Is(err, k) {
			return k.Error()
		}
	}
	return err.Error()
}

// ParseError reverses ErrorText.
func ParseError(s string) error {
	if s == "" {
		return nil
	}
	for _, k := range known {
		if k.Error() == s {
			return k
		}
	}
	return errors.New(s)
}
