package domain

import (
	"github.com/dkeye/roomlink/internal/directory"
	"github.com/dkeye/roomlink/internal/role"
)

// Member represents one peer's presence in a room.
// No transport or lifecycle logic here.
type Member struct {
	Client *Client
	Peer   directory.PeerID
	Tag    []byte
}

// NewMember copies tag: it stays fixed for the whole membership.
func NewMember(client *Client, peer directory.PeerID, tag []byte) *Member {
	return &Member{Client: client, Peer: peer, Tag: append([]byte(nil), tag...)}
}

func (m *Member) Role() role.Tag { return role.Decode(m.Tag) }
