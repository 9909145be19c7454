// Package role encodes the tag a peer publishes when it joins a room.
package role

import "encoding/binary"

// Size is the exact wire width of a tag.
const Size = 2

type Tag uint16

const (
	Unknown Tag = iota
	Client
	Server
	Bot
)

func (t Tag) String() string {
	switch t {
	case Client:
		return "client"
	case Server:
		return "server"
	case Bot:
		return "bot"
	default:
		return "unknown"
	}
}

// Participating reports whether a peer with this tag takes part in host
// discovery. Unknown peers are invisible to it.
func (t Tag) Participating() bool {
	return t != Unknown
}

func Encode(t Tag) []byte {
	b := make([]byte, Size)
	binary.LittleEndian.PutUint16(b, uint16(t))
	return b
}

// Decode degrades to Unknown on a wrong length or an undefined ordinal.
func Decode(b []byte) Tag {
	if len(b) != Size {
		return Unknown
	}
	t := Tag(binary.LittleEndian.Uint16(b))
	if t > Bot {
		return Unknown
	}
	return t
}
