// Package envelope frames session traffic exchanged over a room.
//
// Wire layout: [2-byte little-endian kind][payload...]. There is no length or
// version field; the room delivers whole messages.
package envelope

import "encoding/binary"

// PrefixSize is the width of the kind prefix.
const PrefixSize = 2

type Kind uint16

const (
	Invalid Kind = iota
	Default
	DisconnectClient
)

func (k Kind) String() string {
	switch k {
	case Default:
		return "default"
	case DisconnectClient:
		return "disconnect_client"
	default:
		return "invalid"
	}
}

func (k Kind) valid() bool {
	return k == Default || k == DisconnectClient
}

// Envelope is one decoded message. Payload aliases the buffer it was decoded
// from and is nil only for Invalid.
type Envelope struct {
	Kind    Kind
	Payload []byte
}

// Encode writes kind followed by payload. An empty payload is allowed.
func Encode(kind Kind, payload []byte) []byte {
	buf := make([]byte, PrefixSize+len(payload))
	binary.LittleEndian.PutUint16(buf[:PrefixSize], uint16(kind))
	copy(buf[PrefixSize:], payload)
	return buf
}

// Decode never fails: short buffers and unknown kinds yield Invalid, since
// rooms may carry foreign traffic that must be dropped.
func Decode(b []byte) Envelope {
	if len(b) < PrefixSize {
		return Envelope{Kind: Invalid}
	}
	kind := Kind(binary.LittleEndian.Uint16(b[:PrefixSize]))
	if !kind.valid() {
		return Envelope{Kind: Invalid}
	}
	return Envelope{Kind: kind, Payload: b[PrefixSize:]}
}
