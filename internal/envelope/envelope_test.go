package envelope

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEncodeLayout(t *testing.T) {
	b := Encode(Default, []byte{0xAA, 0xBB})
	assert.Equal(t, []byte{0x01, 0x00, 0xAA, 0xBB}, b)

	b = Encode(DisconnectClient, nil)
	assert.Equal(t, []byte{0x02, 0x00}, b)
}

func TestDecodeShortBuffers(t *testing.T) {
	for _, b := range [][]byte{nil, {}, {0x01}} {
		env := Decode(b)
		assert.Equal(t, Invalid, env.Kind)
		assert.Nil(t, env.Payload)
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	assert.Equal(t, Invalid, Decode([]byte{0x00, 0x00, 0x01}).Kind)
	assert.Equal(t, Invalid, Decode([]byte{0x03, 0x00}).Kind)
	assert.Equal(t, Invalid, Decode([]byte{0xFF, 0xFF, 0x10, 0x20}).Kind)
}

func TestDecodeEmptyDefaultPayload(t *testing.T) {
	env := Decode(Encode(Default, nil))
	require.Equal(t, Default, env.Kind)
	assert.Empty(t, env.Payload)
}

func TestDisconnectClientKeepsTrailingBytes(t *testing.T) {
	env := Decode([]byte{0x02, 0x00, 0x09})
	assert.Equal(t, DisconnectClient, env.Kind)
	assert.Equal(t, []byte{0x09}, env.Payload)
	assert.Equal(t, []byte{0x02, 0x00, 0x09}, Encode(env.Kind, env.Payload))
}

func TestRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		kind := rapid.SampledFrom([]Kind{Default, DisconnectClient}).Draw(t, "kind")
		payload := rapid.SliceOf(rapid.Byte()).Draw(t, "payload")
		env := Decode(Encode(kind, payload))
		if env.Kind != kind {
			t.Fatalf("kind = %v, want %v", env.Kind, kind)
		}
		if !bytes.Equal(env.Payload, payload) {
			t.Fatalf("payload = %x, want %x", env.Payload, payload)
		}
		if env.Payload == nil {
			t.Fatalf("payload of a valid %v envelope is nil", kind)
		}
	})
}

func TestReencodeProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		kind := rapid.SampledFrom([]Kind{Default, DisconnectClient}).Draw(t, "kind")
		payload := rapid.SliceOf(rapid.Byte()).Draw(t, "payload")
		wire := Encode(kind, payload)
		env := Decode(wire)
		again := Encode(env.Kind, env.Payload)
		if !bytes.Equal(again, wire) {
			t.Fatalf("re-encode mismatch: %x vs %x", again, wire)
		}
	})
}

func TestDecodeNeverPanics(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := rapid.SliceOfN(rapid.Byte(), 0, 8).Draw(t, "buf")
		env := Decode(b)
		if (env.Kind == Invalid) != (env.Payload == nil) {
			t.Fatalf("kind %v with payload %x", env.Kind, env.Payload)
		}
	})
}
