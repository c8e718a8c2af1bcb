// Package compress implements the pluggable compression half of the
// payload pipeline: a byte-in/byte-out transform identified by the tag
// carried in message.Meta.CompressType.
package compress

import (
	"fmt"

	"srpcgo/message"
)

// DefaultThreshold is the default size, in bytes, below which a payload is
// never compressed even when a non-identity compressor is configured — the
// outbound meta then carries CompressNone regardless of the caller's
// choice. Configurable per Client/Server via Options.CompressThreshold.
const DefaultThreshold = 1024

// Codec compresses and decompresses a byte run. hintSize passed to
// Decompress is the expected decompressed size (0 means unknown, grow
// dynamically) — most implementations use it only to presize a buffer.
type Codec interface {
	Type() message.CompressType
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte, hintSize int) ([]byte, error)
}

var registry = map[message.CompressType]Codec{}

func register(c Codec) { registry[c.Type()] = c }

// Get returns the codec for a tag, or an error if the tag is unknown — an
// unknown compress tag is always a protocol/meta error, never a panic.
func Get(t message.CompressType) (Codec, error) {
	c, ok := registry[t]
	if !ok {
		return nil, fmt.Errorf("compress: unknown compress type %d", t)
	}
	return c, nil
}

// Apply compresses payload with the codec for tag t, unless len(payload) is
// below threshold, in which case it returns the payload unchanged and
// CompressNone — the compression-threshold invariant from the payload
// pipeline spec.
func Apply(t message.CompressType, payload []byte, threshold int) ([]byte, message.CompressType, error) {
	if t == message.CompressNone || len(payload) < threshold {
		return payload, message.CompressNone, nil
	}
	c, err := Get(t)
	if err != nil {
		return nil, 0, err
	}
	out, err := c.Compress(payload)
	if err != nil {
		return nil, 0, err
	}
	return out, t, nil
}

// Reverse decompresses payload according to tag t (a no-op for
// CompressNone), the inbound mirror of Apply.
func Reverse(t message.CompressType, payload []byte, hintSize int) ([]byte, error) {
	if t == message.CompressNone {
		return payload, nil
	}
	c, err := Get(t)
	if err != nil {
		return nil, err
	}
	return c.Decompress(payload, hintSize)
}
