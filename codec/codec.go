// Package codec provides the serialization half of the payload pipeline:
// encode/decode a typed message to/from bytes. Three variants are
// registered: schema-A-binary (protobuf), schema-B-binary (Thrift binary),
// and text-json — selected by the message.DataType tag carried in meta.
//
// Adding a new format means implementing Serializer and registering it;
// no other layer changes (Strategy pattern, same shape as the teacher's
// original Codec interface).
package codec

import (
	"fmt"

	"srpcgo/message"
)

// Serializer encodes/decodes a Go value to/from bytes for one data type.
type Serializer interface {
	Type() message.DataType
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

var registry = map[message.DataType]Serializer{}

func register(s Serializer) { registry[s.Type()] = s }

// Get returns the serializer for a tag, or an error if unregistered.
func Get(t message.DataType) (Serializer, error) {
	s, ok := registry[t]
	if !ok {
		return nil, fmt.Errorf("codec: unknown data type %d", t)
	}
	return s, nil
}
