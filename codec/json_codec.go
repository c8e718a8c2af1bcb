package codec

import (
	"encoding/json"

	"srpcgo/message"
)

// jsonCodec uses Go's standard library encoding/json. Pros: human-readable,
// cross-language, easy to debug at the HTTP-tunneled protocol boundary.
// Cons: slower than either schema-binary format, larger on the wire.
type jsonCodec struct{}

func init() { register(jsonCodec{}) }

func (jsonCodec) Type() message.DataType { return message.DataTypeJSON }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
