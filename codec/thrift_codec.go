package codec

import (
	"context"
	"fmt"

	"github.com/apache/thrift/lib/go/thrift"

	"srpcgo/message"
)

// thriftCodec implements schema-B-binary using Apache Thrift's binary
// protocol, grounded on the pack's yarpc-yarpc-go, bearlytools-claw and
// appnet-org-arpc dependency manifests (github.com/apache/thrift).
type thriftCodec struct{}

func init() { register(thriftCodec{}) }

func (thriftCodec) Type() message.DataType { return message.DataTypeThrift }

// thriftStruct is the subset of generated-code behavior srpcgo's dispatch
// stubs rely on: a type that knows how to read/write itself via a Thrift
// protocol, per spec.md §6's "decode(bytes) -> Req" dispatch-stub contract.
type thriftStruct interface {
	Write(ctx context.Context, p thrift.TProtocol) error
	Read(ctx context.Context, p thrift.TProtocol) error
}

func (thriftCodec) Marshal(v any) ([]byte, error) {
	ts, ok := v.(thriftStruct)
	if !ok {
		return nil, fmt.Errorf("codec: thrift serializer requires a thrift struct, got %T", v)
	}
	t := thrift.NewTSerializer()
	t.Protocol = thrift.NewTBinaryProtocolConf(t.Transport, nil)
	return t.Write(context.Background(), ts)
}

func (thriftCodec) Unmarshal(data []byte, v any) error {
	ts, ok := v.(thriftStruct)
	if !ok {
		return fmt.Errorf("codec: thrift serializer requires a thrift struct, got %T", v)
	}
	d := thrift.NewTDeserializer()
	d.Protocol = thrift.NewTBinaryProtocolConf(d.Transport, nil)
	return d.Read(context.Background(), ts, data)
}
