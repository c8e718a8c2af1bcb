package codec

import (
	"context"
	"testing"

	"github.com/apache/thrift/lib/go/thrift"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"srpcgo/message"
)

type addArgs struct {
	A int `json:"a"`
	B int `json:"b"`
}

// addArgsThrift writes and reads its two fields as bare Thrift i32 values,
// the minimal shape the thrift serializer accepts.
type addArgsThrift struct{ A, B int32 }

func (s *addArgsThrift) Write(ctx context.Context, p thrift.TProtocol) error {
	if err := p.WriteI32(ctx, s.A); err != nil {
		return err
	}
	return p.WriteI32(ctx, s.B)
}

func (s *addArgsThrift) Read(ctx context.Context, p thrift.TProtocol) error {
	var err error
	if s.A, err = p.ReadI32(ctx); err != nil {
		return err
	}
	s.B, err = p.ReadI32(ctx)
	return err
}

func TestGetUnknownDataType(t *testing.T) {
	if _, err := Get(message.DataType(99)); err == nil {
		t.Fatal("expected error for unregistered data type")
	}
}

func TestJSONCodecRoundTrip(t *testing.T) {
	ser, err := Get(message.DataTypeJSON)
	if err != nil {
		t.Fatalf("Get(DataTypeJSON): %v", err)
	}
	if ser.Type() != message.DataTypeJSON {
		t.Fatalf("expected Type() == DataTypeJSON, got %v", ser.Type())
	}

	body, err := ser.Marshal(&addArgs{A: 1, B: 2})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out addArgs
	if err := ser.Unmarshal(body, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.A != 1 || out.B != 2 {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestThriftCodecRoundTrip(t *testing.T) {
	ser, err := Get(message.DataTypeThrift)
	if err != nil {
		t.Fatalf("Get(DataTypeThrift): %v", err)
	}
	if ser.Type() != message.DataTypeThrift {
		t.Fatalf("expected Type() == DataTypeThrift, got %v", ser.Type())
	}

	body, err := ser.Marshal(&addArgsThrift{A: 1, B: 2})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out addArgsThrift
	if err := ser.Unmarshal(body, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.A != 1 || out.B != 2 {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestProtobufCodecRoundTrip(t *testing.T) {
	ser, err := Get(message.DataTypeProtobuf)
	if err != nil {
		t.Fatalf("Get(DataTypeProtobuf): %v", err)
	}
	if ser.Type() != message.DataTypeProtobuf {
		t.Fatalf("expected Type() == DataTypeProtobuf, got %v", ser.Type())
	}

	body, err := ser.Marshal(wrapperspb.String("hello"))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	out := &wrapperspb.StringValue{}
	if err := ser.Unmarshal(body, out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.GetValue() != "hello" {
		t.Fatalf("round trip mismatch: %q", out.GetValue())
	}
}
