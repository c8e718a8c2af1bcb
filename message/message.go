package message

// DataType identifies the payload serializer, stored as a tag in meta so
// the receiver knows which serializer to invoke regardless of what the
// sender's default was.
type DataType byte

const (
	DataTypeProtobuf DataType = 0 // schema-A-binary
	DataTypeThrift   DataType = 1 // schema-B-binary
	DataTypeJSON     DataType = 2 // text-json
)

// CompressType identifies the compression transform, stored as a tag in
// meta. Tag values are part of the wire contract and must not change.
type CompressType byte

const (
	CompressNone   CompressType = 0
	CompressSnappy CompressType = 1
	CompressGzip   CompressType = 2
	CompressZlib   CompressType = 3
	CompressLZ4    CompressType = 4
)

// Meta is the per-protocol structured header shared by every wire adapter:
// status, correlation id, the two pipeline tags, an optional attachment,
// and the module-data baggage. Protocol adapters map their own header
// fields onto this one type (e.g. T-bin's Thrift seqid becomes
// CorrelationID); it is what the payload pipeline and the task/filter
// layer operate on.
type Meta struct {
	Service       string
	Method        string
	IsRequest     bool // true for a client->server call, false for a reply
	Status        Status
	StatusErr     string
	DataType      DataType
	CompressType  CompressType
	CorrelationID uint32
	Attachment    []byte
	ModuleData    ModuleData
}

// Clone returns a deep-enough copy for safe concurrent mutation across the
// client/server boundary (module-data is cloned; Attachment is shared,
// since it is treated as immutable once framed).
func (m *Meta) Clone() *Meta {
	if m == nil {
		return nil
	}
	clone := *m
	clone.ModuleData = m.ModuleData.Clone()
	return &clone
}

// Message is the (meta, payload) pair the payload pipeline and protocol
// framers operate on. Payload is an opaque byte run; its physical layout
// must agree with Meta.DataType and Meta.CompressType, per srpcgo's
// meta-driven decoding invariant.
type Message struct {
	Meta    *Meta
	Payload []byte
}
