package protocol

import (
	"bufio"
	"encoding/binary"
	"errors"

	"srpcgo/message"
)

// T-bin (Thrift-framed): a 4-byte big-endian frame length, followed by a
// Thrift binary-protocol message envelope (strict version header | method
// name | seqid) and the struct body. The struct body is the payload
// produced by the schema-B-binary serializer; this adapter only frames the
// envelope around it.
const (
	tbinVersionMask   uint32 = 0xffff0000
	tbinVersion1      uint32 = 0x80010000
	tbinTypeCall      uint32 = 1
	tbinTypeReply     uint32 = 2
	tbinTypeException uint32 = 3
)

type tbinAdapter struct{}

func init() { register("t-bin", func() Adapter { return tbinAdapter{} }) }

func (tbinAdapter) Name() string { return "t-bin" }
func (tbinAdapter) RequiresCorrelation() bool { return true }

func (a tbinAdapter) Frame(msg *message.Message) ([]byte, error) {
	m := msg.Meta
	msgType := tbinTypeReply
	if m.IsRequest {
		msgType = tbinTypeCall
	} else if m.Status != message.StatusOK {
		msgType = tbinTypeException
	}

	envelope := make([]byte, 0, 12+len(m.Method))
	versionAndType := make([]byte, 4)
	binary.BigEndian.PutUint32(versionAndType, tbinVersion1|msgType)
	envelope = append(envelope, versionAndType...)

	methodLen := make([]byte, 4)
	binary.BigEndian.PutUint32(methodLen, uint32(len(m.Method)))
	envelope = append(envelope, methodLen...)
	envelope = append(envelope, m.Method...)

	seqid := make([]byte, 4)
	binary.BigEndian.PutUint32(seqid, m.CorrelationID)
	envelope = append(envelope, seqid...)

	// Module-data and status have no slot in the Thrift envelope proper;
	// carry them as a small schema-A-encoded prefix to the struct body so
	// baggage still round-trips over this protocol.
	sideband := encodeCoreMeta(m)
	sidebandLen := make([]byte, 4)
	binary.BigEndian.PutUint32(sidebandLen, uint32(len(sideband)))

	body := make([]byte, 0, len(sidebandLen)+len(sideband)+len(msg.Payload))
	body = append(body, sidebandLen...)
	body = append(body, sideband...)
	body = append(body, msg.Payload...)

	frameLen := len(envelope) + len(body)
	buf := make([]byte, 4+frameLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(frameLen))
	offset := 4
	offset += copy(buf[offset:], envelope)
	copy(buf[offset:], body)

	return buf, nil
}

func (a tbinAdapter) Parse(r *bufio.Reader, maxFrameSize int) (*message.Message, error) {
	lenBytes, err := readExact(r, 4, maxFrameSize)
	if err != nil {
		return nil, err
	}
	frameLen := int(binary.BigEndian.Uint32(lenBytes))
	frame, err := readExact(r, frameLen, maxFrameSize)
	if err != nil {
		return nil, err
	}
	if len(frame) < 12 {
		return nil, ErrBadMagic
	}

	versionAndType := binary.BigEndian.Uint32(frame[0:4])
	if versionAndType&tbinVersionMask != tbinVersion1 {
		return nil, ErrBadMagic
	}
	msgType := versionAndType &^ tbinVersionMask
	offset := 4

	methodLen := int(binary.BigEndian.Uint32(frame[offset:]))
	offset += 4
	if offset+methodLen > len(frame) {
		return nil, errors.New("protocol: truncated t-bin method name")
	}
	method := string(frame[offset : offset+methodLen])
	offset += methodLen

	if offset+4 > len(frame) {
		return nil, errors.New("protocol: truncated t-bin seqid")
	}
	seqid := binary.BigEndian.Uint32(frame[offset:])
	offset += 4

	if offset+4 > len(frame) {
		return nil, errors.New("protocol: truncated t-bin sideband length")
	}
	sidebandLen := int(binary.BigEndian.Uint32(frame[offset:]))
	offset += 4
	if sidebandLen < 0 || offset+sidebandLen > len(frame) {
		return nil, ErrOversized
	}
	sideband := frame[offset : offset+sidebandLen]
	offset += sidebandLen

	meta, err := decodeCoreMeta(sideband)
	if err != nil {
		return nil, ErrMetaError
	}
	if meta.Method != "" && meta.Method != method {
		return nil, ErrSeqMismatch
	}
	meta.Method = method
	meta.CorrelationID = seqid
	meta.IsRequest = msgType == tbinTypeCall

	payload := frame[offset:]

	return &message.Message{Meta: meta, Payload: payload}, nil
}
