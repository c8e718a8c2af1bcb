package protocol

import (
	"bufio"
	"encoding/binary"
	"strings"

	"srpcgo/message"
)

// Tr-bin. Fixed 16-byte prefix:
//
//	2B magic | 1B version | 1B frameType | 4B totalLen (BE) |
//	4B headerLen (BE) | 4B metaLen (BE) |
//	header (schema-A, routing fields) | meta (schema-A, module-data only) | payload
//
// totalLen counts the bytes after the 16-byte prefix (header + meta +
// payload).
//
// The method name travels on the wire with a "/service/method" prefix that
// is trimmed back to the bare method name on receipt.
const (
	trbinMagic0    byte = 0x74 // 't'
	trbinMagic1    byte = 0x72 // 'r'
	trbinVersion   byte = 0x01
	trbinHeaderLen      = 16
)

type trbinAdapter struct{}

func init() { register("tr-bin", func() Adapter { return trbinAdapter{} }) }

func (trbinAdapter) Name() string { return "tr-bin" }
func (trbinAdapter) RequiresCorrelation() bool { return true }

func (trbinAdapter) Frame(msg *message.Message) ([]byte, error) {
	m := msg.Meta.Clone()
	m.Method = "/" + m.Service + "/" + m.Method
	routing := *m
	routing.ModuleData = nil
	headerBytes := encodeCoreMeta(&routing)
	metaBytes := message.EncodeModuleData(m.ModuleData)

	totalLen := trbinHeaderLen + len(headerBytes) + len(metaBytes) + len(msg.Payload)
	buf := make([]byte, totalLen)

	buf[0] = trbinMagic0
	buf[1] = trbinMagic1
	buf[2] = trbinVersion
	buf[3] = 0 // frame type: 0 = standard
	binary.BigEndian.PutUint32(buf[4:8], uint32(totalLen-trbinHeaderLen))
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(headerBytes)))
	binary.BigEndian.PutUint32(buf[12:16], uint32(len(metaBytes)))

	offset := trbinHeaderLen
	offset += copy(buf[offset:], headerBytes)
	offset += copy(buf[offset:], metaBytes)
	copy(buf[offset:], msg.Payload)

	return buf, nil
}

func (trbinAdapter) Parse(r *bufio.Reader, maxFrameSize int) (*message.Message, error) {
	header, err := readExact(r, trbinHeaderLen, maxFrameSize)
	if err != nil {
		return nil, err
	}
	if header[0] != trbinMagic0 || header[1] != trbinMagic1 || header[2] != trbinVersion {
		return nil, ErrBadMagic
	}
	headerLen := int(binary.BigEndian.Uint32(header[8:12]))
	metaLen := int(binary.BigEndian.Uint32(header[12:16]))

	headerBytes, err := readExact(r, headerLen, maxFrameSize)
	if err != nil {
		return nil, err
	}
	metaBytes, err := readExact(r, metaLen, maxFrameSize)
	if err != nil {
		return nil, err
	}

	routing, err := decodeCoreMeta(headerBytes)
	if err != nil {
		return nil, ErrMetaError
	}
	md, err := message.DecodeModuleData(metaBytes)
	if err != nil {
		return nil, ErrMetaError
	}
	routing.ModuleData = md

	// trim_method_prefix: "/service/method" -> "method"
	if idx := strings.LastIndex(routing.Method, "/"); idx >= 0 {
		routing.Method = routing.Method[idx+1:]
	}

	// the rest of the frame is the payload: its length is the prefix's
	// totalLen minus the header and meta sections already read.
	totalLen := int(binary.BigEndian.Uint32(header[4:8]))
	payloadLen := totalLen - headerLen - metaLen
	payload, err := readExact(r, payloadLen, maxFrameSize)
	if err != nil {
		return nil, err
	}

	return &message.Message{Meta: routing, Payload: payload}, nil
}
