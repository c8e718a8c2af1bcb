package protocol

import (
	"bufio"
	"encoding/binary"

	"srpcgo/message"
)

// B-bin. Fixed 12-byte prefix, big-endian:
//
//	4B magic "PRPC" | 4B metaLen (BE) | 4B bodyLen (BE) | meta (schema-A) | body
//
// Meta carries data type, compress type and correlation id inline (B-bin's
// header has no dedicated slots for them, unlike S-bin).
const (
	bbinMagic      = "PRPC"
	bbinHeaderSize = 12
)

type bbinAdapter struct{}

func init() { register("b-bin", func() Adapter { return bbinAdapter{} }) }

func (bbinAdapter) Name() string { return "b-bin" }
func (bbinAdapter) RequiresCorrelation() bool { return true }

func (bbinAdapter) Frame(msg *message.Message) ([]byte, error) {
	metaBytes := encodeCoreMeta(msg.Meta)
	buf := make([]byte, bbinHeaderSize+len(metaBytes)+len(msg.Payload))

	copy(buf[0:4], bbinMagic)
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(metaBytes)))
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(msg.Payload)))
	copy(buf[12:12+len(metaBytes)], metaBytes)
	copy(buf[12+len(metaBytes):], msg.Payload)

	return buf, nil
}

func (bbinAdapter) Parse(r *bufio.Reader, maxFrameSize int) (*message.Message, error) {
	header, err := readExact(r, bbinHeaderSize, maxFrameSize)
	if err != nil {
		return nil, err
	}
	if string(header[0:4]) != bbinMagic {
		return nil, ErrBadMagic
	}
	metaLen := int(binary.BigEndian.Uint32(header[4:8]))
	bodyLen := int(binary.BigEndian.Uint32(header[8:12]))

	metaBytes, err := readExact(r, metaLen, maxFrameSize)
	if err != nil {
		return nil, err
	}
	payload, err := readExact(r, bodyLen, maxFrameSize)
	if err != nil {
		return nil, err
	}

	meta, err := decodeCoreMeta(metaBytes)
	if err != nil {
		return nil, ErrMetaError
	}

	return &message.Message{Meta: meta, Payload: payload}, nil
}
