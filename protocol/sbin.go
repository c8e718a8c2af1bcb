package protocol

import (
	"bufio"
	"encoding/binary"

	"srpcgo/message"
)

// S-bin: compact binary protocol. Fixed 16-byte prefix, little-endian:
//
//	4B magic "SRPC" | 1B reserved | 1B dataType | 1B compressType | 1B reserved |
//	4B metaLen (LE) | 4B msgLen (LE) | meta (schema-A) | payload
const (
	sbinMagic      = "SRPC"
	sbinHeaderSize = 16
)

type sbinAdapter struct{}

func init() { register("s-bin", func() Adapter { return sbinAdapter{} }) }

func (sbinAdapter) Name() string { return "s-bin" }
func (sbinAdapter) RequiresCorrelation() bool { return true }

func (sbinAdapter) Frame(msg *message.Message) ([]byte, error) {
	metaBytes := encodeCoreMeta(msg.Meta)
	buf := make([]byte, sbinHeaderSize+len(metaBytes)+len(msg.Payload))

	copy(buf[0:4], sbinMagic)
	buf[4] = 0 // reserved
	buf[5] = byte(msg.Meta.DataType)
	buf[6] = byte(msg.Meta.CompressType)
	buf[7] = 0 // reserved
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(metaBytes)))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(msg.Payload)))
	copy(buf[16:16+len(metaBytes)], metaBytes)
	copy(buf[16+len(metaBytes):], msg.Payload)

	return buf, nil
}

func (sbinAdapter) Parse(r *bufio.Reader, maxFrameSize int) (*message.Message, error) {
	header, err := readExact(r, sbinHeaderSize, maxFrameSize)
	if err != nil {
		return nil, err
	}
	if string(header[0:4]) != sbinMagic {
		return nil, ErrBadMagic
	}
	dataType := message.DataType(header[5])
	compressType := message.CompressType(header[6])
	metaLen := int(binary.LittleEndian.Uint32(header[8:12]))
	msgLen := int(binary.LittleEndian.Uint32(header[12:16]))

	metaBytes, err := readExact(r, metaLen, maxFrameSize)
	if err != nil {
		return nil, err
	}
	payload, err := readExact(r, msgLen, maxFrameSize)
	if err != nil {
		return nil, err
	}

	meta, err := decodeCoreMeta(metaBytes)
	if err != nil {
		return nil, ErrMetaError
	}
	meta.DataType = dataType
	meta.CompressType = compressType

	return &message.Message{Meta: meta, Payload: payload}, nil
}
