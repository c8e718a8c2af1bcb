package protocol

import (
	"encoding/binary"
	"errors"

	"srpcgo/message"
)

// encodeCoreMeta schema-A-encodes the protocol-agnostic fields of a Meta
// (service, method, data type, compress type, status, status text,
// correlation id, module-data) into a flat byte run. Protocols whose fixed
// header already has dedicated dataType/compressType slots (S-bin)
// overwrite the decoded values with the header's copy, so the two never
// disagree; the others (B-bin, T-bin, Tr-bin), which have no such header
// slots, rely on this copy alone.
//
// Layout, all integers big-endian:
//
//	2B serviceLen | service | 2B methodLen | method | 1B dataType | 1B compressType |
//	1B isRequest | 4B status | 2B statusErrLen | statusErr |
//	4B correlationID | moduleData (message.EncodeModuleData layout)
func encodeCoreMeta(m *message.Meta) []byte {
	if m == nil {
		m = &message.Meta{}
	}
	mdBytes := message.EncodeModuleData(m.ModuleData)
	total := 2 + len(m.Service) + 2 + len(m.Method) + 1 + 1 + 1 + 4 + 2 + len(m.StatusErr) + 4 + len(mdBytes)
	buf := make([]byte, total)
	offset := 0

	binary.BigEndian.PutUint16(buf[offset:], uint16(len(m.Service)))
	offset += 2
	offset += copy(buf[offset:], m.Service)

	binary.BigEndian.PutUint16(buf[offset:], uint16(len(m.Method)))
	offset += 2
	offset += copy(buf[offset:], m.Method)

	buf[offset] = byte(m.DataType)
	offset++
	buf[offset] = byte(m.CompressType)
	offset++
	if m.IsRequest {
		buf[offset] = 1
	}
	offset++

	binary.BigEndian.PutUint32(buf[offset:], uint32(m.Status))
	offset += 4

	binary.BigEndian.PutUint16(buf[offset:], uint16(len(m.StatusErr)))
	offset += 2
	offset += copy(buf[offset:], m.StatusErr)

	binary.BigEndian.PutUint32(buf[offset:], m.CorrelationID)
	offset += 4

	copy(buf[offset:], mdBytes)

	return buf
}

func decodeCoreMeta(data []byte) (*message.Meta, error) {
	m := &message.Meta{}
	offset := 0

	readU16 := func() (int, error) {
		if offset+2 > len(data) {
			return 0, errors.New("protocol: truncated meta")
		}
		v := int(binary.BigEndian.Uint16(data[offset:]))
		offset += 2
		return v, nil
	}
	readStr := func(n int) (string, error) {
		if offset+n > len(data) {
			return "", errors.New("protocol: truncated meta")
		}
		s := string(data[offset : offset+n])
		offset += n
		return s, nil
	}

	svcLen, err := readU16()
	if err != nil {
		return nil, err
	}
	if m.Service, err = readStr(svcLen); err != nil {
		return nil, err
	}

	methodLen, err := readU16()
	if err != nil {
		return nil, err
	}
	if m.Method, err = readStr(methodLen); err != nil {
		return nil, err
	}

	if offset+2 > len(data) {
		return nil, errors.New("protocol: truncated meta type tags")
	}
	m.DataType = message.DataType(data[offset])
	offset++
	m.CompressType = message.CompressType(data[offset])
	offset++
	if offset >= len(data) {
		return nil, errors.New("protocol: truncated meta request flag")
	}
	m.IsRequest = data[offset] != 0
	offset++

	if offset+4 > len(data) {
		return nil, errors.New("protocol: truncated meta status")
	}
	m.Status = message.Status(binary.BigEndian.Uint32(data[offset:]))
	offset += 4

	errLen, err := readU16()
	if err != nil {
		return nil, err
	}
	if m.StatusErr, err = readStr(errLen); err != nil {
		return nil, err
	}

	if offset+4 > len(data) {
		return nil, errors.New("protocol: truncated meta correlation id")
	}
	m.CorrelationID = binary.BigEndian.Uint32(data[offset:])
	offset += 4

	md, err := message.DecodeModuleData(data[offset:])
	if err != nil {
		return nil, err
	}
	m.ModuleData = md

	return m, nil
}
