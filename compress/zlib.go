package compress

import (
	"bytes"
	"compress/zlib"
	"io"

	"srpcgo/message"
)

// zlibCodec uses the standard library's zlib implementation; see the note
// on gzipCodec above — the same reasoning applies.
type zlibCodec struct{}

func init() { register(zlibCodec{}) }

func (zlibCodec) Type() message.CompressType { return message.CompressZlib }

func (zlibCodec) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (zlibCodec) Decompress(src []byte, hintSize int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	buf := bytes.NewBuffer(make([]byte, 0, growHint(hintSize)))
	if _, err := io.Copy(buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
