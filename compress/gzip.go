package compress

import (
	"bytes"
	"compress/gzip"
	"io"

	"srpcgo/message"
)

// gzipCodec uses the standard library's gzip implementation. No pack
// dependency improves on compress/gzip for a pure byte-in/byte-out
// transform — see DESIGN.md.
type gzipCodec struct{}

func init() { register(gzipCodec{}) }

func (gzipCodec) Type() message.CompressType { return message.CompressGzip }

func (gzipCodec) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gzipCodec) Decompress(src []byte, hintSize int) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(src))
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

func growHint(hintSize int) int {
	if hintSize <= 0 {
		return 256
	}
	return hintSize
}
