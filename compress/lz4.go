package compress

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"

	"srpcgo/message"
)

// lz4Codec wraps github.com/pierrec/lz4/v4, grounded on the pack's
// nabbar-golib, perkeep-perkeep and keploy-keploy dependency manifests.
type lz4Codec struct{}

func init() { register(lz4Codec{}) }

func (lz4Codec) Type() message.CompressType { return message.CompressLZ4 }

func (lz4Codec) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (lz4Codec) Decompress(src []byte, hintSize int) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(src))
	buf := bytes.NewBuffer(make([]byte, 0, growHint(hintSize)))
	if _, err := io.Copy(buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
