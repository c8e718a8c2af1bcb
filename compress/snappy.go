package compress

import (
	"github.com/golang/snappy"

	"srpcgo/message"
)

// snappyCodec wraps github.com/golang/snappy, grounded on the pack's
// perkeep-perkeep, keploy-keploy and nabbar-golib dependency manifests.
type snappyCodec struct{}

func init() { register(snappyCodec{}) }

func (snappyCodec) Type() message.CompressType { return message.CompressSnappy }

func (snappyCodec) Compress(src []byte) ([]byte, error) {
	return snappy.Encode(nil, src), nil
}

func (snappyCodec) Decompress(src []byte, hintSize int) ([]byte, error) {
	return snappy.Decode(nil, src)
}
