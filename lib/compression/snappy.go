package compression

import (
	"fmt"
	"math"

	"github.com/ValentinKolb/dRender/lib/engine"
	"github.com/golang/snappy"
)

type snappyCodec struct{}

// NewSnappyCodec creates the lossless depth codec
func NewSnappyCodec() Codec {
	return snappyCodec{}
}

func (snappyCodec) Name() string            { return "snappy" }
func (snappyCodec) Purpose() Purpose        { return PurposeDepth }
func (snappyCodec) Enabled(f Features) bool { return f.Lossless }
func (snappyCodec) Accepts(format engine.DataType) bool {
	return format == engine.TypeFloat32
}

func (c snappyCodec) Compress(data []byte, _, _ uint32, format engine.DataType) ([]byte, error) {
	if !c.Accepts(format) {
		return nil, fmt.Errorf("snappy: unsupported format %s", format)
	}
	return snappy.Encode(nil, data), nil
}

func (snappyCodec) MaxCompressedSize(width, height uint32, format engine.DataType) uint64 {
	n := uint64(width) * uint64(height) * engine.SizeOf(format)
	if n > math.MaxInt32 {
		// beyond the block size snappy supports, no bound
		return math.MaxUint64
	}
	return uint64(snappy.MaxEncodedLen(int(n)))
}

func (snappyCodec) Decompress(data []byte, width, height uint32, format engine.DataType) ([]byte, error) {
	n, err := snappy.DecodedLen(data)
	if err != nil {
		return nil, fmt.Errorf("snappy: %w", err)
	}
	if want := uint64(width) * uint64(height) * engine.SizeOf(format); uint64(n) != want {
		return nil, fmt.Errorf("snappy: decoded length %d, expected %d", n, want)
	}
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("snappy: %w", err)
	}
	return out, nil
}
