package compression

import (
	"fmt"

	"github.com/ValentinKolb/dRender/lib/engine"
)

// --------------------------------------------------------------------------
// Features
// --------------------------------------------------------------------------

// Features are the codec capabilities of one side of a connection
type Features struct {
	// Lossy is the JPEG color codec
	Lossy bool
	// Lossless is the Snappy depth codec
	Lossless bool
}

// Intersect returns the features supported by both sides
func (f Features) Intersect(other Features) Features {
	return Features{
		Lossy:    f.Lossy && other.Lossy,
		Lossless: f.Lossless && other.Lossless,
	}
}

func (f Features) String() string {
	return fmt.Sprintf("jpeg=%t snappy=%t", f.Lossy, f.Lossless)
}

// Available returns the codecs this build supports. Both are pure Go and always present,
// disabled reports no support at all (used to force raw replies).
func Available(disabled bool) Features {
	if disabled {
		return Features{}
	}
	return Features{Lossy: true, Lossless: true}
}

// --------------------------------------------------------------------------
// Codec
// --------------------------------------------------------------------------

// Purpose is the frame channel a codec is used for
type Purpose int

const (
	PurposeColor Purpose = iota
	PurposeDepth
)

func (p Purpose) String() string {
	switch p {
	case PurposeColor:
		return "color"
	case PurposeDepth:
		return "depth"
	default:
		return "unknown"
	}
}

// Codec compresses frame channels of a fixed set of pixel formats
type Codec interface {
	// Name is the codec name used in logs and metrics
	Name() string
	// Purpose is the channel the codec is meant for
	Purpose() Purpose
	// Enabled reports whether the codec is part of the given features
	Enabled(f Features) bool
	// Accepts reports whether the codec can encode the pixel format
	Accepts(format engine.DataType) bool
	// Compress encodes a width*height image of the accepted format
	Compress(data []byte, width, height uint32, format engine.DataType) ([]byte, error)
	// Decompress restores the raw channel bytes
	Decompress(data []byte, width, height uint32, format engine.DataType) ([]byte, error)
	// MaxCompressedSize bounds the output of Compress for a width*height image
	MaxCompressedSize(width, height uint32, format engine.DataType) uint64
}

var (
	jpegDefault   Codec = NewJPEGCodec(DefaultJPEGQuality)
	snappyDefault Codec = NewSnappyCodec()
)

// Select returns the codec for a channel or nil if it must be sent raw
func Select(purpose Purpose, format engine.DataType, client, server Features) Codec {
	return SelectFrom([]Codec{jpegDefault, snappyDefault}, purpose, format, client, server)
}

// SelectFrom is Select over an explicit codec list
func SelectFrom(codecs []Codec, purpose Purpose, format engine.DataType, client, server Features) Codec {
	both := client.Intersect(server)
	for _, c := range codecs {
		if c.Purpose() == purpose && c.Enabled(both) && c.Accepts(format) {
			return c
		}
	}
	return nil
}
