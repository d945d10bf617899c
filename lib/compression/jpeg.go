package compression

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/ValentinKolb/dRender/lib/engine"
)

// DefaultJPEGQuality is the JPEG quality used if none is configured
const DefaultJPEGQuality = 80

type jpegCodec struct {
	quality int
}

// NewJPEGCodec creates the lossy color codec. quality is clamped to [1, 100].
func NewJPEGCodec(quality int) Codec {
	return &jpegCodec{quality: min(100, max(1, quality))}
}

func (c *jpegCodec) Name() string            { return "jpeg" }
func (c *jpegCodec) Purpose() Purpose        { return PurposeColor }
func (c *jpegCodec) Enabled(f Features) bool { return f.Lossy }
func (c *jpegCodec) Accepts(format engine.DataType) bool {
	return format == engine.TypeUfixed8RGBASRGB || format == engine.TypeUfixed8Vec4
}

func (c *jpegCodec) Compress(data []byte, width, height uint32, format engine.DataType) ([]byte, error) {
	if !c.Accepts(format) {
		return nil, fmt.Errorf("jpeg: unsupported format %s", format)
	}
	if uint64(len(data)) != uint64(width)*uint64(height)*4 {
		return nil, fmt.Errorf("jpeg: %d bytes do not match %dx%d RGBA", len(data), width, height)
	}

	// the alpha channel is dropped by the encoder
	img := &image.RGBA{
		Pix:    data,
		Stride: int(width) * 4,
		Rect:   image.Rect(0, 0, int(width), int(height)),
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.quality}); err != nil {
		return nil, fmt.Errorf("jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// MaxCompressedSize follows the worst case of a 4:2:0 baseline encoder: the image padded
// to whole 16x16 blocks, 3 bytes per pixel, plus room for headers and tables.
func (c *jpegCodec) MaxCompressedSize(width, height uint32, _ engine.DataType) uint64 {
	pad := func(v uint32) uint64 { return (uint64(v) + 15) &^ 15 }
	return pad(width)*pad(height)*3 + 2048
}

func (c *jpegCodec) Decompress(data []byte, width, height uint32, _ engine.DataType) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("jpeg: %w", err)
	}
	b := img.Bounds()
	if b.Dx() != int(width) || b.Dy() != int(height) {
		return nil, fmt.Errorf("jpeg: decoded %dx%d, expected %dx%d", b.Dx(), b.Dy(), width, height)
	}

	out := make([]byte, 0, int(width)*int(height)*4)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			out = append(out, uint8(r>>8), uint8(g>>8), uint8(bl>>8), 255)
		}
	}
	return out, nil
}
