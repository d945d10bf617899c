package sink

import (
	"encoding/binary"
	"fmt"
	"maps"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dRender/lib/engine"
)

const (
	ChannelColor = engine.ChannelColor
	ChannelDepth = engine.ChannelDepth

	// MaxFramePixels limits width*height of a rendered frame
	MaxFramePixels = 1 << 26
)

type param struct {
	typ   engine.DataType
	value []byte
}

// object is the state of any sink object. Array and frame fields are only used
// by objects of these types.
type object struct {
	mu      sync.Mutex
	typ     engine.DataType
	subtype string
	refs    atomic.Int32

	pending   map[string]param
	committed map[string]param

	// array
	elementType engine.DataType
	dims        [3]uint64
	data        []byte
	mapped      bool

	// frame
	width, height uint32
	colorType     engine.DataType
	depthType     engine.DataType
	color, depth  []byte
	duration      time.Duration
	ready         bool
}

func newObject(t engine.DataType, subtype string) *object {
	obj := &object{
		typ:       t,
		subtype:   subtype,
		pending:   map[string]param{},
		committed: map[string]param{},
	}
	obj.refs.Store(1)
	return obj
}

// commit makes the pending parameters visible. Must be called with mu held.
func (o *object) commit() {
	o.committed = maps.Clone(o.pending)
	if o.typ == engine.TypeFrame {
		o.ready = false
	}
}

// committedUint32s decodes a committed parameter as a list of uint32
func (o *object) committedUint32s(name string, t engine.DataType) ([]uint32, bool) {
	p, ok := o.committed[name]
	if !ok || p.typ != t {
		return nil, false
	}
	out := make([]uint32, len(p.value)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(p.value[i*4:])
	}
	return out, true
}

// channelType returns the committed format of a frame channel (TypeUnknown if unset)
func (o *object) channelType(name string) engine.DataType {
	v, ok := o.committedUint32s(name, engine.TypeDataType)
	if !ok || len(v) != 1 {
		return engine.TypeUnknown
	}
	return engine.DataType(v[0])
}

// render fills the frame channels from the committed parameters. Must be called with mu held.
func (o *object) render() error {
	o.color, o.depth = nil, nil

	size, ok := o.committedUint32s("size", engine.TypeUint32Vec2)
	if !ok {
		return fmt.Errorf("frame size not set")
	}
	if uint64(size[0])*uint64(size[1]) > MaxFramePixels {
		return fmt.Errorf("frame size %dx%d exceeds %d pixels", size[0], size[1], MaxFramePixels)
	}
	o.width, o.height = size[0], size[1]
	o.colorType = o.channelType(ChannelColor)
	o.depthType = o.channelType(ChannelDepth)
	w, h := int(o.width), int(o.height)

	switch o.colorType {
	case engine.TypeUnknown:
	case engine.TypeUfixed8RGBASRGB, engine.TypeUfixed8Vec4:
		o.color = make([]byte, w*h*4)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, b := gradient(x, y, w, h)
				i := (y*w + x) * 4
				o.color[i] = uint8(r * 255)
				o.color[i+1] = uint8(g * 255)
				o.color[i+2] = uint8(b * 255)
				o.color[i+3] = 255
			}
		}
	case engine.TypeFloat32Vec4:
		o.color = make([]byte, w*h*16)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, b := gradient(x, y, w, h)
				i := (y*w + x) * 16
				putFloat32(o.color[i:], r)
				putFloat32(o.color[i+4:], g)
				putFloat32(o.color[i+8:], b)
				putFloat32(o.color[i+12:], 1)
			}
		}
	default:
		return fmt.Errorf("unsupported color format %s", o.colorType)
	}

	switch o.depthType {
	case engine.TypeUnknown:
	case engine.TypeFloat32:
		o.depth = make([]byte, w*h*4)
		for y := 0; y < h; y++ {
			v := float32(y) / float32(max(1, h))
			for x := 0; x < w; x++ {
				putFloat32(o.depth[(y*w+x)*4:], v)
			}
		}
	default:
		return fmt.Errorf("unsupported depth format %s", o.depthType)
	}
	return nil
}

// gradient is the color of pixel (x, y) in a w*h image, each component in [0, 1]
func gradient(x, y, w, h int) (float32, float32, float32) {
	fx := float32(x) / float32(max(1, w-1))
	fy := float32(y) / float32(max(1, h-1))
	return fx, fy, 0.5
}

func putFloat32(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}
