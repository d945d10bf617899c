package testing

import (
	"encoding/binary"
	"math"
	"slices"
	"sync"
	"testing"

	"github.com/ValentinKolb/dRender/lib/engine"
)

// DeviceFactory creates a new device that reports to status
type DeviceFactory func(status engine.StatusFunc) engine.Device

// RunDeviceTests runs the conformance suite for a Device implementation
func RunDeviceTests(t *testing.T, name string, factory DeviceFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("ObjectLifecycle", func(t *testing.T) {
			testObjectLifecycle(t, factory)
		})

		t.Run("Arrays", func(t *testing.T) {
			testArrays(t, factory)
		})

		t.Run("Parameters", func(t *testing.T) {
			testParameters(t, factory)
		})

		t.Run("Frame", func(t *testing.T) {
			testFrame(t, factory)
		})

		t.Run("Properties", func(t *testing.T) {
			testProperties(t, factory)
		})

		t.Run("Introspection", func(t *testing.T) {
			testIntrospection(t, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// statusRecorder collects all reported diagnostics
type statusRecorder struct {
	mu       sync.Mutex
	messages []string
	errors   int
}

func (r *statusRecorder) status(sev engine.Severity, _ engine.StatusCode, _ engine.Object, _ engine.DataType, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, sev.String()+": "+msg)
	if sev <= engine.SeverityError {
		r.errors++
	}
}

func (r *statusRecorder) errorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errors
}

func newDevice(factory DeviceFactory) (engine.Device, *statusRecorder) {
	rec := &statusRecorder{}
	return factory(rec.status), rec
}

func u32s(values ...uint32) []byte {
	b := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(b[i*4:], v)
	}
	return b
}

func f32(v float32) []byte {
	return u32s(math.Float32bits(v))
}

func handleBytes(o engine.Object) []byte {
	b := make([]byte, engine.ObjectHandleSize)
	binary.LittleEndian.PutUint64(b, uint64(o))
	return b
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testObjectLifecycle(t *testing.T, factory DeviceFactory) {
	dev, rec := newDevice(factory)

	if dev.Handle() == 0 {
		t.Fatalf("device handle must not be null")
	}

	a := dev.NewObject(engine.TypeGeometry, "triangle")
	b := dev.NewObject(engine.TypeGeometry, "sphere")
	if a == 0 || b == 0 || a == b || a == dev.Handle() {
		t.Fatalf("expected distinct non null handles, got %d and %d", a, b)
	}

	// an extra reference keeps the object alive after one release
	dev.Retain(a)
	dev.Release(a)
	dev.CommitParameters(a)
	if n := rec.errorCount(); n != 0 {
		t.Fatalf("unexpected errors: %v", rec.messages)
	}

	dev.Release(a)
	dev.CommitParameters(a)
	if rec.errorCount() == 0 {
		t.Errorf("expected an error when using a released object")
	}

	if o := dev.NewObject(engine.TypeFloat32, ""); o != 0 {
		t.Errorf("expected null object for non object type, got %d", o)
	}
}

func testArrays(t *testing.T, factory DeviceFactory) {
	dev, rec := newDevice(factory)

	tests := []struct {
		name       string
		arrayType  engine.DataType
		elemType   engine.DataType
		n1, n2, n3 uint64
		wantBytes  int
	}{
		{"1D float32", engine.TypeArray1D, engine.TypeFloat32, 4, 0, 0, 16},
		{"2D uint8", engine.TypeArray2D, engine.TypeUint8, 2, 3, 0, 6},
		{"3D vec3", engine.TypeArray3D, engine.TypeFloat32Vec3, 2, 2, 2, 96},
		{"objects", engine.TypeArray1D, engine.TypeGeometry, 3, 0, 0, 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arr := dev.NewArray(tt.arrayType, tt.elemType, tt.n1, tt.n2, tt.n3)
			if arr == 0 {
				t.Fatalf("NewArray returned null")
			}

			data := dev.MapArray(arr)
			if len(data) != tt.wantBytes {
				t.Fatalf("mapped %d bytes, want %d", len(data), tt.wantBytes)
			}
			for i := range data {
				data[i] = byte(i + 1)
			}
			dev.UnmapArray(arr)

			again := dev.MapArray(arr)
			if len(again) != tt.wantBytes || again[tt.wantBytes-1] != byte(tt.wantBytes) {
				t.Errorf("array contents were not kept")
			}
			dev.UnmapArray(arr)
		})
	}

	if n := rec.errorCount(); n != 0 {
		t.Fatalf("unexpected errors: %v", rec.messages)
	}

	if arr := dev.NewArray(engine.TypeArray1D, engine.TypeString, 4, 0, 0); arr != 0 {
		t.Errorf("expected null array for variable size element type")
	}
}

func testParameters(t *testing.T, factory DeviceFactory) {
	dev, rec := newDevice(factory)

	geom := dev.NewObject(engine.TypeGeometry, "sphere")
	surface := dev.NewObject(engine.TypeSurface, "")

	dev.SetParameter(geom, "radius", engine.TypeFloat32, f32(0.5))
	dev.SetParameter(geom, "name", engine.TypeString, []byte("ball"))
	dev.SetParameter(surface, "geometry", engine.TypeGeometry, handleBytes(geom))
	dev.UnsetParameter(geom, "name")
	dev.CommitParameters(geom)
	dev.UnsetAllParameters(surface)
	dev.CommitParameters(surface)

	if n := rec.errorCount(); n != 0 {
		t.Fatalf("unexpected errors: %v", rec.messages)
	}

	dev.SetParameter(geom, "radius", engine.TypeFloat32, []byte{1, 2})
	if rec.errorCount() == 0 {
		t.Errorf("expected an error for a value of wrong size")
	}
}

func testFrame(t *testing.T, factory DeviceFactory) {
	dev, rec := newDevice(factory)

	frame := dev.NewObject(engine.TypeFrame, "")
	dev.SetParameter(frame, "size", engine.TypeUint32Vec2, u32s(4, 2))
	dev.SetParameter(frame, "channel.color", engine.TypeDataType, u32s(uint32(engine.TypeUfixed8RGBASRGB)))
	dev.SetParameter(frame, "channel.depth", engine.TypeDataType, u32s(uint32(engine.TypeFloat32)))
	dev.CommitParameters(frame)

	dev.RenderFrame(frame)
	if !dev.FrameReady(frame, engine.Wait) {
		t.Fatalf("frame not ready after waiting")
	}

	color := dev.MapFrame(frame, "channel.color")
	if color.Width != 4 || color.Height != 2 || color.Type != engine.TypeUfixed8RGBASRGB || len(color.Data) != 32 {
		t.Errorf("unexpected color channel: %dx%d %s %d bytes", color.Width, color.Height, color.Type, len(color.Data))
	}
	dev.UnmapFrame(frame, "channel.color")

	depth := dev.MapFrame(frame, "channel.depth")
	if depth.Type != engine.TypeFloat32 || len(depth.Data) != 32 {
		t.Errorf("unexpected depth channel: %s %d bytes", depth.Type, len(depth.Data))
	}
	dev.UnmapFrame(frame, "channel.depth")

	if n := rec.errorCount(); n != 0 {
		t.Fatalf("unexpected errors: %v", rec.messages)
	}

	// without a depth format the channel is absent
	dev.UnsetParameter(frame, "channel.depth")
	dev.CommitParameters(frame)
	dev.RenderFrame(frame)
	if ch := dev.MapFrame(frame, "channel.depth"); ch.Type != engine.TypeUnknown || len(ch.Data) != 0 {
		t.Errorf("expected no depth channel, got %s", ch.Type)
	}
}

func testProperties(t *testing.T, factory DeviceFactory) {
	dev, _ := newDevice(factory)

	frame := dev.NewObject(engine.TypeFrame, "")
	dev.SetParameter(frame, "size", engine.TypeUint32Vec2, u32s(1, 1))
	dev.CommitParameters(frame)
	dev.RenderFrame(frame)
	dev.FrameReady(frame, engine.Wait)

	buf := make([]byte, 4)
	if !dev.GetProperty(frame, "duration", engine.TypeFloat32, buf, engine.Wait) {
		t.Errorf("expected frame duration property")
	}
	if dev.GetProperty(frame, "no-such-property", engine.TypeFloat32, buf, engine.Wait) {
		t.Errorf("unexpected property found")
	}

	ext, ok := dev.GetStringListProperty(dev.Handle(), "extension", engine.Wait)
	if !ok {
		t.Errorf("expected extension property on the device")
	}
	if ext == nil {
		t.Errorf("extension list should be empty, not nil")
	}
}

func testIntrospection(t *testing.T, factory DeviceFactory) {
	dev, _ := newDevice(factory)

	geoms := dev.GetObjectSubtypes(engine.TypeGeometry)
	if !slices.Contains(geoms, "triangle") {
		t.Errorf("expected triangle geometry subtype, got %v", geoms)
	}

	info := dev.GetObjectInfo(engine.TypeGeometry, "triangle", "parameter", engine.TypeParameterList)
	params, ok := info.([]engine.Parameter)
	if !ok || len(params) == 0 {
		t.Fatalf("expected parameter list, got %T", info)
	}

	if desc, ok := dev.GetObjectInfo(engine.TypeGeometry, "triangle", "description", engine.TypeString).(string); !ok || desc == "" {
		t.Errorf("expected description string")
	}

	if v := dev.GetObjectInfo(engine.TypeGeometry, "triangle", "no-such-info", engine.TypeString); v != nil {
		t.Errorf("expected nil for unknown info, got %v", v)
	}

	req, ok := dev.GetParameterInfo(engine.TypeGeometry, "triangle", "vertex.position", engine.TypeArray1D, "required", engine.TypeBool).([]byte)
	if !ok || len(req) != 1 || req[0] != 1 {
		t.Errorf("expected vertex.position to be required, got %v", req)
	}

	if v := dev.GetParameterInfo(engine.TypeGeometry, "triangle", "no-such-param", engine.TypeFloat32, "description", engine.TypeString); v != nil {
		t.Errorf("expected nil for unknown parameter, got %v", v)
	}
}
