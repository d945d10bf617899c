package client

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ValentinKolb/dRender/lib/engine"
	"github.com/ValentinKolb/dRender/lib/engine/sink"
	"github.com/ValentinKolb/dRender/lib/registry"
	"github.com/ValentinKolb/dRender/rpc/common"
	"github.com/ValentinKolb/dRender/rpc/server"
	"github.com/ValentinKolb/dRender/rpc/transport/tcp"
)

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// startServer runs a sink server on a loopback port until the test ends
func startServer(t *testing.T, config common.ServerConfig) string {
	t.Helper()
	config.Library = sink.LibraryName
	config.Transport.Type = "tcp"
	config.Transport.Endpoint = "127.0.0.1:0"

	s, err := server.NewRPCServer(config, tcp.NewTCPServerTransport())
	if err != nil {
		t.Fatalf("NewRPCServer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx) }()

	select {
	case <-s.Ready():
	case err := <-errCh:
		t.Fatalf("Serve: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not become ready")
	}

	t.Cleanup(func() {
		cancel()
		if err := <-errCh; err != nil {
			t.Errorf("Serve returned %v", err)
		}
	})
	return s.Addr().String()
}

func connect(t *testing.T, addr string, disableCompression bool) *Client {
	t.Helper()
	config := common.ClientConfig{
		Transport:          common.TransportConfig{Type: "tcp", Endpoint: addr},
		TimeoutSecond:      5,
		DisableCompression: disableCompression,
	}
	c, err := NewClient(config, tcp.NewTCPClientTransport())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func f32(v float32) []byte {
	return binary.LittleEndian.AppendUint32(nil, math.Float32bits(v))
}

func u32s(values ...uint32) []byte {
	b := make([]byte, 0, 4*len(values))
	for _, v := range values {
		b = binary.LittleEndian.AppendUint32(b, v)
	}
	return b
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestSession(t *testing.T) {
	addr := startServer(t, common.ServerConfig{})
	c := connect(t, addr, false)

	dev, err := c.NewDevice("default")
	must(t, err)
	if dev != 1 {
		t.Fatalf("device handle = %d, want 1", dev)
	}
	if f := c.ServerFeatures(); !f.Lossy || !f.Lossless {
		t.Errorf("server features = %s", f)
	}

	must(t, c.NewObject(dev, 10, engine.TypeGeometry, "triangle"))
	must(t, c.SetParam(dev, 10, "radius", engine.TypeFloat32, f32(1.5)))
	must(t, c.CommitParams(dev, 10))

	// the echo of the subtype is checked by the client
	info, err := c.GetObjectInfo(dev, engine.TypeGeometry, "triangle", "description", engine.TypeString)
	must(t, err)
	if info != "sink triangle geometry" {
		t.Errorf("description = %v", info)
	}

	t.Run("Subtypes", func(t *testing.T) {
		list, err := c.GetObjectSubtypes(dev, engine.TypeRenderer)
		must(t, err)
		if len(list) != 1 || list[0] != "default" {
			t.Errorf("renderer subtypes = %v", list)
		}
	})

	t.Run("ParameterInfo", func(t *testing.T) {
		v, err := c.GetParameterInfo(dev, engine.TypeGeometry, "triangle", "vertex.position", engine.TypeArray1D, "required", engine.TypeBool)
		must(t, err)
		if !bytes.Equal(v.([]byte), []byte{1}) {
			t.Errorf("required = %v", v)
		}

		v, err = c.GetParameterInfo(dev, engine.TypeGeometry, "triangle", "unknown", engine.TypeFloat32, "description", engine.TypeString)
		must(t, err)
		if v != nil {
			t.Errorf("expected no info, got %v", v)
		}
	})

	t.Run("Properties", func(t *testing.T) {
		value, ok, err := c.GetProperty(dev, dev, "version", engine.TypeInt32, engine.Wait)
		must(t, err)
		if !ok || int32(binary.LittleEndian.Uint32(value)) != sink.Version {
			t.Errorf("version = %v (found %t)", value, ok)
		}

		list, ok, err := c.GetStringListProperty(dev, dev, "extension", engine.Wait)
		must(t, err)
		if !ok || len(list) != 0 {
			t.Errorf("extension = %v (found %t)", list, ok)
		}

		_, ok, err = c.GetProperty(dev, 10, "missing", engine.TypeFloat32, engine.NoWait)
		must(t, err)
		if ok {
			t.Errorf("missing property reported as found")
		}
	})

	t.Run("Arrays", func(t *testing.T) {
		must(t, c.NewArray(dev, 20, engine.TypeArray1D, engine.TypeUint32, 3, 0, 0, u32s(1, 2, 3)))

		data, err := c.MapArray(dev, 20)
		must(t, err)
		if !bytes.Equal(data, u32s(1, 2, 3)) {
			t.Errorf("mapped = %v", data)
		}
		must(t, c.UnmapArray(dev, 20, u32s(7, 8, 9)))

		data, err = c.MapArray(dev, 20)
		must(t, err)
		if !bytes.Equal(data, u32s(7, 8, 9)) {
			t.Errorf("mapped after update = %v", data)
		}
		must(t, c.UnmapArray(dev, 20, nil))

		if err := c.NewArray(dev, 21, engine.TypeArray1D, engine.TypeUint32, 3, 0, 0, u32s(1)); err == nil {
			t.Errorf("expected error for short array data")
		}
	})

	t.Run("ObjectArrays", func(t *testing.T) {
		must(t, c.NewObject(dev, 30, engine.TypeSurface, ""))
		must(t, c.SetObjectParam(dev, 30, "geometry", engine.TypeGeometry, 10))
		must(t, c.CommitParams(dev, 30))

		handles := binary.LittleEndian.AppendUint64(nil, 30)
		must(t, c.NewArray(dev, 31, engine.TypeArray1D, engine.TypeSurface, 1, 0, 0, handles))

		data, err := c.MapArray(dev, 31)
		must(t, err)
		if len(data) != 8 || binary.LittleEndian.Uint64(data) == 0 {
			t.Errorf("object array = %v, want a local reference", data)
		}
		must(t, c.UnmapArray(dev, 31, nil))
	})

	t.Run("Parameters", func(t *testing.T) {
		must(t, c.SetStringParam(dev, 10, "name", "tri"))
		must(t, c.UnsetParam(dev, 10, "name"))
		must(t, c.UnsetAllParams(dev, 10))
		must(t, c.Retain(dev, 10))
		must(t, c.Release(dev, 10))

		if err := c.SetParam(dev, 10, "radius", engine.TypeFloat32, []byte{1}); err == nil {
			t.Errorf("expected error for a short value")
		}
		if err := c.SetParam(dev, 10, "world", engine.TypeWorld, make([]byte, 8)); err == nil {
			t.Errorf("expected error for an object type")
		}
	})
}

func TestRenderFrame(t *testing.T) {
	tests := []struct {
		name        string
		disabled    bool
		colorType   engine.DataType
		wantColor   string
		wantDepth   string
		colorPixels int
	}{
		{"compressed", false, engine.TypeUfixed8RGBASRGB, "jpeg", "snappy", 4},
		{"client without codecs", true, engine.TypeUfixed8RGBASRGB, "", "", 4},
		{"float color", false, engine.TypeFloat32Vec4, "", "snappy", 16},
	}

	const w, h = 64, 32

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := startServer(t, common.ServerConfig{})
			c := connect(t, addr, tt.disabled)

			dev, err := c.NewDevice("sink")
			must(t, err)

			must(t, c.NewObject(dev, 5, engine.TypeFrame, ""))
			must(t, c.SetParam(dev, 5, "size", engine.TypeUint32Vec2, u32s(w, h)))
			must(t, c.SetParam(dev, 5, engine.ChannelColor, engine.TypeDataType, u32s(uint32(tt.colorType))))
			must(t, c.SetParam(dev, 5, engine.ChannelDepth, engine.TypeDataType, u32s(uint32(engine.TypeFloat32))))
			must(t, c.CommitParams(dev, 5))

			frame, err := c.RenderFrame(dev, 5)
			must(t, err)
			if frame.Color == nil || frame.Depth == nil {
				t.Fatalf("missing channels: %+v", frame)
			}

			if frame.Color.Codec != tt.wantColor || frame.Depth.Codec != tt.wantDepth {
				t.Errorf("codecs = (%q, %q), want (%q, %q)", frame.Color.Codec, frame.Depth.Codec, tt.wantColor, tt.wantDepth)
			}
			if len(frame.Color.Data) != w*h*tt.colorPixels {
				t.Errorf("color has %d bytes", len(frame.Color.Data))
			}
			if len(frame.Depth.Data) != w*h*4 {
				t.Errorf("depth has %d bytes", len(frame.Depth.Data))
			}

			// the depth ramp is lossless
			last := frame.Depth.Data[len(frame.Depth.Data)-4:]
			if got := math.Float32frombits(binary.LittleEndian.Uint32(last)); got != float32(h-1)/h {
				t.Errorf("last depth = %v, want %v", got, float32(h-1)/h)
			}

			must(t, c.FrameReady(dev, 5, engine.Wait))
			v, ok, err := c.GetProperty(dev, 5, "duration", engine.TypeFloat32, engine.Wait)
			must(t, err)
			if !ok || math.Float32frombits(binary.LittleEndian.Uint32(v)) < 0 {
				t.Errorf("duration = %v (found %t)", v, ok)
			}
		})
	}

	t.Run("WithoutChannels", func(t *testing.T) {
		addr := startServer(t, common.ServerConfig{})
		c := connect(t, addr, false)

		dev, err := c.NewDevice("default")
		must(t, err)
		must(t, c.NewObject(dev, 5, engine.TypeFrame, ""))
		must(t, c.SetParam(dev, 5, "size", engine.TypeUint32Vec2, u32s(4, 4)))
		must(t, c.CommitParams(dev, 5))

		frame, err := c.RenderFrame(dev, 5)
		must(t, err)
		if frame.Color != nil || frame.Depth != nil {
			t.Errorf("expected no channels, got %+v", frame)
		}
	})
}

func TestDroppedRequestTimesOut(t *testing.T) {
	addr := startServer(t, common.ServerConfig{})
	config := common.ClientConfig{
		Transport:     common.TransportConfig{Type: "tcp", Endpoint: addr},
		TimeoutSecond: 1,
	}
	c, err := NewClient(config, tcp.NewTCPClientTransport())
	must(t, err)
	defer c.Close()

	dev, err := c.NewDevice("default")
	must(t, err)

	if _, err := c.MapArray(dev, registry.Handle(77)); !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}

	// the connection is still usable
	if _, err := c.GetObjectSubtypes(dev, engine.TypeCamera); err != nil {
		t.Errorf("GetObjectSubtypes after timeout: %v", err)
	}
}

func TestSupersededClient(t *testing.T) {
	addr := startServer(t, common.ServerConfig{})

	first := connect(t, addr, false)
	dev, err := first.NewDevice("default")
	must(t, err)
	must(t, first.NewObject(dev, 10, engine.TypeLight, "point"))

	// a new connection takes over, handles registered before stay valid
	second := connect(t, addr, false)
	deadline := time.Now().Add(5 * time.Second)
	for {
		_, ok, err := second.GetProperty(dev, dev, "version", engine.TypeInt32, engine.Wait)
		if err == nil && ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("second client not served: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	info, err := second.GetObjectInfo(dev, engine.TypeLight, "point", "description", engine.TypeString)
	must(t, err)
	if info != "sink point light" {
		t.Errorf("description = %v", info)
	}
}
