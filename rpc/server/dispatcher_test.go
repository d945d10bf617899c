package server

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"net"
	"sync"
	"testing"

	"github.com/ValentinKolb/dRender/lib/compression"
	"github.com/ValentinKolb/dRender/lib/engine"
	"github.com/ValentinKolb/dRender/lib/engine/sink"
	"github.com/ValentinKolb/dRender/lib/registry"
	"github.com/ValentinKolb/dRender/rpc/common"
	"github.com/ValentinKolb/dRender/rpc/serializer"
	"github.com/ValentinKolb/dRender/rpc/transport"
)

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// recordingTransport hands frames directly to the handler and records all replies
type recordingTransport struct {
	mu      sync.Mutex
	handler transport.ServerHandleFunc
	sent    []transport.Frame
	ready   chan struct{}
	stop    chan struct{}
	once    sync.Once
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{ready: make(chan struct{}), stop: make(chan struct{})}
}

func (rt *recordingTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	rt.handler = handler
}

func (rt *recordingTransport) Listen(common.ServerConfig) error {
	close(rt.ready)
	<-rt.stop
	return nil
}

func (rt *recordingTransport) Ready() <-chan struct{} { return rt.ready }

func (rt *recordingTransport) Addr() net.Addr { return nil }

func (rt *recordingTransport) Send(frame transport.Frame) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	frame.Payload = append([]byte(nil), frame.Payload...)
	rt.sent = append(rt.sent, frame)
	return true
}

func (rt *recordingTransport) Stop() {
	rt.once.Do(func() { close(rt.stop) })
}

// take returns and clears the recorded replies
func (rt *recordingTransport) take() []transport.Frame {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	sent := rt.sent
	rt.sent = nil
	return sent
}

func newTestServer(t *testing.T, config common.ServerConfig) (*Server, *recordingTransport) {
	t.Helper()
	if config.Library == "" {
		config.Library = sink.LibraryName
	}
	rt := newRecordingTransport()
	s, err := NewRPCServer(config, rt)
	if err != nil {
		t.Fatalf("NewRPCServer: %v", err)
	}
	t.Cleanup(func() { _ = s.library.Close() })
	return s, rt
}

// message encodes a request with the common header followed by the body
func message(msgType common.MessageType, dev, obj registry.Handle, typ engine.DataType, subtype string, body func(w *serializer.Writer)) transport.Frame {
	w := serializer.NewWriter(64)
	w.WriteHeader(serializer.Header{Device: dev, Object: obj, Type: typ, Subtype: subtype})
	if body != nil {
		body(w)
	}
	return transport.Frame{Type: msgType, Payload: w.Bytes()}
}

func handle(t *testing.T, rt *recordingTransport, frame transport.Frame) {
	t.Helper()
	if err := rt.handler(frame); err != nil {
		t.Fatalf("handling %s: %v", frame.Type, err)
	}
}

// single asserts that exactly one reply of the given type was sent and returns a reader over it
func single(t *testing.T, rt *recordingTransport, want common.MessageType) *serializer.Reader {
	t.Helper()
	sent := rt.take()
	if len(sent) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(sent))
	}
	if sent[0].Type != want {
		t.Fatalf("expected %s reply, got %s", want, sent[0].Type)
	}
	return serializer.NewReader(sent[0].Payload)
}

func newDevice(t *testing.T, rt *recordingTransport, features compression.Features) registry.Handle {
	t.Helper()
	handle(t, rt, message(common.MsgTNewDevice, 0, 0, engine.TypeDevice, "", func(w *serializer.Writer) {
		w.WriteString("default")
		w.WriteFeatures(features)
	}))
	r := single(t, rt, common.MsgTDeviceHandle)
	h, err := r.ReadHandle()
	if err != nil {
		t.Fatalf("reading device handle: %v", err)
	}
	return h
}

func newObject(t *testing.T, rt *recordingTransport, dev, obj registry.Handle, typ engine.DataType, subtype string) {
	t.Helper()
	handle(t, rt, message(common.MsgTNewObject, dev, obj, typ, subtype, nil))
	if sent := rt.take(); len(sent) != 0 {
		t.Fatalf("NewObject must not reply, got %d frames", len(sent))
	}
}

func setParam(t *testing.T, rt *recordingTransport, dev, obj registry.Handle, name string, typ engine.DataType, value []byte) {
	t.Helper()
	handle(t, rt, message(common.MsgTSetParam, dev, obj, engine.TypeUnknown, "", func(w *serializer.Writer) {
		w.WriteString(name)
		w.WriteDataType(typ)
		w.WriteRaw(value)
	}))
}

func u32s(values ...uint32) []byte {
	b := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(b[i*4:], v)
	}
	return b
}

func u64s(values ...uint64) []byte {
	b := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(b[i*8:], v)
	}
	return b
}

var allFeatures = compression.Features{Lossy: true, Lossless: true}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestNewDevice(t *testing.T) {
	t.Run("HandlesAreSequential", func(t *testing.T) {
		_, rt := newTestServer(t, common.ServerConfig{})
		for want := registry.Handle(1); want <= 3; want++ {
			if got := newDevice(t, rt, allFeatures); got != want {
				t.Errorf("device handle = %d, want %d", got, want)
			}
		}
	})

	t.Run("Features", func(t *testing.T) {
		tests := []struct {
			name      string
			disabled  bool
			client    compression.Features
			available compression.Features
			features  compression.Features
		}{
			{"both", false, allFeatures, allFeatures, allFeatures},
			{"client lossless only", false, compression.Features{Lossless: true}, allFeatures, compression.Features{Lossless: true}},
			{"client none", false, compression.Features{}, allFeatures, compression.Features{}},
			{"server disabled", true, allFeatures, compression.Features{}, compression.Features{}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				s, rt := newTestServer(t, common.ServerConfig{DisableCompression: tt.disabled})
				handle(t, rt, message(common.MsgTNewDevice, 0, 0, engine.TypeDevice, "", func(w *serializer.Writer) {
					w.WriteString("")
					w.WriteFeatures(tt.client)
				}))
				r := single(t, rt, common.MsgTDeviceHandle)
				if _, err := r.ReadHandle(); err != nil {
					t.Fatalf("reading handle: %v", err)
				}
				got, err := r.ReadFeatures()
				if err != nil {
					t.Fatalf("reading features: %v", err)
				}
				if got != tt.available {
					t.Errorf("announced features = %s, want %s", got, tt.available)
				}
				if s.features != tt.features {
					t.Errorf("negotiated features = %s, want %s", s.features, tt.features)
				}
			})
		}
	})

	t.Run("UnknownDeviceType", func(t *testing.T) {
		s, rt := newTestServer(t, common.ServerConfig{})
		handle(t, rt, message(common.MsgTNewDevice, 0, 0, engine.TypeDevice, "", func(w *serializer.Writer) {
			w.WriteString("gpu")
			w.WriteFeatures(allFeatures)
		}))
		if sent := rt.take(); len(sent) != 0 {
			t.Errorf("expected no reply for an unsupported device, got %d", len(sent))
		}
		if s.registry.Device(1) != nil {
			t.Errorf("no device must be registered")
		}
	})
}

func TestDroppedMessages(t *testing.T) {
	s, rt := newTestServer(t, common.ServerConfig{})
	dev := newDevice(t, rt, allFeatures)

	tests := []struct {
		name  string
		frame transport.Frame
	}{
		{"unknown device", message(common.MsgTNewObject, 7, 10, engine.TypeGeometry, "sphere", nil)},
		{"null object handle", message(common.MsgTNewObject, dev, 0, engine.TypeGeometry, "sphere", nil)},
		{"unknown object", message(common.MsgTCommitParams, dev, 42, engine.TypeUnknown, "", nil)},
		{"unknown map", message(common.MsgTMapArray, dev, 42, engine.TypeUnknown, "", nil)},
		{"truncated header", transport.Frame{Type: common.MsgTCommitParams, Payload: []byte{1, 0, 0}}},
		{"unknown message type", message(common.MessageType(99), dev, 1, engine.TypeUnknown, "", nil)},
		{"reply type", message(common.MsgTDeviceHandle, dev, 1, engine.TypeUnknown, "", nil)},
		{"parameter without value", message(common.MsgTSetParam, dev, 1, engine.TypeUnknown, "", func(w *serializer.Writer) {
			w.WriteString("radius")
			w.WriteDataType(engine.TypeFloat32)
		})},
		{"parameter without size", message(common.MsgTSetParam, dev, 1, engine.TypeUnknown, "", func(w *serializer.Writer) {
			w.WriteString("list")
			w.WriteDataType(engine.TypeStringList)
		})},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handle(t, rt, tt.frame)
			if sent := rt.take(); len(sent) != 0 {
				t.Errorf("expected no reply, got %d", len(sent))
			}
			if got := s.metrics.dropped.Get(); got != uint64(i+1) {
				t.Errorf("dropped = %d, want %d", got, i+1)
			}
		})
	}

	// the connection stays usable
	if got := newDevice(t, rt, allFeatures); got != dev+1 {
		t.Errorf("device handle = %d, want %d", got, dev+1)
	}
}

func TestObjectParameters(t *testing.T) {
	s, rt := newTestServer(t, common.ServerConfig{})
	dev := newDevice(t, rt, allFeatures)

	newObject(t, rt, dev, 10, engine.TypeGeometry, "sphere")
	newObject(t, rt, dev, 11, engine.TypeSurface, "")

	ref := make([]byte, 8)
	binary.LittleEndian.PutUint64(ref, 10)
	setParam(t, rt, dev, 11, "geometry", engine.TypeGeometry, ref)
	handle(t, rt, message(common.MsgTCommitParams, dev, 11, engine.TypeUnknown, "", nil))

	// unresolved references are not forwarded
	binary.LittleEndian.PutUint64(ref, 77)
	setParam(t, rt, dev, 11, "material", engine.TypeMaterial, ref)
	if got := s.metrics.dropped.Get(); got != 1 {
		t.Errorf("dropped = %d, want 1", got)
	}

	desc := s.registry.ObjectDesc(dev, 11)
	if desc.Object == 0 || desc.Type != engine.TypeSurface {
		t.Errorf("surface not registered: %+v", desc)
	}
}

func TestRegistryGrowth(t *testing.T) {
	s, rt := newTestServer(t, common.ServerConfig{})
	dev := newDevice(t, rt, allFeatures)

	newObject(t, rt, dev, 1000, engine.TypeLight, "point")
	newObject(t, rt, dev, 5, engine.TypeLight, "spot")

	if got := s.registry.Len(dev); got < 1001 {
		t.Errorf("registry size = %d, want at least 1001", got)
	}
	for _, h := range []registry.Handle{5, 1000} {
		if desc := s.registry.ObjectDesc(dev, h); desc.Object == 0 || desc.Type != engine.TypeLight {
			t.Errorf("object %d not resolvable: %+v", h, desc)
		}
	}
}

func TestObjectArrays(t *testing.T) {
	s, rt := newTestServer(t, common.ServerConfig{})
	dev := newDevice(t, rt, allFeatures)

	newObject(t, rt, dev, 10, engine.TypeSurface, "")
	newObject(t, rt, dev, 11, engine.TypeSurface, "")

	handle(t, rt, message(common.MsgTNewArray, dev, 20, engine.TypeArray1D, "", func(w *serializer.Writer) {
		w.WriteDataType(engine.TypeSurface)
		w.WriteUint64(3)
		w.WriteUint64(0)
		w.WriteUint64(0)
		w.WriteRaw(u64s(10, 11, 99))
	}))
	if sent := rt.take(); len(sent) != 0 {
		t.Fatalf("NewArray must not reply, got %d frames", len(sent))
	}

	handle(t, rt, message(common.MsgTMapArray, dev, 20, engine.TypeUnknown, "", nil))
	r := single(t, rt, common.MsgTArrayMapped)

	h, _ := r.ReadHandle()
	size, _ := r.ReadUint64()
	data, err := r.ReadRaw(size)
	if err != nil {
		t.Fatalf("reading array data: %v", err)
	}
	if h != 20 || size != 24 {
		t.Fatalf("reply header = (%d, %d), want (20, 24)", h, size)
	}

	want := u64s(
		uint64(s.registry.ObjectDesc(dev, 10).Object),
		uint64(s.registry.ObjectDesc(dev, 11).Object),
		0, // unresolved
	)
	if !bytes.Equal(data, want) {
		t.Errorf("mapped data = %v, want %v", data, want)
	}
}

func TestArrays(t *testing.T) {
	t.Run("UnmapReplies", func(t *testing.T) {
		_, rt := newTestServer(t, common.ServerConfig{})
		dev := newDevice(t, rt, allFeatures)

		handle(t, rt, message(common.MsgTNewArray, dev, 5, engine.TypeArray1D, "", func(w *serializer.Writer) {
			w.WriteDataType(engine.TypeFloat32)
			w.WriteUint64(4)
			w.WriteUint64(0)
			w.WriteUint64(0)
		}))

		// unmapping without a previous map still acknowledges
		handle(t, rt, message(common.MsgTUnmapArray, dev, 5, engine.TypeUnknown, "", nil))
		r := single(t, rt, common.MsgTArrayUnmapped)
		if h, _ := r.ReadHandle(); h != 5 {
			t.Errorf("unmapped handle = %d, want 5", h)
		}

		// new contents are applied
		handle(t, rt, message(common.MsgTUnmapArray, dev, 5, engine.TypeUnknown, "", func(w *serializer.Writer) {
			w.WriteRaw(u32s(1, 2, 3, 4))
		}))
		single(t, rt, common.MsgTArrayUnmapped)

		handle(t, rt, message(common.MsgTMapArray, dev, 5, engine.TypeUnknown, "", nil))
		r = single(t, rt, common.MsgTArrayMapped)
		_, _ = r.ReadHandle()
		size, _ := r.ReadUint64()
		data, _ := r.ReadRaw(size)
		if !bytes.Equal(data, u32s(1, 2, 3, 4)) {
			t.Errorf("array data = %v, want %v", data, u32s(1, 2, 3, 4))
		}
	})

	t.Run("Rejected", func(t *testing.T) {
		tests := []struct {
			name     string
			typ      engine.DataType
			elemType engine.DataType
			n1       uint64
			data     []byte
		}{
			{"not an array type", engine.TypeGeometry, engine.TypeFloat32, 4, nil},
			{"exceeds frame limit", engine.TypeArray1D, engine.TypeFloat32, 1 << 20, nil},
			{"size overflow", engine.TypeArray1D, engine.TypeFloat64, math.MaxUint64, nil},
			{"short data", engine.TypeArray1D, engine.TypeFloat32, 4, u32s(1, 2)},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				s, rt := newTestServer(t, common.ServerConfig{Transport: common.TransportConfig{MaxFrameSize: 1 << 16}})
				dev := newDevice(t, rt, allFeatures)

				handle(t, rt, message(common.MsgTNewArray, dev, 5, tt.typ, "", func(w *serializer.Writer) {
					w.WriteDataType(tt.elemType)
					w.WriteUint64(tt.n1)
					w.WriteUint64(0)
					w.WriteUint64(0)
					w.WriteRaw(tt.data)
				}))
				if desc := s.registry.ObjectDesc(dev, 5); desc.Object != 0 {
					t.Errorf("array must not be registered")
				}
			})
		}
	})
}

func TestGetProperty(t *testing.T) {
	type reply struct {
		ok    uint32
		value []byte
		list  []string
	}

	tests := []struct {
		name string
		prop string
		typ  engine.DataType
		size uint64
		want reply
	}{
		{"version", "version", engine.TypeInt32, 4, reply{ok: 1, value: u32s(uint32(sink.Version))}},
		{"unknown property", "missing", engine.TypeInt32, 4, reply{ok: 0, value: make([]byte, 4)}},
		{"empty string list", "extension", engine.TypeStringList, 0, reply{ok: 1, list: []string{}}},
		{"failed string list", "missing", engine.TypeStringList, 0, reply{ok: 0, list: []string{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, rt := newTestServer(t, common.ServerConfig{})
			dev := newDevice(t, rt, allFeatures)

			// the device is its own object
			handle(t, rt, message(common.MsgTGetProperty, dev, dev, engine.TypeUnknown, "", func(w *serializer.Writer) {
				w.WriteString(tt.prop)
				w.WriteDataType(tt.typ)
				w.WriteUint64(tt.size)
				w.WriteUint32(uint32(engine.Wait))
			}))

			r := single(t, rt, common.MsgTProperty)
			h, _ := r.ReadHandle()
			name, _ := r.ReadString()
			typ, _ := r.ReadDataType()
			size, _ := r.ReadUint64()
			if h != dev || name != tt.prop || typ != tt.typ || size != tt.size {
				t.Fatalf("echo = (%d, %q, %s, %d)", h, name, typ, size)
			}

			ok, err := r.ReadUint32()
			if err != nil {
				t.Fatalf("reading result: %v", err)
			}
			if ok != tt.want.ok {
				t.Errorf("result = %d, want %d", ok, tt.want.ok)
			}

			if tt.typ == engine.TypeStringList {
				list, err := r.ReadStringList()
				if err != nil {
					t.Fatalf("reading list: %v", err)
				}
				if len(list) != len(tt.want.list) {
					t.Errorf("list = %v, want %v", list, tt.want.list)
				}
			} else if value := r.Rest(); !bytes.Equal(value, tt.want.value) {
				t.Errorf("value = %v, want %v", value, tt.want.value)
			}
		})
	}

	t.Run("DataTypeListClosesConnection", func(t *testing.T) {
		_, rt := newTestServer(t, common.ServerConfig{})
		dev := newDevice(t, rt, allFeatures)

		err := rt.handler(message(common.MsgTGetProperty, dev, dev, engine.TypeUnknown, "", func(w *serializer.Writer) {
			w.WriteString("types")
			w.WriteDataType(engine.TypeDataTypeList)
			w.WriteUint64(0)
			w.WriteUint32(uint32(engine.Wait))
		}))
		if !errors.Is(err, ErrUnsupportedEncoding) {
			t.Errorf("expected ErrUnsupportedEncoding, got %v", err)
		}
	})

	t.Run("BufferExceedsFrameLimit", func(t *testing.T) {
		_, rt := newTestServer(t, common.ServerConfig{Transport: common.TransportConfig{MaxFrameSize: 1024}})
		dev := newDevice(t, rt, allFeatures)

		handle(t, rt, message(common.MsgTGetProperty, dev, dev, engine.TypeUnknown, "", func(w *serializer.Writer) {
			w.WriteString("version")
			w.WriteDataType(engine.TypeInt32)
			w.WriteUint64(1 << 20)
			w.WriteUint32(uint32(engine.Wait))
		}))
		if sent := rt.take(); len(sent) != 0 {
			t.Errorf("expected no reply, got %d", len(sent))
		}
	})
}

func TestIntrospection(t *testing.T) {
	_, rt := newTestServer(t, common.ServerConfig{})
	dev := newDevice(t, rt, allFeatures)

	t.Run("ObjectSubtypes", func(t *testing.T) {
		handle(t, rt, message(common.MsgTGetObjectSubtypes, dev, 0, engine.TypeUnknown, "", func(w *serializer.Writer) {
			w.WriteDataType(engine.TypeGeometry)
		}))
		r := single(t, rt, common.MsgTObjectSubtypes)
		if typ, _ := r.ReadDataType(); typ != engine.TypeGeometry {
			t.Errorf("echoed type = %s", typ)
		}
		list, err := r.ReadStringList()
		if err != nil {
			t.Fatalf("reading subtypes: %v", err)
		}
		found := false
		for _, s := range list {
			found = found || s == "triangle"
		}
		if !found {
			t.Errorf("subtypes %v do not contain triangle", list)
		}
	})

	objectInfo := func(t *testing.T, subtype, infoName string, infoType engine.DataType) *serializer.Reader {
		t.Helper()
		handle(t, rt, message(common.MsgTGetObjectInfo, dev, 0, engine.TypeUnknown, "", func(w *serializer.Writer) {
			w.WriteDataType(engine.TypeGeometry)
			w.WriteString(subtype)
			w.WriteString(infoName)
			w.WriteDataType(infoType)
		}))
		r := single(t, rt, common.MsgTObjectInfo)
		typ, _ := r.ReadDataType()
		sub, _ := r.ReadString()
		name, _ := r.ReadString()
		it, _ := r.ReadDataType()
		if typ != engine.TypeGeometry || sub != subtype || name != infoName || it != infoType {
			t.Fatalf("echo = (%s, %q, %q, %s)", typ, sub, name, it)
		}
		return r
	}

	t.Run("ObjectInfo", func(t *testing.T) {
		r := objectInfo(t, "triangle", "description", engine.TypeString)
		if desc, err := r.ReadString(); err != nil || desc != "sink triangle geometry" {
			t.Errorf("description = %q, %v", desc, err)
		}

		r = objectInfo(t, "triangle", "parameter", engine.TypeParameterList)
		params, err := r.ReadParameterList()
		if err != nil {
			t.Fatalf("reading parameters: %v", err)
		}
		if len(params) == 0 || params[0].Name != "name" {
			t.Errorf("parameters = %v", params)
		}

		// nothing found, nothing appended
		r = objectInfo(t, "teapot", "description", engine.TypeString)
		if !r.EOF() {
			t.Errorf("expected no value, %d bytes left", r.Remaining())
		}
	})

	t.Run("ParameterInfo", func(t *testing.T) {
		handle(t, rt, message(common.MsgTGetParameterInfo, dev, 0, engine.TypeUnknown, "", func(w *serializer.Writer) {
			w.WriteDataType(engine.TypeGeometry)
			w.WriteString("sphere")
			w.WriteString("radius")
			w.WriteDataType(engine.TypeFloat32)
			w.WriteString("default")
			w.WriteDataType(engine.TypeFloat32)
		}))
		r := single(t, rt, common.MsgTParameterInfo)
		_, _ = r.ReadDataType()
		_, _ = r.ReadString()
		if name, _ := r.ReadString(); name != "radius" {
			t.Errorf("echoed parameter = %q", name)
		}
		_, _ = r.ReadDataType()
		_, _ = r.ReadString()
		_, _ = r.ReadDataType()

		value, err := r.ReadRaw(4)
		if err != nil {
			t.Fatalf("reading default: %v", err)
		}
		if got := math.Float32frombits(binary.LittleEndian.Uint32(value)); got != 0.01 {
			t.Errorf("default radius = %v, want 0.01", got)
		}
	})
}

func TestWriteInfoValue(t *testing.T) {
	tests := []struct {
		name    string
		typ     engine.DataType
		value   any
		want    []byte
		wantErr bool
	}{
		{"nil", engine.TypeString, nil, nil, false},
		{"bool", engine.TypeBool, []byte{1}, []byte{1}, false},
		{"int32 truncated to size", engine.TypeInt32, []byte{1, 0, 0, 0, 9}, []byte{1, 0, 0, 0}, false},
		{"short raw value", engine.TypeInt32, []byte{1}, nil, true},
		{"data type list", engine.TypeDataTypeList, []engine.DataType{engine.TypeFloat32}, nil, true},
		{"type mismatch", engine.TypeString, []string{"a"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serializer.NewWriter(16)
			err := writeInfoValue(w, tt.typ, tt.value)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedEncoding) {
					t.Errorf("expected ErrUnsupportedEncoding, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(w.Bytes(), tt.want) {
				t.Errorf("encoded = %v, want %v", w.Bytes(), tt.want)
			}
		})
	}
}

// callLibrary wraps the sink library and records the array mapping calls of its devices
type callLibrary struct {
	engine.Library
	mu    sync.Mutex
	calls []string
}

const callLibraryName = "sink-calls"

func init() {
	engine.Register(callLibraryName, func(status engine.StatusFunc) (engine.Library, error) {
		lib, err := sink.NewLibrary(status)
		if err != nil {
			return nil, err
		}
		return &callLibrary{Library: lib}, nil
	})
}

func (l *callLibrary) NewDevice(deviceType string) (engine.Device, error) {
	dev, err := l.Library.NewDevice(deviceType)
	if err != nil {
		return nil, err
	}
	return &callDevice{Device: dev, lib: l}, nil
}

func (l *callLibrary) record(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

// take returns and clears the recorded calls
func (l *callLibrary) take() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	calls := l.calls
	l.calls = nil
	return calls
}

type callDevice struct {
	engine.Device
	lib *callLibrary
}

func (d *callDevice) MapArray(array engine.Object) []byte {
	d.lib.record("map")
	return d.Device.MapArray(array)
}

func (d *callDevice) UnmapArray(array engine.Object) {
	d.lib.record("unmap")
	d.Device.UnmapArray(array)
}

func TestUnmapArrayRemaps(t *testing.T) {
	s, rt := newTestServer(t, common.ServerConfig{Library: callLibraryName})
	lib := s.library.(*callLibrary)
	dev := newDevice(t, rt, allFeatures)

	handle(t, rt, message(common.MsgTNewArray, dev, 5, engine.TypeArray1D, "", func(w *serializer.Writer) {
		w.WriteDataType(engine.TypeFloat32)
		w.WriteUint64(2)
		w.WriteUint64(0)
		w.WriteUint64(0)
	}))
	if calls := lib.take(); len(calls) != 0 {
		t.Fatalf("NewArray without data mapped the array: %v", calls)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"without data", nil},
		{"with data", u32s(7, 8)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handle(t, rt, message(common.MsgTUnmapArray, dev, 5, engine.TypeUnknown, "", func(w *serializer.Writer) {
				w.WriteRaw(tt.data)
			}))
			single(t, rt, common.MsgTArrayUnmapped)

			want := []string{"unmap", "map", "unmap"}
			calls := lib.take()
			if len(calls) != len(want) {
				t.Fatalf("calls = %v, want %v", calls, want)
			}
			for i := range want {
				if calls[i] != want[i] {
					t.Errorf("calls = %v, want %v", calls, want)
					break
				}
			}
		})
	}

	handle(t, rt, message(common.MsgTMapArray, dev, 5, engine.TypeUnknown, "", nil))
	r := single(t, rt, common.MsgTArrayMapped)
	_, _ = r.ReadHandle()
	size, _ := r.ReadUint64()
	if data, _ := r.ReadRaw(size); !bytes.Equal(data, u32s(7, 8)) {
		t.Errorf("array data = %v, want %v", data, u32s(7, 8))
	}
}

func TestTriangleSession(t *testing.T) {
	_, rt := newTestServer(t, common.ServerConfig{})

	dev := newDevice(t, rt, allFeatures)
	if dev != 1 {
		t.Fatalf("device handle = %d, want 1", dev)
	}

	// each of these requests is answered by silence
	newObject(t, rt, dev, 10, engine.TypeGeometry, "triangle")
	setParam(t, rt, dev, 10, "radius", engine.TypeFloat32, binary.LittleEndian.AppendUint32(nil, math.Float32bits(1.5)))
	handle(t, rt, message(common.MsgTCommitParams, dev, 10, engine.TypeUnknown, "", nil))
	if sent := rt.take(); len(sent) != 0 {
		t.Fatalf("CommitParams must not reply, got %d frames", len(sent))
	}

	handle(t, rt, message(common.MsgTGetObjectInfo, dev, 0, engine.TypeUnknown, "", func(w *serializer.Writer) {
		w.WriteDataType(engine.TypeGeometry)
		w.WriteString("triangle")
		w.WriteString("description")
		w.WriteDataType(engine.TypeString)
	}))
	r := single(t, rt, common.MsgTObjectInfo)
	typ, _ := r.ReadDataType()
	subtype, _ := r.ReadString()
	name, _ := r.ReadString()
	infoType, err := r.ReadDataType()
	if err != nil {
		t.Fatalf("reading echo: %v", err)
	}
	if typ != engine.TypeGeometry || subtype != "triangle" || name != "description" || infoType != engine.TypeString {
		t.Errorf("echo = (%s, %q, %q, %s)", typ, subtype, name, infoType)
	}
}
