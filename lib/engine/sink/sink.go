package sink

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"slices"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dRender/lib/engine"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rcrowley/go-metrics"
)

const (
	// LibraryName is the name the sink library is registered under
	LibraryName = "sink"

	// Version is reported by the "version" device property
	Version int32 = 1

	// MaxArrayBytes limits the storage of a single array
	MaxArrayBytes uint64 = 1 << 32
)

func init() {
	engine.Register(LibraryName, NewLibrary)
}

// --------------------------------------------------------------------------
// Library
// --------------------------------------------------------------------------

type library struct {
	status engine.StatusFunc
}

// NewLibrary creates the sink library. It never fails.
func NewLibrary(status engine.StatusFunc) (engine.Library, error) {
	if status == nil {
		status = func(engine.Severity, engine.StatusCode, engine.Object, engine.DataType, string) {}
	}
	return &library{status: status}, nil
}

func (l *library) Name() string {
	return LibraryName
}

func (l *library) NewDevice(deviceType string) (engine.Device, error) {
	switch deviceType {
	case "", "default", LibraryName:
	default:
		return nil, fmt.Errorf("sink: unsupported device type %q", deviceType)
	}
	return NewDevice(l.status), nil
}

func (l *library) Close() error {
	return nil
}

// --------------------------------------------------------------------------
// Device
// --------------------------------------------------------------------------

type device struct {
	handle  engine.Object
	next    atomic.Uint64
	objects *xsync.MapOf[engine.Object, *object]
	status  engine.StatusFunc

	metrics     metrics.Registry
	renderTimer metrics.Timer
}

// NewDevice creates a standalone sink device reporting to status
func NewDevice(status engine.StatusFunc) engine.Device {
	reg := metrics.NewRegistry()
	d := &device{
		objects:     xsync.NewMapOf[engine.Object, *object](),
		status:      status,
		metrics:     reg,
		renderTimer: metrics.GetOrRegisterTimer("frame.render", reg),
	}
	d.handle = d.create(engine.TypeDevice, "default")
	return d
}

// report forwards a diagnostic to the status function
func (d *device) report(sev engine.Severity, code engine.StatusCode, obj engine.Object, t engine.DataType, format string, args ...interface{}) {
	d.status(sev, code, obj, t, fmt.Sprintf(format, args...))
}

// create allocates a new object with one public reference
func (d *device) create(t engine.DataType, subtype string) engine.Object {
	return d.add(newObject(t, subtype))
}

// add publishes a fully initialized object under a fresh handle
func (d *device) add(obj *object) engine.Object {
	handle := engine.Object(d.next.Add(1))
	d.objects.Store(handle, obj)
	return handle
}

// lookup returns the live object for handle or reports an error
func (d *device) lookup(handle engine.Object, op string) (*object, bool) {
	if handle == 0 {
		d.report(engine.SeverityError, engine.StatusInvalidArgument, 0, engine.TypeUnknown, "%s: null object", op)
		return nil, false
	}
	obj, ok := d.objects.Load(handle)
	if !ok {
		d.report(engine.SeverityError, engine.StatusInvalidArgument, handle, engine.TypeUnknown, "%s: invalid or released object %d", op, handle)
		return nil, false
	}
	return obj, true
}

// lookupType is lookup restricted to objects for which accept returns true
func (d *device) lookupType(handle engine.Object, op string, accept func(engine.DataType) bool) (*object, bool) {
	obj, ok := d.lookup(handle, op)
	if !ok {
		return nil, false
	}
	if !accept(obj.typ) {
		d.report(engine.SeverityError, engine.StatusInvalidOperation, handle, obj.typ, "%s: not applicable to %s objects", op, obj.typ)
		return nil, false
	}
	return obj, true
}

func isFrame(t engine.DataType) bool { return t == engine.TypeFrame }

// --------------------------------------------------------------------------
// Interface Methods (docu see engine.Device)
// --------------------------------------------------------------------------

func (d *device) Handle() engine.Object {
	return d.handle
}

func (d *device) NewObject(objectType engine.DataType, subtype string) engine.Object {
	if !engine.IsObject(objectType) || engine.IsArray(objectType) || objectType == engine.TypeDevice {
		d.report(engine.SeverityError, engine.StatusInvalidArgument, 0, objectType, "cannot create object of type %s", objectType)
		return 0
	}
	if known := subtypes[objectType]; len(known) > 0 && !slices.Contains(known, subtype) {
		d.report(engine.SeverityWarning, engine.StatusInvalidArgument, 0, objectType, "unknown %s subtype %q", objectType, subtype)
	}
	return d.create(objectType, subtype)
}

func (d *device) NewArray(arrayType engine.DataType, elementType engine.DataType, n1, n2, n3 uint64) engine.Object {
	if !engine.IsArray(arrayType) {
		d.report(engine.SeverityError, engine.StatusInvalidArgument, 0, arrayType, "%s is not an array type", arrayType)
		return 0
	}
	elemSize := engine.SizeOf(elementType)
	if elemSize == 0 {
		d.report(engine.SeverityError, engine.StatusInvalidArgument, 0, arrayType, "unsupported array element type %s", elementType)
		return 0
	}

	size, ok := arrayBytes(elemSize, n1, n2, n3)
	if !ok {
		d.report(engine.SeverityError, engine.StatusOutOfMemory, 0, arrayType, "array of %dx%dx%d %s exceeds %d bytes", n1, n2, n3, elementType, MaxArrayBytes)
		return 0
	}

	obj := newObject(arrayType, "")
	obj.elementType = elementType
	obj.dims = [3]uint64{n1, n2, n3}
	obj.data = make([]byte, size)
	return d.add(obj)
}

// arrayBytes returns elemSize*n1*max(1,n2)*max(1,n3) unless it overflows or exceeds MaxArrayBytes
func arrayBytes(elemSize, n1, n2, n3 uint64) (uint64, bool) {
	size := elemSize
	for _, n := range []uint64{n1, max(1, n2), max(1, n3)} {
		hi, lo := bits.Mul64(size, n)
		if hi != 0 || lo > MaxArrayBytes {
			return 0, false
		}
		size = lo
	}
	return size, true
}

func (d *device) MapArray(array engine.Object) []byte {
	obj, ok := d.lookupType(array, "map array", engine.IsArray)
	if !ok {
		return nil
	}
	obj.mu.Lock()
	defer obj.mu.Unlock()

	obj.mapped = true
	return obj.data
}

func (d *device) UnmapArray(array engine.Object) {
	obj, ok := d.lookupType(array, "unmap array", engine.IsArray)
	if !ok {
		return
	}
	obj.mu.Lock()
	defer obj.mu.Unlock()

	if !obj.mapped {
		d.report(engine.SeverityWarning, engine.StatusInvalidOperation, array, obj.typ, "unmap of array that is not mapped")
		return
	}
	obj.mapped = false
}

func (d *device) SetParameter(handle engine.Object, name string, t engine.DataType, value []byte) {
	obj, ok := d.lookup(handle, "set parameter")
	if !ok {
		return
	}

	if engine.IsObject(t) {
		if len(value) != engine.ObjectHandleSize {
			d.report(engine.SeverityError, engine.StatusInvalidArgument, handle, obj.typ, "parameter %q: object value has %d bytes", name, len(value))
			return
		}
		ref := engine.Object(binary.LittleEndian.Uint64(value))
		if _, exists := d.objects.Load(ref); ref != 0 && !exists {
			d.report(engine.SeverityWarning, engine.StatusInvalidArgument, handle, obj.typ, "parameter %q references unknown object %d", name, ref)
		}
	} else if size := engine.SizeOf(t); t != engine.TypeString && uint64(len(value)) != size {
		d.report(engine.SeverityError, engine.StatusInvalidArgument, handle, obj.typ, "parameter %q: %s value has %d bytes, expected %d", name, t, len(value), size)
		return
	}

	obj.mu.Lock()
	defer obj.mu.Unlock()
	obj.pending[name] = param{typ: t, value: append([]byte(nil), value...)}
}

func (d *device) UnsetParameter(handle engine.Object, name string) {
	obj, ok := d.lookup(handle, "unset parameter")
	if !ok {
		return
	}
	obj.mu.Lock()
	defer obj.mu.Unlock()
	delete(obj.pending, name)
}

func (d *device) UnsetAllParameters(handle engine.Object) {
	obj, ok := d.lookup(handle, "unset all parameters")
	if !ok {
		return
	}
	obj.mu.Lock()
	defer obj.mu.Unlock()
	clear(obj.pending)
}

func (d *device) CommitParameters(handle engine.Object) {
	obj, ok := d.lookup(handle, "commit parameters")
	if !ok {
		return
	}
	obj.mu.Lock()
	defer obj.mu.Unlock()
	obj.commit()
}

func (d *device) Release(handle engine.Object) {
	obj, ok := d.lookup(handle, "release")
	if !ok {
		return
	}
	if obj.refs.Add(-1) <= 0 {
		d.objects.Delete(handle)
		d.report(engine.SeverityDebug, engine.StatusNoError, handle, obj.typ, "deleted %s object %d", obj.typ, handle)
	}
}

func (d *device) Retain(handle engine.Object) {
	if obj, ok := d.lookup(handle, "retain"); ok {
		obj.refs.Add(1)
	}
}

func (d *device) RenderFrame(frame engine.Object) {
	obj, ok := d.lookupType(frame, "render frame", isFrame)
	if !ok {
		return
	}
	obj.mu.Lock()
	defer obj.mu.Unlock()

	start := time.Now()
	if err := obj.render(); err != nil {
		d.report(engine.SeverityError, engine.StatusInvalidOperation, frame, obj.typ, "render frame: %v", err)
	}
	obj.duration = time.Since(start)
	obj.ready = true
	d.renderTimer.UpdateSince(start)

	d.report(engine.SeverityPerformance, engine.StatusNoError, frame, obj.typ, "frame rendered in %s (mean %s over %d frames)",
		obj.duration, time.Duration(d.renderTimer.Mean()), d.renderTimer.Count())
}

func (d *device) FrameReady(frame engine.Object, _ engine.WaitMask) bool {
	// rendering is synchronous, waiting and polling are equivalent
	obj, ok := d.lookupType(frame, "frame ready", isFrame)
	if !ok {
		return false
	}
	obj.mu.Lock()
	defer obj.mu.Unlock()
	return obj.ready
}

func (d *device) MapFrame(frame engine.Object, channel string) engine.FrameChannel {
	obj, ok := d.lookupType(frame, "map frame", isFrame)
	if !ok {
		return engine.FrameChannel{}
	}
	obj.mu.Lock()
	defer obj.mu.Unlock()

	switch channel {
	case ChannelColor:
		if obj.color == nil {
			return engine.FrameChannel{}
		}
		return engine.FrameChannel{Width: obj.width, Height: obj.height, Type: obj.colorType, Data: obj.color}
	case ChannelDepth:
		if obj.depth == nil {
			return engine.FrameChannel{}
		}
		return engine.FrameChannel{Width: obj.width, Height: obj.height, Type: obj.depthType, Data: obj.depth}
	default:
		d.report(engine.SeverityWarning, engine.StatusInvalidArgument, frame, obj.typ, "map frame: unknown channel %q", channel)
		return engine.FrameChannel{}
	}
}

func (d *device) UnmapFrame(frame engine.Object, _ string) {
	d.lookupType(frame, "unmap frame", isFrame)
}

func (d *device) GetProperty(handle engine.Object, name string, t engine.DataType, buf []byte, _ engine.WaitMask) bool {
	obj, ok := d.lookup(handle, "get property")
	if !ok {
		return false
	}
	if uint64(len(buf)) < engine.SizeOf(t) || engine.SizeOf(t) == 0 {
		return false
	}

	switch {
	case obj.typ == engine.TypeDevice && name == "version" && t == engine.TypeInt32:
		binary.LittleEndian.PutUint32(buf, uint32(Version))
		return true
	case obj.typ == engine.TypeFrame && name == "duration" && t == engine.TypeFloat32:
		obj.mu.Lock()
		defer obj.mu.Unlock()
		if !obj.ready {
			return false
		}
		putFloat32(buf, float32(obj.duration.Seconds()))
		return true
	}
	return false
}

func (d *device) GetStringListProperty(handle engine.Object, name string, _ engine.WaitMask) ([]string, bool) {
	obj, ok := d.lookup(handle, "get property")
	if !ok {
		return nil, false
	}
	if obj.typ == engine.TypeDevice && name == "extension" {
		return []string{}, true
	}
	return nil, false
}

func (d *device) GetObjectSubtypes(objectType engine.DataType) []string {
	return append([]string{}, subtypes[objectType]...)
}

func (d *device) GetObjectInfo(objectType engine.DataType, subtype string, infoName string, infoType engine.DataType) any {
	return objectInfo(objectType, subtype, infoName, infoType)
}

func (d *device) GetParameterInfo(objectType engine.DataType, subtype string, paramName string, paramType engine.DataType, infoName string, infoType engine.DataType) any {
	return parameterInfo(objectType, subtype, paramName, paramType, infoName, infoType)
}
