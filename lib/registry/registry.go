package registry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/bits"
	"sync"

	"github.com/ValentinKolb/dRender/lib/engine"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("registry")

// DefaultMaxHandle is the largest object handle accepted if no limit is configured.
// It bounds the memory a single registration can allocate.
const DefaultMaxHandle Handle = 1 << 24

var (
	ErrUnknownDevice  = errors.New("unknown device handle")
	ErrHandleTooLarge = errors.New("object handle exceeds limit")
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Handle is a remote (client visible) device or object handle. 0 is the null handle.
type Handle uint64

// ObjectDesc is the resolved, engine local view of a remote object
type ObjectDesc struct {
	Device  engine.Device
	Object  engine.Object
	Type    engine.DataType
	Subtype string
}

// ArrayInfo is the shape of an array object
type ArrayInfo struct {
	Type        engine.DataType
	ElementType engine.DataType
	NumItems1   uint64
	NumItems2   uint64
	NumItems3   uint64
}

// NumElements returns n1*max(1,n2)*max(1,n3), saturating at MaxUint64
func (a ArrayInfo) NumElements() uint64 {
	n := a.NumItems1
	for _, m := range []uint64{max(1, a.NumItems2), max(1, a.NumItems3)} {
		hi, lo := bits.Mul64(n, m)
		if hi != 0 {
			return math.MaxUint64
		}
		n = lo
	}
	return n
}

// SizeInBytes returns the byte size of the array data, saturating at MaxUint64
func (a ArrayInfo) SizeInBytes() uint64 {
	hi, lo := bits.Mul64(a.NumElements(), engine.SizeOf(a.ElementType))
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}

// HoldsObjects reports whether the array elements are object references
func (a ArrayInfo) HoldsObjects() bool {
	return engine.IsObject(a.ElementType)
}

// entry is one slot of a device table
type entry struct {
	object  engine.Object
	typ     engine.DataType
	subtype string
}

// deviceTable holds all registrations of one device
type deviceTable struct {
	device  engine.Device
	objects []entry
	arrays  []ArrayInfo
}

// Registry maps remote handles to engine objects
type Registry struct {
	mu        sync.RWMutex
	maxHandle Handle
	devices   []*deviceTable // index is the device handle, slot 0 stays nil
}

// New creates an empty registry. maxHandle limits object handles, 0 selects DefaultMaxHandle.
func New(maxHandle Handle) *Registry {
	if maxHandle == 0 {
		maxHandle = DefaultMaxHandle
	}
	return &Registry{
		maxHandle: maxHandle,
		devices:   make([]*deviceTable, 1),
	}
}

// --------------------------------------------------------------------------
// Registration
// --------------------------------------------------------------------------

// RegisterDevice assigns the next device handle to dev. The device is also registered as
// an object under its own handle, so device queries resolve like object queries.
func (r *Registry) RegisterDevice(dev engine.Device) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := Handle(len(r.devices))
	r.devices = append(r.devices, &deviceTable{device: dev})

	// device handles are not subject to maxHandle
	t := r.devices[h]
	t.objects = grow(t.objects, h)
	t.objects[h] = entry{object: dev.Handle(), typ: engine.TypeDevice}

	Logger.Debugf("registered device %d", h)
	return h
}

// RegisterObject associates object handle obj of device dev with a local object.
// Registering the same handle again replaces the previous association.
func (r *Registry) RegisterObject(dev, obj Handle, local engine.Object, t engine.DataType, subtype string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	table, err := r.tableForWrite(dev, obj)
	if err != nil {
		return err
	}
	table.objects = grow(table.objects, obj)
	table.objects[obj] = entry{object: local, typ: t, subtype: subtype}
	return nil
}

// RegisterArray registers an array object together with its shape
func (r *Registry) RegisterArray(dev, obj Handle, local engine.Object, info ArrayInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	table, err := r.tableForWrite(dev, obj)
	if err != nil {
		return err
	}
	table.objects = grow(table.objects, obj)
	table.objects[obj] = entry{object: local, typ: info.Type}
	table.arrays = grow(table.arrays, obj)
	table.arrays[obj] = info
	return nil
}

// tableForWrite validates a registration target. Must be called with mu held.
func (r *Registry) tableForWrite(dev, obj Handle) (*deviceTable, error) {
	if dev == 0 || dev >= Handle(len(r.devices)) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDevice, dev)
	}
	if obj > r.maxHandle {
		return nil, fmt.Errorf("%w: %d > %d", ErrHandleTooLarge, obj, r.maxHandle)
	}
	return r.devices[dev], nil
}

// grow extends s to exactly h+1 elements if it is shorter
func grow[T any](s []T, h Handle) []T {
	if uint64(len(s)) > uint64(h) {
		return s
	}
	return append(s, make([]T, uint64(h)+1-uint64(len(s)))...)
}

// --------------------------------------------------------------------------
// Lookup
// --------------------------------------------------------------------------

// Device returns the local device for dev or nil if it is unknown
func (r *Registry) Device(dev Handle) engine.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t := r.table(dev); t != nil {
		return t.device
	}
	return nil
}

// ObjectDesc resolves an object. An unknown device yields the zero descriptor, an
// unregistered object on a known device yields the device with a null object.
func (r *Registry) ObjectDesc(dev, obj Handle) ObjectDesc {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t := r.table(dev)
	if t == nil {
		return ObjectDesc{}
	}
	desc := ObjectDesc{Device: t.device}
	if uint64(obj) < uint64(len(t.objects)) {
		e := t.objects[obj]
		desc.Object, desc.Type, desc.Subtype = e.object, e.typ, e.subtype
	}
	return desc
}

// ArrayInfo returns the shape of an array or the zero ArrayInfo if unknown
func (r *Registry) ArrayInfo(dev, obj Handle) ArrayInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t := r.table(dev)
	if t == nil || uint64(obj) >= uint64(len(t.arrays)) {
		return ArrayInfo{}
	}
	return t.arrays[obj]
}

// Len returns the current size of the object table of dev (0 for unknown devices)
func (r *Registry) Len(dev Handle) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t := r.table(dev); t != nil {
		return len(t.objects)
	}
	return 0
}

// TranslateObjects rewrites a packed little-endian sequence of remote object handles in
// place into local object references of dev. Handles that do not resolve are replaced by
// the null object, their count is returned.
func (r *Registry) TranslateObjects(dev Handle, data []byte) (unresolved int, err error) {
	if len(data)%engine.ObjectHandleSize != 0 {
		return 0, fmt.Errorf("handle data of %d bytes is not a multiple of %d", len(data), engine.ObjectHandleSize)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	t := r.table(dev)
	if t == nil {
		return 0, fmt.Errorf("%w: %d", ErrUnknownDevice, dev)
	}

	for i := 0; i < len(data); i += engine.ObjectHandleSize {
		remote := binary.LittleEndian.Uint64(data[i:])
		var local engine.Object
		if remote < uint64(len(t.objects)) {
			local = t.objects[remote].object
		}
		if local == 0 && remote != 0 {
			unresolved++
		}
		binary.LittleEndian.PutUint64(data[i:], uint64(local))
	}
	return unresolved, nil
}

// table returns the table of dev or nil. Must be called with mu held.
func (r *Registry) table(dev Handle) *deviceTable {
	if dev == 0 || uint64(dev) >= uint64(len(r.devices)) {
		return nil
	}
	return r.devices[dev]
}
