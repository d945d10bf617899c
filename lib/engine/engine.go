package engine

import (
	"fmt"
	"os"
	"sort"
	"sync"
)

// --------------------------------------------------------------------------
// Engine Interfaces
// --------------------------------------------------------------------------

// Library is a loaded rendering library. A library creates devices, every further
// engine call goes through a Device.
type Library interface {
	// Name returns the name the library was loaded with
	Name() string
	// NewDevice creates a device of the given subtype (e.g. "default")
	NewDevice(deviceType string) (Device, error)
	// Close releases the library. Devices created by it must not be used afterwards.
	Close() error
}

// Frame channel names passed to MapFrame
const (
	ChannelColor = "channel.color"
	ChannelDepth = "channel.depth"
)

// FrameChannel is a mapped frame buffer channel. Data is only valid until the
// frame is unmapped.
type FrameChannel struct {
	Width  uint32
	Height uint32
	Type   DataType
	Data   []byte
}

// Device is the object-lifecycle contract of a rendering engine. All object references
// (Object) are local to the device. Failures are not returned but reported through the
// StatusFunc the library was loaded with, the same way a native engine would do it.
//
// Parameter values are raw byte images: an object reference is an 8 byte little-endian
// Object, a string is the raw string bytes, every other type is SizeOf(type) bytes.
//
// Query results (GetObjectInfo, GetParameterInfo) are one of:
// nil (no such info), string, []string, []Parameter or []byte (raw value of SizeOf(infoType) bytes).
type Device interface {
	// Handle returns the device itself as an object
	Handle() Object

	// NewObject creates an object of the given type and subtype
	NewObject(objectType DataType, subtype string) Object
	// NewArray creates an array with engine owned storage of n1*n2*n3 elements
	NewArray(arrayType DataType, elementType DataType, n1, n2, n3 uint64) Object
	// MapArray returns the storage of an array for reading and writing
	MapArray(array Object) []byte
	// UnmapArray ends a mapping started with MapArray
	UnmapArray(array Object)

	SetParameter(object Object, name string, t DataType, value []byte)
	UnsetParameter(object Object, name string)
	UnsetAllParameters(object Object)
	CommitParameters(object Object)

	Release(object Object)
	Retain(object Object)

	// RenderFrame starts rendering a frame, FrameReady waits for (or polls) completion
	RenderFrame(frame Object)
	FrameReady(frame Object, mask WaitMask) bool
	// MapFrame maps a named channel ("channel.color", "channel.depth"). A channel that is
	// not present has Type TypeUnknown and no data.
	MapFrame(frame Object, channel string) FrameChannel
	UnmapFrame(frame Object, channel string)

	// GetProperty writes a property of fixed size type t into buf and reports whether it was found
	GetProperty(object Object, name string, t DataType, buf []byte, mask WaitMask) bool
	// GetStringListProperty reads a property of type STRING_LIST
	GetStringListProperty(object Object, name string, mask WaitMask) ([]string, bool)

	GetObjectSubtypes(objectType DataType) []string
	GetObjectInfo(objectType DataType, subtype string, infoName string, infoType DataType) any
	GetParameterInfo(objectType DataType, subtype string, paramName string, paramType DataType, infoName string, infoType DataType) any
}

// --------------------------------------------------------------------------
// Library Registry
// --------------------------------------------------------------------------

// LibraryFactory loads a library. The status function receives all diagnostics
// of the library and of the devices it creates.
type LibraryFactory func(status StatusFunc) (Library, error)

const (
	// EnvironmentLibrary is a pseudo library name that resolves to the library
	// named by the LibraryEnvVar environment variable
	EnvironmentLibrary = "environment"
	LibraryEnvVar      = "DRENDER_LIBRARY"
)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]LibraryFactory{}
)

// Register makes a library available under the given name. Libraries usually
// register themselves in an init function.
func Register(name string, factory LibraryFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	if factory == nil {
		panic("engine: register of nil library factory")
	}
	factories[name] = factory
}

// Load creates the library registered under name
func Load(name string, status StatusFunc) (Library, error) {
	if name == EnvironmentLibrary {
		name = os.Getenv(LibraryEnvVar)
		if name == "" {
			return nil, fmt.Errorf("library %q requested but %s is not set", EnvironmentLibrary, LibraryEnvVar)
		}
	}

	factoriesMu.RLock()
	factory, ok := factories[name]
	factoriesMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown library %q (available: %v)", name, Libraries())
	}
	if status == nil {
		status = func(Severity, StatusCode, Object, DataType, string) {}
	}
	return factory(status)
}

// Libraries returns the sorted names of all registered libraries
func Libraries() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
