// Package registry implements the resource manager of the render server: the mapping of
// client chosen (remote) handles to engine local devices and objects.
//
// Device handles are assigned by the registry, starting at 1. Object handles are chosen by
// the client and registered per device. Each device owns a sparse, index addressed table
// that grows to exactly handle+1 when a handle beyond its current size is registered.
// Slots are never shrunk or reused, a slot keeps its association for the lifetime of the
// registry even after the engine object was released.
//
// Lookups never fail: an unknown device resolves to the zero ObjectDesc, a known device
// with an unregistered object resolves to a descriptor carrying the device and a null
// object. All operations are O(1) except TranslateObjects, which is linear in the number
// of handles it rewrites.
//
// Thread Safety:
//
//	All methods are safe for concurrent use. A single RWMutex guards the tables, operations
//	that resolve many handles for one message (TranslateObjects) take it once.
package registry
