// Package engine defines the contract between the render server and a rendering engine.
//
// A rendering engine is loaded by name as a Library and creates Devices. A Device
// manages objects (cameras, frames, geometries, arrays, ...) identified by device local
// Object references, sets and commits their parameters, renders frames and answers
// introspection queries.
//
// The package also defines the DataType tags shared with the wire protocol together with
// SizeOf, IsObject and IsArray. Tags and sizes are part of the protocol: an object
// reference always occupies ObjectHandleSize bytes, the same width as a wire handle,
// which allows arrays of object references to be translated in place.
//
// Engines are registered with Register and loaded with Load:
//
//	lib, err := engine.Load("sink", statusFunc)
//	if err != nil {
//		return err
//	}
//	dev, err := lib.NewDevice("default")
//
// The in-memory reference engine lives in the sink sub package, a conformance suite
// for any implementation in the testing sub package.
package engine
