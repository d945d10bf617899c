// Package sink provides an in-memory reference engine registered as the "sink" library.
//
// The sink device implements the complete engine.Device contract without rendering
// anything meaningful:
//
//   - Objects carry pending and committed parameters and a public reference count.
//     Releasing the last reference deletes the object, later use is reported as an error.
//   - Arrays own their storage. Mapping returns the storage itself, unmapping an array
//     that is not mapped is reported and otherwise ignored.
//   - Frames honour the "size", "channel.color" and "channel.depth" parameters and render a
//     deterministic gradient (color) and row ramp (depth). Supported color formats are
//     UFIXED8_RGBA_SRGB, UFIXED8_VEC4 and FLOAT32_VEC4, the depth format is FLOAT32.
//   - Properties: "version" (INT32) and "extension" (STRING_LIST, empty) on the device,
//     "duration" (FLOAT32, seconds) on frames.
//   - Subtype, object info and parameter info queries are answered from static tables
//     ("description", "parameter", "channel", "required", "default").
//
// All failures are reported through the status function the library was loaded with.
// Rendering times are tracked with a go-metrics timer and reported as performance messages.
package sink
