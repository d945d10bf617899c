// Package serializer implements the wire buffer of the render protocol: a typed write
// cursor (Writer) and a bounds checked read cursor (Reader) over a frame payload.
//
// Encoding rules (all integers little-endian):
//
//	bool          1 byte, 0 or 1
//	u32 / u64     4 / 8 bytes
//	handle        u64
//	data type     u32
//	string        u64 length, bytes
//	string list   u64 count, strings
//	param list    u64 count, (string name, u32 type) pairs
//	raw           bytes without length, the size is known from context
//
// Every request starts with a Header {device, object, type, subtype}. The Reader never
// allocates more than the remaining payload can back: a length or count that exceeds the
// remaining bytes fails with ErrBufferTooShort before any allocation happens.
//
// Usage:
//
//	w := serializer.NewWriter(64)
//	w.WriteHeader(serializer.Header{Device: 1, Object: 10, Type: engine.TypeGeometry, Subtype: "triangle"})
//	w.WriteString("radius")
//
//	r := serializer.NewReader(w.Bytes())
//	hdr, err := r.ReadHeader()
package serializer
