package serializer

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ValentinKolb/dRender/lib/compression"
	"github.com/ValentinKolb/dRender/lib/engine"
	"github.com/ValentinKolb/dRender/lib/registry"
)

// MaxCollectionCount limits the number of elements of a decoded list
const MaxCollectionCount = 1 << 20

var (
	ErrBufferTooShort     = errors.New("serializer: buffer too short")
	ErrInvalidBool        = errors.New("serializer: invalid boolean value")
	ErrCollectionTooLarge = errors.New("serializer: collection count exceeds limit")
)

// Header identifies the object a request is about
type Header struct {
	Device  registry.Handle
	Object  registry.Handle
	Type    engine.DataType
	Subtype string
}

func (h Header) String() string {
	return fmt.Sprintf("device=%d object=%d type=%s subtype=%q", h.Device, h.Object, h.Type, h.Subtype)
}

// --------------------------------------------------------------------------
// Writer
// --------------------------------------------------------------------------

// Writer appends encoded values to a growing byte slice
type Writer struct {
	buf []byte
}

// NewWriter creates a writer with the given initial capacity
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// Bytes returns the encoded data. The slice is owned by the writer until it is discarded.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written
func (w *Writer) Len() int {
	return len(w.buf)
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *Writer) WriteUint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *Writer) WriteUint64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

func (w *Writer) WriteHandle(h registry.Handle) {
	w.WriteUint64(uint64(h))
}

func (w *Writer) WriteDataType(t engine.DataType) {
	w.WriteUint32(uint32(t))
}

func (w *Writer) WriteString(s string) {
	w.WriteUint64(uint64(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *Writer) WriteStringList(list []string) {
	w.WriteUint64(uint64(len(list)))
	for _, s := range list {
		w.WriteString(s)
	}
}

func (w *Writer) WriteParameterList(list []engine.Parameter) {
	w.WriteUint64(uint64(len(list)))
	for _, p := range list {
		w.WriteString(p.Name)
		w.WriteDataType(p.Type)
	}
}

// WriteRaw appends b without a length prefix
func (w *Writer) WriteRaw(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *Writer) WriteHeader(h Header) {
	w.WriteHandle(h.Device)
	w.WriteHandle(h.Object)
	w.WriteDataType(h.Type)
	w.WriteString(h.Subtype)
}

func (w *Writer) WriteFeatures(f compression.Features) {
	w.WriteBool(f.Lossy)
	w.WriteBool(f.Lossless)
}

// --------------------------------------------------------------------------
// Reader
// --------------------------------------------------------------------------

// Reader decodes values from a byte slice
type Reader struct {
	buf []byte
	pos int
}

// NewReader creates a reader over b. Slices returned by ReadRaw and Rest alias b.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Remaining returns the number of unread bytes
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// EOF reports whether all bytes were read
func (r *Reader) EOF() bool {
	return r.pos >= len(r.buf)
}

// take returns the next n bytes
func (r *Reader) take(n uint64) ([]byte, error) {
	if n > uint64(r.Remaining()) {
		return nil, fmt.Errorf("%w: need %d bytes, %d left", ErrBufferTooShort, n, r.Remaining())
	}
	b := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

func (r *Reader) ReadBool() (bool, error) {
	b, err := r.take(1)
	if err != nil {
		return false, err
	}
	switch b[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, ErrInvalidBool
	}
}

func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) ReadHandle() (registry.Handle, error) {
	v, err := r.ReadUint64()
	return registry.Handle(v), err
}

func (r *Reader) ReadDataType() (engine.DataType, error) {
	v, err := r.ReadUint32()
	return engine.DataType(v), err
}

func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadUint64()
	if err != nil {
		return "", err
	}
	b, err := r.take(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// readCount reads a list count and checks that minSize bytes per element remain
func (r *Reader) readCount(minSize uint64) (int, error) {
	n, err := r.ReadUint64()
	if err != nil {
		return 0, err
	}
	if n > MaxCollectionCount {
		return 0, fmt.Errorf("%w: %d", ErrCollectionTooLarge, n)
	}
	if n*minSize > uint64(r.Remaining()) {
		return 0, fmt.Errorf("%w: %d elements announced, %d bytes left", ErrBufferTooShort, n, r.Remaining())
	}
	return int(n), nil
}

func (r *Reader) ReadStringList() ([]string, error) {
	n, err := r.readCount(8)
	if err != nil {
		return nil, err
	}
	list := make([]string, n)
	for i := range list {
		if list[i], err = r.ReadString(); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (r *Reader) ReadParameterList() ([]engine.Parameter, error) {
	n, err := r.readCount(12)
	if err != nil {
		return nil, err
	}
	list := make([]engine.Parameter, n)
	for i := range list {
		if list[i].Name, err = r.ReadString(); err != nil {
			return nil, err
		}
		if list[i].Type, err = r.ReadDataType(); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// ReadRaw returns the next n bytes. The slice aliases the reader's buffer.
func (r *Reader) ReadRaw(n uint64) ([]byte, error) {
	return r.take(n)
}

// Rest returns all unread bytes and moves to the end
func (r *Reader) Rest() []byte {
	b := r.buf[r.pos:]
	r.pos = len(r.buf)
	return b
}

func (r *Reader) ReadHeader() (Header, error) {
	var h Header
	var err error
	if h.Device, err = r.ReadHandle(); err != nil {
		return h, fmt.Errorf("header device: %w", err)
	}
	if h.Object, err = r.ReadHandle(); err != nil {
		return h, fmt.Errorf("header object: %w", err)
	}
	if h.Type, err = r.ReadDataType(); err != nil {
		return h, fmt.Errorf("header type: %w", err)
	}
	if h.Subtype, err = r.ReadString(); err != nil {
		return h, fmt.Errorf("header subtype: %w", err)
	}
	return h, nil
}

func (r *Reader) ReadFeatures() (compression.Features, error) {
	var f compression.Features
	var err error
	if f.Lossy, err = r.ReadBool(); err != nil {
		return f, err
	}
	f.Lossless, err = r.ReadBool()
	return f, err
}
