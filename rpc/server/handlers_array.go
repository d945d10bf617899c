package server

import (
	"fmt"

	"github.com/ValentinKolb/dRender/lib/engine"
	"github.com/ValentinKolb/dRender/lib/registry"
	"github.com/ValentinKolb/dRender/rpc/common"
	"github.com/ValentinKolb/dRender/rpc/serializer"
)

// arrayMappedHeaderSize is object handle and byte count in front of the mapped contents
const arrayMappedHeaderSize = 8 + 8

func (s *Server) handleNewArray(q *request) error {
	dev, err := q.device()
	if err != nil {
		return err
	}
	if q.header.Object == 0 {
		return fmt.Errorf("%w: object handle 0 is reserved", ErrMalformedMessage)
	}
	if !engine.IsArray(q.desc.Type) {
		return fmt.Errorf("%w: %s is not an array type", ErrMalformedMessage, q.desc.Type)
	}

	info := registry.ArrayInfo{Type: q.desc.Type}
	if info.ElementType, err = q.r.ReadDataType(); err != nil {
		return malformed("element type", err)
	}
	for i, n := range []*uint64{&info.NumItems1, &info.NumItems2, &info.NumItems3} {
		if *n, err = q.r.ReadUint64(); err != nil {
			return malformed(fmt.Sprintf("numItems%d", i+1), err)
		}
	}

	// a mapped array is sent in one frame together with its header
	size := info.SizeInBytes()
	if limit := s.config.Transport.FrameLimit(); limit < arrayMappedHeaderSize || size > limit-arrayMappedHeaderSize {
		return fmt.Errorf("%w: array of %s exceeds the frame limit", ErrMalformedMessage, common.FormatBytes(size))
	}

	// data is translated before the engine sees the array
	var data []byte
	if !q.r.EOF() {
		if data, err = s.arrayData(q, info); err != nil {
			return err
		}
	}

	obj := dev.NewArray(info.Type, info.ElementType, info.NumItems1, info.NumItems2, info.NumItems3)
	if obj == 0 {
		return fmt.Errorf("%w: no %s of %s created", ErrEngine, info.Type, info.ElementType)
	}

	if data != nil {
		copy(dev.MapArray(obj), data)
		dev.UnmapArray(obj)
	}

	return s.registry.RegisterArray(q.header.Device, q.header.Object, obj, info)
}

func (s *Server) handleMapArray(q *request) error {
	dev, obj, err := q.object()
	if err != nil {
		return err
	}

	// the size comes from the registered shape, not from the engine
	info := s.registry.ArrayInfo(q.header.Device, q.header.Object)
	if info.Type == engine.TypeUnknown {
		return fmt.Errorf("%w: object %d is not an array", ErrMalformedMessage, q.header.Object)
	}
	size := info.SizeInBytes()
	data := dev.MapArray(obj)
	if uint64(len(data)) < size {
		return fmt.Errorf("%w: mapped %d bytes of array %d, expected %d", ErrEngine, len(data), q.header.Object, size)
	}

	w := serializer.NewWriter(arrayMappedHeaderSize + int(size))
	w.WriteHandle(q.header.Object)
	w.WriteUint64(size)
	w.WriteRaw(data[:size])
	return s.reply(common.MsgTArrayMapped, w.Bytes())
}

func (s *Server) handleUnmapArray(q *request) error {
	dev, obj, err := q.object()
	if err != nil {
		return err
	}

	// new contents are decoded before the engine sees any call
	var data []byte
	if !q.r.EOF() {
		info := s.registry.ArrayInfo(q.header.Device, q.header.Object)
		if info.Type == engine.TypeUnknown {
			return fmt.Errorf("%w: object %d is not an array", ErrMalformedMessage, q.header.Object)
		}
		if data, err = s.arrayData(q, info); err != nil {
			return err
		}
	}

	// the array is always remapped for writing, new contents are copied in between
	dev.UnmapArray(obj)
	copy(dev.MapArray(obj), data)
	dev.UnmapArray(obj)

	w := serializer.NewWriter(8)
	w.WriteHandle(q.header.Object)
	return s.reply(common.MsgTArrayUnmapped, w.Bytes())
}

// arrayData reads the array contents following the header. Arrays of objects carry remote
// handles, those are replaced by the local objects of the request's device.
func (s *Server) arrayData(q *request, info registry.ArrayInfo) ([]byte, error) {
	data, err := q.r.ReadRaw(info.SizeInBytes())
	if err != nil {
		return nil, malformed("array data", err)
	}
	if !info.HoldsObjects() {
		return data, nil
	}

	unresolved, err := s.registry.TranslateObjects(q.header.Device, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnresolved, err)
	}
	if unresolved > 0 {
		Logger.Warningf("%d handles in array %d do not resolve, replaced by null objects", unresolved, q.header.Object)
	}
	return data, nil
}
