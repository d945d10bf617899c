package server

import (
	"fmt"

	"github.com/ValentinKolb/dRender/lib/engine"
	"github.com/ValentinKolb/dRender/rpc/common"
	"github.com/ValentinKolb/dRender/rpc/serializer"
)

func boolToUint32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func (s *Server) handleGetProperty(q *request) error {
	dev, obj, err := q.object()
	if err != nil {
		return err
	}

	name, err := q.r.ReadString()
	if err != nil {
		return malformed("property name", err)
	}
	t, err := q.r.ReadDataType()
	if err != nil {
		return malformed("property type", err)
	}
	size, err := q.r.ReadUint64()
	if err != nil {
		return malformed("property size", err)
	}
	mask, err := q.r.ReadUint32()
	if err != nil {
		return malformed("wait mask", err)
	}

	if t == engine.TypeDataTypeList {
		return fmt.Errorf("%w: property %q of type %s", ErrUnsupportedEncoding, name, t)
	}

	w := serializer.NewWriter(64)
	w.WriteHandle(q.header.Object)
	w.WriteString(name)
	w.WriteDataType(t)
	w.WriteUint64(size)

	if t == engine.TypeStringList {
		// a failed lookup still carries an (empty) list, the flag tells the cases apart
		list, ok := dev.GetStringListProperty(obj, name, engine.WaitMask(mask))
		w.WriteUint32(boolToUint32(ok))
		w.WriteStringList(list)
	} else {
		// handle, name, type, size and success flag precede the value
		overhead := uint64(8+8+len(name)) + 4 + 8 + 4
		if limit := s.config.Transport.FrameLimit(); limit < overhead || size > limit-overhead {
			return fmt.Errorf("%w: property buffer of %s exceeds the frame limit", ErrMalformedMessage, common.FormatBytes(size))
		}
		buf := make([]byte, size)
		ok := dev.GetProperty(obj, name, t, buf, engine.WaitMask(mask))
		w.WriteUint32(boolToUint32(ok))
		w.WriteRaw(buf)
	}

	return s.reply(common.MsgTProperty, w.Bytes())
}

func (s *Server) handleGetObjectSubtypes(q *request) error {
	dev, err := q.device()
	if err != nil {
		return err
	}
	objectType, err := q.r.ReadDataType()
	if err != nil {
		return malformed("object type", err)
	}

	w := serializer.NewWriter(64)
	w.WriteDataType(objectType)
	w.WriteStringList(dev.GetObjectSubtypes(objectType))
	return s.reply(common.MsgTObjectSubtypes, w.Bytes())
}

func (s *Server) handleGetObjectInfo(q *request) error {
	dev, err := q.device()
	if err != nil {
		return err
	}

	objectType, err := q.r.ReadDataType()
	if err != nil {
		return malformed("object type", err)
	}
	subtype, err := q.r.ReadString()
	if err != nil {
		return malformed("subtype", err)
	}
	infoName, err := q.r.ReadString()
	if err != nil {
		return malformed("info name", err)
	}
	infoType, err := q.r.ReadDataType()
	if err != nil {
		return malformed("info type", err)
	}

	w := serializer.NewWriter(64)
	w.WriteDataType(objectType)
	w.WriteString(subtype)
	w.WriteString(infoName)
	w.WriteDataType(infoType)

	value := dev.GetObjectInfo(objectType, subtype, infoName, infoType)
	if err := writeInfoValue(w, infoType, value); err != nil {
		return fmt.Errorf("object info %q of %s %q: %w", infoName, objectType, subtype, err)
	}

	return s.reply(common.MsgTObjectInfo, w.Bytes())
}

func (s *Server) handleGetParameterInfo(q *request) error {
	dev, err := q.device()
	if err != nil {
		return err
	}

	objectType, err := q.r.ReadDataType()
	if err != nil {
		return malformed("object type", err)
	}
	subtype, err := q.r.ReadString()
	if err != nil {
		return malformed("subtype", err)
	}
	paramName, err := q.r.ReadString()
	if err != nil {
		return malformed("parameter name", err)
	}
	paramType, err := q.r.ReadDataType()
	if err != nil {
		return malformed("parameter type", err)
	}
	infoName, err := q.r.ReadString()
	if err != nil {
		return malformed("info name", err)
	}
	infoType, err := q.r.ReadDataType()
	if err != nil {
		return malformed("info type", err)
	}

	w := serializer.NewWriter(64)
	w.WriteDataType(objectType)
	w.WriteString(subtype)
	w.WriteString(paramName)
	w.WriteDataType(paramType)
	w.WriteString(infoName)
	w.WriteDataType(infoType)

	value := dev.GetParameterInfo(objectType, subtype, paramName, paramType, infoName, infoType)
	if err := writeInfoValue(w, infoType, value); err != nil {
		return fmt.Errorf("parameter info %q of %q: %w", infoName, paramName, err)
	}

	return s.reply(common.MsgTParameterInfo, w.Bytes())
}

// writeInfoValue appends a query result in the encoding of its declared type.
// A nil value (nothing found) appends nothing.
func writeInfoValue(w *serializer.Writer, infoType engine.DataType, value any) error {
	if value == nil {
		return nil
	}

	switch infoType {
	case engine.TypeString:
		if v, ok := value.(string); ok {
			w.WriteString(v)
			return nil
		}
	case engine.TypeStringList:
		if v, ok := value.([]string); ok {
			w.WriteStringList(v)
			return nil
		}
	case engine.TypeParameterList:
		if v, ok := value.([]engine.Parameter); ok {
			w.WriteParameterList(v)
			return nil
		}
	case engine.TypeDataTypeList:
		return fmt.Errorf("%w: %s values", ErrUnsupportedEncoding, infoType)
	default:
		size := engine.SizeOf(infoType)
		if v, ok := value.([]byte); ok && size > 0 && uint64(len(v)) >= size {
			w.WriteRaw(v[:size])
			return nil
		}
	}
	return fmt.Errorf("%w: %T value for type %s", ErrUnsupportedEncoding, value, infoType)
}
