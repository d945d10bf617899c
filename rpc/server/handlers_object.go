package server

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dRender/lib/engine"
	"github.com/ValentinKolb/dRender/rpc/common"
	"github.com/ValentinKolb/dRender/rpc/serializer"
)

func (s *Server) handleNewDevice(q *request) error {
	deviceType, err := q.r.ReadString()
	if err != nil {
		return malformed("device type", err)
	}
	client, err := q.r.ReadFeatures()
	if err != nil {
		return malformed("compression features", err)
	}

	dev, err := s.library.NewDevice(deviceType)
	if err != nil {
		return fmt.Errorf("%w: creating device %q: %v", ErrEngine, deviceType, err)
	}
	h := s.registry.RegisterDevice(dev)

	s.features = client.Intersect(s.available)
	Logger.Infof("Created device %d of type %q, compression %s", h, deviceType, s.features)

	w := serializer.NewWriter(10)
	w.WriteHandle(h)
	w.WriteFeatures(s.available)
	return s.reply(common.MsgTDeviceHandle, w.Bytes())
}

func (s *Server) handleNewObject(q *request) error {
	dev, err := q.device()
	if err != nil {
		return err
	}
	if q.header.Object == 0 {
		return fmt.Errorf("%w: object handle 0 is reserved", ErrMalformedMessage)
	}

	obj := dev.NewObject(q.desc.Type, q.desc.Subtype)
	if obj == 0 {
		return fmt.Errorf("%w: no %s %q created", ErrEngine, q.desc.Type, q.desc.Subtype)
	}
	return s.registry.RegisterObject(q.header.Device, q.header.Object, obj, q.desc.Type, q.desc.Subtype)
}

func (s *Server) handleSetParam(q *request) error {
	dev, obj, err := q.object()
	if err != nil {
		return err
	}

	name, err := q.r.ReadString()
	if err != nil {
		return malformed("parameter name", err)
	}
	t, err := q.r.ReadDataType()
	if err != nil {
		return malformed("parameter type", err)
	}

	var value []byte
	switch {
	case engine.IsObject(t):
		// object parameters carry a handle, the engine gets a reference to the local object
		h, err := q.r.ReadHandle()
		if err != nil {
			return malformed("parameter "+name, err)
		}
		var local engine.Object
		if h != 0 {
			local = s.registry.ObjectDesc(q.header.Device, h).Object
			if local == 0 {
				return fmt.Errorf("%w: parameter %q references object %d", ErrUnresolved, name, h)
			}
		}
		value = binary.LittleEndian.AppendUint64(make([]byte, 0, engine.ObjectHandleSize), uint64(local))

	case t == engine.TypeString:
		str, err := q.r.ReadString()
		if err != nil {
			return malformed("parameter "+name, err)
		}
		value = []byte(str)

	default:
		size := engine.SizeOf(t)
		if size == 0 {
			return fmt.Errorf("%w: parameter %q has type %s without fixed size", ErrMalformedMessage, name, t)
		}
		if value, err = q.r.ReadRaw(size); err != nil {
			return malformed("parameter "+name, err)
		}
	}

	dev.SetParameter(obj, name, t, value)
	return nil
}

func (s *Server) handleUnsetParam(q *request) error {
	dev, obj, err := q.object()
	if err != nil {
		return err
	}
	name, err := q.r.ReadString()
	if err != nil {
		return malformed("parameter name", err)
	}
	dev.UnsetParameter(obj, name)
	return nil
}

// handleLifecycle passes the payload free object operations through to the engine
func (s *Server) handleLifecycle(q *request) error {
	dev, obj, err := q.object()
	if err != nil {
		return err
	}

	switch q.msgType {
	case common.MsgTUnsetAllParams:
		dev.UnsetAllParameters(obj)
	case common.MsgTCommitParams:
		dev.CommitParameters(obj)
	case common.MsgTRelease:
		dev.Release(obj)
	case common.MsgTRetain:
		dev.Retain(obj)
	}
	return nil
}
