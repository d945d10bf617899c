package server

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/dRender/lib/engine"
	"github.com/ValentinKolb/dRender/lib/registry"
	"github.com/ValentinKolb/dRender/rpc/common"
	"github.com/ValentinKolb/dRender/rpc/serializer"
	"github.com/ValentinKolb/dRender/rpc/transport"
)

// request is a decoded message header together with its resolved descriptor and
// a reader positioned at the message specific payload
type request struct {
	msgType common.MessageType
	header  serializer.Header
	desc    registry.ObjectDesc
	r       *serializer.Reader
}

// device returns the resolved device or ErrUnresolved
func (q *request) device() (engine.Device, error) {
	if q.desc.Device == nil {
		return nil, fmt.Errorf("%w: device %d", ErrUnresolved, q.header.Device)
	}
	return q.desc.Device, nil
}

// object returns the resolved device and object or ErrUnresolved
func (q *request) object() (engine.Device, engine.Object, error) {
	dev, err := q.device()
	if err != nil {
		return nil, 0, err
	}
	if q.desc.Object == 0 {
		return nil, 0, fmt.Errorf("%w: object %d on device %d", ErrUnresolved, q.header.Object, q.header.Device)
	}
	return dev, q.desc.Object, nil
}

// handleFrame is the transport handler. Only unsupported encodings are returned (closing
// the connection), every other failure drops the message.
func (s *Server) handleFrame(frame transport.Frame) error {
	s.metrics.message(frame.Type)

	err := s.dispatch(frame)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUnsupportedEncoding):
		s.metrics.dropped.Inc()
		return fmt.Errorf("%s: %w", frame.Type, err)
	default:
		s.metrics.dropped.Inc()
		Logger.Errorf("Dropping %s: %v", frame.Type, err)
		return nil
	}
}

// dispatch decodes the header, resolves it and calls the handler of the message type
func (s *Server) dispatch(frame transport.Frame) error {
	Logger.Debugf("Message: %s, message size: %s", frame.Type, common.FormatBytes(uint64(len(frame.Payload))))

	r := serializer.NewReader(frame.Payload)
	header, err := r.ReadHeader()
	if err != nil {
		return malformed("header", err)
	}

	// the wire type and subtype describe objects created by this very message
	desc := s.registry.ObjectDesc(header.Device, header.Object)
	desc.Type, desc.Subtype = header.Type, header.Subtype

	q := &request{msgType: frame.Type, header: header, desc: desc, r: r}

	switch frame.Type {
	case common.MsgTNewDevice:
		return s.handleNewDevice(q)
	case common.MsgTNewObject:
		return s.handleNewObject(q)
	case common.MsgTNewArray:
		return s.handleNewArray(q)
	case common.MsgTSetParam:
		return s.handleSetParam(q)
	case common.MsgTUnsetParam:
		return s.handleUnsetParam(q)
	case common.MsgTUnsetAllParams, common.MsgTCommitParams, common.MsgTRelease, common.MsgTRetain:
		return s.handleLifecycle(q)
	case common.MsgTMapArray:
		return s.handleMapArray(q)
	case common.MsgTUnmapArray:
		return s.handleUnmapArray(q)
	case common.MsgTRenderFrame:
		return s.handleRenderFrame(q)
	case common.MsgTFrameReady:
		return s.handleFrameReady(q)
	case common.MsgTGetProperty:
		return s.handleGetProperty(q)
	case common.MsgTGetObjectSubtypes:
		return s.handleGetObjectSubtypes(q)
	case common.MsgTGetObjectInfo:
		return s.handleGetObjectInfo(q)
	case common.MsgTGetParameterInfo:
		return s.handleGetParameterInfo(q)
	default:
		Logger.Warningf("Unhandled message of type %s", frame.Type)
		return fmt.Errorf("%w: no handler for %s", ErrMalformedMessage, frame.Type)
	}
}
