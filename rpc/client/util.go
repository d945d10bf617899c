package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/dRender/lib/registry"
	"github.com/ValentinKolb/dRender/rpc/common"
	"github.com/ValentinKolb/dRender/rpc/serializer"
	"github.com/ValentinKolb/dRender/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("client")
)

var (
	// ErrTimeout is returned if an expected reply does not arrive in time. The server drops
	// requests it can not handle without replying, so this is the usual failure signal.
	ErrTimeout = errors.New("timeout waiting for reply")

	// ErrConnectionClosed is returned if the connection ended while waiting for a reply
	ErrConnectionClosed = errors.New("connection closed")

	// ErrUnexpectedReply is returned if the server sent a reply of another type or for another object
	ErrUnexpectedReply = errors.New("unexpected reply")
)

// rpcClientAdapter holds the connection state shared by all client operations
type rpcClientAdapter struct {
	config    common.ClientConfig
	transport transport.IRPCClientTransport
}

// send encodes and writes a request. body appends the message specific payload after the header.
func (a *rpcClientAdapter) send(msgType common.MessageType, header serializer.Header, body func(w *serializer.Writer)) error {
	w := serializer.NewWriter(64)
	w.WriteHeader(header)
	if body != nil {
		body(w)
	}

	if err := a.transport.Send(transport.Frame{Type: msgType, Payload: w.Bytes()}); err != nil {
		return fmt.Errorf("sending %s: %w", msgType, err)
	}
	return nil
}

// await returns the next reply. Replies of other types than the expected ones fail with
// ErrUnexpectedReply.
func (a *rpcClientAdapter) await(expected ...common.MessageType) (transport.Frame, error) {
	var timeout <-chan time.Time
	if a.config.TimeoutSecond > 0 {
		timer := time.NewTimer(time.Duration(a.config.TimeoutSecond) * time.Second)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case frame, ok := <-a.transport.Recv():
		if !ok {
			if err := a.transport.Err(); err != nil {
				return transport.Frame{}, fmt.Errorf("%w: %v", ErrConnectionClosed, err)
			}
			return transport.Frame{}, ErrConnectionClosed
		}
		for _, t := range expected {
			if frame.Type == t {
				return frame, nil
			}
		}
		return frame, fmt.Errorf("%w: got %s, expected %v", ErrUnexpectedReply, frame.Type, expected)
	case <-timeout:
		return transport.Frame{}, fmt.Errorf("%w %v", ErrTimeout, expected)
	}
}

// invokeRPCRequest sends a request and waits for its reply of type reply. The reply reader
// is positioned after the echoed object handle if the reply starts with one.
func (a *rpcClientAdapter) invokeRPCRequest(msgType common.MessageType, header serializer.Header, body func(w *serializer.Writer), reply common.MessageType) (*serializer.Reader, error) {
	if err := a.send(msgType, header, body); err != nil {
		return nil, err
	}
	frame, err := a.await(reply)
	if err != nil {
		return nil, err
	}
	return serializer.NewReader(frame.Payload), nil
}

// expectObject reads the object handle a reply starts with and checks it
func expectObject(r *serializer.Reader, want registry.Handle) error {
	got, err := r.ReadHandle()
	if err != nil {
		return fmt.Errorf("reading object handle: %w", err)
	}
	if got != want {
		return fmt.Errorf("%w: reply for object %d, expected %d", ErrUnexpectedReply, got, want)
	}
	return nil
}

func header(dev, obj registry.Handle) serializer.Header {
	return serializer.Header{Device: dev, Object: obj}
}
