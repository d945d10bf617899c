package transport

import (
	"net"

	"github.com/ValentinKolb/dRender/rpc/common"
)

// Frame is one protocol message: a type code and its payload
type Frame struct {
	Type    common.MessageType
	Payload []byte
}

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is called for every inbound frame, one frame at a time and in arrival
// order. The payload is only valid during the call. Returning an error closes the
// connection the frame arrived on.
type ServerHandleFunc func(frame Frame) error

// IRPCServerTransport accepts one connection at a time, delivers its frames to the
// registered handler and writes replies through a single ordered writer queue.
type IRPCServerTransport interface {
	// RegisterHandler sets the handler for inbound frames. Must be called before Listen.
	RegisterHandler(handler ServerHandleFunc)
	// Listen accepts connections until Stop is called (returns nil) or the transport
	// fails (returns the error). A new connection supersedes the current one.
	Listen(config common.ServerConfig) error
	// Ready is closed once the transport is listening
	Ready() <-chan struct{}
	// Addr returns the listening address, nil before Ready
	Addr() net.Addr
	// Send queues a frame for the current connection. It never blocks and returns false
	// if there is no connection.
	Send(frame Frame) bool
	// Stop closes the listener and the current connection after its queued frames were written
	Stop()
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is a single client connection
type IRPCClientTransport interface {
	// Connect establishes the connection
	Connect(config common.ClientConfig) error
	// Send writes a frame
	Send(frame Frame) error
	// Recv returns the channel inbound frames are delivered on. It is closed when the
	// connection ends, Err then reports why.
	Recv() <-chan Frame
	// Err returns the error that ended the connection (nil while connected or after Close)
	Err() error
	// Close closes the connection
	Close() error
}
