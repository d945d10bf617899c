package base

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dRender/rpc/common"
	"github.com/ValentinKolb/dRender/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/rpc")

// recvBufferSize is the number of inbound frames buffered for the consumer
const recvBufferSize = 64

var ErrNotConnected = errors.New("not connected")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection based on the provided configuration,
	// applying protocol-specific socket settings
	Connect(config common.ClientConfig) (FrameConn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.)
type clientTransport struct {
	connector IClientConnector
	config    common.ClientConfig

	mu     sync.Mutex // guards conn and err
	conn   FrameConn
	err    error
	recv   chan transport.Frame
	done   chan struct{} // closed by Close, unblocks the read loop
	closed atomic.Bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{connector: connector}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if config.Transport.Endpoint == "" {
		return fmt.Errorf("no endpoint provided")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return fmt.Errorf("already connected")
	}

	conn, err := t.connector.Connect(config)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", config.Transport.Endpoint, err)
	}

	t.config = config
	t.conn = conn
	t.recv = make(chan transport.Frame, recvBufferSize)
	t.done = make(chan struct{})
	go t.readLoop(conn, t.recv, t.done)

	Logger.Infof("Connected to %s using %s transport", config.Transport.Endpoint, t.connector.GetName())
	return nil
}

func (t *clientTransport) Send(frame transport.Frame) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil || t.closed.Load() {
		return ErrNotConnected
	}

	if t.config.TimeoutSecond > 0 {
		timeout := time.Duration(t.config.TimeoutSecond) * time.Second
		if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}
	return conn.WriteFrame(frame)
}

func (t *clientTransport) Recv() <-chan transport.Frame {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recv
}

func (t *clientTransport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *clientTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}

	t.mu.Lock()
	conn := t.conn
	if t.done != nil {
		close(t.done)
	}
	t.mu.Unlock()
	if conn == nil {
		return nil
	}

	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// readLoop delivers inbound frames until the connection fails or is closed
func (t *clientTransport) readLoop(conn FrameConn, recv chan<- transport.Frame, done <-chan struct{}) {
	defer close(recv)

	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			if !t.closed.Load() {
				t.mu.Lock()
				t.err = err
				t.mu.Unlock()
				Logger.Debugf("Connection to %s ended: %v", t.config.Transport.Endpoint, err)
			}
			return
		}
		select {
		case recv <- frame:
		case <-done:
			return
		}
	}
}
