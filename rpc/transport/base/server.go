package base

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dRender/lib/queue"
	"github.com/ValentinKolb/dRender/rpc/common"
	"github.com/ValentinKolb/dRender/rpc/transport"
	"github.com/google/uuid"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (FrameListener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// connection is one accepted client. All replies pass through its queue and are
// written by a single goroutine, so they leave in the order they were queued.
type connection struct {
	id           string
	conn         FrameConn
	queue        *queue.MPSC[transport.Frame]
	writeTimeout time.Duration
	writerDone   chan struct{}
	closeOnce    sync.Once
}

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector IServerConnector
	handler   transport.ServerHandleFunc
	config    common.ServerConfig

	mu       sync.Mutex // guards listener, current and err
	listener FrameListener
	current  *connection
	err      error

	// dispatchMu serializes handler calls and connection switches
	dispatchMu sync.Mutex

	ready     chan struct{}
	readyOnce sync.Once
	stopped   atomic.Bool
	wg        sync.WaitGroup
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport on top of the connector
func NewBaseServerTransport(connector IServerConnector) transport.IRPCServerTransport {
	return &serverTransport{
		connector: connector,
		ready:     make(chan struct{}),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}
	t.config = config

	// Create listener using the connector
	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	t.mu.Lock()
	t.listener = listener
	t.mu.Unlock()
	t.readyOnce.Do(func() { close(t.ready) })

	// Stop may have been called before the listener existed
	if t.stopped.Load() {
		_ = listener.Close()
		return nil
	}

	Logger.Infof("Starting %s server on %s", t.connector.GetName(), listener.Addr())

	// Accept connections
	for {
		conn, err := listener.Accept()
		if err != nil {
			if t.stopped.Load() {
				return nil
			}
			t.mu.Lock()
			failure := t.err
			t.mu.Unlock()
			if failure != nil {
				return failure
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		c := t.newConnection(conn)
		Logger.Infof("Connection %s from %s accepted", c.id, conn.RemoteAddr())
		t.replace(c)

		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.serve(c)
		}()
	}
}

func (t *serverTransport) Ready() <-chan struct{} {
	return t.ready
}

func (t *serverTransport) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

func (t *serverTransport) Send(frame transport.Frame) bool {
	t.mu.Lock()
	c := t.current
	t.mu.Unlock()

	if c == nil {
		return false
	}
	return c.queue.Push(&frame)
}

func (t *serverTransport) Stop() {
	if t.stopped.Swap(true) {
		return
	}

	t.mu.Lock()
	listener := t.listener
	c := t.current
	t.current = nil
	t.mu.Unlock()

	if listener != nil {
		_ = listener.Close()
	}
	if c != nil {
		c.close()
	}
	t.wg.Wait()
	Logger.Infof("%s server stopped", t.connector.GetName())
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (t *serverTransport) newConnection(conn FrameConn) *connection {
	c := &connection{
		id:           uuid.NewString(),
		conn:         conn,
		queue:        queue.NewMPSC[transport.Frame](),
		writeTimeout: time.Duration(t.config.Transport.WriteTimeoutSecond) * time.Second,
		writerDone:   make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

// replace makes c the current connection. The previous connection (if any) gets its
// queued replies written and is then closed.
func (t *serverTransport) replace(c *connection) {
	// wait for a running dispatch, its replies belong to the old connection
	t.dispatchMu.Lock()
	t.mu.Lock()
	old := t.current
	t.current = c
	t.mu.Unlock()
	t.dispatchMu.Unlock()

	if old != nil {
		Logger.Infof("Connection %s superseded by %s", old.id, c.id)
		go old.close()
	}
}

// isCurrent reports whether c is still the active connection
func (t *serverTransport) isCurrent(c *connection) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current == c
}

// detach clears the current connection if it is c
func (t *serverTransport) detach(c *connection) {
	t.mu.Lock()
	if t.current == c {
		t.current = nil
	}
	t.mu.Unlock()
}

// fail records a fatal transport error and stops accepting
func (t *serverTransport) fail(err error) {
	t.mu.Lock()
	if t.err == nil {
		t.err = err
	}
	listener := t.listener
	t.mu.Unlock()

	if listener != nil {
		_ = listener.Close()
	}
}

// serve reads frames from c and hands them to the handler one at a time
func (t *serverTransport) serve(c *connection) {
	defer func() {
		t.detach(c)
		c.close()
	}()

	for {
		frame, err := c.conn.ReadFrame()

		if err != nil {
			switch {
			// Case EOF: Connection closed by client
			case errors.Is(err, io.EOF):
				Logger.Infof("Connection %s closed by client", c.id)
			// Case closed: superseded or server stopping
			case errors.Is(err, net.ErrClosed) || t.stopped.Load() || !t.isCurrent(c):
				Logger.Debugf("Connection %s closed", c.id)
			// Case oversized frame: stream can not be resynchronized
			case errors.Is(err, ErrFrameTooLarge):
				Logger.Errorf("Connection %s: %v", c.id, err)
			// Case error: the server can not continue
			default:
				Logger.Errorf("Connection %s read failed: %v", c.id, err)
				t.fail(fmt.Errorf("read from connection %s failed: %w", c.id, err))
			}
			return
		}

		t.dispatchMu.Lock()
		if !t.isCurrent(c) {
			t.dispatchMu.Unlock()
			Logger.Debugf("Dropping %s on superseded connection %s", frame.Type, c.id)
			return
		}
		start := time.Now()
		err = t.handler(frame)
		t.dispatchMu.Unlock()

		Logger.Debugf("Handled %s on connection %s in %s", frame.Type, c.id, time.Since(start))

		// Case handler error: close only this connection
		if err != nil {
			Logger.Errorf("Closing connection %s: %v", c.id, err)
			return
		}
	}
}

// writeLoop writes queued frames until the queue is closed and drained.
// After a write error the remaining frames are discarded.
func (c *connection) writeLoop() {
	defer close(c.writerDone)

	failed := false
	for frame := range c.queue.Recv() {
		if failed {
			continue
		}

		if c.writeTimeout > 0 {
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				Logger.Errorf("Failed to set write deadline: %v", err)
			}
		}

		if err := c.conn.WriteFrame(*frame); err != nil {
			Logger.Errorf("Failed to write %s to connection %s: %v", frame.Type, c.id, err)
			failed = true
			// unblock the reader
			_ = c.conn.Close()
		}
	}
}

// close writes all queued frames, then closes the connection. Safe to call repeatedly.
func (c *connection) close() {
	c.closeOnce.Do(func() {
		c.queue.Close()
		<-c.writerDone
		if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			Logger.Debugf("Closing connection %s: %v", c.id, err)
		}
	})
}
