package base

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dRender/rpc/common"
	"github.com/ValentinKolb/dRender/rpc/transport"
)

// pipeListener hands out in-memory connections created by dial
type pipeListener struct {
	conns chan net.Conn
	done  chan struct{}
	once  sync.Once
}

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "pipe" }

func (l *pipeListener) Accept() (FrameConn, error) {
	select {
	case conn := <-l.conns:
		return NewStreamConn(conn, 1<<20), nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

func (l *pipeListener) Addr() net.Addr { return pipeAddr{} }

func (l *pipeListener) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

type pipeConnector struct {
	listener *pipeListener
}

func (c *pipeConnector) GetName() string { return "pipe" }

func (c *pipeConnector) Listen(common.ServerConfig) (FrameListener, error) {
	return c.listener, nil
}

// startServer runs a server transport with the handler on an in-memory listener
func startServer(t *testing.T, handler func(srv transport.IRPCServerTransport, f transport.Frame) error) (transport.IRPCServerTransport, func() net.Conn, <-chan error) {
	t.Helper()

	listener := &pipeListener{conns: make(chan net.Conn), done: make(chan struct{})}
	srv := NewBaseServerTransport(&pipeConnector{listener: listener})
	srv.RegisterHandler(func(f transport.Frame) error { return handler(srv, f) })

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen(common.ServerConfig{}) }()

	select {
	case <-srv.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("Server did not become ready")
	}

	dial := func() net.Conn {
		server, client := net.Pipe()
		listener.conns <- server
		return client
	}
	return srv, dial, errCh
}

func echo(srv transport.IRPCServerTransport, f transport.Frame) error {
	srv.Send(transport.Frame{Type: f.Type, Payload: append([]byte(nil), f.Payload...)})
	return nil
}

func roundTrip(t *testing.T, conn net.Conn, frame transport.Frame) transport.Frame {
	t.Helper()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	if err := writeFrame(conn, frame); err != nil {
		t.Fatalf("writeFrame failed: %v", err)
	}
	reply, err := readFrame(conn, make([]byte, frameHeaderSize), 1<<20)
	if err != nil {
		t.Fatalf("readFrame failed: %v", err)
	}
	return reply
}

func TestServerRepliesInOrder(t *testing.T) {
	srv, dial, errCh := startServer(t, echo)
	conn := dial()

	const n = 50
	go func() {
		for i := 0; i < n; i++ {
			_ = writeFrame(conn, transport.Frame{Type: common.MsgTSetParam, Payload: []byte(fmt.Sprint(i))})
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	header := make([]byte, frameHeaderSize)
	for i := 0; i < n; i++ {
		reply, err := readFrame(conn, header, 1<<20)
		if err != nil {
			t.Fatalf("Reply %d: %v", i, err)
		}
		if string(reply.Payload) != fmt.Sprint(i) {
			t.Fatalf("Expected reply %d, got %q", i, reply.Payload)
		}
	}

	srv.Stop()
	if err := <-errCh; err != nil {
		t.Errorf("Listen returned %v after Stop", err)
	}
}

func TestServerMultipleRepliesPerRequest(t *testing.T) {
	srv, dial, errCh := startServer(t, func(srv transport.IRPCServerTransport, f transport.Frame) error {
		srv.Send(transport.Frame{Type: common.MsgTChannelColor, Payload: []byte("color")})
		srv.Send(transport.Frame{Type: common.MsgTChannelDepth, Payload: []byte("depth")})
		return nil
	})
	conn := dial()

	first := roundTrip(t, conn, transport.Frame{Type: common.MsgTRenderFrame})
	second, err := readFrame(conn, make([]byte, frameHeaderSize), 1<<20)
	if err != nil {
		t.Fatalf("readFrame failed: %v", err)
	}
	if first.Type != common.MsgTChannelColor || second.Type != common.MsgTChannelDepth {
		t.Errorf("Expected color then depth, got %s then %s", first.Type, second.Type)
	}

	srv.Stop()
	<-errCh
}

func TestServerSupersedesConnection(t *testing.T) {
	srv, dial, errCh := startServer(t, echo)

	first := dial()
	roundTrip(t, first, transport.Frame{Type: common.MsgTNewDevice, Payload: []byte("a")})

	second := dial()
	reply := roundTrip(t, second, transport.Frame{Type: common.MsgTNewDevice, Payload: []byte("b")})
	if !bytes.Equal(reply.Payload, []byte("b")) {
		t.Errorf("Expected reply on the new connection, got %q", reply.Payload)
	}

	// the old connection is closed by the server
	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := first.Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
		t.Errorf("Expected EOF on superseded connection, got %v", err)
	}

	srv.Stop()
	<-errCh
}

func TestServerHandlerErrorClosesConnection(t *testing.T) {
	srv, dial, errCh := startServer(t, func(srv transport.IRPCServerTransport, f transport.Frame) error {
		if f.Type == common.MsgTGetProperty {
			return errors.New("unsupported")
		}
		return echo(srv, f)
	})

	conn := dial()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	if err := writeFrame(conn, transport.Frame{Type: common.MsgTGetProperty}); err != nil {
		t.Fatalf("writeFrame failed: %v", err)
	}
	if _, err := conn.Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
		t.Errorf("Expected EOF after handler error, got %v", err)
	}

	// the server keeps accepting
	next := dial()
	roundTrip(t, next, transport.Frame{Type: common.MsgTRetain})

	srv.Stop()
	if err := <-errCh; err != nil {
		t.Errorf("Listen returned %v after Stop", err)
	}
}

func TestServerKeepsAcceptingAfterEOF(t *testing.T) {
	srv, dial, errCh := startServer(t, echo)

	conn := dial()
	roundTrip(t, conn, transport.Frame{Type: common.MsgTRetain})
	_ = conn.Close()

	next := dial()
	roundTrip(t, next, transport.Frame{Type: common.MsgTRelease})

	srv.Stop()
	if err := <-errCh; err != nil {
		t.Errorf("Listen returned %v after Stop", err)
	}
}

func TestServerHaltsOnReadError(t *testing.T) {
	srv, dial, errCh := startServer(t, echo)
	defer srv.Stop()

	conn := dial()
	// half a frame header, then the peer goes away
	if _, err := conn.Write([]byte{1, 0, 0, 0, 0, 0}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	_ = conn.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Errorf("Expected io.ErrUnexpectedEOF, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return after read error")
	}
}

func TestServerSendWithoutConnection(t *testing.T) {
	srv, _, errCh := startServer(t, echo)
	if srv.Send(transport.Frame{Type: common.MsgTProperty}) {
		t.Error("Send without connection should return false")
	}
	if srv.Addr() == nil {
		t.Error("Addr should be set once ready")
	}
	srv.Stop()
	<-errCh
}
