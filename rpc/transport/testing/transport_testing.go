package testing

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/ValentinKolb/dRender/rpc/common"
	"github.com/ValentinKolb/dRender/rpc/transport"
)

const replyTimeout = 5 * time.Second

// ServerFactory creates a fresh server transport
type ServerFactory func() transport.IRPCServerTransport

// ClientFactory creates a fresh client transport
type ClientFactory func() transport.IRPCClientTransport

// RunTransportTests runs the transport test suite. endpoint is the listen endpoint,
// clients connect to the address the server reports.
func RunTransportTests(t *testing.T, transportType, endpoint string, newServer ServerFactory, newClient ClientFactory) {
	t.Run("EchoInOrder", func(t *testing.T) {
		addr, stop := start(t, transportType, endpoint, newServer)
		defer stop()

		client := connect(t, transportType, addr, newClient)
		defer client.Close()

		const n = 100
		for i := 0; i < n; i++ {
			send(t, client, transport.Frame{Type: common.MsgTSetParam, Payload: []byte(fmt.Sprint(i))})
		}
		for i := 0; i < n; i++ {
			reply := receive(t, client)
			if string(reply.Payload) != fmt.Sprint(i) {
				t.Fatalf("Expected reply %d, got %q", i, reply.Payload)
			}
		}
	})

	t.Run("PayloadSizes", func(t *testing.T) {
		addr, stop := start(t, transportType, endpoint, newServer)
		defer stop()

		client := connect(t, transportType, addr, newClient)
		defer client.Close()

		for _, size := range []int{0, 1, 4096, 1 << 20} {
			payload := bytes.Repeat([]byte{byte(size)}, size)
			send(t, client, transport.Frame{Type: common.MsgTNewArray, Payload: payload})

			reply := receive(t, client)
			if reply.Type != common.MsgTNewArray {
				t.Errorf("Size %d: expected type %s, got %s", size, common.MsgTNewArray, reply.Type)
			}
			if !bytes.Equal(reply.Payload, payload) {
				t.Errorf("Size %d: payload mismatch (got %d bytes)", size, len(reply.Payload))
			}
		}
	})

	t.Run("Supersede", func(t *testing.T) {
		addr, stop := start(t, transportType, endpoint, newServer)
		defer stop()

		first := connect(t, transportType, addr, newClient)
		defer first.Close()
		send(t, first, transport.Frame{Type: common.MsgTNewDevice})
		receive(t, first)

		second := connect(t, transportType, addr, newClient)
		defer second.Close()
		send(t, second, transport.Frame{Type: common.MsgTNewDevice, Payload: []byte("second")})
		if reply := receive(t, second); string(reply.Payload) != "second" {
			t.Errorf("Expected reply on the new connection, got %q", reply.Payload)
		}

		// the first connection is closed by the server
		select {
		case _, ok := <-first.Recv():
			if ok {
				t.Error("Expected no further frames on the superseded connection")
			}
		case <-time.After(replyTimeout):
			t.Error("Superseded connection was not closed")
		}
	})

	t.Run("Reconnect", func(t *testing.T) {
		addr, stop := start(t, transportType, endpoint, newServer)
		defer stop()

		first := connect(t, transportType, addr, newClient)
		send(t, first, transport.Frame{Type: common.MsgTRetain})
		receive(t, first)
		if err := first.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		second := connect(t, transportType, addr, newClient)
		defer second.Close()
		send(t, second, transport.Frame{Type: common.MsgTRelease})
		if reply := receive(t, second); reply.Type != common.MsgTRelease {
			t.Errorf("Expected %s, got %s", common.MsgTRelease, reply.Type)
		}
	})

	t.Run("SendAfterClose", func(t *testing.T) {
		addr, stop := start(t, transportType, endpoint, newServer)
		defer stop()

		client := connect(t, transportType, addr, newClient)
		_ = client.Close()
		if err := client.Send(transport.Frame{Type: common.MsgTRetain}); err == nil {
			t.Error("Expected error sending on a closed client")
		}
	})
}

// start runs an echo server and returns its address and a stop function
func start(t *testing.T, transportType, endpoint string, newServer ServerFactory) (string, func()) {
	t.Helper()

	srv := newServer()
	srv.RegisterHandler(func(f transport.Frame) error {
		srv.Send(transport.Frame{Type: f.Type, Payload: append([]byte(nil), f.Payload...)})
		return nil
	})

	config := common.ServerConfig{
		Transport: common.TransportConfig{Type: transportType, Endpoint: endpoint, TCPNoDelay: true},
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen(config) }()

	select {
	case <-srv.Ready():
	case err := <-errCh:
		t.Fatalf("Listen failed: %v", err)
	case <-time.After(replyTimeout):
		t.Fatal("Server did not become ready")
	}

	return srv.Addr().String(), func() {
		srv.Stop()
		if err := <-errCh; err != nil {
			t.Errorf("Listen returned %v after Stop", err)
		}
	}
}

func connect(t *testing.T, transportType, addr string, newClient ClientFactory) transport.IRPCClientTransport {
	t.Helper()

	client := newClient()
	config := common.ClientConfig{
		Transport:     common.TransportConfig{Type: transportType, Endpoint: addr, TCPNoDelay: true},
		TimeoutSecond: 5,
	}
	if err := client.Connect(config); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	return client
}

func send(t *testing.T, client transport.IRPCClientTransport, frame transport.Frame) {
	t.Helper()
	if err := client.Send(frame); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
}

func receive(t *testing.T, client transport.IRPCClientTransport) transport.Frame {
	t.Helper()
	select {
	case frame, ok := <-client.Recv():
		if !ok {
			t.Fatalf("Connection closed: %v", client.Err())
		}
		return frame
	case <-time.After(replyTimeout):
		t.Fatal("Timed out waiting for reply")
	}
	return transport.Frame{}
}
