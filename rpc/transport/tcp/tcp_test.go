package tcp

import (
	"testing"

	"github.com/ValentinKolb/dRender/rpc/transport"
	transportTesting "github.com/ValentinKolb/dRender/rpc/transport/testing"
)

func TestTCPTransport(t *testing.T) {
	transportTesting.RunTransportTests(t, "tcp", "127.0.0.1:0",
		func() transport.IRPCServerTransport { return NewTCPServerTransport() },
		func() transport.IRPCClientTransport { return NewTCPClientTransport() },
	)
}
