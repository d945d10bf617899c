package unix

import (
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/dRender/rpc/transport"
	transportTesting "github.com/ValentinKolb/dRender/rpc/transport/testing"
)

func TestUnixTransport(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "drender.sock")
	transportTesting.RunTransportTests(t, "unix", socket,
		func() transport.IRPCServerTransport { return NewUnixServerTransport() },
		func() transport.IRPCClientTransport { return NewUnixClientTransport() },
	)
}
