package tcp

import (
	"net"
	"time"

	"github.com/ValentinKolb/dRender/rpc/common"
	"github.com/ValentinKolb/dRender/rpc/transport"
	"github.com/ValentinKolb/dRender/rpc/transport/base"
)

// clientConnector implements the IClientConnector interface for TCP sockets
type clientConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "tcp"
}

func (c *clientConnector) Connect(config common.ClientConfig) (base.FrameConn, error) {
	dialer := net.Dialer{Timeout: time.Duration(config.TimeoutSecond) * time.Second}
	conn, err := dialer.Dial("tcp", config.Transport.Endpoint)
	if err != nil {
		return nil, err
	}

	if err := upgradeConnection(conn, config.Transport); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return base.NewStreamConn(conn, config.Transport.FrameLimit()), nil
}

// --------------------------------------------------------------------------
// Client Transport Factory Method
// --------------------------------------------------------------------------

// NewTCPClientTransport creates a new TCP client transport
func NewTCPClientTransport() transport.IRPCClientTransport {
	return base.NewBaseClientTransport(&clientConnector{})
}
