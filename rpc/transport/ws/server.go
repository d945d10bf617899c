package ws

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/ValentinKolb/dRender/rpc/common"
	"github.com/ValentinKolb/dRender/rpc/transport"
	"github.com/ValentinKolb/dRender/rpc/transport/base"
	"github.com/gorilla/websocket"
)

// Path is the HTTP path the websocket endpoint is served on
const Path = "/"

// serverConnector implements the IServerConnector interface for websockets
type serverConnector struct{}

// listener accepts websocket upgrades on an HTTP server and hands them out as frame connections
type listener struct {
	ln       net.Listener
	srv      *http.Server
	upgrader websocket.Upgrader
	limit    uint64
	conns    chan *websocket.Conn
	done     chan struct{}
	once     sync.Once
}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return "ws"
}

func (c *serverConnector) Listen(config common.ServerConfig) (base.FrameListener, error) {
	ln, err := net.Listen("tcp", config.Transport.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create TCP socket: %v", err)
	}

	l := &listener{
		ln: ln,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.Transport.ReadBufferSize,
			WriteBufferSize: config.Transport.WriteBufferSize,
			// render clients are not browsers, there is no origin to check
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limit: config.Transport.FrameLimit(),
		conns: make(chan *websocket.Conn),
		done:  make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(Path, l.handleUpgrade)
	l.srv = &http.Server{Handler: mux}

	go func() {
		if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			base.Logger.Errorf("Websocket HTTP server failed: %v", err)
			_ = l.Close()
		}
	}()

	return l, nil
}

func (l *listener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		base.Logger.Warningf("Websocket upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}

	select {
	case l.conns <- conn:
	case <-l.done:
		_ = conn.Close()
	}
}

func (l *listener) Accept() (base.FrameConn, error) {
	select {
	case conn := <-l.conns:
		return newFrameConn(conn, l.limit), nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

func (l *listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops the HTTP server. Hijacked websocket connections stay open.
func (l *listener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.done)
		err = l.srv.Close()
	})
	return err
}

// --------------------------------------------------------------------------
// Server Transport Factory Method
// --------------------------------------------------------------------------

// NewWSServerTransport creates a new websocket server transport
func NewWSServerTransport() transport.IRPCServerTransport {
	return base.NewBaseServerTransport(&serverConnector{})
}
