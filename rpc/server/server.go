package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/ValentinKolb/dRender/lib/compression"
	"github.com/ValentinKolb/dRender/lib/engine"
	"github.com/ValentinKolb/dRender/lib/registry"
	"github.com/ValentinKolb/dRender/rpc/common"
	"github.com/ValentinKolb/dRender/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

func init() {
	// object references inside arrays and parameters are rewritten in place as handles
	if engine.SizeOf(engine.TypeObject) != engine.ObjectHandleSize {
		panic("server: object references and handles differ in width")
	}
}

// Server owns everything a render session needs: the loaded library, the handle
// registry, the negotiated compression features and the transport. It is created once
// per process and outlives connections, so a reconnecting client still resolves the
// handles it registered before.
type Server struct {
	config    common.ServerConfig
	transport transport.IRPCServerTransport
	library   engine.Library
	registry  *registry.Registry

	codecs    []compression.Codec
	available compression.Features // codecs of this server
	features  compression.Features // codecs usable on the current connection

	metrics    *serverMetrics
	metricsSrv *http.Server
}

// NewRPCServer loads the configured library and registers the dispatcher with the transport
//
// Usage:
//
//	s, err := server.NewRPCServer(config, tcp.NewTCPServerTransport())
//	if err != nil {
//		return err
//	}
//	return s.Serve(ctx)
func NewRPCServer(config common.ServerConfig, t transport.IRPCServerTransport) (*Server, error) {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	s := &Server{
		config:    config,
		transport: t,
		registry:  registry.New(registry.Handle(config.MaxObjectHandle)),
		codecs:    []compression.Codec{compression.NewJPEGCodec(config.EffectiveJPEGQuality()), compression.NewSnappyCodec()},
		available: compression.Available(config.DisableCompression),
		metrics:   newServerMetrics(),
	}

	library, err := engine.Load(config.Library, s.status)
	if err != nil {
		return nil, fmt.Errorf("failed to load library: %w", err)
	}
	s.library = library

	t.RegisterHandler(s.handleFrame)

	Logger.Infof("Created RPC Server with library %q", library.Name())
	Logger.Infof(config.String())
	return s, nil
}

// Serve runs the transport until ctx is canceled (returns nil) or the transport fails.
// The library is closed when Serve returns.
func (s *Server) Serve(ctx context.Context) error {
	if s.config.MetricsEndpoint != "" {
		if err := s.startMetrics(); err != nil {
			_ = s.library.Close()
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.transport.Listen(s.config) }()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		Logger.Infof("Shutting down")
		s.transport.Stop()
		err = <-errCh
	}

	if closeErr := s.close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	return err
}

// Ready is closed once the transport accepts connections
func (s *Server) Ready() <-chan struct{} {
	return s.transport.Ready()
}

// Addr returns the address the transport listens on
func (s *Server) Addr() net.Addr {
	return s.transport.Addr()
}

// close releases the metrics endpoint and the library
func (s *Server) close() error {
	var errs []error
	if s.metricsSrv != nil {
		if err := s.metricsSrv.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing metrics endpoint: %w", err))
		}
	}
	if err := s.library.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing library: %w", err))
	}
	return errors.Join(errs...)
}

// reply queues a reply frame on the current connection. A payload above the frame limit
// would close the connection at the peer, it is rejected before queuing.
func (s *Server) reply(msgType common.MessageType, payload []byte) error {
	if limit := s.config.Transport.FrameLimit(); uint64(len(payload)) > limit {
		return fmt.Errorf("%w: %s reply of %s exceeds the frame limit of %s", ErrMalformedMessage,
			msgType, common.FormatBytes(uint64(len(payload))), common.FormatBytes(limit))
	}
	if !s.transport.Send(transport.Frame{Type: msgType, Payload: payload}) {
		Logger.Warningf("Dropping %s reply, no connection", msgType)
		return nil
	}
	s.metrics.replyBytes.Add(len(payload))
	return nil
}
