// Package server implements the render server: it decodes protocol messages, resolves the
// client chosen handles through the registry and forwards the calls to a device of the
// loaded rendering library.
//
// The package focuses on:
//   - Decoding every request type and calling the matching engine operation
//   - Translating remote handles (in headers, object parameters and object arrays) into
//     local engine objects
//   - Replying to queries, mapped arrays and rendered frames through the transport's
//     ordered writer queue
//   - Negotiating the frame channel codecs (JPEG color, Snappy depth) per connection
//   - Counting messages, dropped messages and channel bytes for the metrics endpoint
//
// Key Components:
//
//   - Server: owns the library, the registry and the negotiated features. It lives for
//     the whole process, so handles survive a reconnect of the client.
//
//   - NewRPCServer: loads the configured library and registers the dispatcher with a
//     transport.IRPCServerTransport.
//
// Error handling:
//
// A message with an unknown handle, an undecodable payload or a failed engine call is
// logged and dropped, the connection stays open. Only a reply that can not be encoded
// (ErrUnsupportedEncoding) closes the connection, since the client would wait for it forever.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Library: "sink",
//	  Transport: common.TransportConfig{Type: "tcp", Endpoint: ":31050"},
//	}
//
//	s, err := server.NewRPCServer(config, tcp.NewTCPServerTransport())
//	if err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	if err := s.Serve(ctx); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Thread Safety:
//
//	Messages are dispatched one at a time in arrival order. Serve must be called once.
package server
