// Package base provides the foundation of the render protocol transports, implementing
// the client and server independent of the specific network protocol (TCP, Unix sockets,
// websockets). Protocol specific behaviour is supplied through connectors.
//
// The package focuses on:
//   - Protocol-agnostic client and server transport implementations
//   - Frame-based message protocol (message type, payload length, payload)
//   - Ordered replies through a single writer per connection
//   - One active connection at a time, a new connection supersedes the old one
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     that allow extending the base transport with different network protocols.
//
//   - FrameConn/FrameListener: connections that read and write whole frames. Stream
//     sockets use NewStreamConn, message based protocols implement them directly.
//
//   - serverTransport: accepts connections and hands every frame to the handler.
//     Handler calls are serialized. Replies are queued in a lock-free MPSC queue and
//     written by a dedicated goroutine, so a reply never blocks the dispatcher.
//
//   - clientTransport: a single connection with a reader goroutine that delivers
//     inbound frames on a channel.
//
// Error Handling:
//
//	A clean end of stream is logged and the server keeps accepting. A handler error
//	closes the connection it occurred on. Any other read or accept error stops the
//	server and is returned from Listen.
package base
