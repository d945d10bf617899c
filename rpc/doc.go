// Package rpc provides the remote rendering protocol: a client builds a scene graph on a
// server side rendering library and receives the rendered frames over a single connection.
//
// The package is organized into several subpackages:
//
//   - common: message types, configuration structures and logging shared by server,
//     transports and client.
//
//   - serializer: the little-endian wire buffer (headers, strings, string lists,
//     parameter lists and raw values).
//
//   - transport: the connection layer with pluggable implementations (TCP, Unix sockets,
//     WebSocket).
//
//   - server: the dispatcher that translates messages into calls on the loaded library,
//     keeps the handle registry and streams compressed frame channels back.
//
//   - client: a synchronous remote client mirroring the library API.
package rpc
