// Package unix implements the render protocol transport over Unix domain sockets, for
// a client running on the same machine as the server.
//
// This package extends the base transport layer with Unix socket-specific connectors
// while inheriting framing, ordered replies and error handling from the base package.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates Unix socket listeners, removing a stale socket file first
package unix
