// Package tcp implements the TCP socket transport of the render protocol. It provides
// implementations of the base package's connector interfaces, frames use the stream
// codec of the base package.
//
// Key Components:
//
//   - clientConnector: TCP-specific implementation of base.IClientConnector
//
//   - serverConnector: TCP-specific implementation of base.IServerConnector
//
// Socket options (no delay, keep-alive, linger, buffer sizes) are taken from
// common.TransportConfig and applied to every accepted and dialed connection.
package tcp
