// Package ws implements the render protocol transport over websockets, for clients that
// can not open raw sockets (for example behind HTTP proxies).
//
// Every frame is one binary websocket message: the 4 byte little endian message type
// followed by the payload. The payload length is implied by the message length.
//
// Key Components:
//
//   - serverConnector: serves the upgrade endpoint on Path and hands upgraded
//     connections to the base server transport
//
//   - clientConnector: dials ws://endpoint/ using gorilla/websocket
package ws
