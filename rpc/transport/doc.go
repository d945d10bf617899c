// Package transport defines the connection layer of the render protocol.
//
// The protocol needs very little from a transport: accept one connection, receive framed
// messages carrying a type code, and queue framed messages for writing while preserving
// their order. Implementations live in the sub packages:
//
//   - base: protocol agnostic server and client built on connector interfaces, the
//     stream frame codec and the single writer queue
//   - tcp, unix: stream socket connectors
//   - ws: websocket connector, one binary websocket message per frame
//
// Key Components:
//
//   - Frame: a message type code and its payload.
//
//   - IRPCServerTransport: accepts connections and hands every frame to a
//     ServerHandleFunc. Replies are queued with Send.
//
//   - IRPCClientTransport: a single client connection delivering inbound frames on a channel.
package transport
