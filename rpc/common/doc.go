// Package common provides the types shared by the render server, its transports and the
// remote client.
//
// Key Components:
//
//   - MessageType: the type code of every frame. The numeric values are fixed by the
//     protocol: requests and their replies are interleaved in the order NewDevice,
//     DeviceHandle, NewObject, ... ParameterInfo.
//
//   - ServerConfig / ClientConfig: configuration of the server process and of a client,
//     both embedding a TransportConfig. Each provides a String() table that is logged at
//     startup.
//
//   - Logger: custom logging implementation that plugs into Dragonboat's logger registry,
//     so every package obtains its logger with logger.GetLogger(name) and InitLoggers
//     sets format and level for all of them.
package common
