// Package client implements a thin remote client for the render server. It encodes
// requests, waits for the matching replies and decompresses received frame channels.
//
// The package focuses on:
//   - Typed calls for every request of the protocol
//   - Caller chosen object handles, the server only assigns device handles
//   - Transparent decoding of compressed and raw frame channels
//
// Requests without a reply (NewObject, SetParam, CommitParams, ...) return as soon as they
// are written. The server never reports errors, a request it can not handle is dropped. A
// missing reply therefore surfaces as ErrTimeout once ClientConfig.TimeoutSecond elapsed.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  Transport:     common.TransportConfig{Type: "tcp", Endpoint: "localhost:31050"},
//	  TimeoutSecond: 5,
//	}
//
//	c, err := client.NewClient(config, tcp.NewTCPClientTransport())
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer c.Close()
//
//	dev, _ := c.NewDevice("default")
//	_ = c.NewObject(dev, 10, engine.TypeFrame, "")
//	_ = c.SetParam(dev, 10, "size", engine.TypeUint32Vec2, size)
//	_ = c.CommitParams(dev, 10)
//	frame, _ := c.RenderFrame(dev, 10)
//
// Thread Safety:
//
//	A Client can be shared between goroutines, requests are sent one at a time.
package client
