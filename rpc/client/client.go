package client

import (
	"fmt"
	"sync"

	"github.com/ValentinKolb/dRender/lib/compression"
	"github.com/ValentinKolb/dRender/lib/engine"
	"github.com/ValentinKolb/dRender/lib/registry"
	"github.com/ValentinKolb/dRender/rpc/common"
	"github.com/ValentinKolb/dRender/rpc/serializer"
	"github.com/ValentinKolb/dRender/rpc/transport"
)

// Client drives a remote render server. Object handles are chosen by the caller, device
// handles are assigned by the server.
type Client struct {
	rpcClientAdapter

	// mu keeps a request and its reply together
	mu       sync.Mutex
	features compression.Features // announced by this client
	server   compression.Features // announced by the server at the last NewDevice
	codecs   []compression.Codec
}

// NewClient connects the transport
func NewClient(config common.ClientConfig, t transport.IRPCClientTransport) (*Client, error) {
	if err := t.Connect(config); err != nil {
		return nil, err
	}

	c := &Client{
		rpcClientAdapter: rpcClientAdapter{config: config, transport: t},
		features:         compression.Available(config.DisableCompression),
		codecs:           []compression.Codec{compression.NewJPEGCodec(compression.DefaultJPEGQuality), compression.NewSnappyCodec()},
	}
	return c, nil
}

// Close closes the connection
func (c *Client) Close() error {
	return c.transport.Close()
}

// ServerFeatures returns the codecs the server announced on the last NewDevice
func (c *Client) ServerFeatures() compression.Features {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.server
}

// --------------------------------------------------------------------------
// Devices and objects
// --------------------------------------------------------------------------

// NewDevice creates a device of the given type on the server and returns its handle
func (c *Client) NewDevice(deviceType string) (registry.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, err := c.invokeRPCRequest(common.MsgTNewDevice, serializer.Header{Type: engine.TypeDevice}, func(w *serializer.Writer) {
		w.WriteString(deviceType)
		w.WriteFeatures(c.features)
	}, common.MsgTDeviceHandle)
	if err != nil {
		return 0, err
	}

	h, err := r.ReadHandle()
	if err != nil {
		return 0, fmt.Errorf("reading device handle: %w", err)
	}
	if c.server, err = r.ReadFeatures(); err != nil {
		return 0, fmt.Errorf("reading server features: %w", err)
	}
	Logger.Debugf("Created device %d, server compression %s", h, c.server)
	return h, nil
}

// NewObject creates an object under the handle obj. The server does not reply.
func (c *Client) NewObject(dev, obj registry.Handle, objectType engine.DataType, subtype string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(common.MsgTNewObject, serializer.Header{Device: dev, Object: obj, Type: objectType, Subtype: subtype}, nil)
}

// NewArray creates an array under the handle obj. data may be nil, otherwise it must hold
// all elements. Arrays of objects carry handles of this client.
func (c *Client) NewArray(dev, obj registry.Handle, arrayType, elementType engine.DataType, n1, n2, n3 uint64, data []byte) error {
	info := registry.ArrayInfo{Type: arrayType, ElementType: elementType, NumItems1: n1, NumItems2: n2, NumItems3: n3}
	if data != nil && uint64(len(data)) != info.SizeInBytes() {
		return fmt.Errorf("array data has %d bytes, expected %d", len(data), info.SizeInBytes())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(common.MsgTNewArray, serializer.Header{Device: dev, Object: obj, Type: arrayType}, func(w *serializer.Writer) {
		w.WriteDataType(elementType)
		w.WriteUint64(n1)
		w.WriteUint64(n2)
		w.WriteUint64(n3)
		w.WriteRaw(data)
	})
}

// SetParam sets a parameter of fixed size type t to the raw value
func (c *Client) SetParam(dev, obj registry.Handle, name string, t engine.DataType, value []byte) error {
	if engine.IsObject(t) || t == engine.TypeString {
		return fmt.Errorf("parameter %q: use SetObjectParam or SetStringParam for %s", name, t)
	}
	if size := engine.SizeOf(t); size == 0 || uint64(len(value)) != size {
		return fmt.Errorf("parameter %q: %s value has %d bytes, expected %d", name, t, len(value), engine.SizeOf(t))
	}
	return c.setParam(dev, obj, name, t, func(w *serializer.Writer) { w.WriteRaw(value) })
}

// SetObjectParam sets a parameter referencing the object ref (0 is the null object)
func (c *Client) SetObjectParam(dev, obj registry.Handle, name string, t engine.DataType, ref registry.Handle) error {
	if !engine.IsObject(t) {
		return fmt.Errorf("parameter %q: %s is not an object type", name, t)
	}
	return c.setParam(dev, obj, name, t, func(w *serializer.Writer) { w.WriteHandle(ref) })
}

// SetStringParam sets a STRING parameter
func (c *Client) SetStringParam(dev, obj registry.Handle, name, value string) error {
	return c.setParam(dev, obj, name, engine.TypeString, func(w *serializer.Writer) { w.WriteString(value) })
}

func (c *Client) setParam(dev, obj registry.Handle, name string, t engine.DataType, value func(w *serializer.Writer)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(common.MsgTSetParam, header(dev, obj), func(w *serializer.Writer) {
		w.WriteString(name)
		w.WriteDataType(t)
		value(w)
	})
}

func (c *Client) UnsetParam(dev, obj registry.Handle, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(common.MsgTUnsetParam, header(dev, obj), func(w *serializer.Writer) { w.WriteString(name) })
}

func (c *Client) UnsetAllParams(dev, obj registry.Handle) error {
	return c.lifecycle(common.MsgTUnsetAllParams, dev, obj)
}

func (c *Client) CommitParams(dev, obj registry.Handle) error {
	return c.lifecycle(common.MsgTCommitParams, dev, obj)
}

func (c *Client) Release(dev, obj registry.Handle) error {
	return c.lifecycle(common.MsgTRelease, dev, obj)
}

func (c *Client) Retain(dev, obj registry.Handle) error {
	return c.lifecycle(common.MsgTRetain, dev, obj)
}

func (c *Client) lifecycle(msgType common.MessageType, dev, obj registry.Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(msgType, header(dev, obj), nil)
}

// --------------------------------------------------------------------------
// Arrays
// --------------------------------------------------------------------------

// MapArray returns the current contents of an array. Arrays of objects hold the server's
// local object references.
func (c *Client) MapArray(dev, obj registry.Handle) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, err := c.invokeRPCRequest(common.MsgTMapArray, header(dev, obj), nil, common.MsgTArrayMapped)
	if err != nil {
		return nil, err
	}
	if err := expectObject(r, obj); err != nil {
		return nil, err
	}
	size, err := r.ReadUint64()
	if err != nil {
		return nil, fmt.Errorf("reading array size: %w", err)
	}
	data, err := r.ReadRaw(size)
	if err != nil {
		return nil, fmt.Errorf("reading array data: %w", err)
	}
	return data, nil
}

// UnmapArray ends a mapping. If data is not nil it replaces the array contents.
func (c *Client) UnmapArray(dev, obj registry.Handle, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, err := c.invokeRPCRequest(common.MsgTUnmapArray, header(dev, obj), func(w *serializer.Writer) {
		w.WriteRaw(data)
	}, common.MsgTArrayUnmapped)
	if err != nil {
		return err
	}
	return expectObject(r, obj)
}
