package client

import (
	"fmt"

	"github.com/ValentinKolb/dRender/lib/compression"
	"github.com/ValentinKolb/dRender/lib/engine"
	"github.com/ValentinKolb/dRender/lib/registry"
	"github.com/ValentinKolb/dRender/rpc/common"
	"github.com/ValentinKolb/dRender/rpc/serializer"
)

// Channel is a received frame channel with raw (decompressed) pixels
type Channel struct {
	Width  uint32
	Height uint32
	Type   engine.DataType
	Data   []byte
	// Codec names the codec the channel was sent with, empty if sent raw
	Codec string
}

// Frame holds the channels of a rendered frame. Channels the frame does not have are nil.
type Frame struct {
	Color *Channel
	Depth *Channel
}

// RenderFrame renders a frame and receives its channels. The server sends zero, one or two
// channels, a trailing FrameReady request marks the end of them.
func (c *Client) RenderFrame(dev, frame registry.Handle) (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send(common.MsgTRenderFrame, header(dev, frame), nil); err != nil {
		return nil, err
	}
	if err := c.send(common.MsgTFrameReady, header(dev, frame), func(w *serializer.Writer) {
		w.WriteUint32(uint32(engine.NoWait))
	}); err != nil {
		return nil, err
	}

	out := &Frame{}
	for {
		reply, err := c.await(common.MsgTChannelColor, common.MsgTChannelDepth, common.MsgTFrameIsReady)
		if err != nil {
			return nil, err
		}
		r := serializer.NewReader(reply.Payload)
		if err := expectObject(r, frame); err != nil {
			return nil, err
		}

		switch reply.Type {
		case common.MsgTFrameIsReady:
			return out, nil
		case common.MsgTChannelColor:
			if out.Color, err = c.decodeChannel(r, compression.PurposeColor); err != nil {
				return nil, fmt.Errorf("color channel: %w", err)
			}
		case common.MsgTChannelDepth:
			if out.Depth, err = c.decodeChannel(r, compression.PurposeDepth); err != nil {
				return nil, fmt.Errorf("depth channel: %w", err)
			}
		}
	}
}

// FrameReady waits for (Wait) or polls (NoWait) a frame
func (c *Client) FrameReady(dev, frame registry.Handle, mask engine.WaitMask) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, err := c.invokeRPCRequest(common.MsgTFrameReady, header(dev, frame), func(w *serializer.Writer) {
		w.WriteUint32(uint32(mask))
	}, common.MsgTFrameIsReady)
	if err != nil {
		return err
	}
	return expectObject(r, frame)
}

// decodeChannel reads a channel reply after the object handle. A compressed channel is
// shorter than its raw pixels and carries its size first.
func (c *Client) decodeChannel(r *serializer.Reader, purpose compression.Purpose) (*Channel, error) {
	ch := &Channel{}
	var err error
	if ch.Width, err = r.ReadUint32(); err != nil {
		return nil, fmt.Errorf("reading width: %w", err)
	}
	if ch.Height, err = r.ReadUint32(); err != nil {
		return nil, fmt.Errorf("reading height: %w", err)
	}
	if ch.Type, err = r.ReadDataType(); err != nil {
		return nil, fmt.Errorf("reading pixel type: %w", err)
	}

	rawSize := uint64(ch.Width) * uint64(ch.Height) * engine.SizeOf(ch.Type)
	if uint64(r.Remaining()) >= rawSize {
		ch.Data, err = r.ReadRaw(rawSize)
		return ch, err
	}

	n, err := r.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("reading compressed size: %w", err)
	}
	compressed, err := r.ReadRaw(uint64(n))
	if err != nil {
		return nil, fmt.Errorf("reading compressed data: %w", err)
	}

	codec := compression.SelectFrom(c.codecs, purpose, ch.Type, c.features, c.server)
	if codec == nil {
		return nil, fmt.Errorf("compressed %s channel without a negotiated codec", ch.Type)
	}
	if ch.Data, err = codec.Decompress(compressed, ch.Width, ch.Height, ch.Type); err != nil {
		return nil, err
	}
	ch.Codec = codec.Name()
	return ch, nil
}
