package server

import (
	"fmt"
	"math"

	"github.com/ValentinKolb/dRender/lib/compression"
	"github.com/ValentinKolb/dRender/lib/engine"
	"github.com/ValentinKolb/dRender/rpc/common"
	"github.com/ValentinKolb/dRender/rpc/serializer"
)

// channelHeaderSize is object handle, width, height and pixel type
const channelHeaderSize = 8 + 4 + 4 + 4

func (s *Server) handleRenderFrame(q *request) error {
	dev, frame, err := q.object()
	if err != nil {
		return err
	}

	dev.RenderFrame(frame)
	// channels are read only after the frame completed
	dev.FrameReady(frame, engine.Wait)

	if err := s.sendChannel(q, dev, frame, engine.ChannelColor, compression.PurposeColor, common.MsgTChannelColor); err != nil {
		return err
	}
	return s.sendChannel(q, dev, frame, engine.ChannelDepth, compression.PurposeDepth, common.MsgTChannelDepth)
}

// sendChannel maps a frame channel and replies with its pixels. The compressed form is
// used if a codec is negotiated for the channel and the result is smaller than the raw
// pixels. A channel without pixels is skipped.
func (s *Server) sendChannel(q *request, dev engine.Device, frame engine.Object, name string, purpose compression.Purpose, msgType common.MessageType) error {
	ch := dev.MapFrame(frame, name)
	defer dev.UnmapFrame(frame, name)

	size := uint64(ch.Width) * uint64(ch.Height) * engine.SizeOf(ch.Type)
	if size == 0 {
		return nil
	}
	if uint64(len(ch.Data)) < size {
		return fmt.Errorf("%w: %s of frame %d has %d bytes, expected %d", ErrEngine, name, q.header.Object, len(ch.Data), size)
	}
	raw := ch.Data[:size]

	codec := compression.SelectFrom(s.codecs, purpose, ch.Type, s.features, s.available)

	capacity := size
	if codec != nil {
		if bound := codec.MaxCompressedSize(ch.Width, ch.Height, ch.Type); bound < size {
			capacity = 4 + bound
		}
	}
	w := serializer.NewWriter(channelHeaderSize + int(capacity))
	w.WriteHandle(q.header.Object)
	w.WriteUint32(ch.Width)
	w.WriteUint32(ch.Height)
	w.WriteDataType(ch.Type)

	if codec != nil {
		compressed, err := codec.Compress(raw, ch.Width, ch.Height, ch.Type)
		switch {
		case err != nil:
			Logger.Warningf("%s compression of %s failed, sending raw: %v", codec.Name(), name, err)
		// the client tells the forms apart by size, so only a strictly smaller result is sent
		case 4+uint64(len(compressed)) < size && uint64(len(compressed)) <= math.MaxUint32:
			w.WriteUint32(uint32(len(compressed)))
			w.WriteRaw(compressed)
			if err := s.reply(msgType, w.Bytes()); err != nil {
				return err
			}
			s.metrics.channel(codec.Name(), len(compressed))
			return nil
		}
	}

	w.WriteRaw(raw)
	if err := s.reply(msgType, w.Bytes()); err != nil {
		return err
	}
	s.metrics.channel("raw", len(raw))
	return nil
}

func (s *Server) handleFrameReady(q *request) error {
	dev, frame, err := q.object()
	if err != nil {
		return err
	}
	mask, err := q.r.ReadUint32()
	if err != nil {
		return malformed("wait mask", err)
	}

	dev.FrameReady(frame, engine.WaitMask(mask))

	w := serializer.NewWriter(8)
	w.WriteHandle(q.header.Object)
	return s.reply(common.MsgTFrameIsReady, w.Bytes())
}
