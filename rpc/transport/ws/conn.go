package ws

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ValentinKolb/dRender/rpc/common"
	"github.com/ValentinKolb/dRender/rpc/transport"
	"github.com/ValentinKolb/dRender/rpc/transport/base"
	"github.com/gorilla/websocket"
)

// typeSize is the message type prefix of every websocket message
const typeSize = 4

// closeGracePeriod bounds the wait for the close handshake write
const closeGracePeriod = time.Second

var ErrShortMessage = errors.New("websocket message shorter than message type")

// frameConn carries one frame per binary websocket message:
// - 4 bytes: message type (uint32, little endian)
// - N bytes: payload (length given by the websocket message)
type frameConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func newFrameConn(conn *websocket.Conn, limit uint64) base.FrameConn {
	conn.SetReadLimit(int64(limit) + typeSize)
	return &frameConn{conn: conn}
}

func (c *frameConn) ReadFrame() (transport.Frame, error) {
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return transport.Frame{}, io.EOF
			}
			if errors.Is(err, websocket.ErrReadLimit) {
				return transport.Frame{}, fmt.Errorf("%w: %v", base.ErrFrameTooLarge, err)
			}
			return transport.Frame{}, err
		}

		// text messages are not part of the protocol
		if kind != websocket.BinaryMessage {
			base.Logger.Warningf("Ignoring non binary websocket message from %s", c.conn.RemoteAddr())
			continue
		}

		if len(data) < typeSize {
			return transport.Frame{}, ErrShortMessage
		}
		return transport.Frame{
			Type:    common.MessageType(binary.LittleEndian.Uint32(data[:typeSize])),
			Payload: data[typeSize:],
		}, nil
	}
}

func (c *frameConn) WriteFrame(frame transport.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	w, err := c.conn.NextWriter(websocket.BinaryMessage)
	if err != nil {
		return err
	}

	var header [typeSize]byte
	binary.LittleEndian.PutUint32(header[:], uint32(frame.Type))
	if _, err := w.Write(header[:]); err != nil {
		_ = w.Close()
		return err
	}
	if _, err := w.Write(frame.Payload); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (c *frameConn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

func (c *frameConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Close sends a close message (best effort) and closes the underlying connection
func (c *frameConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
	return c.conn.Close()
}
