package base

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
)

// frameHeaderSize is 4 bytes message type plus 8 bytes payload length
const frameHeaderSize = 12

var ErrFrameTooLarge = errors.New("frame exceeds size limit")

// FrameConn is a connection that reads and writes whole frames. ReadFrame is only called
// from one goroutine, WriteFrame from one (possibly different) goroutine.
type FrameConn interface {
	ReadFrame() (transport.Frame, error)
	WriteFrame(frame transport.Frame) error
	SetWriteDeadline(t time.Time) error
	RemoteAddr() net.Addr
	Close() error
}

// FrameListener accepts frame connections
type FrameListener interface {
	Accept() (FrameConn, error)
	Addr() net.Addr
	Close() error
}

// --------------------------------------------------------------------------
// Stream frame codec (tcp, unix)
// --------------------------------------------------------------------------

// writeFrame writes a frame to the connection with the format:
// - 4 bytes: message type (uint32, little endian)
// - 8 bytes: payload length (uint64, little endian)
// - N bytes: payload
func writeFrame(w io.Writer, frame transport.Frame) error {
	header := make([]byte, frameHeaderSize)
	binary.LittleEndian.PutUint32(header[:4], uint32(frame.Type))
	binary.LittleEndian.PutUint64(header[4:], uint64(len(frame.Payload)))

	// one writev call, a frame is never split between writers
	b := net.Buffers{header, frame.Payload}
	_, err := b.WriteTo(w)
	return err
}

// readFrame reads one frame, rejecting payloads larger than limit before allocating
func readFrame(r io.Reader, header []byte, limit uint64) (transport.Frame, error) {
	if _, err := io.ReadFull(r, header[:frameHeaderSize]); err != nil {
		return transport.Frame{}, err
	}

	msgType := common.MessageType(binary.LittleEndian.Uint32(header[:4]))
	length := binary.LittleEndian.Uint64(header[4:frameHeaderSize])
	if length > limit {
		return transport.Frame{}, fmt.Errorf("%w: %s frame of %d bytes, limit %d", ErrFrameTooLarge, msgType, length, limit)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return transport.Frame{}, err
	}
	return transport.Frame{Type: msgType, Payload: payload}, nil
}

// streamConn adapts a net.Conn to FrameConn
type streamConn struct {
	net.Conn
	limit   uint64
	header  []byte
	writeMu sync.Mutex
}

// NewStreamConn wraps a stream connection (tcp, unix) with the frame codec
func NewStreamConn(conn net.Conn, limit uint64) FrameConn {
	return &streamConn{Conn: conn, limit: limit, header: make([]byte, frameHeaderSize)}
}

func (c *streamConn) ReadFrame() (transport.Frame, error) {
	return readFrame(c.Conn, c.header, c.limit)
}

func (c *streamConn) WriteFrame(frame transport.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writeFrame(c.Conn, frame)
}

// streamListener adapts a net.Listener to FrameListener
type streamListener struct {
	net.Listener
	limit   uint64
	upgrade func(net.Conn) error
}

// NewStreamListener wraps a stream listener. upgrade (may be nil) is applied to every
// accepted connection, a failing upgrade is logged and the connection used as is.
func NewStreamListener(l net.Listener, limit uint64, upgrade func(net.Conn) error) FrameListener {
	return &streamListener{Listener: l, limit: limit, upgrade: upgrade}
}

func (l *streamListener) Accept() (FrameConn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	if l.upgrade != nil {
		if err := l.upgrade(conn); err != nil {
			Logger.Warningf("Failed to apply socket options to %s: %v", conn.RemoteAddr(), err)
		}
	}
	return NewStreamConn(conn, l.limit), nil
}
