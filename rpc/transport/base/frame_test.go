package base

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/ValentinKolb/dRender/rpc/common"
	"github.com/ValentinKolb/dRender/rpc/transport"
)

func TestFrameCodec(t *testing.T) {
	tests := []struct {
		name  string
		frame transport.Frame
	}{
		{"empty payload", transport.Frame{Type: common.MsgTCommitParams}},
		{"small payload", transport.Frame{Type: common.MsgTSetParam, Payload: []byte{1, 2, 3}}},
		{"large payload", transport.Frame{Type: common.MsgTNewArray, Payload: bytes.Repeat([]byte{0xAB}, 1<<16)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := writeFrame(&buf, tt.frame); err != nil {
				t.Fatalf("writeFrame failed: %v", err)
			}
			if buf.Len() != frameHeaderSize+len(tt.frame.Payload) {
				t.Fatalf("Expected %d bytes on the wire, got %d", frameHeaderSize+len(tt.frame.Payload), buf.Len())
			}

			got, err := readFrame(&buf, make([]byte, frameHeaderSize), 1<<20)
			if err != nil {
				t.Fatalf("readFrame failed: %v", err)
			}
			if got.Type != tt.frame.Type {
				t.Errorf("Expected type %s, got %s", tt.frame.Type, got.Type)
			}
			if !bytes.Equal(got.Payload, tt.frame.Payload) {
				t.Errorf("Payload mismatch")
			}
		})
	}
}

func TestFrameWireLayout(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, transport.Frame{Type: common.MsgTRelease, Payload: []byte{7}}); err != nil {
		t.Fatalf("writeFrame failed: %v", err)
	}
	raw := buf.Bytes()

	if got := binary.LittleEndian.Uint32(raw[:4]); got != uint32(common.MsgTRelease) {
		t.Errorf("Expected message type %d, got %d", common.MsgTRelease, got)
	}
	if got := binary.LittleEndian.Uint64(raw[4:12]); got != 1 {
		t.Errorf("Expected payload length 1, got %d", got)
	}
	if raw[12] != 7 {
		t.Errorf("Expected payload byte 7, got %d", raw[12])
	}
}

func TestReadFrameErrors(t *testing.T) {
	header := make([]byte, frameHeaderSize)

	t.Run("clean end of stream", func(t *testing.T) {
		_, err := readFrame(bytes.NewReader(nil), header, 1<<20)
		if !errors.Is(err, io.EOF) {
			t.Errorf("Expected io.EOF, got %v", err)
		}
	})

	t.Run("truncated header", func(t *testing.T) {
		_, err := readFrame(bytes.NewReader([]byte{1, 0, 0}), header, 1<<20)
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Errorf("Expected io.ErrUnexpectedEOF, got %v", err)
		}
	})

	t.Run("truncated payload", func(t *testing.T) {
		var buf bytes.Buffer
		_ = writeFrame(&buf, transport.Frame{Type: common.MsgTNewObject, Payload: []byte{1, 2, 3, 4}})
		_, err := readFrame(bytes.NewReader(buf.Bytes()[:buf.Len()-2]), header, 1<<20)
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Errorf("Expected io.ErrUnexpectedEOF, got %v", err)
		}
	})

	t.Run("payload above limit", func(t *testing.T) {
		var buf bytes.Buffer
		_ = writeFrame(&buf, transport.Frame{Type: common.MsgTNewArray, Payload: make([]byte, 64)})
		_, err := readFrame(&buf, header, 16)
		if !errors.Is(err, ErrFrameTooLarge) {
			t.Errorf("Expected ErrFrameTooLarge, got %v", err)
		}
	})
}
