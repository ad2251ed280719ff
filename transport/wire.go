package transport

import (
	"encoding/binary"
	"fmt"
	"io"
)

// message types on the wire, one byte each.
const (
	msgTypeInput uint8 = iota + 1
	msgTypeSyncTest
	msgTypePing
	msgTypePong
)

// wireMessage is the on-the-wire shape both the TCP and WebSocket adapters
// frame: a 1-byte type tag followed by type-specific fields (a
// little-endian uint32 frame number plus payload or checksum for input and
// sync-test messages, a little-endian uint64 nonce for ping and pong).
type wireMessage struct {
	Type     uint8
	Frame    uint32
	Checksum uint32 // msgTypeSyncTest only
	Payload  []byte // msgTypeInput only
	Nonce    uint64 // msgTypePing/msgTypePong only
}

// encode serializes a wireMessage into a self-delimiting byte frame
// suitable for a length-prefixed stream (TCP) or a single WebSocket
// message.
func encode(m wireMessage) []byte {
	switch m.Type {
	case msgTypeInput:
		buf := make([]byte, 1+4+2+len(m.Payload))
		buf[0] = m.Type
		binary.LittleEndian.PutUint32(buf[1:5], m.Frame)
		binary.LittleEndian.PutUint16(buf[5:7], uint16(len(m.Payload)))
		copy(buf[7:], m.Payload)

		return buf

	case msgTypeSyncTest:
		buf := make([]byte, 1+4+4)
		buf[0] = m.Type
		binary.LittleEndian.PutUint32(buf[1:5], m.Frame)
		binary.LittleEndian.PutUint32(buf[5:9], m.Checksum)

		return buf

	case msgTypePing, msgTypePong:
		buf := make([]byte, 1+8)
		buf[0] = m.Type
		binary.LittleEndian.PutUint64(buf[1:9], m.Nonce)

		return buf

	default:
		panic(fmt.Sprintf("transport: unknown message type %d", m.Type))
	}
}

// decode parses a byte frame produced by encode.
func decode(buf []byte) (wireMessage, error) {
	if len(buf) < 1 {
		return wireMessage{}, io.ErrUnexpectedEOF
	}

	switch buf[0] {
	case msgTypeInput:
		if len(buf) < 7 {
			return wireMessage{}, fmt.Errorf("transport: short input message")
		}

		frame := binary.LittleEndian.Uint32(buf[1:5])
		n := binary.LittleEndian.Uint16(buf[5:7])

		if len(buf) < 7+int(n) {
			return wireMessage{}, fmt.Errorf("transport: truncated input payload")
		}

		payload := make([]byte, n)
		copy(payload, buf[7:7+n])

		return wireMessage{Type: msgTypeInput, Frame: frame, Payload: payload}, nil

	case msgTypeSyncTest:
		if len(buf) < 9 {
			return wireMessage{}, fmt.Errorf("transport: short sync-test message")
		}

		frame := binary.LittleEndian.Uint32(buf[1:5])
		checksum := binary.LittleEndian.Uint32(buf[5:9])

		return wireMessage{Type: msgTypeSyncTest, Frame: frame, Checksum: checksum}, nil

	case msgTypePing, msgTypePong:
		if len(buf) < 9 {
			return wireMessage{}, fmt.Errorf("transport: short ping/pong message")
		}

		nonce := binary.LittleEndian.Uint64(buf[1:9])

		return wireMessage{Type: buf[0], Nonce: nonce}, nil

	default:
		return wireMessage{}, fmt.Errorf("transport: unknown message type %d", buf[0])
	}
}

// writeFramed writes a length-prefixed message to a raw stream (TCP). The
// prefix itself is a little-endian uint32 byte count, matching the rest
// of the wire's endianness convention.
func writeFramed(w io.Writer, buf []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(buf)))

	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}

	_, err := w.Write(buf)
	return err
}

// readFramed reads one length-prefixed message from a raw stream.
func readFramed(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}

	n := binary.LittleEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)

	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	return buf, nil
}
