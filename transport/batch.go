package transport

import (
	"encoding/binary"
	"fmt"
)

// inputBatchSize caps how many consecutive same-peer input frames a send
// buffers before flushing as one wire message, grounded on
// netplay.inputBatchSize: batching cuts the number of network writes at
// the cost of up to inputBatchSize-1 frames of extra latency before a
// remote peer observes the input.
const inputBatchSize = 5

// inputBatch accumulates consecutive per-frame input payloads for one
// peer before they are flushed as a single wire message. The receiving
// side reconstructs each entry's frame number as the batch's start frame
// plus its index, so a batch must never hold a gap.
type inputBatch struct {
	startFrame uint32
	nextFrame  uint32
	started    bool
	payloads   [][]byte
}

// sequential reports whether frame would directly extend the batch
// without leaving a gap. A caller that sees false must flush whatever is
// already buffered before starting a new batch at frame.
func (b *inputBatch) sequential(frame uint32) bool {
	return !b.started || frame == b.nextFrame
}

func (b *inputBatch) add(frame uint32, payload []byte) {
	if !b.started {
		b.startFrame = frame
		b.started = true
	}

	b.payloads = append(b.payloads, payload)
	b.nextFrame = frame + 1
}

func (b *inputBatch) ready() bool {
	return len(b.payloads) >= inputBatchSize
}

func (b *inputBatch) empty() bool {
	return len(b.payloads) == 0
}

func (b *inputBatch) reset() {
	b.started = false
	b.payloads = nil
}

// packInputBatch concatenates payloads with a 2-byte length prefix each,
// so a single wire message can carry several frames' worth of opaque,
// variable-length input.
func packInputBatch(payloads [][]byte) []byte {
	size := 0
	for _, p := range payloads {
		size += 2 + len(p)
	}

	buf := make([]byte, 0, size)

	for _, p := range payloads {
		var lenBuf [2]byte
		binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(p)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, p...)
	}

	return buf
}

// unpackInputBatch reverses packInputBatch.
func unpackInputBatch(buf []byte) ([][]byte, error) {
	var out [][]byte

	for len(buf) > 0 {
		if len(buf) < 2 {
			return nil, fmt.Errorf("transport: truncated input batch entry header")
		}

		n := binary.LittleEndian.Uint16(buf[:2])
		buf = buf[2:]

		if len(buf) < int(n) {
			return nil, fmt.Errorf("transport: truncated input batch entry payload")
		}

		entry := make([]byte, n)
		copy(entry, buf[:n])
		out = append(out, entry)
		buf = buf[n:]
	}

	return out, nil
}
