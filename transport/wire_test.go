package transport

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeInput(t *testing.T) {
	msg := wireMessage{Type: msgTypeInput, Frame: 12345, Payload: []byte{1, 2, 3}}

	got, err := decode(encode(msg))
	require.NoError(t, err)

	assert.Equal(t, msg.Frame, got.Frame)
	assert.Equal(t, msg.Payload, got.Payload)
}

func TestEncodeDecodeSyncTest(t *testing.T) {
	msg := wireMessage{Type: msgTypeSyncTest, Frame: 77, Checksum: 0xDEADBEEF}

	got, err := decode(encode(msg))
	require.NoError(t, err)

	assert.Equal(t, msg.Frame, got.Frame)
	assert.Equal(t, msg.Checksum, got.Checksum)
}

func TestFramedRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	msg := encode(wireMessage{Type: msgTypeInput, Frame: 9, Payload: []byte("hello")})
	require.NoError(t, writeFramed(&buf, msg))

	got, err := readFramed(&buf)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestDecodeRejectsTruncated(t *testing.T) {
	_, err := decode([]byte{msgTypeInput, 1, 2})
	assert.Error(t, err)
}

func TestEncodeDecodePingPong(t *testing.T) {
	for _, typ := range []uint8{msgTypePing, msgTypePong} {
		msg := wireMessage{Type: typ, Nonce: 0xDEADBEEFCAFE}

		got, err := decode(encode(msg))
		require.NoError(t, err)

		assert.Equal(t, typ, got.Type)
		assert.Equal(t, msg.Nonce, got.Nonce)
	}
}

func TestPackUnpackInputBatch(t *testing.T) {
	payloads := [][]byte{{1, 2, 3}, {}, {9}, make([]byte, 300)}

	got, err := unpackInputBatch(packInputBatch(payloads))
	require.NoError(t, err)
	require.Len(t, got, len(payloads))

	for i, p := range payloads {
		assert.Equal(t, p, got[i])
	}
}

func TestUnpackInputBatchRejectsTruncated(t *testing.T) {
	_, err := unpackInputBatch([]byte{5, 0, 1, 2})
	assert.Error(t, err)
}

func TestInputBatchRejectsNonSequentialFrame(t *testing.T) {
	b := &inputBatch{}

	b.add(10, []byte{1})
	assert.True(t, b.sequential(11))
	assert.False(t, b.sequential(13))

	b.add(11, []byte{2})
	assert.False(t, b.sequential(13), "gap at 12 must not be absorbed into the batch")
}
