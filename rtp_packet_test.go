package aes67

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRTPPacketRoundTrip(t *testing.T) {
	payload := make([]byte, 288) // 48 frames of L24 stereo
	for i := range payload {
		payload[i] = byte(i)
	}

	raw, err := buildRTPPacket(payload, 97, 12345, 0xDEADBEEF, 0xCAFEBABE)
	require.NoError(t, err)
	assert.Len(t, raw, rtpHeaderSize+len(payload))

	// canonical fixed header: version 2, no padding/extension/CSRC, marker 0
	assert.Equal(t, byte(0x80), raw[0])
	assert.Equal(t, byte(97), raw[1]&0x7F)
	assert.Zero(t, raw[1]&0x80)

	packet, err := parseRTPPacket(raw)
	require.NoError(t, err)
	assert.Equal(t, uint16(12345), packet.SequenceNumber)
	assert.Equal(t, uint32(0xDEADBEEF), packet.Timestamp)
	assert.Equal(t, uint32(0xCAFEBABE), packet.SSRC)
	assert.Equal(t, uint8(97), packet.PayloadType)
	assert.Equal(t, payload, packet.Payload)
}

func TestParseRTPPacketRejectsBadVersion(t *testing.T) {
	raw, err := buildRTPPacket([]byte{1, 2, 3, 4, 5, 6}, 97, 0, 0, 1)
	require.NoError(t, err)

	raw[0] = (raw[0] &^ 0xC0) | 0x40 // version 1

	_, err = parseRTPPacket(raw)
	assert.ErrorIs(t, err, ErrInvalidRTPPacket)
}

func TestParseRTPPacketRejectsTruncated(t *testing.T) {
	_, err := parseRTPPacket([]byte{0x80, 97, 0, 1})
	assert.ErrorIs(t, err, ErrInvalidRTPPacket)

	// a header that declares CSRCs beyond the received length
	raw := []byte{0x84, 97, 0, 1, 0, 0, 0, 0, 0, 0, 0, 1}
	_, err = parseRTPPacket(raw)
	assert.ErrorIs(t, err, ErrInvalidRTPPacket)
}

func TestParseRTPPacketRejectsEmptyPayload(t *testing.T) {
	raw, err := buildRTPPacket(nil, 97, 7, 100, 1)
	require.NoError(t, err)

	_, err = parseRTPPacket(raw)
	assert.ErrorIs(t, err, ErrInvalidRTPPacket)
}

func TestValidatePayloadSize(t *testing.T) {
	format := AudioFormat{SampleRate: 48000, Channels: 2, BitDepth: 24}

	assert.NoError(t, validatePayloadSize(288, format))
	assert.Error(t, validatePayloadSize(287, format))

	// unknown format accepts anything
	assert.NoError(t, validatePayloadSize(17, AudioFormat{}))
}
