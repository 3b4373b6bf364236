package aes67

import (
	"fmt"

	"github.com/pion/rtp"
)

// rtpHeaderSize is the fixed RTP header length without CSRCs or extensions.
const rtpHeaderSize = 12

// buildRTPPacket serializes one AES67 packet: a 12 byte RTP header (version
// 2, no padding, no extension, no CSRC, marker clear) followed by the PCM
// payload. Samples are passed through verbatim; AES67 payloads are already
// big-endian.
func buildRTPPacket(payload []byte, payloadType uint8, sequence uint16, timestamp, ssrc uint32) ([]byte, error) {
	packet := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    payloadType,
			SequenceNumber: sequence,
			Timestamp:      timestamp,
			SSRC:           ssrc,
		},
		Payload: payload,
	}
	return packet.Marshal()
}

// parseRTPPacket deserializes an incoming datagram. Failures are soft: the
// caller drops the packet and keeps the session alive. Packets with a version
// other than 2, a header longer than the datagram, or an empty payload are
// rejected.
func parseRTPPacket(buf []byte) (*rtp.Packet, error) {
	packet := &rtp.Packet{}
	if err := packet.Unmarshal(buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRTPPacket, err)
	}
	if packet.Version != 2 {
		return nil, fmt.Errorf("%w: version %d", ErrInvalidRTPPacket, packet.Version)
	}
	if len(packet.Payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidRTPPacket)
	}
	return packet, nil
}

// validatePayloadSize checks an incoming payload against the declared format:
// it must hold a whole number of frames.
func validatePayloadSize(size int, format AudioFormat) error {
	bytesPerFrame := format.BytesPerFrame()
	if bytesPerFrame == 0 {
		return nil // format not yet known, accept
	}
	if size%bytesPerFrame != 0 {
		return fmt.Errorf("%w: payload size %d not a multiple of frame size %d",
			ErrInvalidRTPPacket, size, bytesPerFrame)
	}
	return nil
}
