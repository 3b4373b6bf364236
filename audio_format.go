package aes67

import "fmt"

// AudioFormat describes the linear PCM layout of a stream. It is immutable
// once a sender or receiver is connected with it.
type AudioFormat struct {
	// SampleRate in Hz. AES67 allows 44100, 48000 (mandatory) and 96000.
	SampleRate uint32 `json:"sample_rate,omitempty"`

	// Channels is the interleaved channel count, 1..64.
	Channels uint8 `json:"channels,omitempty"`

	// BitDepth in bits per sample: 16, 24 or 32.
	BitDepth uint8 `json:"bit_depth,omitempty"`
}

// DefaultAudioFormat is the AES67 baseline profile: L24/48000/2.
var DefaultAudioFormat = AudioFormat{
	SampleRate: 48000,
	Channels:   2,
	BitDepth:   24,
}

func (f AudioFormat) BytesPerSample() int {
	return int(f.BitDepth) / 8
}

func (f AudioFormat) BytesPerFrame() int {
	return f.BytesPerSample() * int(f.Channels)
}

// EncodingName returns the RTP encoding name for the format ("L16", "L24" or
// "L32"), or empty for an unsupported bit depth.
func (f AudioFormat) EncodingName() string {
	switch f.BitDepth {
	case 16:
		return "L16"
	case 24:
		return "L24"
	case 32:
		return "L32"
	}
	return ""
}

func (f AudioFormat) Valid() bool {
	return f.Validate() == nil
}

// Validate reports the first configuration error in the format.
func (f AudioFormat) Validate() error {
	switch f.SampleRate {
	case 44100, 48000, 96000:
	default:
		return fmt.Errorf("%w: got %d", ErrInvalidSampleRate, f.SampleRate)
	}
	if f.Channels < 1 || f.Channels > 64 {
		return fmt.Errorf("%w: got %d", ErrInvalidChannelCount, f.Channels)
	}
	switch f.BitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("%w: got %d", ErrInvalidBitDepth, f.BitDepth)
	}
	return nil
}

// bitDepthFromEncoding maps an RTP encoding name onto a bit depth.
func bitDepthFromEncoding(encoding string) uint8 {
	switch encoding {
	case "L16":
		return 16
	case "L24":
		return 24
	case "L32":
		return 32
	}
	return 0
}

// validPacketTime reports whether a packet time in microseconds is one of the
// AES67 profile values (1 ms is the interop-mandatory one).
func validPacketTime(packetTimeUs uint32) bool {
	switch packetTimeUs {
	case 125, 250, 333, 1000, 4000:
		return true
	}
	return false
}
