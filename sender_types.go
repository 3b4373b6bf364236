package aes67

import "time"

// SenderState is the lifecycle of a sender engine.
type SenderState int

const (
	SenderStateStopped SenderState = iota
	SenderStateInitializing
	SenderStateRunning
	SenderStateError
)

func (s SenderState) String() string {
	switch s {
	case SenderStateStopped:
		return "Stopped"
	case SenderStateInitializing:
		return "Initializing"
	case SenderStateRunning:
		return "Running"
	case SenderStateError:
		return "Error"
	}
	return "Unknown"
}

// SenderConfig declares one outbound AES67 stream.
type SenderConfig struct {
	Id          string `json:"id,omitempty"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`

	Channels   uint8  `json:"channels,omitempty"`
	SampleRate uint32 `json:"sample_rate,omitempty"`
	BitDepth   uint8  `json:"bit_depth,omitempty"`

	MulticastIP string `json:"multicast_ip,omitempty"`
	Port        uint16 `json:"port,omitempty"`
	PayloadType uint8  `json:"payload_type,omitempty"`

	// PacketTimeUs is the packet cadence in microseconds. AES67 mandates
	// 1000 for full interoperability.
	PacketTimeUs uint32 `json:"packet_time_us,omitempty"`

	Enabled *bool `json:"enabled,omitempty"`
}

// DefaultSenderConfig mirrors the baseline deployment profile.
var DefaultSenderConfig = SenderConfig{
	Channels:     2,
	SampleRate:   48000,
	BitDepth:     24,
	MulticastIP:  "239.69.1.1",
	Port:         5004,
	PayloadType:  97,
	PacketTimeUs: 1000,
}

// Validate reports the first configuration error.
func (c SenderConfig) Validate() error {
	if c.Id == "" {
		return ErrMissingIdentity
	}
	if err := c.AudioFormat().Validate(); err != nil {
		return err
	}
	if c.Port == 0 {
		return ErrInvalidPort
	}
	if !validPacketTime(c.PacketTimeUs) {
		return ErrInvalidPacketTime
	}
	return nil
}

func (c SenderConfig) AudioFormat() AudioFormat {
	return AudioFormat{
		SampleRate: c.SampleRate,
		Channels:   c.Channels,
		BitDepth:   c.BitDepth,
	}
}

// SamplesPerPacket is the frame count carried by one packet at the configured
// cadence (48 for 48 kHz at 1 ms).
func (c SenderConfig) SamplesPerPacket() int {
	return int(uint64(c.SampleRate) * uint64(c.PacketTimeUs) / 1_000_000)
}

// SenderStatistics is a snapshot of a sender's counters.
type SenderStatistics struct {
	PacketsSent    uint64    `json:"packets_sent"`
	BytesSent      uint64    `json:"bytes_sent"`
	SequenceNumber uint16    `json:"sequence_number"`
	RtpTimestamp   uint32    `json:"rtp_timestamp"`
	BitrateKbps    float64   `json:"bitrate_kbps"`
	Underruns      uint64    `json:"underruns"`
	StartTime      time.Time `json:"start_time"`
	LastPacketTime time.Time `json:"last_packet_time"`
}
