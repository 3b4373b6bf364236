package aes67

import "time"

// ReceiverState is the lifecycle of a receiver engine.
type ReceiverState int

const (
	ReceiverStateStopped ReceiverState = iota
	ReceiverStateInitializing
	ReceiverStateListening
	ReceiverStateReceiving
	ReceiverStateError
)

func (s ReceiverState) String() string {
	switch s {
	case ReceiverStateStopped:
		return "Stopped"
	case ReceiverStateInitializing:
		return "Initializing"
	case ReceiverStateListening:
		return "Listening"
	case ReceiverStateReceiving:
		return "Receiving"
	case ReceiverStateError:
		return "Error"
	}
	return "Unknown"
}

// ReceiverConfig declares one receiver endpoint and its playout buffering.
type ReceiverConfig struct {
	Id          string `json:"id,omitempty"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`

	Channels uint8 `json:"channels,omitempty"`

	// SampleRates and BitDepths advertise what the endpoint accepts.
	SampleRates []uint32 `json:"sample_rates,omitempty"`
	BitDepths   []uint8  `json:"bit_depths,omitempty"`

	JitterBuffer JitterBufferConfig `json:"jitter_buffer,omitempty"`

	Enabled *bool `json:"enabled,omitempty"`
}

// Validate reports the first configuration error.
func (c ReceiverConfig) Validate() error {
	if c.Id == "" {
		return ErrMissingIdentity
	}
	return nil
}

// ReceiverStatistics is a snapshot of a receiver's counters.
type ReceiverStatistics struct {
	PacketsReceived    uint64    `json:"packets_received"`
	PacketsLost        uint64    `json:"packets_lost"`
	PacketsOutOfOrder  uint64    `json:"packets_out_of_order"`
	BytesReceived      uint64    `json:"bytes_received"`
	LastSequenceNumber uint16    `json:"last_sequence_number"`
	LastRtpTimestamp   uint32    `json:"last_rtp_timestamp"`
	BufferLevel        float64   `json:"buffer_level"`
	LatencyMs          float64   `json:"latency_ms"`
	BitrateKbps        float64   `json:"bitrate_kbps"`
	Overruns           uint64    `json:"overruns"`
	PtpSynchronized    bool      `json:"ptp_synchronized"`
	StartTime          time.Time `json:"start_time"`
	LastPacketTime     time.Time `json:"last_packet_time"`
}
