package aes67

import (
	"sync"
	"time"
)

// JitterBufferConfig bounds the reordering queue between the network and the
// playout worker.
type JitterBufferConfig struct {
	// TargetDelayMs is the playout delay the buffer paces towards.
	TargetDelayMs uint32 `json:"target_delay_ms,omitempty"`

	// MinDelayMs is the smallest dwell time enforced before a packet may be
	// drained.
	MinDelayMs uint32 `json:"min_delay_ms,omitempty"`

	// MaxDelayMs bounds how far behind the playout position a packet may
	// arrive before it is dropped as late.
	MaxDelayMs uint32 `json:"max_delay_ms,omitempty"`

	// MaxPackets bounds the queue size; the oldest packet is evicted on
	// overflow.
	MaxPackets int `json:"max_packets,omitempty"`

	// SampleRate converts MaxDelayMs into RTP timestamp units for the
	// late-packet check.
	SampleRate uint32 `json:"sample_rate,omitempty"`
}

// DefaultJitterBufferConfig matches the original deployment defaults.
var DefaultJitterBufferConfig = JitterBufferConfig{
	TargetDelayMs: 10,
	MinDelayMs:    5,
	MaxDelayMs:    50,
	MaxPackets:    1000,
	SampleRate:    48000,
}

// primingCount is the number of queued packets required before the first
// drain after a reset, absorbing initial burst jitter.
const primingCount = 3

type jitterPacket struct {
	payload   []byte
	sequence  uint16
	timestamp uint32
	arrival   time.Time
}

// rtpTimestampBefore reports a < b in wrap-safe 32 bit RTP timestamp space.
func rtpTimestampBefore(a, b uint32) bool {
	return int32(a-b) < 0
}

// sequenceBefore reports a < b in wrap-safe 16 bit sequence space.
func sequenceBefore(a, b uint16) bool {
	return int16(a-b) < 0
}

// JitterBuffer reorders RTP packets by timestamp and paces their release.
// One writer (the network receive path) and one reader (the playout path)
// share it; all state is guarded by an internal mutex.
type JitterBuffer struct {
	mu      sync.Mutex
	config  JitterBufferConfig
	packets []jitterPacket

	primed      bool
	popped      bool
	lastPopTs   uint32
	overruns    uint64
	lateDropped uint64
}

func NewJitterBuffer(config JitterBufferConfig) *JitterBuffer {
	if config.MaxPackets <= 0 {
		config.MaxPackets = DefaultJitterBufferConfig.MaxPackets
	}
	if config.SampleRate == 0 {
		config.SampleRate = DefaultJitterBufferConfig.SampleRate
	}
	return &JitterBuffer{config: config}
}

// Push inserts a packet in timestamp order, sequence breaking ties. A packet
// with a sequence already queued replaces the queued copy. Packets behind the
// playout position by more than MaxDelayMs are dropped as late. On overflow
// the oldest packet is evicted and counted as an overrun.
func (jb *JitterBuffer) Push(payload []byte, sequence uint16, timestamp uint32, arrival time.Time) bool {
	jb.mu.Lock()
	defer jb.mu.Unlock()

	if jb.popped {
		lateWindow := uint32(uint64(jb.config.MaxDelayMs) * uint64(jb.config.SampleRate) / 1000)
		if rtpTimestampBefore(timestamp, jb.lastPopTs) && jb.lastPopTs-timestamp > lateWindow {
			jb.lateDropped++
			return false
		}
	}

	// duplicate sequence: last writer wins
	for i := range jb.packets {
		if jb.packets[i].sequence == sequence {
			jb.packets[i] = jitterPacket{
				payload:   append([]byte(nil), payload...),
				sequence:  sequence,
				timestamp: timestamp,
				arrival:   arrival,
			}
			return true
		}
	}

	if len(jb.packets) >= jb.config.MaxPackets {
		// full: evict the packet about to be played, prefer freshness
		jb.packets = jb.packets[1:]
		jb.overruns++
		jb.primed = true
	}

	pkt := jitterPacket{
		payload:   append([]byte(nil), payload...),
		sequence:  sequence,
		timestamp: timestamp,
		arrival:   arrival,
	}

	// packets usually arrive in order; scan from the back
	idx := len(jb.packets)
	for idx > 0 {
		prev := jb.packets[idx-1]
		if rtpTimestampBefore(pkt.timestamp, prev.timestamp) ||
			(pkt.timestamp == prev.timestamp && sequenceBefore(pkt.sequence, prev.sequence)) {
			idx--
			continue
		}
		break
	}
	jb.packets = append(jb.packets, jitterPacket{})
	copy(jb.packets[idx+1:], jb.packets[idx:])
	jb.packets[idx] = pkt

	if len(jb.packets) >= primingCount {
		jb.primed = true
	}
	return true
}

// Pop returns the head packet once the drain policy allows it. After a reset
// no packet is released until at least primingCount packets are queued; from
// then on the head is released once it has dwelt min(TargetDelayMs,
// MinDelayMs) milliseconds, or immediately while the queue holds MaxPackets.
func (jb *JitterBuffer) Pop(now time.Time) ([]byte, uint32, bool) {
	jb.mu.Lock()
	defer jb.mu.Unlock()

	if len(jb.packets) == 0 || !jb.primed {
		return nil, 0, false
	}

	head := jb.packets[0]

	minDwell := jb.config.TargetDelayMs
	if jb.config.MinDelayMs < minDwell {
		minDwell = jb.config.MinDelayMs
	}
	dwell := now.Sub(head.arrival)
	if dwell < time.Duration(minDwell)*time.Millisecond && len(jb.packets) < jb.config.MaxPackets {
		return nil, 0, false
	}

	jb.packets = jb.packets[1:]
	jb.popped = true
	jb.lastPopTs = head.timestamp

	return head.payload, head.timestamp, true
}

// Len returns the number of queued packets.
func (jb *JitterBuffer) Len() int {
	jb.mu.Lock()
	defer jb.mu.Unlock()

	return len(jb.packets)
}

// Level returns the fill ratio in [0, 1].
func (jb *JitterBuffer) Level() float64 {
	jb.mu.Lock()
	defer jb.mu.Unlock()

	return float64(len(jb.packets)) / float64(jb.config.MaxPackets)
}

// LatencyMs returns the wall-clock dwell time of the current head.
func (jb *JitterBuffer) LatencyMs() float64 {
	jb.mu.Lock()
	defer jb.mu.Unlock()

	if len(jb.packets) == 0 {
		return 0
	}
	return float64(time.Since(jb.packets[0].arrival).Microseconds()) / 1000.0
}

// Overruns returns how many packets were evicted on overflow.
func (jb *JitterBuffer) Overruns() uint64 {
	jb.mu.Lock()
	defer jb.mu.Unlock()

	return jb.overruns
}

// Reset clears the queue and re-arms priming.
func (jb *JitterBuffer) Reset() {
	jb.mu.Lock()
	defer jb.mu.Unlock()

	jb.packets = nil
	jb.primed = false
	jb.popped = false
	jb.lastPopTs = 0
}
