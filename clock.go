package aes67

import (
	"math/bits"
	"sync"
	"time"
)

const nanosPerSecond = 1_000_000_000

// PtpFollower is the external PTP daemon handle the clock reads from. The
// follower guarantees that CurrentTimeNs never moves backwards while a sender
// session is running.
type PtpFollower interface {
	Synchronized() bool
	CurrentTimeNs() int64
	OffsetFromMasterNs() int64
	State() PtpState
}

// Clock derives RTP media timestamps from PTP wall time.
type Clock struct {
	follower PtpFollower
}

func NewClock(follower PtpFollower) *Clock {
	return &Clock{follower: follower}
}

// Synchronized reports whether the underlying follower is locked to a master.
func (c *Clock) Synchronized() bool {
	return c.follower.Synchronized()
}

// PtpTimestamp returns the current PTP wall time in nanoseconds. When the
// follower is unsynchronized this is its best estimate; it never blocks.
func (c *Clock) PtpTimestamp() uint64 {
	return uint64(c.follower.CurrentTimeNs())
}

// RtpTimestamp converts the current PTP time to a 32 bit wrapping RTP
// timestamp at the given sample rate.
func (c *Clock) RtpTimestamp(sampleRate uint32) uint32 {
	return PtpToRtpTimestamp(c.PtpTimestamp(), sampleRate)
}

// PtpToRtpTimestamp computes floor(ptpNs * sampleRate / 1e9) mod 2^32. The
// multiply is done in 128 bits so the conversion stays exact for any PTP
// epoch offset; no floating point is involved.
func PtpToRtpTimestamp(ptpNs uint64, sampleRate uint32) uint32 {
	hi, lo := bits.Mul64(ptpNs, uint64(sampleRate))
	quo, _ := bits.Div64(hi, lo, nanosPerSecond)
	return uint32(quo)
}

// LocalClock snapshots the offset between the monotonic clock and PTP time
// once, then serves reads without contacting the follower.
type LocalClock struct {
	mu         sync.Mutex
	calibrated bool
	base       time.Time
	ptpAtBase  uint64
}

func NewLocalClock() *LocalClock {
	return &LocalClock{}
}

// Calibrate records the PTP reading against the monotonic clock. It is a
// no-op while the follower is unsynchronized.
func (lc *LocalClock) Calibrate(clock *Clock) {
	if !clock.Synchronized() {
		return
	}
	lc.mu.Lock()
	defer lc.mu.Unlock()

	lc.base = time.Now()
	lc.ptpAtBase = clock.PtpTimestamp()
	lc.calibrated = true
}

func (lc *LocalClock) Calibrated() bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	return lc.calibrated
}

// NowNs returns the calibrated PTP estimate in nanoseconds. Before
// calibration it falls back to the system clock.
func (lc *LocalClock) NowNs() uint64 {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if !lc.calibrated {
		return uint64(time.Now().UnixNano())
	}
	return lc.ptpAtBase + uint64(time.Since(lc.base).Nanoseconds())
}

// RtpTimestamp converts the calibrated reading at the given sample rate.
func (lc *LocalClock) RtpTimestamp(sampleRate uint32) uint32 {
	return PtpToRtpTimestamp(lc.NowNs(), sampleRate)
}
