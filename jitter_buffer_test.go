package aes67

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// immediateDrainConfig removes the dwell gate so pops only wait for priming.
var immediateDrainConfig = JitterBufferConfig{
	TargetDelayMs: 0,
	MinDelayMs:    0,
	MaxDelayMs:    50,
	MaxPackets:    16,
	SampleRate:    48000,
}

func TestJitterBufferPriming(t *testing.T) {
	jb := NewJitterBuffer(immediateDrainConfig)
	now := time.Now()

	jb.Push([]byte{1}, 0, 0, now)
	_, _, ok := jb.Pop(now)
	assert.False(t, ok, "no pop before priming")

	jb.Push([]byte{2}, 1, 48, now)
	_, _, ok = jb.Pop(now)
	assert.False(t, ok, "still below priming threshold")

	jb.Push([]byte{3}, 2, 96, now)
	payload, ts, ok := jb.Pop(now)
	require.True(t, ok)
	assert.Equal(t, []byte{1}, payload)
	assert.Equal(t, uint32(0), ts)

	// once primed, single queued packets drain
	payload, _, ok = jb.Pop(now)
	require.True(t, ok)
	assert.Equal(t, []byte{2}, payload)
}

func TestJitterBufferReorders(t *testing.T) {
	jb := NewJitterBuffer(immediateDrainConfig)
	now := time.Now()

	// burst [0,1,3,2,4..9] by sequence, timestamps 48 apart
	order := []uint16{0, 1, 3, 2, 4, 5, 6, 7, 8, 9}
	for _, seq := range order {
		jb.Push([]byte{byte(seq)}, seq, uint32(seq)*48, now)
	}

	for want := uint16(0); want < 10; want++ {
		payload, ts, ok := jb.Pop(now)
		require.True(t, ok, "packet %d", want)
		assert.Equal(t, byte(want), payload[0])
		assert.Equal(t, uint32(want)*48, ts)
	}
	_, _, ok := jb.Pop(now)
	assert.False(t, ok)
}

func TestJitterBufferTimestampWrap(t *testing.T) {
	jb := NewJitterBuffer(immediateDrainConfig)
	now := time.Now()

	// timestamps straddle the 2^32 wrap; wrap-safe comparison must order the
	// post-wrap values after the pre-wrap ones
	base := uint32(0xFFFFFFFF - 70)
	sequences := []uint16{65534, 65535, 0, 1}
	for i, seq := range sequences {
		jb.Push([]byte{byte(i)}, seq, base+uint32(i)*48, now)
	}

	for i := range sequences {
		payload, _, ok := jb.Pop(now)
		require.True(t, ok)
		assert.Equal(t, byte(i), payload[0])
	}
}

func TestJitterBufferDuplicateReplaces(t *testing.T) {
	jb := NewJitterBuffer(immediateDrainConfig)
	now := time.Now()

	jb.Push([]byte{1}, 0, 0, now)
	jb.Push([]byte{2}, 1, 48, now)
	jb.Push([]byte{3}, 2, 96, now)

	// middle-box duplication: same sequence again, last writer wins
	jb.Push([]byte{42}, 1, 48, now)
	assert.Equal(t, 3, jb.Len())

	jb.Pop(now)
	payload, _, ok := jb.Pop(now)
	require.True(t, ok)
	assert.Equal(t, []byte{42}, payload)
}

func TestJitterBufferEvictsOldestOnOverflow(t *testing.T) {
	config := immediateDrainConfig
	config.MaxPackets = 4
	jb := NewJitterBuffer(config)
	now := time.Now()

	for seq := uint16(0); seq < 6; seq++ {
		jb.Push([]byte{byte(seq)}, seq, uint32(seq)*48, now)
	}

	assert.Equal(t, 4, jb.Len())
	assert.Equal(t, uint64(2), jb.Overruns())

	// the two oldest were evicted
	payload, _, ok := jb.Pop(now)
	require.True(t, ok)
	assert.Equal(t, byte(2), payload[0])
}

func TestJitterBufferDropsLatePackets(t *testing.T) {
	jb := NewJitterBuffer(immediateDrainConfig)
	now := time.Now()

	base := uint32(1_000_000)
	for seq := uint16(0); seq < 3; seq++ {
		jb.Push([]byte{byte(seq)}, seq, base+uint32(seq)*48, now)
	}
	_, _, ok := jb.Pop(now)
	require.True(t, ok)

	// 50 ms behind the playout position at 48 kHz is 2400 ticks
	accepted := jb.Push([]byte{99}, 100, base-2500, now)
	assert.False(t, accepted)

	// just inside the window is kept
	accepted = jb.Push([]byte{98}, 101, base-100, now)
	assert.True(t, accepted)
}

func TestJitterBufferDwellGate(t *testing.T) {
	config := JitterBufferConfig{
		TargetDelayMs: 20,
		MinDelayMs:    10,
		MaxDelayMs:    100,
		MaxPackets:    16,
		SampleRate:    48000,
	}
	jb := NewJitterBuffer(config)
	arrival := time.Now()

	for seq := uint16(0); seq < 3; seq++ {
		jb.Push([]byte{byte(seq)}, seq, uint32(seq)*48, arrival)
	}

	// head has not dwelt min(target, min) = 10 ms yet
	_, _, ok := jb.Pop(arrival)
	assert.False(t, ok)

	_, _, ok = jb.Pop(arrival.Add(5 * time.Millisecond))
	assert.False(t, ok)

	_, _, ok = jb.Pop(arrival.Add(11 * time.Millisecond))
	assert.True(t, ok)
}

func TestJitterBufferLevelAndLatency(t *testing.T) {
	config := immediateDrainConfig
	config.MaxPackets = 10
	jb := NewJitterBuffer(config)

	assert.Zero(t, jb.Level())
	assert.Zero(t, jb.LatencyMs())

	arrival := time.Now().Add(-20 * time.Millisecond)
	jb.Push([]byte{1}, 0, 0, arrival)
	jb.Push([]byte{2}, 1, 48, arrival)

	assert.InDelta(t, 0.2, jb.Level(), 0.001)
	assert.GreaterOrEqual(t, jb.LatencyMs(), 19.0)
}

func TestJitterBufferReset(t *testing.T) {
	jb := NewJitterBuffer(immediateDrainConfig)
	now := time.Now()

	for seq := uint16(0); seq < 4; seq++ {
		jb.Push([]byte{byte(seq)}, seq, uint32(seq)*48, now)
	}
	_, _, ok := jb.Pop(now)
	require.True(t, ok)

	jb.Reset()
	assert.Zero(t, jb.Len())

	// priming is re-armed after reset
	jb.Push([]byte{9}, 100, 9999, now)
	_, _, ok = jb.Pop(now)
	assert.False(t, ok)
}

func TestWrapSafeComparisons(t *testing.T) {
	assert.True(t, rtpTimestampBefore(0xFFFFFFF0, 0x00000010))
	assert.False(t, rtpTimestampBefore(0x00000010, 0xFFFFFFF0))
	assert.False(t, rtpTimestampBefore(5, 5))

	assert.True(t, sequenceBefore(65530, 5))
	assert.False(t, sequenceBefore(5, 65530))
}
