package aes67

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySourceDeliversFrames(t *testing.T) {
	source := NewMemorySource()
	require.NoError(t, source.Open(DefaultAudioFormat))

	var got AudioBuffer
	source.SetCallback(func(buffer AudioBuffer) { got = buffer })

	// nothing flows before start
	source.Push(make([]byte, 48*6), 0)
	assert.Zero(t, got.Frames)

	require.NoError(t, source.Start())
	source.Push(make([]byte, 48*6), 12345)

	assert.Equal(t, 48, got.Frames)
	assert.Equal(t, uint8(2), got.Channels)
	assert.Equal(t, uint32(48000), got.SampleRate)
	assert.Equal(t, uint64(12345), got.Timestamp)

	source.Stop()
	got = AudioBuffer{}
	source.Push(make([]byte, 48*6), 0)
	assert.Zero(t, got.Frames)
}

func TestMemorySinkBackPressure(t *testing.T) {
	sink := NewMemorySink(10) // ten frames of capacity
	require.NoError(t, sink.Open(DefaultAudioFormat))
	require.NoError(t, sink.Start())

	frameBytes := DefaultAudioFormat.BytesPerFrame()

	// fill to capacity
	n := sink.Write(make([]byte, 10*frameBytes))
	assert.Equal(t, 10*frameBytes, n)
	assert.Equal(t, 10, sink.AvailableFrames())

	// full sink accepts nothing: back-pressure
	n = sink.Write(make([]byte, frameBytes))
	assert.Zero(t, n)

	// draining frees room
	drained := sink.Drain(4 * frameBytes)
	assert.Len(t, drained, 4*frameBytes)
	assert.Equal(t, 6, sink.AvailableFrames())

	n = sink.Write(make([]byte, 10*frameBytes))
	assert.Equal(t, 4*frameBytes, n, "partial accept up to capacity")
}

func TestMemorySinkRejectsInvalidFormat(t *testing.T) {
	sink := NewMemorySink(10)
	assert.Error(t, sink.Open(AudioFormat{SampleRate: 1234}))
}
