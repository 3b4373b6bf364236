package aes67

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAudioFormatDerived(t *testing.T) {
	format := AudioFormat{SampleRate: 48000, Channels: 2, BitDepth: 24}

	assert.Equal(t, 3, format.BytesPerSample())
	assert.Equal(t, 6, format.BytesPerFrame())
	assert.Equal(t, "L24", format.EncodingName())
	assert.True(t, format.Valid())
}

func TestAudioFormatEncodingNames(t *testing.T) {
	assert.Equal(t, "L16", AudioFormat{SampleRate: 44100, Channels: 1, BitDepth: 16}.EncodingName())
	assert.Equal(t, "L32", AudioFormat{SampleRate: 96000, Channels: 8, BitDepth: 32}.EncodingName())
	assert.Equal(t, "", AudioFormat{BitDepth: 20}.EncodingName())
}

func TestAudioFormatValidate(t *testing.T) {
	assert.ErrorIs(t, AudioFormat{SampleRate: 22050, Channels: 2, BitDepth: 16}.Validate(), ErrInvalidSampleRate)
	assert.ErrorIs(t, AudioFormat{SampleRate: 48000, Channels: 0, BitDepth: 16}.Validate(), ErrInvalidChannelCount)
	assert.ErrorIs(t, AudioFormat{SampleRate: 48000, Channels: 65, BitDepth: 16}.Validate(), ErrInvalidChannelCount)
	assert.ErrorIs(t, AudioFormat{SampleRate: 48000, Channels: 2, BitDepth: 20}.Validate(), ErrInvalidBitDepth)
	assert.NoError(t, AudioFormat{SampleRate: 96000, Channels: 64, BitDepth: 32}.Validate())
}

func TestPacketTimeValues(t *testing.T) {
	for _, us := range []uint32{125, 250, 333, 1000, 4000} {
		assert.True(t, validPacketTime(us), "packet time %d", us)
	}
	assert.False(t, validPacketTime(0))
	assert.False(t, validPacketTime(500))
	assert.False(t, validPacketTime(2000))
}
