package aes67

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigAppliesDefaults(t *testing.T) {
	config, err := ParseConfig([]byte(`{
		"senders": [
			{"label": "Main Out", "multicast_ip": "239.69.3.1"}
		],
		"receivers": [
			{"label": "Main In"}
		]
	}`))
	require.NoError(t, err)

	assert.Equal(t, "aes67-endpoint", config.Node.Label)
	assert.Equal(t, uint16(8080), config.Network.NodePort)

	require.Len(t, config.Senders, 1)
	sender := config.Senders[0]
	assert.NotEmpty(t, sender.Id, "missing ids are generated")
	assert.Equal(t, "Main Out", sender.Label)
	assert.Equal(t, "239.69.3.1", sender.MulticastIP, "explicit values survive the merge")
	assert.Equal(t, uint32(48000), sender.SampleRate)
	assert.Equal(t, uint8(24), sender.BitDepth)
	assert.Equal(t, uint16(5004), sender.Port)
	assert.Equal(t, uint32(1000), sender.PacketTimeUs)

	require.Len(t, config.Receivers, 1)
	receiver := config.Receivers[0]
	assert.NotEmpty(t, receiver.Id)
	assert.Equal(t, 1000, receiver.JitterBuffer.MaxPackets)
	assert.Equal(t, uint32(10), receiver.JitterBuffer.TargetDelayMs)
}

func TestParseConfigRejectsInvalidSender(t *testing.T) {
	_, err := ParseConfig([]byte(`{
		"senders": [
			{"label": "Broken", "sample_rate": 8000}
		]
	}`))
	assert.ErrorIs(t, err, ErrInvalidSampleRate)
}

func TestParseConfigRejectsGarbage(t *testing.T) {
	_, err := ParseConfig([]byte(`{not json`))
	assert.Error(t, err)
}

func TestDefaultConfigValidates(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestAudioConfigJitterBufferConfig(t *testing.T) {
	audio := AudioConfig{BufferMs: 5, JitterBufferMs: 10, MaxDelayMs: 50, MaxPackets: 500}
	jb := audio.JitterBufferConfig(96000)

	assert.Equal(t, uint32(10), jb.TargetDelayMs)
	assert.Equal(t, uint32(5), jb.MinDelayMs)
	assert.Equal(t, uint32(50), jb.MaxDelayMs)
	assert.Equal(t, 500, jb.MaxPackets)
	assert.Equal(t, uint32(96000), jb.SampleRate)
}
