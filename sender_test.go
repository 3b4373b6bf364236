package aes67

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type SenderTestingSuite struct {
	TestingSuite
	listener *net.UDPConn
	sender   *Sender
	source   *MemorySource
}

func (suite *SenderTestingSuite) SetupTest() {
	listener, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	suite.NoError(err)
	suite.listener = listener

	port := uint16(listener.LocalAddr().(*net.UDPAddr).Port)

	suite.sender, err = NewSender(SenderConfig{
		Id:           "sender-test",
		Label:        "Sender Under Test",
		Channels:     2,
		SampleRate:   48000,
		BitDepth:     24,
		MulticastIP:  "127.0.0.1",
		Port:         port,
		PayloadType:  97,
		PacketTimeUs: 1000,
	})
	suite.NoError(err)

	suite.source = NewMemorySource()
	suite.sender.SetAudioSource(suite.source)
}

func (suite *SenderTestingSuite) TearDownTest() {
	suite.sender.Close()
	suite.listener.Close()
}

// readPackets collects n datagrams from the test listener.
func (suite *SenderTestingSuite) readPackets(n int) [][]byte {
	var out [][]byte
	buf := make([]byte, 2048)
	for len(out) < n {
		suite.listener.SetReadDeadline(time.Now().Add(2 * time.Second))
		size, _, err := suite.listener.ReadFromUDP(buf)
		suite.NoError(err)
		out = append(out, append([]byte(nil), buf[:size]...))
	}
	return out
}

func (suite *SenderTestingSuite) TestConfigValidation() {
	_, err := NewSender(SenderConfig{Label: "no id"})
	suite.ErrorIs(err, ErrMissingIdentity)

	_, err = NewSender(SenderConfig{
		Id: "x", Channels: 2, SampleRate: 12345, BitDepth: 24,
		MulticastIP: "239.69.1.1", Port: 5004, PacketTimeUs: 1000,
	})
	suite.ErrorIs(err, ErrInvalidSampleRate)

	_, err = NewSender(SenderConfig{
		Id: "x", Channels: 2, SampleRate: 48000, BitDepth: 24,
		MulticastIP: "239.69.1.1", Port: 5004, PacketTimeUs: 500,
	})
	suite.ErrorIs(err, ErrInvalidPacketTime)
}

func (suite *SenderTestingSuite) TestStateTransitions() {
	suite.Equal(SenderStateStopped, suite.sender.State())

	suite.NoError(suite.sender.Start())
	suite.Equal(SenderStateRunning, suite.sender.State())
	suite.True(suite.sender.Running())

	suite.sender.Stop()
	suite.Equal(SenderStateStopped, suite.sender.State())
}

func (suite *SenderTestingSuite) TestEmitsSequentialPackets() {
	suite.NoError(suite.sender.Start())

	// 10 ms of frame-aligned input in one callback
	bytesPerPacket := 48 * 6
	suite.source.Push(make([]byte, 10*bytesPerPacket), 0)

	packets := suite.readPackets(10)

	var prevSeq uint16
	var prevTs uint32
	for i, raw := range packets {
		packet, err := parseRTPPacket(raw)
		suite.NoError(err)
		suite.Equal(uint8(97), packet.PayloadType)
		suite.Equal(suite.sender.SSRC(), packet.SSRC)
		suite.Len(packet.Payload, bytesPerPacket)

		if i > 0 {
			suite.Equal(uint16(1), packet.SequenceNumber-prevSeq)
			suite.Equal(uint32(48), packet.Timestamp-prevTs)
		}
		prevSeq = packet.SequenceNumber
		prevTs = packet.Timestamp
	}

	stats := suite.sender.Stats()
	suite.EqualValues(10, stats.PacketsSent)
	suite.EqualValues(10*(12+bytesPerPacket), stats.BytesSent)
}

func (suite *SenderTestingSuite) TestDropsResidualBytes() {
	suite.NoError(suite.sender.Start())

	// one full packet plus two frames of residue
	suite.source.Push(make([]byte, 48*6+12), 0)

	suite.readPackets(1)

	time.Sleep(50 * time.Millisecond)
	stats := suite.sender.Stats()
	suite.EqualValues(1, stats.PacketsSent)
}

func (suite *SenderTestingSuite) TestFreeRunsWithoutSync() {
	follower := &fakeFollower{synced: false, state: PtpStateUncalibrated}
	suite.sender.SetClock(NewClock(follower))

	suite.NoError(suite.sender.Start())

	suite.source.Push(make([]byte, 48*6), 0)
	suite.source.Push(make([]byte, 48*6), 0)

	packets := suite.readPackets(2)
	first, err := parseRTPPacket(packets[0])
	suite.NoError(err)
	second, err := parseRTPPacket(packets[1])
	suite.NoError(err)

	// unsynchronized: the timestamp counter continues monotonically
	suite.Equal(uint32(48), second.Timestamp-first.Timestamp)
	suite.True(suite.sender.Healthy())
}

func (suite *SenderTestingSuite) TestUsesClockWhenSynchronized() {
	follower := &fakeFollower{synced: true, now: 1_000_000_000, state: PtpStateSlave}
	suite.sender.SetClock(NewClock(follower))

	suite.NoError(suite.sender.Start())
	suite.source.Push(make([]byte, 48*6), 0)

	packets := suite.readPackets(1)
	packet, err := parseRTPPacket(packets[0])
	suite.NoError(err)
	suite.Equal(PtpToRtpTimestamp(1_000_000_000, 48000), packet.Timestamp)
}

func (suite *SenderTestingSuite) TestGenerateSDP() {
	sdp, err := suite.sender.GenerateSDP()
	suite.NoError(err)
	suite.Contains(sdp, "a=rtpmap:97 L24/48000/2")
	suite.Contains(sdp, "a=ptime:1")
	suite.Contains(sdp, "s=Sender Under Test")
	suite.True(strings.HasSuffix(sdp, "\r\n"))
}

func (suite *SenderTestingSuite) TestHealthyWhenStopped() {
	suite.True(suite.sender.Healthy())
}

func (suite *SenderTestingSuite) TestClosedSenderRefusesStart() {
	suite.sender.Close()
	suite.True(suite.sender.Closed())
	suite.ErrorIs(suite.sender.Start(), ErrSenderClosed)
}

func TestSenderTestingSuite(t *testing.T) {
	suite.Run(t, new(SenderTestingSuite))
}
