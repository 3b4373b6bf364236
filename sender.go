package aes67

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/net/ipv4"
)

const multicastTTL = 32

// senderStallTimeout flags the session unhealthy when the capture callback
// goes silent while running.
const senderStallTimeout = 5 * time.Second

// Sender packetizes locally captured PCM into RTP and transmits it to a
// multicast group.
//
//   - @emits statechange - (state SenderState)
//   - @emits @close
type Sender struct {
	IEventEmitter
	locker   sync.Mutex
	logger   logr.Logger
	config   SenderConfig
	observer IEventEmitter

	source AudioSource
	clock  *Clock

	state       int32 // SenderState
	closed      uint32
	initialized bool
	running     uint32

	conn net.Conn
	ssrc uint32

	// hot-path counters, written by the capture callback only
	sequence     uint32 // low 16 bits
	rtpTimestamp uint32
	packetsSent  uint64
	bytesSent    uint64
	underruns    uint64
	lastPacketNs int64
	startTime    time.Time

	sessionID     uint64
	originAddress string
}

// NewSender creates a sender for one outbound stream. The configuration is
// validated here; the session refuses to start otherwise.
func NewSender(config SenderConfig) (*Sender, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := NewLogger("Sender")
	logger.V(1).Info("constructor()", "id", config.Id)

	return &Sender{
		IEventEmitter: NewEventEmitter(),
		logger:        logger,
		config:        config,
		observer:      NewEventEmitter(),
		ssrc:          generateSSRC(),
		sessionID:     generateSessionID(),
		originAddress: "0.0.0.0",
		state:         int32(SenderStateStopped),
	}, nil
}

// Id returns the sender id.
func (s *Sender) Id() string {
	return s.config.Id
}

// Label returns the human readable label.
func (s *Sender) Label() string {
	return s.config.Label
}

// Config returns a copy of the sender configuration.
func (s *Sender) Config() SenderConfig {
	return s.config
}

// AudioFormat returns the immutable stream format.
func (s *Sender) AudioFormat() AudioFormat {
	return s.config.AudioFormat()
}

// MulticastIP returns the destination group address.
func (s *Sender) MulticastIP() string {
	return s.config.MulticastIP
}

// Port returns the destination UDP port.
func (s *Sender) Port() uint16 {
	return s.config.Port
}

// SSRC returns the session's synchronization source identifier.
func (s *Sender) SSRC() uint32 {
	return s.ssrc
}

// Closed reports whether the sender was closed.
func (s *Sender) Closed() bool {
	return atomic.LoadUint32(&s.closed) > 0
}

// State returns the current lifecycle state.
func (s *Sender) State() SenderState {
	return SenderState(atomic.LoadInt32(&s.state))
}

// Running reports whether the capture-to-send loop is active.
func (s *Sender) Running() bool {
	return s.State() == SenderStateRunning
}

// Observer.
//
//   - @emits close
//   - @emits statechange - (state SenderState)
func (s *Sender) Observer() IEventEmitter {
	return s.observer
}

// SetAudioSource wires the capture side. Must be called before Start.
func (s *Sender) SetAudioSource(source AudioSource) {
	s.locker.Lock()
	defer s.locker.Unlock()

	s.source = source
}

// SetClock wires the PTP-driven timestamp source. Without a clock the sender
// free-runs on its own counter.
func (s *Sender) SetClock(clock *Clock) {
	s.locker.Lock()
	defer s.locker.Unlock()

	s.clock = clock
}

// SetOriginAddress sets the address advertised in generated SDP origins.
func (s *Sender) SetOriginAddress(address string) {
	s.locker.Lock()
	defer s.locker.Unlock()

	s.originAddress = address
}

// Initialize opens the audio source and registers the capture callback.
func (s *Sender) Initialize() error {
	s.locker.Lock()
	defer s.locker.Unlock()

	if s.Closed() {
		return ErrSenderClosed
	}
	if s.initialized {
		return nil
	}

	s.setState(SenderStateInitializing)

	if s.source != nil {
		if err := s.source.Open(s.config.AudioFormat()); err != nil {
			s.setState(SenderStateError)
			return fmt.Errorf("open audio source: %w", err)
		}
		s.source.SetCallback(s.onAudioData)
	}

	s.initialized = true
	s.setState(SenderStateStopped)
	s.logger.Info("initialized", "id", s.config.Id)
	return nil
}

// Start opens the UDP socket and begins streaming. The destination socket is
// opened with multicast TTL 32.
func (s *Sender) Start() error {
	s.locker.Lock()
	defer s.locker.Unlock()

	if s.Closed() {
		return ErrSenderClosed
	}
	if s.Running() {
		return nil
	}
	if !s.initialized {
		s.locker.Unlock()
		err := s.Initialize()
		s.locker.Lock()
		if err != nil {
			return err
		}
	}

	dest := &net.UDPAddr{
		IP:   net.ParseIP(s.config.MulticastIP),
		Port: int(s.config.Port),
	}
	if dest.IP == nil {
		s.setState(SenderStateError)
		return fmt.Errorf("invalid multicast ip %q", s.config.MulticastIP)
	}

	conn, err := net.DialUDP("udp4", nil, dest)
	if err != nil {
		s.setState(SenderStateError)
		return fmt.Errorf("dial udp: %w", err)
	}
	if dest.IP.IsMulticast() {
		if err := ipv4.NewPacketConn(conn).SetMulticastTTL(multicastTTL); err != nil {
			s.logger.Error(err, "failed to set multicast ttl")
		}
	}
	s.conn = conn

	s.startTime = time.Now()
	atomic.StoreInt64(&s.lastPacketNs, s.startTime.UnixNano())
	atomic.StoreUint32(&s.running, 1)
	s.setState(SenderStateRunning)

	if s.source != nil {
		if err := s.source.Start(); err != nil {
			atomic.StoreUint32(&s.running, 0)
			conn.Close()
			s.conn = nil
			s.setState(SenderStateError)
			return fmt.Errorf("start audio source: %w", err)
		}
	}

	s.logger.Info("started", "id", s.config.Id,
		"dest", fmt.Sprintf("%s:%d", s.config.MulticastIP, s.config.Port))
	return nil
}

// Stop halts streaming. Permitted from any state.
func (s *Sender) Stop() {
	s.locker.Lock()
	defer s.locker.Unlock()

	if !s.Running() && s.conn == nil {
		s.setState(SenderStateStopped)
		return
	}

	atomic.StoreUint32(&s.running, 0)

	if s.source != nil {
		s.source.Stop()
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}

	s.setState(SenderStateStopped)
	s.logger.Info("stopped", "id", s.config.Id)
}

// Close stops the sender and releases it.
func (s *Sender) Close() {
	if atomic.CompareAndSwapUint32(&s.closed, 0, 1) {
		s.logger.V(1).Info("close()")

		s.Stop()

		s.Emit("@close")
		s.RemoveAllListeners()

		s.observer.SafeEmit("close")
		s.observer.RemoveAllListeners()
	}
}

// GenerateSDP declares this stream as an AES67 session description.
func (s *Sender) GenerateSDP() (string, error) {
	s.locker.Lock()
	origin := s.originAddress
	s.locker.Unlock()

	return GenerateSDP(s.config.MulticastIP, s.config.Port, s.config.PayloadType,
		s.config.AudioFormat(), s.config.Label, s.sessionID, origin, s.config.PacketTimeUs)
}

// Stats returns a snapshot of the session counters.
func (s *Sender) Stats() SenderStatistics {
	stats := SenderStatistics{
		PacketsSent:    atomic.LoadUint64(&s.packetsSent),
		BytesSent:      atomic.LoadUint64(&s.bytesSent),
		SequenceNumber: uint16(atomic.LoadUint32(&s.sequence)),
		RtpTimestamp:   atomic.LoadUint32(&s.rtpTimestamp),
		Underruns:      atomic.LoadUint64(&s.underruns),
		StartTime:      s.startTime,
	}
	if ns := atomic.LoadInt64(&s.lastPacketNs); ns > 0 {
		stats.LastPacketTime = time.Unix(0, ns)
	}
	if elapsed := time.Since(s.startTime).Seconds(); elapsed > 0 && !s.startTime.IsZero() {
		stats.BitrateKbps = float64(stats.BytesSent) * 8 / 1000 / elapsed
	}
	return stats
}

// Healthy reports false only when the session is Running but no packet has
// been sent successfully for more than five seconds, whether because the
// capture callback stalled or because every send failed.
func (s *Sender) Healthy() bool {
	if !s.Running() {
		return true
	}
	last := atomic.LoadInt64(&s.lastPacketNs)
	return time.Since(time.Unix(0, last)) < senderStallTimeout
}

// Recover performs a stop/start cycle with a short settle delay.
func (s *Sender) Recover() error {
	s.logger.Info("recovering", "id", s.config.Id)
	s.Stop()
	time.Sleep(100 * time.Millisecond)
	return s.Start()
}

func (s *Sender) setState(state SenderState) {
	if SenderState(atomic.SwapInt32(&s.state, int32(state))) == state {
		return
	}
	s.SafeEmit("statechange", state)
	s.observer.SafeEmit("statechange", state)
}

// onAudioData is the capture callback. It may run on a realtime thread: no
// locks are taken, statistics are atomics, and the socket handle is only
// replaced while the source is stopped.
func (s *Sender) onAudioData(buffer AudioBuffer) {
	if atomic.LoadUint32(&s.running) == 0 {
		return
	}
	conn := s.conn
	if conn == nil {
		return
	}

	samplesPerPacket := s.config.SamplesPerPacket()
	bytesPerPacket := samplesPerPacket * s.config.AudioFormat().BytesPerFrame()
	if bytesPerPacket == 0 {
		return
	}

	// PTP-aligned base timestamp, or the free-running counter while the
	// follower is out of sync.
	rtpTimestamp := atomic.LoadUint32(&s.rtpTimestamp)
	if s.clock != nil && s.clock.Synchronized() {
		rtpTimestamp = s.clock.RtpTimestamp(s.config.SampleRate)
	}

	data := buffer.Data
	// residual bytes below one packet are dropped; the source delivers
	// frame-aligned buffers at a fixed cadence
	for len(data) >= bytesPerPacket {
		seq := uint16(atomic.AddUint32(&s.sequence, 1) - 1)

		packet, err := buildRTPPacket(data[:bytesPerPacket], s.config.PayloadType,
			seq, rtpTimestamp, s.ssrc)
		if err != nil {
			atomic.AddUint64(&s.underruns, 1)
			s.logger.Error(err, "packetize failed")
			return
		}

		n, err := conn.Write(packet)
		if err != nil {
			// UDP semantics: count, log, no retry
			atomic.AddUint64(&s.underruns, 1)
			s.logger.V(1).Info("send failed", "error", err)
		} else {
			atomic.AddUint64(&s.packetsSent, 1)
			atomic.AddUint64(&s.bytesSent, uint64(n))
			atomic.StoreInt64(&s.lastPacketNs, time.Now().UnixNano())
		}

		data = data[bytesPerPacket:]
		rtpTimestamp += uint32(samplesPerPacket)
	}

	atomic.StoreUint32(&s.rtpTimestamp, rtpTimestamp)
}
