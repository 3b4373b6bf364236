package aes67

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
)

const (
	receiverPollTimeout  = 100 * time.Millisecond
	receiverReadBuffer   = 2 * 1024 * 1024
	receiverDatagramSize = 64 * 1024
	receiverStallTimeout = 5 * time.Second
	playoutIdleSleep     = 500 * time.Microsecond
)

// Receiver joins a multicast group, reorders incoming RTP through a jitter
// buffer and drains a continuous PCM stream into the audio sink.
//
//   - @emits statechange - (state ReceiverState)
//   - @emits @close
type Receiver struct {
	IEventEmitter
	locker   sync.Mutex
	logger   logr.Logger
	config   ReceiverConfig
	observer IEventEmitter

	sink  AudioSink
	clock *Clock

	state       int32 // ReceiverState
	closed      uint32
	initialized bool
	connected   uint32
	running     uint32

	conn         *net.UDPConn
	jitterBuffer *JitterBuffer
	sdpInfo      SDPInfo
	senderID     string

	workers sync.WaitGroup
	done    chan struct{}

	// statistics, written by the receive worker
	packetsReceived   uint64
	packetsLost       uint64
	packetsOutOfOrder uint64
	bytesReceived     uint64
	lastSequence      uint32 // low 16 bits
	lastTimestamp     uint32
	lastPacketNs      int64
	startTime         time.Time

	prevSequence      uint16
	prevSequenceValid bool
}

// NewReceiver creates a receiver session. At most one inbound stream is owned
// at a time; Connect binds it.
func NewReceiver(config ReceiverConfig) (*Receiver, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.JitterBuffer.MaxPackets == 0 {
		config.JitterBuffer = DefaultJitterBufferConfig
	}

	logger := NewLogger("Receiver")
	logger.V(1).Info("constructor()", "id", config.Id)

	return &Receiver{
		IEventEmitter: NewEventEmitter(),
		logger:        logger,
		config:        config,
		observer:      NewEventEmitter(),
		jitterBuffer:  NewJitterBuffer(config.JitterBuffer),
		state:         int32(ReceiverStateStopped),
	}, nil
}

// Id returns the receiver id.
func (r *Receiver) Id() string {
	return r.config.Id
}

// Label returns the human readable label.
func (r *Receiver) Label() string {
	return r.config.Label
}

// Config returns a copy of the receiver configuration.
func (r *Receiver) Config() ReceiverConfig {
	return r.config
}

// Closed reports whether the receiver was closed.
func (r *Receiver) Closed() bool {
	return atomic.LoadUint32(&r.closed) > 0
}

// State returns the current lifecycle state.
func (r *Receiver) State() ReceiverState {
	return ReceiverState(atomic.LoadInt32(&r.state))
}

// Running reports whether the receive and playout workers are active.
func (r *Receiver) Running() bool {
	return r.State() == ReceiverStateReceiving
}

// Connected reports whether an inbound stream is bound.
func (r *Receiver) Connected() bool {
	return atomic.LoadUint32(&r.connected) > 0
}

// Observer.
//
//   - @emits close
//   - @emits statechange - (state ReceiverState)
func (r *Receiver) Observer() IEventEmitter {
	return r.observer
}

// AudioFormat returns the format of the bound stream.
func (r *Receiver) AudioFormat() AudioFormat {
	r.locker.Lock()
	defer r.locker.Unlock()

	return r.sdpInfo.Format
}

// SDPInfo returns the bound stream description.
func (r *Receiver) SDPInfo() SDPInfo {
	r.locker.Lock()
	defer r.locker.Unlock()

	return r.sdpInfo
}

// SenderID returns the NMOS sender this receiver is subscribed to.
func (r *Receiver) SenderID() string {
	r.locker.Lock()
	defer r.locker.Unlock()

	return r.senderID
}

// SetSenderID records the NMOS subscription.
func (r *Receiver) SetSenderID(senderID string) {
	r.locker.Lock()
	defer r.locker.Unlock()

	r.senderID = senderID
}

// SetAudioSink wires the playback side. Must be called before Start.
func (r *Receiver) SetAudioSink(sink AudioSink) {
	r.locker.Lock()
	defer r.locker.Unlock()

	r.sink = sink
}

// SetClock wires the PTP clock used for the synchronized flag in statistics.
func (r *Receiver) SetClock(clock *Clock) {
	r.locker.Lock()
	defer r.locker.Unlock()

	r.clock = clock
}

// JitterBuffer exposes the reordering queue.
func (r *Receiver) JitterBuffer() *JitterBuffer {
	return r.jitterBuffer
}

// Initialize prepares the receiver. It is implied by Connect.
func (r *Receiver) Initialize() error {
	r.locker.Lock()
	defer r.locker.Unlock()

	if r.Closed() {
		return ErrReceiverClosed
	}
	if r.initialized {
		return nil
	}
	r.setState(ReceiverStateInitializing)
	r.initialized = true
	r.setState(ReceiverStateStopped)
	r.logger.Info("initialized", "id", r.config.Id)
	return nil
}

// ConnectSDP binds the receiver to the stream a session description
// declares. The description must pass AES67 validation.
func (r *Receiver) ConnectSDP(raw string) error {
	info, err := ParseSDP(raw)
	if err != nil {
		return err
	}
	if !info.Valid() {
		return ErrInvalidSDP
	}
	if err := ValidateAES67(info); err != nil {
		return err
	}

	r.locker.Lock()
	defer r.locker.Unlock()

	r.sdpInfo = *info
	r.logger.Info("parsed sdp", "source", info.SourceIP, "port", info.Port,
		"channels", info.Format.Channels, "rate", info.Format.SampleRate)

	return r.connectLocked()
}

// Connect binds the receiver to a stream by transport parameters. The format
// may be zero when it is expected from a later SDP or probed out of band.
func (r *Receiver) Connect(sourceIP string, port uint16, format AudioFormat) error {
	r.locker.Lock()
	defer r.locker.Unlock()

	r.sdpInfo = SDPInfo{
		SourceIP:     sourceIP,
		Port:         port,
		Format:       format,
		PacketTimeUs: 1000,
	}
	return r.connectLocked()
}

// connectLocked opens the UDP socket bound to 0.0.0.0:port with a 2 MiB
// receive buffer. A group source address gets address reuse and a multicast
// join; any other source gets a plain bind without address reuse.
func (r *Receiver) connectLocked() error {
	if r.Closed() {
		return ErrReceiverClosed
	}
	if r.conn != nil {
		r.disconnectLocked()
	}
	if r.sdpInfo.Port == 0 {
		return ErrInvalidPort
	}

	var (
		conn *net.UDPConn
		err  error
	)

	ip := net.ParseIP(r.sdpInfo.SourceIP)
	if ip != nil && ip.IsMulticast() {
		// ListenMulticastUDP sets address reuse and issues the group join on
		// the default interface.
		conn, err = net.ListenMulticastUDP("udp4", nil, &net.UDPAddr{
			IP:   ip,
			Port: int(r.sdpInfo.Port),
		})
	} else {
		conn, err = net.ListenUDP("udp4", &net.UDPAddr{
			IP:   net.IPv4zero,
			Port: int(r.sdpInfo.Port),
		})
	}
	if err != nil {
		r.setState(ReceiverStateError)
		return fmt.Errorf("bind udp port %d: %w", r.sdpInfo.Port, err)
	}

	if err := conn.SetReadBuffer(receiverReadBuffer); err != nil {
		r.logger.V(1).Info("failed to grow receive buffer", "error", err)
	}

	r.conn = conn
	atomic.StoreUint32(&r.connected, 1)
	r.setState(ReceiverStateListening)
	r.logger.Info("connected", "id", r.config.Id,
		"source", r.sdpInfo.SourceIP, "port", r.sdpInfo.Port)
	return nil
}

// Start launches the receive and playout workers. Connect must have been
// called.
func (r *Receiver) Start() error {
	r.locker.Lock()
	defer r.locker.Unlock()

	if r.Closed() {
		return ErrReceiverClosed
	}
	if !r.Connected() {
		return ErrReceiverNotConnected
	}
	if r.Running() {
		return nil
	}

	if r.sink != nil && r.sdpInfo.Format.Valid() {
		if err := r.sink.Open(r.sdpInfo.Format); err != nil {
			r.setState(ReceiverStateError)
			return fmt.Errorf("open audio sink: %w", err)
		}
		if err := r.sink.Start(); err != nil {
			r.setState(ReceiverStateError)
			return fmt.Errorf("start audio sink: %w", err)
		}
	}

	r.done = make(chan struct{})
	atomic.StoreUint32(&r.running, 1)
	r.startTime = time.Now()
	atomic.StoreInt64(&r.lastPacketNs, r.startTime.UnixNano())
	r.prevSequenceValid = false

	r.workers.Add(2)
	go r.receiveLoop(r.conn, r.sdpInfo.Format, r.done)
	go r.playoutLoop(r.sink, r.done)

	r.setState(ReceiverStateReceiving)
	r.logger.Info("started", "id", r.config.Id)
	return nil
}

// Stop halts the workers but keeps the stream bound; the receiver returns to
// Listening.
func (r *Receiver) Stop() {
	r.locker.Lock()
	defer r.locker.Unlock()

	r.stopLocked()
}

func (r *Receiver) stopLocked() {
	if !r.Running() {
		return
	}

	atomic.StoreUint32(&r.running, 0)
	close(r.done)
	r.workers.Wait()

	if r.sink != nil {
		r.sink.Stop()
	}
	r.jitterBuffer.Reset()

	r.setState(ReceiverStateListening)
	r.logger.Info("stopped", "id", r.config.Id)
}

// Disconnect stops the workers and releases the socket. It is idempotent.
func (r *Receiver) Disconnect() {
	r.locker.Lock()
	defer r.locker.Unlock()

	r.disconnectLocked()
}

func (r *Receiver) disconnectLocked() {
	r.stopLocked()

	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
	atomic.StoreUint32(&r.connected, 0)
	r.setState(ReceiverStateStopped)
	r.logger.Info("disconnected", "id", r.config.Id)
}

// Close disconnects the receiver and releases it.
func (r *Receiver) Close() {
	if atomic.CompareAndSwapUint32(&r.closed, 0, 1) {
		r.logger.V(1).Info("close()")

		r.Disconnect()

		r.Emit("@close")
		r.RemoveAllListeners()

		r.observer.SafeEmit("close")
		r.observer.RemoveAllListeners()
	}
}

// Stats returns a snapshot of the session counters.
func (r *Receiver) Stats() ReceiverStatistics {
	stats := ReceiverStatistics{
		PacketsReceived:    atomic.LoadUint64(&r.packetsReceived),
		PacketsLost:        atomic.LoadUint64(&r.packetsLost),
		PacketsOutOfOrder:  atomic.LoadUint64(&r.packetsOutOfOrder),
		BytesReceived:      atomic.LoadUint64(&r.bytesReceived),
		LastSequenceNumber: uint16(atomic.LoadUint32(&r.lastSequence)),
		LastRtpTimestamp:   atomic.LoadUint32(&r.lastTimestamp),
		BufferLevel:        r.jitterBuffer.Level(),
		LatencyMs:          r.jitterBuffer.LatencyMs(),
		Overruns:           r.jitterBuffer.Overruns(),
		StartTime:          r.startTime,
	}
	if r.clock != nil {
		stats.PtpSynchronized = r.clock.Synchronized()
	}
	if ns := atomic.LoadInt64(&r.lastPacketNs); ns > 0 {
		stats.LastPacketTime = time.Unix(0, ns)
	}
	if elapsed := time.Since(r.startTime).Seconds(); elapsed > 0 && !r.startTime.IsZero() {
		stats.BitrateKbps = float64(stats.BytesReceived) * 8 / 1000 / elapsed
	}
	return stats
}

// Healthy reports false only when the session is Receiving but nothing has
// arrived for more than five seconds.
func (r *Receiver) Healthy() bool {
	if !r.Running() {
		return true
	}
	last := atomic.LoadInt64(&r.lastPacketNs)
	return time.Since(time.Unix(0, last)) < receiverStallTimeout
}

// Recover performs a stop/start cycle with a short settle delay.
func (r *Receiver) Recover() error {
	r.logger.Info("recovering", "id", r.config.Id)
	r.Stop()
	time.Sleep(100 * time.Millisecond)
	return r.Start()
}

func (r *Receiver) setState(state ReceiverState) {
	if ReceiverState(atomic.SwapInt32(&r.state, int32(state))) == state {
		return
	}
	r.SafeEmit("statechange", state)
	r.observer.SafeEmit("statechange", state)
}

// receiveLoop polls the socket with a 100 ms deadline, parses RTP and feeds
// the jitter buffer.
func (r *Receiver) receiveLoop(conn *net.UDPConn, format AudioFormat, done chan struct{}) {
	defer r.workers.Done()

	buf := make([]byte, receiverDatagramSize)

	for atomic.LoadUint32(&r.running) == 1 {
		select {
		case <-done:
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(receiverPollTimeout))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			// socket closed during disconnect, or transient fault
			continue
		}
		if n == 0 {
			continue
		}

		r.processPacket(buf[:n], format)
	}
}

func (r *Receiver) processPacket(datagram []byte, format AudioFormat) {
	packet, err := parseRTPPacket(datagram)
	if err != nil {
		// soft failure, drop
		r.logger.V(1).Info("dropped packet", "error", err)
		return
	}

	if err := validatePayloadSize(len(packet.Payload), format); err != nil {
		r.logger.V(1).Info("dropped packet", "error", err)
		return
	}

	now := time.Now()
	r.jitterBuffer.Push(packet.Payload, packet.SequenceNumber, packet.Timestamp, now)

	atomic.AddUint64(&r.packetsReceived, 1)
	atomic.AddUint64(&r.bytesReceived, uint64(len(datagram)))
	atomic.StoreUint32(&r.lastSequence, uint32(packet.SequenceNumber))
	atomic.StoreUint32(&r.lastTimestamp, packet.Timestamp)
	atomic.StoreInt64(&r.lastPacketNs, now.UnixNano())

	if r.prevSequenceValid {
		// 16 bit signed window heuristic: wraps and very large reorders are
		// indistinguishable, acceptable at AES67 packet rates
		diff := int16(packet.SequenceNumber - r.prevSequence - 1)
		if diff > 0 {
			atomic.AddUint64(&r.packetsLost, uint64(diff))
		} else if diff < -1 {
			// a presumed-lost packet arrived late
			atomic.AddUint64(&r.packetsOutOfOrder, 1)
			if lost := atomic.LoadUint64(&r.packetsLost); lost > 0 {
				atomic.StoreUint64(&r.packetsLost, lost-1)
			}
			return // keep prevSequence at the newest packet seen
		}
	}
	r.prevSequence = packet.SequenceNumber
	r.prevSequenceValid = true
}

// playoutLoop drains the jitter buffer into the audio sink. The sink's
// back-pressure paces the drain; when no packet is ready the worker naps.
func (r *Receiver) playoutLoop(sink AudioSink, done chan struct{}) {
	defer r.workers.Done()

	for atomic.LoadUint32(&r.running) == 1 {
		select {
		case <-done:
			return
		default:
		}

		payload, _, ok := r.jitterBuffer.Pop(time.Now())
		if !ok {
			time.Sleep(playoutIdleSleep)
			continue
		}

		r.writeToSink(sink, payload, done)
	}
}

func (r *Receiver) writeToSink(sink AudioSink, payload []byte, done chan struct{}) {
	if sink == nil {
		return
	}

	for len(payload) > 0 && atomic.LoadUint32(&r.running) == 1 {
		n := sink.Write(payload)
		if n <= 0 {
			// sink full: stall until it drains
			select {
			case <-done:
				return
			case <-time.After(playoutIdleSleep):
			}
			continue
		}
		payload = payload[n:]
	}
}
