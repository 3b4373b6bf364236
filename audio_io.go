package aes67

import (
	"sync"
)

// AudioBuffer carries one capture callback's worth of interleaved PCM.
type AudioBuffer struct {
	Data       []byte
	Frames     int
	Channels   uint8
	SampleRate uint32
	BitDepth   uint8

	// Timestamp is the PTP wall time of the first frame in nanoseconds, zero
	// when the source has no clock.
	Timestamp uint64
}

// AudioCallback receives capture buffers. It may run on a realtime thread and
// must not block.
type AudioCallback func(buffer AudioBuffer)

// AudioSource is the capture side of the host audio subsystem. The PipeWire
// (or ALSA, or file) bridge implementing it lives outside this module.
type AudioSource interface {
	Open(format AudioFormat) error
	SetCallback(callback AudioCallback)
	Start() error
	Stop()
}

// AudioSink is the playback side of the host audio subsystem. Write may
// accept fewer bytes than offered; the shortfall is the sink's back-pressure.
type AudioSink interface {
	Open(format AudioFormat) error
	Start() error
	Stop()
	Write(data []byte) int
	AvailableFrames() int
}

// MemorySource is an in-process AudioSource. Callers push frame-aligned PCM
// with Push and the source forwards it to the registered callback. Used by
// the tests; a production deployment wires a real capture bridge instead.
type MemorySource struct {
	mu       sync.Mutex
	format   AudioFormat
	callback AudioCallback
	started  bool
}

func NewMemorySource() *MemorySource {
	return &MemorySource{}
}

func (s *MemorySource) Open(format AudioFormat) error {
	if err := format.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.format = format
	s.mu.Unlock()
	return nil
}

func (s *MemorySource) SetCallback(callback AudioCallback) {
	s.mu.Lock()
	s.callback = callback
	s.mu.Unlock()
}

func (s *MemorySource) Start() error {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	return nil
}

func (s *MemorySource) Stop() {
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
}

// Push delivers PCM bytes to the callback as if captured from hardware.
func (s *MemorySource) Push(data []byte, timestamp uint64) {
	s.mu.Lock()
	callback := s.callback
	format := s.format
	started := s.started
	s.mu.Unlock()

	if !started || callback == nil || format.BytesPerFrame() == 0 {
		return
	}
	callback(AudioBuffer{
		Data:       data,
		Frames:     len(data) / format.BytesPerFrame(),
		Channels:   format.Channels,
		SampleRate: format.SampleRate,
		BitDepth:   format.BitDepth,
		Timestamp:  timestamp,
	})
}

// MemorySink is a bounded in-process AudioSink. Write accepts bytes until the
// buffer is full, imposing back-pressure like a hardware sink with a fixed
// period queue.
type MemorySink struct {
	mu       sync.Mutex
	format   AudioFormat
	buf      []byte
	capacity int
	started  bool
}

// NewMemorySink creates a sink holding at most capacityFrames frames.
func NewMemorySink(capacityFrames int) *MemorySink {
	return &MemorySink{capacity: capacityFrames}
}

func (s *MemorySink) Open(format AudioFormat) error {
	if err := format.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.format = format
	s.buf = s.buf[:0]
	s.mu.Unlock()
	return nil
}

func (s *MemorySink) Start() error {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	return nil
}

func (s *MemorySink) Stop() {
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
}

func (s *MemorySink) Write(data []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.format.BytesPerFrame() == 0 {
		return 0
	}
	capacityBytes := s.capacity * s.format.BytesPerFrame()
	room := capacityBytes - len(s.buf)
	if room <= 0 {
		return 0
	}
	n := len(data)
	if n > room {
		n = room
	}
	s.buf = append(s.buf, data[:n]...)
	return n
}

func (s *MemorySink) AvailableFrames() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format.BytesPerFrame() == 0 {
		return 0
	}
	return len(s.buf) / s.format.BytesPerFrame()
}

// Drain removes and returns up to maxBytes of buffered PCM, freeing room for
// further writes.
func (s *MemorySink) Drain(maxBytes int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.buf)
	if n > maxBytes {
		n = maxBytes
	}
	out := make([]byte, n)
	copy(out, s.buf[:n])
	s.buf = append(s.buf[:0], s.buf[n:]...)
	return out
}
