package aes67

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
)

// PtpState mirrors the port states reported by a IEEE 1588 follower daemon.
type PtpState int

const (
	PtpStateInitializing PtpState = iota
	PtpStateListening
	PtpStateUncalibrated
	PtpStateSlave
	PtpStatePassive
	PtpStateFaulty
)

func (s PtpState) String() string {
	switch s {
	case PtpStateInitializing:
		return "Initializing"
	case PtpStateListening:
		return "Listening"
	case PtpStateUncalibrated:
		return "Uncalibrated"
	case PtpStateSlave:
		return "Slave"
	case PtpStatePassive:
		return "Passive"
	case PtpStateFaulty:
		return "Faulty"
	}
	return "Unknown"
}

// ClockInfo is a snapshot of the follower's synchronization status.
type ClockInfo struct {
	State              PtpState `json:"state"`
	Synchronized       bool     `json:"synchronized"`
	OffsetFromMasterNs int64    `json:"offset_from_master_ns"`
}

// SystemFollower is a PtpFollower backed by the system clock. It stands in
// for an external linuxptp follower in tests, examples and free-running
// deployments; the reported state and offset are whatever the owner sets.
type SystemFollower struct {
	state  int32
	offset int64
}

func NewSystemFollower() *SystemFollower {
	return &SystemFollower{state: int32(PtpStateInitializing)}
}

func (f *SystemFollower) SetState(state PtpState) {
	atomic.StoreInt32(&f.state, int32(state))
}

func (f *SystemFollower) SetOffsetFromMasterNs(offset int64) {
	atomic.StoreInt64(&f.offset, offset)
}

func (f *SystemFollower) State() PtpState {
	return PtpState(atomic.LoadInt32(&f.state))
}

func (f *SystemFollower) Synchronized() bool {
	return f.State() == PtpStateSlave
}

func (f *SystemFollower) CurrentTimeNs() int64 {
	return time.Now().UnixNano() - atomic.LoadInt64(&f.offset)
}

func (f *SystemFollower) OffsetFromMasterNs() int64 {
	return atomic.LoadInt64(&f.offset)
}

// PtpMonitor polls a follower and publishes synchronization changes.
//
//   - @emits statechange - (state PtpState)
//   - @emits offsetupdate - (offsetNs int64)
type PtpMonitor struct {
	IEventEmitter
	logger   logr.Logger
	follower PtpFollower
	interval time.Duration

	mu         sync.Mutex
	running    bool
	done       chan struct{}
	lastState  PtpState
	lastOffset int64
}

func NewPtpMonitor(follower PtpFollower) *PtpMonitor {
	return &PtpMonitor{
		IEventEmitter: NewEventEmitter(),
		logger:        NewLogger("PtpMonitor"),
		follower:      follower,
		interval:      100 * time.Millisecond,
		lastState:     PtpStateInitializing,
	}
}

func (m *PtpMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	m.running = true
	m.done = make(chan struct{})

	go m.monitorLoop(m.done)

	m.logger.Info("started")
}

func (m *PtpMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.done)
	m.mu.Unlock()

	m.logger.Info("stopped")
}

// ClockInfo returns the follower status snapshot.
func (m *PtpMonitor) ClockInfo() ClockInfo {
	return ClockInfo{
		State:              m.follower.State(),
		Synchronized:       m.follower.Synchronized(),
		OffsetFromMasterNs: m.follower.OffsetFromMasterNs(),
	}
}

func (m *PtpMonitor) monitorLoop(done chan struct{}) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			state := m.follower.State()
			offset := m.follower.OffsetFromMasterNs()

			m.mu.Lock()
			stateChanged := state != m.lastState
			offsetChanged := offset != m.lastOffset
			m.lastState = state
			m.lastOffset = offset
			m.mu.Unlock()

			if stateChanged {
				m.logger.Info("ptp state changed", "state", state.String())
				m.SafeEmit("statechange", state)
			}
			if offsetChanged {
				m.SafeEmit("offsetupdate", offset)
			}
		}
	}
}
