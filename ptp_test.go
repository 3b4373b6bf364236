package aes67

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPtpStateStrings(t *testing.T) {
	assert.Equal(t, "Initializing", PtpStateInitializing.String())
	assert.Equal(t, "Slave", PtpStateSlave.String())
	assert.Equal(t, "Faulty", PtpStateFaulty.String())
}

func TestSystemFollower(t *testing.T) {
	follower := NewSystemFollower()

	assert.False(t, follower.Synchronized())
	assert.Equal(t, PtpStateInitializing, follower.State())

	follower.SetState(PtpStateSlave)
	assert.True(t, follower.Synchronized())

	follower.SetOffsetFromMasterNs(1500)
	assert.Equal(t, int64(1500), follower.OffsetFromMasterNs())

	before := time.Now().UnixNano()
	now := follower.CurrentTimeNs()
	assert.GreaterOrEqual(t, now, before-int64(time.Second))
}

func TestPtpMonitorEmitsStateChange(t *testing.T) {
	follower := NewSystemFollower()
	monitor := NewPtpMonitor(follower)

	var mu sync.Mutex
	var states []PtpState
	monitor.On("statechange", func(state PtpState) {
		mu.Lock()
		states = append(states, state)
		mu.Unlock()
	})

	monitor.Start()
	defer monitor.Stop()

	time.Sleep(150 * time.Millisecond)
	follower.SetState(PtpStateSlave)
	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, states, PtpStateSlave)

	info := monitor.ClockInfo()
	assert.True(t, info.Synchronized)
	assert.Equal(t, PtpStateSlave, info.State)
}

func TestPtpMonitorStartStopIdempotent(t *testing.T) {
	monitor := NewPtpMonitor(NewSystemFollower())
	monitor.Start()
	monitor.Start()
	monitor.Stop()
	monitor.Stop()
}
