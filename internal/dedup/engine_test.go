package dedup

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/emsgrid/vitals-relay/internal/constants"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestEngine(clock *fakeClock) *Engine {
	return NewEngine(constants.DedupWindow, constants.DedupRetention,
		constants.DedupSweepInterval, clock.Now, zerolog.Nop())
}

func TestEngine_Admit_RejectsWithinWindow(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)

	assert.True(t, e.Admit("conn-1", "PAT001"))

	clock.Advance(300 * time.Millisecond)
	assert.False(t, e.Admit("conn-1", "PAT001"), "repeat inside window must be rejected")

	clock.Advance(700 * time.Millisecond)
	assert.True(t, e.Admit("conn-1", "PAT001"), "repeat after window must be admitted")
}

func TestEngine_Admit_WindowDoesNotSlideOnRejection(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)

	assert.True(t, e.Admit("conn-1", "PAT001"))

	// Hammering inside the window must not extend it.
	for i := 0; i < 3; i++ {
		clock.Advance(250 * time.Millisecond)
		assert.False(t, e.Admit("conn-1", "PAT001"))
	}

	clock.Advance(300 * time.Millisecond) // 1050 ms past the admit
	assert.True(t, e.Admit("conn-1", "PAT001"))
}

func TestEngine_Admit_DifferentPatientAdmitted(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)

	assert.True(t, e.Admit("conn-1", "PAT001"))
	assert.True(t, e.Admit("conn-1", "PAT002"), "different patient is never a duplicate")

	// The stored pair moved on to PAT002, so PAT001 is admitted again.
	assert.True(t, e.Admit("conn-1", "PAT001"))
}

func TestEngine_Admit_IndependentPerConnection(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)

	assert.True(t, e.Admit("conn-1", "PAT001"))
	assert.True(t, e.Admit("conn-2", "PAT001"), "other connections have their own window")
}

func TestEngine_Forget(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)

	assert.True(t, e.Admit("conn-1", "PAT001"))
	e.Forget("conn-1")
	assert.Equal(t, 0, e.Len())

	// State is gone, so an immediate repeat is admitted.
	assert.True(t, e.Admit("conn-1", "PAT001"))

	// Forgetting something unknown is a no-op.
	e.Forget("never-seen")
}

func TestEngine_Sweep_EvictsStaleRecords(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)

	e.Admit("conn-old", "PAT001")
	clock.Advance(16 * time.Minute)
	e.Admit("conn-new", "PAT002")

	evicted := e.Sweep()
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, e.Len())
}

func TestEngine_StartStop(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)

	assert.NoError(t, e.Start())
	assert.Error(t, e.Start(), "double start must fail")
	assert.NoError(t, e.Stop())
	assert.Error(t, e.Stop(), "double stop must fail")

	// Restartable in any order at process start.
	assert.NoError(t, e.Start())
	assert.NoError(t, e.Stop())
}
