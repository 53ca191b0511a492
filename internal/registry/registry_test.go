package registry

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/emsgrid/vitals-relay/internal/constants"
	"github.com/emsgrid/vitals-relay/internal/models"
)

// recordingSender captures delivered messages for assertions.
type recordingSender struct {
	mu       sync.Mutex
	messages []models.Outbound
	fail     bool
}

func (s *recordingSender) Send(msg models.Outbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("send failed")
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// waitFor polls until the condition holds or the deadline passes.
// Broadcasts are asynchronous, so assertions need a little patience.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Fail(t, "condition not met before deadline")
}

func TestRegistry_RegisterAssignsGroup(t *testing.T) {
	r := NewRegistry(2, zerolog.Nop())
	defer r.Shutdown()

	group := r.Register("conn-1", constants.RoleSource, &recordingSender{})
	assert.Equal(t, constants.RoleSource, group)

	role, ok := r.Role("conn-1")
	assert.True(t, ok)
	assert.Equal(t, constants.RoleSource, role)
}

func TestRegistry_ReRegisterReplacesRole(t *testing.T) {
	r := NewRegistry(2, zerolog.Nop())
	defer r.Shutdown()

	r.Register("conn-1", constants.RoleSource, &recordingSender{})
	r.Register("conn-1", constants.RoleSubscriber, &recordingSender{})

	role, ok := r.Role("conn-1")
	assert.True(t, ok)
	assert.Equal(t, constants.RoleSubscriber, role)

	sources, subscribers := r.Counts()
	assert.Equal(t, 0, sources)
	assert.Equal(t, 1, subscribers)
}

func TestRegistry_UnregisterUnknownIsNoOp(t *testing.T) {
	r := NewRegistry(2, zerolog.Nop())
	defer r.Shutdown()

	r.Unregister("never-registered")

	sources, subscribers := r.Counts()
	assert.Zero(t, sources)
	assert.Zero(t, subscribers)
}

func TestRegistry_BroadcastReachesGroupOnly(t *testing.T) {
	r := NewRegistry(2, zerolog.Nop())
	defer r.Shutdown()

	source := &recordingSender{}
	subA := &recordingSender{}
	subB := &recordingSender{}
	r.Register("src-1", constants.RoleSource, source)
	r.Register("sub-a", constants.RoleSubscriber, subA)
	r.Register("sub-b", constants.RoleSubscriber, subB)

	r.Broadcast(constants.RoleSubscriber, models.Outbound{Type: constants.MessageVitalsUpdate})

	waitFor(t, func() bool { return subA.count() == 1 && subB.count() == 1 })
	assert.Zero(t, source.count(), "source group must not receive subscriber broadcasts")
}

func TestRegistry_BroadcastExceptSkipsSender(t *testing.T) {
	r := NewRegistry(2, zerolog.Nop())
	defer r.Shutdown()

	origin := &recordingSender{}
	other := &recordingSender{}
	sub := &recordingSender{}
	r.Register("src-1", constants.RoleSource, origin)
	r.Register("src-2", constants.RoleSource, other)
	r.Register("sub-1", constants.RoleSubscriber, sub)

	r.BroadcastExcept("src-1", models.Outbound{Type: constants.MessageLocationUpdate})

	waitFor(t, func() bool { return other.count() == 1 && sub.count() == 1 })
	assert.Zero(t, origin.count(), "sender must not receive its own location update")
}

func TestRegistry_FailedDeliveryDoesNotBlockOthers(t *testing.T) {
	r := NewRegistry(2, zerolog.Nop())
	defer r.Shutdown()

	dead := &recordingSender{fail: true}
	alive := &recordingSender{}
	r.Register("sub-dead", constants.RoleSubscriber, dead)
	r.Register("sub-alive", constants.RoleSubscriber, alive)

	r.Broadcast(constants.RoleSubscriber, models.Outbound{Type: constants.MessageVitalsUpdate})

	waitFor(t, func() bool { return alive.count() == 1 })
}

func TestRegistry_SendToUnknownIsNoOp(t *testing.T) {
	r := NewRegistry(2, zerolog.Nop())
	defer r.Shutdown()

	// Must not panic or error.
	r.Send("ghost", models.Outbound{Type: constants.MessageConnectionStatus})
}

func TestRegistry_BroadcastAfterShutdownDoesNotPanic(t *testing.T) {
	r := NewRegistry(2, zerolog.Nop())

	sub := &recordingSender{}
	r.Register("sub-1", constants.RoleSubscriber, sub)
	r.Register("src-1", constants.RoleSource, &recordingSender{})

	r.Shutdown()

	// A read loop still draining a live websocket can dispatch during
	// teardown; deliveries are dropped, never fatal.
	assert.NotPanics(t, func() {
		r.Broadcast(constants.RoleSubscriber, models.Outbound{Type: constants.MessageVitalsUpdate})
		r.BroadcastExcept("src-1", models.Outbound{Type: constants.MessageLocationUpdate})
	})
	assert.Zero(t, sub.count())
}

func TestRegistry_Counts(t *testing.T) {
	r := NewRegistry(2, zerolog.Nop())
	defer r.Shutdown()

	r.Register("src-1", constants.RoleSource, &recordingSender{})
	r.Register("sub-1", constants.RoleSubscriber, &recordingSender{})
	r.Register("sub-2", constants.RoleSubscriber, &recordingSender{})

	sources, subscribers := r.Counts()
	assert.Equal(t, 1, sources)
	assert.Equal(t, 2, subscribers)

	r.Unregister("sub-1")
	sources, subscribers = r.Counts()
	assert.Equal(t, 1, sources)
	assert.Equal(t, 1, subscribers)
}
