// Package registry tracks live connections partitioned into role-derived
// broadcast groups and delivers outbound messages to them.
package registry

import (
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"

	"github.com/emsgrid/vitals-relay/internal/constants"
	"github.com/emsgrid/vitals-relay/internal/models"
	"github.com/emsgrid/vitals-relay/internal/utils"
)

// Sender pushes one outbound message to a connection's transport.
// Implementations must be safe for concurrent use.
type Sender interface {
	Send(msg models.Outbound) error
}

// Connection is one registered live connection.
type Connection struct {
	ID     string
	Role   string
	sender Sender
}

// Registry owns the connection table. It is an injectable state object so
// independent instances can be tested in isolation.
type Registry struct {
	conns  cmap.ConcurrentMap[string, *Connection]
	pool   *utils.WorkerPool
	logger zerolog.Logger
}

// NewRegistry initializes a registry with the given fan-out parallelism.
func NewRegistry(workers int, logger zerolog.Logger) *Registry {
	if workers < 1 {
		workers = 1
	}
	return &Registry{
		conns:  cmap.New[*Connection](),
		pool:   utils.NewWorkerPool(workers, workers*4),
		logger: logger,
	}
}

// Register adds a connection under its declared role and returns the
// broadcast group it joined (the role name). Re-registering an existing
// connection replaces its role and group.
func (r *Registry) Register(connID, role string, sender Sender) string {
	r.conns.Set(connID, &Connection{ID: connID, Role: role, sender: sender})
	r.logger.Info().Str("connection_id", connID).Str("role", role).Msg("connection registered")
	return role
}

// Unregister removes a connection. Removing an unknown connection is a
// no-op.
func (r *Registry) Unregister(connID string) {
	if _, ok := r.conns.Pop(connID); ok {
		r.logger.Info().Str("connection_id", connID).Msg("connection unregistered")
	}
}

// Role returns the declared role of a connection, if registered.
func (r *Registry) Role(connID string) (string, bool) {
	conn, ok := r.conns.Get(connID)
	if !ok {
		return "", false
	}
	return conn.Role, true
}

// Send delivers a message to one connection. An unknown connection is a
// no-op; a transport failure is logged, never retried.
func (r *Registry) Send(connID string, msg models.Outbound) {
	conn, ok := r.conns.Get(connID)
	if !ok {
		return
	}
	r.deliver(conn, msg)
}

// Broadcast fans a message out to every connection in the group. Each
// delivery is independent and fire-and-forget: a dead subscriber never
// blocks the others, and a saturated or shut-down delivery pool drops
// the message rather than stalling the caller.
func (r *Registry) Broadcast(group string, msg models.Outbound) {
	for _, conn := range r.conns.Items() {
		if conn.Role == group {
			r.dispatch(conn, msg)
		}
	}
}

// BroadcastExcept fans a message out to every registered connection except
// the named one, regardless of group.
func (r *Registry) BroadcastExcept(exceptID string, msg models.Outbound) {
	for _, conn := range r.conns.Items() {
		if conn.ID != exceptID {
			r.dispatch(conn, msg)
		}
	}
}

// Counts returns the number of registered source and subscriber
// connections.
func (r *Registry) Counts() (sources, subscribers int) {
	for _, conn := range r.conns.Items() {
		switch conn.Role {
		case constants.RoleSource:
			sources++
		case constants.RoleSubscriber:
			subscribers++
		}
	}
	return sources, subscribers
}

// Shutdown drains the delivery pool.
func (r *Registry) Shutdown() {
	r.pool.Shutdown()
}

func (r *Registry) dispatch(conn *Connection, msg models.Outbound) {
	queued := r.pool.Submit(func() {
		r.deliver(conn, msg)
	})
	if !queued {
		r.logger.Warn().
			Str("connection_id", conn.ID).
			Str("message_type", msg.Type).
			Msg("broadcast delivery dropped, pool saturated or shut down")
	}
}

func (r *Registry) deliver(conn *Connection, msg models.Outbound) {
	if err := conn.sender.Send(msg); err != nil {
		r.logger.Warn().Err(err).
			Str("connection_id", conn.ID).
			Str("message_type", msg.Type).
			Msg("outbound delivery failed")
	}
}
