// Package dedup guards the fan-out against rapid retransmissions. It
// remembers, per connection, the most recent patient it admitted and
// rejects a repeat for the same patient inside the configured window.
package dedup

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// lastTransmission is the admit record kept per connection.
type lastTransmission struct {
	PatientID string
	At        time.Time
}

// Engine decides whether a transmission is admitted into the fan-out.
// A rejection is a routing decision, not a fault.
type Engine struct {
	Window        time.Duration
	Retention     time.Duration
	SweepInterval time.Duration
	Logger        zerolog.Logger

	now func() time.Time

	mu   sync.Mutex
	last map[string]lastTransmission

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine initializes a new deduplication engine. now may be nil, in
// which case time.Now is used.
func NewEngine(window, retention, sweepInterval time.Duration, now func() time.Time, logger zerolog.Logger) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		Window:        window,
		Retention:     retention,
		SweepInterval: sweepInterval,
		Logger:        logger,
		now:           now,
		last:          make(map[string]lastTransmission),
	}
}

// Admit reports whether a transmission from connID for patientID may enter
// the fan-out. Admission records the pair; rejection leaves the previous
// record in place so the window does not slide on retries.
func (e *Engine) Admit(connID, patientID string) bool {
	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	prev, ok := e.last[connID]
	if ok && prev.PatientID == patientID && now.Sub(prev.At) < e.Window {
		return false
	}

	e.last[connID] = lastTransmission{PatientID: patientID, At: now}
	return true
}

// Forget drops all dedup state for a connection. Called on disconnect;
// forgetting an unknown connection is a no-op.
func (e *Engine) Forget(connID string) {
	e.mu.Lock()
	delete(e.last, connID)
	e.mu.Unlock()
}

// Len returns the number of tracked connections.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.last)
}

// Start launches the periodic sweep that evicts records older than the
// retention horizon, bounding memory even when disconnects are missed.
func (e *Engine) Start() error {
	if e.ctx != nil {
		e.Logger.Warn().Msg("dedup engine is already running")
		return errors.New("dedup engine is already running")
	}

	e.ctx, e.cancel = context.WithCancel(context.Background())

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runSweepLoop()
	}()

	e.Logger.Info().Dur("window", e.Window).Dur("retention", e.Retention).Msg("dedup engine started")
	return nil
}

// Stop halts the sweep loop. The admit table itself stays valid, so the
// engine can be restarted at any time without correctness impact.
func (e *Engine) Stop() error {
	if e.ctx == nil {
		e.Logger.Warn().Msg("dedup engine is not running")
		return errors.New("dedup engine is not running")
	}

	e.cancel()
	e.wg.Wait()

	e.ctx = nil
	e.cancel = nil

	e.Logger.Info().Msg("dedup engine stopped")
	return nil
}

func (e *Engine) runSweepLoop() {
	ticker := time.NewTicker(e.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := e.Sweep(); n > 0 {
				e.Logger.Debug().Int("evicted", n).Msg("swept stale transmission records")
			}
		case <-e.ctx.Done():
			return
		}
	}
}

// Sweep evicts records older than the retention horizon and returns how
// many were removed.
func (e *Engine) Sweep() int {
	horizon := e.now().Add(-e.Retention)

	e.mu.Lock()
	defer e.mu.Unlock()

	evicted := 0
	for connID, rec := range e.last {
		if rec.At.Before(horizon) {
			delete(e.last, connID)
			evicted++
		}
	}
	return evicted
}
