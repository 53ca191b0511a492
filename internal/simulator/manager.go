// Package simulator produces synthetic vitals transmissions on a fixed
// cadence, one generator per connection, for demo and drill scenarios.
package simulator

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/emsgrid/vitals-relay/internal/models"
)

// EmitFunc receives one synthetic transmission and its per-generator
// sequence number. It runs on the generator's goroutine and is expected
// to hand off into the normal submission path.
type EmitFunc func(req models.VitalsRequest, seq int)

// Manager owns at most one running generator per connection.
type Manager struct {
	Interval time.Duration
	Logger   zerolog.Logger

	mu      sync.Mutex
	runners map[string]*runner
}

type runner struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager initializes a generator manager with the given tick interval.
func NewManager(interval time.Duration, logger zerolog.Logger) *Manager {
	return &Manager{
		Interval: interval,
		Logger:   logger,
		runners:  make(map[string]*runner),
	}
}

// Start launches a generator for the connection, seeded with the given
// patient identity. A generator already running for the connection is
// cancelled first; two can never run concurrently for one connection.
func (m *Manager) Start(connID string, seed models.VitalsRequest, emit EmitFunc) {
	m.mu.Lock()
	if prev, ok := m.runners[connID]; ok {
		prev.cancel()
		prev.wg.Wait()
		m.Logger.Info().Str("connection_id", connID).Msg("replaced running vitals generator")
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &runner{cancel: cancel}
	m.runners[connID] = r

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		m.run(ctx, connID, seed, emit)
	}()
	m.mu.Unlock()

	m.Logger.Info().
		Str("connection_id", connID).
		Str("patient_id", seed.PatientID).
		Dur("interval", m.Interval).
		Msg("vitals generator started")
}

// Stop cancels the connection's generator, effective no later than its
// next scheduled tick. Stopping a connection without one is a no-op and
// returns false.
func (m *Manager) Stop(connID string) bool {
	m.mu.Lock()
	r, ok := m.runners[connID]
	if ok {
		delete(m.runners, connID)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}

	r.cancel()
	r.wg.Wait()
	m.Logger.Info().Str("connection_id", connID).Msg("vitals generator stopped")
	return true
}

// Active reports whether the connection currently has a generator.
func (m *Manager) Active(connID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.runners[connID]
	return ok
}

// StopAll cancels every generator. Used during shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	runners := m.runners
	m.runners = make(map[string]*runner)
	m.mu.Unlock()

	for _, r := range runners {
		r.cancel()
		r.wg.Wait()
	}
}

func (m *Manager) run(ctx context.Context, connID string, seed models.VitalsRequest, emit EmitFunc) {
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	seq := 0
	for {
		select {
		case <-ticker.C:
			seq++
			req := seed
			req.VitalSigns = sampleVitals()
			emit(req, seq)
		case <-ctx.Done():
			return
		}
	}
}

// sampleVitals draws each reading independently and uniformly from its
// plausible field-unit range.
func sampleVitals() models.VitalSigns {
	return models.VitalSigns{
		HeartRate: 60 + rand.Intn(41),
		SpO2:      95 + rand.Intn(6),
		BloodPressure: models.BloodPressure{
			Systolic:  110 + rand.Intn(31),
			Diastolic: 70 + rand.Intn(21),
		},
		Temperature:     36.5 + rand.Float64()*1.5,
		RespiratoryRate: 12 + rand.Intn(13),
	}
}
