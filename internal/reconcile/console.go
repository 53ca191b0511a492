// Package reconcile maintains the subscriber-side view of the relay
// stream: one record per patient, suppression of replayed transmissions,
// and a bounded alert board with a persisted history.
package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/emsgrid/vitals-relay/internal/constants"
	"github.com/emsgrid/vitals-relay/internal/models"
)

// seenKey identifies one transmission for replay suppression. It is a
// structured composite, never a concatenated string, so patient IDs
// containing separators cannot collide.
type seenKey struct {
	PatientID string
	Timestamp int64 // event stamp, unix milliseconds
}

// EntityRecord is the console's current view of one patient.
type EntityRecord struct {
	Event       models.VitalsEvent
	Admitted    bool
	AdmittedBy  string
	AdmittedAt  *time.Time
	UpdateCount int
	LastSeen    time.Time
}

// DisplayLevel returns the tier to render. Events always carry a tier;
// the heart-rate/SpO2 fallback covers records restored from payloads
// that predate server-side triage and is never persisted back.
func (r EntityRecord) DisplayLevel() models.Severity {
	if r.Event.EmergencyLevel != "" {
		return r.Event.EmergencyLevel
	}
	hr, spo2 := r.Event.HeartRate, r.Event.SpO2
	switch {
	case hr < 50 || hr > 140 || spo2 < 90:
		return models.SeverityCritical
	case hr < 60 || hr > 120 || spo2 < 95:
		return models.SeverityModerate
	default:
		return models.SeverityStable
	}
}

// Console reconciles broadcast events into per-patient records and a
// bounded alert board. All mutating calls are safe for concurrent use.
type Console struct {
	Retention     time.Duration
	SweepInterval time.Duration
	Logger        zerolog.Logger

	store HistoryStore
	now   func() time.Time

	mu        sync.Mutex
	connected bool
	entities  map[string]*EntityRecord
	seen      map[seenKey]time.Time
	alerts    []models.EmergencyAlert
	history   []HistoryEntry

	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewConsole builds a console and restores any persisted history from
// the store. A nil store keeps history in memory only. now may be nil.
func NewConsole(store HistoryStore, now func() time.Time, logger zerolog.Logger) *Console {
	if store == nil {
		store = &memoryHistoryStore{}
	}
	if now == nil {
		now = time.Now
	}

	c := &Console{
		Retention:     constants.SeenRetention,
		SweepInterval: constants.SeenSweepInterval,
		Logger:        logger,
		store:         store,
		now:           now,
		entities:      make(map[string]*EntityRecord),
		seen:          make(map[seenKey]time.Time),
	}

	history, err := store.Load()
	if err != nil {
		logger.Error().Err(err).Msg("failed to restore alert history")
	} else {
		if len(history) > constants.MaxAlertHistory {
			history = history[:constants.MaxAlertHistory]
		}
		c.history = history
	}
	return c
}

// Connect marks the console as attached to a live stream. Events arriving
// while disconnected are dropped, not queued.
func (c *Console) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
}

// Disconnect detaches the console. Existing records and alerts survive so
// a reconnect resumes from the last known view.
func (c *Console) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

// Connected reports whether the console is attached to a stream.
func (c *Console) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// HandleVitals applies one vitals_update event. It reports false when the
// console is detached or the transmission was already seen.
func (c *Console) HandleVitals(ev models.VitalsEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return false
	}

	key := seenKey{PatientID: ev.PatientID, Timestamp: ev.Timestamp.UnixMilli()}
	if _, dup := c.seen[key]; dup {
		c.Logger.Debug().Str("patient_id", ev.PatientID).
			Str("transmission_id", ev.TransmissionID).
			Msg("replayed transmission suppressed")
		return false
	}
	c.seen[key] = c.now()

	rec, ok := c.entities[ev.PatientID]
	if !ok {
		rec = &EntityRecord{}
		c.entities[ev.PatientID] = rec
	}
	rec.Event = ev
	rec.UpdateCount++
	rec.LastSeen = c.now()

	if ev.EmergencyLevel == models.SeverityCritical {
		c.addAlertLocked(models.EmergencyAlert{
			AlertID:     ev.TransmissionID,
			PatientID:   ev.PatientID,
			PatientName: ev.PatientName,
			Condition:   "Critical vitals detected",
			AmbulanceID: ev.AmbulanceID,
			Timestamp:   ev.Timestamp,
			Status:      constants.AlertActive,
		}, EntryCriticalVitals)
	}
	return true
}

// HandleAlert applies one emergency_alert broadcast. Repeats of an alert
// already on the board are dropped.
func (c *Console) HandleAlert(alert models.EmergencyAlert) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return false
	}
	if alert.Status == "" {
		alert.Status = constants.AlertActive
	}
	return c.addAlertLocked(alert, EntryEmergencyAlert)
}

// addAlertLocked pushes an alert onto the bounded board and records it in
// the persisted history. Caller holds c.mu.
func (c *Console) addAlertLocked(alert models.EmergencyAlert, entryType string) bool {
	for _, existing := range c.alerts {
		if existing.AlertID == alert.AlertID {
			return false
		}
		if existing.PatientID != "" && existing.PatientID == alert.PatientID &&
			existing.Timestamp.Equal(alert.Timestamp) {
			return false
		}
	}

	c.alerts = append([]models.EmergencyAlert{alert}, c.alerts...)
	if len(c.alerts) > constants.MaxActiveAlerts {
		c.alerts = c.alerts[:constants.MaxActiveAlerts]
	}

	c.history = append([]HistoryEntry{{
		Type:        entryType,
		AlertID:     alert.AlertID,
		PatientID:   alert.PatientID,
		PatientName: alert.PatientName,
		Condition:   alert.Condition,
		AmbulanceID: alert.AmbulanceID,
		Timestamp:   alert.Timestamp,
		ReceivedAt:  c.now(),
		Status:      constants.AlertActive,
	}}, c.history...)
	if len(c.history) > constants.MaxAlertHistory {
		c.history = c.history[:constants.MaxAlertHistory]
	}
	c.persistLocked()

	c.Logger.Info().Str("alert_id", alert.AlertID).Str("type", entryType).
		Str("patient_id", alert.PatientID).Msg("alert added to board")
	return true
}

// AdmitPatient marks a patient record as attended. Admitting an unknown
// or already admitted patient reports false.
func (c *Console) AdmitPatient(patientID, admittedBy string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.entities[patientID]
	if !ok || rec.Admitted {
		return false
	}
	now := c.now()
	rec.Admitted = true
	rec.AdmittedBy = admittedBy
	rec.AdmittedAt = &now
	return true
}

// DismissAlert removes an alert from the board without treating it. The
// lifecycle is monotonic: dismissing a settled alert is a no-op.
func (c *Console) DismissAlert(alertID string) bool {
	return c.settleAlert(alertID, constants.AlertDismissed)
}

// ResolveAlert removes an alert from the board as handled.
func (c *Console) ResolveAlert(alertID string) bool {
	return c.settleAlert(alertID, constants.AlertResolved)
}

func (c *Console) settleAlert(alertID, status string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	settled := false
	for i, alert := range c.alerts {
		if alert.AlertID == alertID {
			c.alerts = append(c.alerts[:i], c.alerts[i+1:]...)
			settled = true
			break
		}
	}
	if !settled {
		return false
	}

	now := c.now()
	for i := range c.history {
		if c.history[i].AlertID == alertID && c.history[i].Status == constants.AlertActive {
			c.history[i].Status = status
			c.history[i].ResolvedAt = &now
		}
	}
	c.persistLocked()

	c.Logger.Info().Str("alert_id", alertID).Str("status", status).Msg("alert settled")
	return true
}

// persistLocked saves the history snapshot. Caller holds c.mu.
func (c *Console) persistLocked() {
	if err := c.store.Save(append([]HistoryEntry(nil), c.history...)); err != nil {
		c.Logger.Error().Err(err).Msg("failed to persist alert history")
	}
}

// Patient returns a copy of one patient record.
func (c *Console) Patient(patientID string) (EntityRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.entities[patientID]
	if !ok {
		return EntityRecord{}, false
	}
	return *rec, true
}

// Patients returns a copy of every patient record.
func (c *Console) Patients() []EntityRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]EntityRecord, 0, len(c.entities))
	for _, rec := range c.entities {
		out = append(out, *rec)
	}
	return out
}

// ActiveAlerts returns the current alert board, most recent first.
func (c *Console) ActiveAlerts() []models.EmergencyAlert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.EmergencyAlert(nil), c.alerts...)
}

// History returns the persisted history snapshot, most recent first.
func (c *Console) History() []HistoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]HistoryEntry(nil), c.history...)
}

// SweepSeen evicts suppression keys older than the retention window and
// returns how many were removed.
func (c *Console) SweepSeen() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.Retention)
	removed := 0
	for key, markedAt := range c.seen {
		if markedAt.Before(cutoff) {
			delete(c.seen, key)
			removed++
		}
	}
	return removed
}

// SeenLen reports the current suppression table size.
func (c *Console) SeenLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// Start launches the periodic suppression-table sweeper.
func (c *Console) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return errors.New("console is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := c.SweepSeen(); removed > 0 {
					c.Logger.Debug().Int("removed", removed).Msg("swept suppression table")
				}
			}
		}
	}()
	return nil
}

// Stop halts the sweeper and waits for it to exit.
func (c *Console) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return errors.New("console is not running")
	}
	c.running = false
	cancel := c.cancel
	c.mu.Unlock()

	cancel()
	c.wg.Wait()
	return nil
}
