// Package router receives inbound events from source connections, applies
// deduplication and triage, and fans the results out to subscriber
// consoles through the connection registry.
package router

import (
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/emsgrid/vitals-relay/internal/constants"
	"github.com/emsgrid/vitals-relay/internal/dedup"
	"github.com/emsgrid/vitals-relay/internal/models"
	"github.com/emsgrid/vitals-relay/internal/registry"
	"github.com/emsgrid/vitals-relay/internal/simulator"
	"github.com/emsgrid/vitals-relay/internal/triage"
	"github.com/emsgrid/vitals-relay/pkg/geo"
)

// Publisher republishes admitted events to an external integration bus.
// A nil publisher disables republishing.
type Publisher interface {
	PublishVitals(event models.VitalsEvent)
	PublishAlert(alert models.EmergencyAlert)
}

// Router coordinates the registry, dedup engine and generator manager for
// every inbound message. All state it touches is owned and injected, so
// independent instances can run side by side in tests.
type Router struct {
	Registry   *registry.Registry
	Dedup      *dedup.Engine
	Simulators *simulator.Manager
	Publisher  Publisher
	MinVersion *semver.Version
	Logger     zerolog.Logger

	now func() time.Time
}

// NewRouter wires a router. now may be nil, in which case time.Now is
// used. minVersion may be nil to disable the client version gate.
func NewRouter(reg *registry.Registry, ded *dedup.Engine, sims *simulator.Manager,
	pub Publisher, minVersion *semver.Version, now func() time.Time, logger zerolog.Logger) *Router {

	if now == nil {
		now = time.Now
	}
	return &Router{
		Registry:   reg,
		Dedup:      ded,
		Simulators: sims,
		Publisher:  pub,
		MinVersion: minVersion,
		Logger:     logger,
		now:        now,
	}
}

// Connect registers a freshly upgraded connection in the pending group.
// Pending connections can receive acks and location broadcasts but belong
// to no fan-out group until they identify.
func (r *Router) Connect(connID string, sender registry.Sender) {
	r.Registry.Register(connID, constants.RolePending, sender)
}

// Identify registers the connection into the group derived from its
// declared role. Re-identifying replaces the previous registration.
func (r *Router) Identify(connID string, req models.IdentifyRequest, sender registry.Sender) error {
	if req.Role != constants.RoleSource && req.Role != constants.RoleSubscriber {
		return fmt.Errorf("unknown role %q", req.Role)
	}

	r.checkClientVersion(connID, req.ClientVersion)

	group := r.Registry.Register(connID, req.Role, sender)
	r.Logger.Info().Str("connection_id", connID).Str("group", group).Msg("connection identified")
	return nil
}

// checkClientVersion warns when a client reports an app version below the
// configured minimum. The gate never rejects: old consoles keep working,
// operations just gets a trail to chase upgrades with.
func (r *Router) checkClientVersion(connID, reported string) {
	if r.MinVersion == nil || reported == "" {
		return
	}
	v, err := semver.NewVersion(reported)
	if err != nil {
		r.Logger.Warn().Str("connection_id", connID).Str("client_version", reported).
			Msg("unparseable client version")
		return
	}
	if v.LessThan(r.MinVersion) {
		r.Logger.Warn().Str("connection_id", connID).
			Str("client_version", reported).
			Str("min_version", r.MinVersion.String()).
			Msg("client below minimum supported version")
	}
}

// SubmitVitals handles one manual transmit_vitals submission.
func (r *Router) SubmitVitals(connID string, req models.VitalsRequest) {
	r.submit(connID, req, constants.TransmissionManual, 0)
}

// submit is the single admission path for manual and synthetic
// transmissions: dedup, triage, broadcast, ack.
func (r *Router) submit(connID string, req models.VitalsRequest, kind string, seq int) {
	now := r.now()
	transmissionID := fmt.Sprintf("%s_%d", req.PatientID, now.UnixMilli())
	if kind == constants.TransmissionSynthetic {
		transmissionID = fmt.Sprintf("%s_%d", transmissionID, seq)
	}

	if !r.Dedup.Admit(connID, req.PatientID) {
		r.Logger.Debug().Str("connection_id", connID).Str("patient_id", req.PatientID).
			Msg("duplicate transmission rejected")
		r.Registry.Send(connID, models.Outbound{
			Type: constants.MessageVitalsReceived,
			Payload: models.VitalsAck{
				Status:         constants.StatusWarning,
				Message:        "Duplicate transmission skipped - please wait 1 second between transmissions",
				TransmissionID: transmissionID,
				Timestamp:      now,
			},
		})
		return
	}

	event := models.VitalsEvent{
		PatientID:        req.PatientID,
		PatientName:      req.PatientName,
		HeartRate:        req.HeartRate,
		SpO2:             req.SpO2,
		BloodPressure:    req.BloodPressure,
		Temperature:      req.Temperature,
		RespiratoryRate:  req.RespiratoryRate,
		AmbulanceID:      req.AmbulanceID,
		ParamedicName:    req.ParamedicName,
		EmergencyLevel:   triage.Classify(req.VitalSigns),
		Timestamp:        now,
		TransmissionType: kind,
		TransmissionID:   transmissionID,
		Sequence:         seq,
	}

	r.Registry.Broadcast(constants.RoleSubscriber, models.Outbound{
		Type:    constants.MessageVitalsUpdate,
		Payload: event,
	})
	if r.Publisher != nil {
		r.Publisher.PublishVitals(event)
	}

	r.Logger.Info().
		Str("connection_id", connID).
		Str("transmission_id", transmissionID).
		Str("emergency_level", string(event.EmergencyLevel)).
		Str("transmission_type", kind).
		Msg("vitals broadcast to subscribers")

	r.Registry.Send(connID, models.Outbound{
		Type: constants.MessageVitalsReceived,
		Payload: models.VitalsAck{
			Status:         constants.StatusSuccess,
			Message:        "Vitals transmitted to monitoring consoles successfully",
			TransmissionID: transmissionID,
			Timestamp:      now,
		},
	})
}

// StartSimulation launches the connection's synthetic generator, filling
// placeholder identity fields when the seed omits them.
func (r *Router) StartSimulation(connID string, req models.SimulationRequest) {
	seed := models.VitalsRequest{
		PatientID:     req.PatientID,
		PatientName:   req.PatientName,
		AmbulanceID:   req.AmbulanceID,
		ParamedicName: req.ParamedicName,
	}
	if seed.PatientID == "" {
		seed.PatientID = "PAT_SIM_" + uuid.NewString()[:6]
	}
	if seed.PatientName == "" {
		seed.PatientName = "Emergency Patient"
	}
	if seed.AmbulanceID == "" {
		seed.AmbulanceID = "AMB001"
	}

	r.Simulators.Start(connID, seed, func(v models.VitalsRequest, seq int) {
		r.submit(connID, v, constants.TransmissionSynthetic, seq)
	})

	r.Registry.Send(connID, models.Outbound{
		Type: constants.MessageSimulationStarted,
		Payload: models.SimulationAck{
			Status:    constants.StatusSuccess,
			Message:   "Vitals simulation started",
			PatientID: seed.PatientID,
			Timestamp: r.now(),
		},
	})
}

// StopSimulation cancels the connection's generator. Stopping a
// connection without one is a silent no-op.
func (r *Router) StopSimulation(connID string) {
	if !r.Simulators.Stop(connID) {
		return
	}
	r.Registry.Send(connID, models.Outbound{
		Type: constants.MessageSimulationStopped,
		Payload: models.SimulationAck{
			Status:    constants.StatusSuccess,
			Message:   "Vitals simulation stopped",
			Timestamp: r.now(),
		},
	})
}

// SubmitAlert stamps and broadcasts an emergency alert to all
// subscribers. Alerts are not deduplicated server-side; consoles suppress
// repeats they have already seen.
func (r *Router) SubmitAlert(connID string, req models.AlertRequest) {
	now := r.now()
	alert := models.EmergencyAlert{
		AlertID:      "ALERT_" + uuid.NewString(),
		PatientID:    req.PatientID,
		PatientName:  req.PatientName,
		Condition:    req.Condition,
		Priority:     req.Priority,
		AmbulanceID:  req.AmbulanceID,
		ConnectionID: connID,
		Timestamp:    now,
		Status:       constants.AlertActive,
	}

	r.Registry.Broadcast(constants.RoleSubscriber, models.Outbound{
		Type:    constants.MessageEmergencyAlert,
		Payload: alert,
	})
	if r.Publisher != nil {
		r.Publisher.PublishAlert(alert)
	}

	r.Logger.Info().Str("connection_id", connID).Str("alert_id", alert.AlertID).
		Str("condition", alert.Condition).Msg("emergency alert broadcast")

	r.Registry.Send(connID, models.Outbound{
		Type: constants.MessageEmergencyAlertSent,
		Payload: models.AlertAck{
			Status:    constants.StatusSuccess,
			Message:   "Emergency alert sent to monitoring consoles successfully",
			AlertID:   alert.AlertID,
			Timestamp: now,
		},
	})
}

// SubmitLocation stamps a position update and broadcasts it to every
// connection except the sender. A payload may carry a raw NMEA sentence
// instead of coordinates; parse failures surface as malformed payloads.
func (r *Router) SubmitLocation(connID string, req models.LocationRequest) error {
	update := models.LocationUpdate{
		AmbulanceID:  req.AmbulanceID,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		Speed:        req.Speed,
		Heading:      req.Heading,
		ConnectionID: connID,
		Timestamp:    r.now(),
	}

	if req.NMEA != "" {
		pos, err := geo.ParsePosition(req.NMEA)
		if err != nil {
			return err
		}
		update.Latitude = pos.Latitude
		update.Longitude = pos.Longitude
		update.Accuracy = pos.Accuracy
		if pos.Speed != 0 {
			update.Speed = pos.Speed
		}
		if pos.Heading != 0 {
			update.Heading = pos.Heading
		}
	}

	r.Registry.BroadcastExcept(connID, models.Outbound{
		Type:    constants.MessageLocationUpdate,
		Payload: update,
	})
	return nil
}

// CheckConnection reports live registry counts back to the caller.
func (r *Router) CheckConnection(connID string) {
	sources, subscribers := r.Registry.Counts()
	r.Registry.Send(connID, models.Outbound{
		Type: constants.MessageConnectionStatus,
		Payload: models.ConnectionStatus{
			Status:          "connected",
			ConnectionID:    connID,
			SourceCount:     sources,
			SubscriberCount: subscribers,
			Timestamp:       r.now(),
		},
	})
}

// Disconnect tears down everything owned by a connection: its generator,
// dedup state and group membership, in that order, synchronously.
func (r *Router) Disconnect(connID string) {
	r.Simulators.Stop(connID)
	r.Dedup.Forget(connID)
	r.Registry.Unregister(connID)
	r.Logger.Info().Str("connection_id", connID).Msg("connection torn down")
}
