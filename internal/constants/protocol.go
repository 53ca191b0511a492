package constants

import "time"

// Connection roles declared via the identify message. Connections hold
// the pending role between the upgrade and their identify message.
const (
	RoleSource     = "source"     // field unit transmitting vitals/alerts/locations
	RoleSubscriber = "subscriber" // monitoring console receiving broadcasts
	RolePending    = "pending"
)

// Inbound message types (client -> server).
const (
	MessageIdentify        = "identify"
	MessageTransmitVitals  = "transmit_vitals"
	MessageStartSimulation = "start_vitals_simulation"
	MessageStopSimulation  = "stop_vitals_simulation"
	MessageUpdateLocation  = "update_location"
	MessageEmergencyAlert  = "emergency_alert"
	MessageCheckConnection = "check_connection"
)

// Outbound message types (server -> client).
const (
	MessageVitalsUpdate       = "vitals_update"
	MessageVitalsReceived     = "vitals_received"
	MessageSimulationStarted  = "simulation_started"
	MessageSimulationStopped  = "simulation_stopped"
	MessageLocationUpdate     = "location_update"
	MessageEmergencyAlertSent = "emergency_alert_sent"
	MessageConnectionStatus   = "connection_status"
	MessageError              = "error"
)

// Acknowledgement statuses carried in vitals_received and alert confirmations.
const (
	StatusSuccess = "success"
	StatusWarning = "warning"
	StatusError   = "error"
)

// Transmission kinds stamped on every vitals event.
const (
	TransmissionManual    = "manual"
	TransmissionSynthetic = "simulated"
)

// Alert lifecycle statuses.
const (
	AlertActive    = "active"
	AlertResolved  = "resolved"
	AlertDismissed = "dismissed"
)

// Timing defaults. The dedup window matches the manual transmission
// rate limit; retention and sweep bound table growth even when
// disconnect events are missed.
const (
	DedupWindow        = 1000 * time.Millisecond
	DedupRetention     = 15 * time.Minute
	DedupSweepInterval = 10 * time.Minute

	SimulationInterval = 3000 * time.Millisecond

	SeenRetention     = 10 * time.Minute
	SeenSweepInterval = time.Minute
)

// Bounds on the subscriber-side alert views.
const (
	MaxActiveAlerts = 5
	MaxAlertHistory = 50
)
