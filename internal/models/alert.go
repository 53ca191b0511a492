package models

import "time"

// AlertRequest is the emergency_alert payload from a source connection.
type AlertRequest struct {
	PatientID   string `json:"patientId,omitempty"`
	PatientName string `json:"patientName"`
	Condition   string `json:"condition"`
	Priority    string `json:"priority,omitempty"`
	AmbulanceID string `json:"ambulanceId"`
}

// EmergencyAlert is a stamped alert broadcast to subscribers. Lifecycle
// status moves active -> resolved or active -> dismissed, never back.
type EmergencyAlert struct {
	AlertID      string     `json:"alertId"`
	PatientID    string     `json:"patientId,omitempty"`
	PatientName  string     `json:"patientName"`
	Condition    string     `json:"condition"`
	Priority     string     `json:"priority,omitempty"`
	AmbulanceID  string     `json:"ambulanceId"`
	ConnectionID string     `json:"connectionId,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
	Status       string     `json:"status,omitempty"`
	ResolvedAt   *time.Time `json:"resolvedAt,omitempty"`
}

// AlertAck confirms an emergency_alert submission back to the source.
type AlertAck struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	AlertID   string    `json:"alertId"`
	Timestamp time.Time `json:"timestamp"`
}
