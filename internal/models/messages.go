package models

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for every client -> server message. Type selects
// one of a closed set of payload variants; payloads are validated before
// dispatch and malformed ones are dropped at the boundary.
type Inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Outbound is the envelope for every server -> client message.
type Outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// IdentifyRequest declares the connection's role after the handshake.
// ClientVersion is optional and only feeds the minimum-version warning.
type IdentifyRequest struct {
	Role          string `json:"role"`
	ClientVersion string `json:"clientVersion,omitempty"`
}

// SimulationRequest seeds a synthetic vitals generator. All fields are
// optional; missing identity fields get placeholder values.
type SimulationRequest struct {
	PatientID     string `json:"patientId,omitempty"`
	PatientName   string `json:"patientName,omitempty"`
	AmbulanceID   string `json:"ambulanceId,omitempty"`
	ParamedicName string `json:"paramedicName,omitempty"`
}

// SimulationAck confirms a start/stop of the synthetic generator.
type SimulationAck struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	PatientID string    `json:"patientId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ConnectionStatus reports live registry counts per group.
type ConnectionStatus struct {
	Status          string    `json:"status"`
	ConnectionID    string    `json:"connectionId"`
	SourceCount     int       `json:"sourceClients"`
	SubscriberCount int       `json:"subscriberClients"`
	Timestamp       time.Time `json:"timestamp"`
}

// ErrorAck reports a rejected inbound message back to its sender.
type ErrorAck struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
